package zkproof

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mynextid/zk-xmldsig/server/api"
	"github.com/spf13/cobra"
)

type compileConfig struct {
	outputDir string
	circuits  []string
	curve     string
	force     bool
}

func NewCompileCmd() *cobra.Command {
	cfg := &compileConfig{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile circuits and generate setup files",
		Long:  `Compile zero-knowledge circuits and generate constraint systems, proving keys, and verification keys. Compiling all circuits might take some time. List of circuits is available at server/api/list.go`,
		Example: `  # Compile all circuits
  zkxml compile -o ./setup

  # Compile specific circuits
  zkxml compile -o ./setup -c witness-bounds
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.outputDir, "output", "o", "./setup", "Output directory for compiled circuits")
	cmd.Flags().StringSliceVarP(&cfg.circuits, "circuits", "c", []string{}, "Specific circuits to compile (comma-separated, empty = all)")
	cmd.Flags().StringVar(&cfg.curve, "curve", "bn254", "Elliptic curve (bn254)")
	cmd.Flags().BoolVarP(&cfg.force, "force", "f", false, "Overwrite existing files")

	return cmd
}

func runCompile(cfg *compileConfig) error {
	if cfg.curve != "bn254" {
		return fmt.Errorf("unsupported curve %s", cfg.curve)
	}

	if err := os.MkdirAll(cfg.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	circuitsToCompile := cfg.circuits
	if len(circuitsToCompile) == 0 {
		for name := range api.CircuitList {
			circuitsToCompile = append(circuitsToCompile, name)
		}
		sort.Strings(circuitsToCompile)
	}

	fmt.Printf("\n==== Compiling %d circuits to %s ====\n", len(circuitsToCompile), cfg.outputDir)

	failed := 0
	for _, name := range circuitsToCompile {
		info, ok := api.CircuitList[name]
		if !ok {
			fmt.Printf("Circuit %s not found, skipping\n", name)
			continue
		}
		info.Dir = cfg.outputDir

		if !cfg.force {
			if existing := firstExisting(info.Paths()); existing != "" {
				fmt.Printf("%s already exists, skipping (use --force to overwrite)\n", existing)
				continue
			}
		}

		start := time.Now()
		fmt.Printf("Compiling %s...\n", name)

		if err := info.Compile(); err != nil {
			fmt.Printf("[X] Failed to compile %s: %v\n", name, err)
			failed++
			continue
		}

		fmt.Printf("[OK] Compiled %s in %s\n", name, time.Since(start).Round(time.Second))
	}

	fmt.Println("\n==== Compilation complete ====")
	if failed > 0 {
		return fmt.Errorf("%d circuits failed to compile", failed)
	}
	return nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
