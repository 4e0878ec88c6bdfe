package zkproof

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mynextid/zk-xmldsig/partialsha"
	"github.com/mynextid/zk-xmldsig/signal"
	"github.com/mynextid/zk-xmldsig/witness"
)

type witnessConfig struct {
	envFile string
	xmlPath string
	outPath string

	nullifierSeed  string
	revealStart    string
	revealEnd      string
	signal         string
	maxInputLength int
	limbBits       int
	limbCount      int
	selector       string
}

// flags that fall back to an environment variable when not set on the command line
var witnessEnv = map[string]string{
	"xml":            "XML_PATH",
	"nullifier-seed": "NULLIFIER_SEED",
	"reveal-start":   "REVEAL_START",
	"reveal-end":     "REVEAL_END",
	"signal":         "SIGNAL",
}

func NewWitnessCmd() *cobra.Command {
	cfg := &witnessConfig{}

	cmd := &cobra.Command{
		Use:   "witness",
		Short: "Prepare the circuit witness of a signed XML credential",
		Long: `Verify the signature of a signed XML credential locally and write the witness record of the credential circuit as JSON.
Unset flags fall back to XML_PATH, NULLIFIER_SEED, REVEAL_START, REVEAL_END and SIGNAL, read from the environment or the --env-file.`,
		Example: `  # Witness with the default seed, written to stdout
  zkxml witness --xml ./credential.xml

  # Reveal the num attribute
  zkxml witness --xml ./credential.xml --reveal-start 'num="' --reveal-end '"' -o witness.json

  # Everything from a .env file
  zkxml witness --env-file ./.env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.loadEnv(cmd); err != nil {
				return err
			}
			return runWitness(cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cfg.envFile, "env-file", ".env", "Optional .env file with defaults")
	cmd.Flags().StringVar(&cfg.xmlPath, "xml", "", "Signed XML credential")
	cmd.Flags().StringVarP(&cfg.outPath, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&cfg.nullifierSeed, "nullifier-seed", strconv.Itoa(witness.DefaultNullifierSeed), "Nullifier seed, a BN254 scalar")
	cmd.Flags().StringVar(&cfg.revealStart, "reveal-start", "", "Delimiter opening the revealed window (empty = no reveal)")
	cmd.Flags().StringVar(&cfg.revealEnd, "reveal-end", "", "Delimiter closing the revealed window (empty = no reveal)")
	cmd.Flags().StringVar(&cfg.signal, "signal", "", "Signal bound to the proof, decimal or 0x hex (empty = 1)")
	cmd.Flags().IntVar(&cfg.maxInputLength, "max-input-length", partialsha.DefaultCapacity, "Capacity of the hashed remainder in bytes, a multiple of 64")
	cmd.Flags().IntVar(&cfg.limbBits, "limb-bits", witness.DefaultLimbBits, "Bits per RSA limb")
	cmd.Flags().IntVar(&cfg.limbCount, "limb-count", witness.DefaultLimbCount, "Number of RSA limbs")
	cmd.Flags().StringVar(&cfg.selector, "selector", witness.DefaultSelector, "Opening tag of the disclosure subtree")

	return cmd
}

// loadEnv reads the env file, a missing file is fine, and applies the environment to unset flags
func (cfg *witnessConfig) loadEnv(cmd *cobra.Command) error {
	if cfg.envFile != "" {
		if err := godotenv.Load(cfg.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", cfg.envFile, err)
		}
	}

	for flag, key := range witnessEnv {
		if cmd.Flags().Changed(flag) {
			continue
		}
		if value, ok := os.LookupEnv(key); ok && value != "" {
			if err := cmd.Flags().Set(flag, value); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return nil
}

func (cfg *witnessConfig) params() (witness.Params, error) {
	seed, err := signal.Parse(cfg.nullifierSeed)
	if err != nil {
		return witness.Params{}, fmt.Errorf("nullifier seed: %w", err)
	}
	params := witness.Params{
		NullifierSeed:  seed,
		RevealStart:    cfg.revealStart,
		RevealEnd:      cfg.revealEnd,
		MaxInputLength: cfg.maxInputLength,
		LimbBits:       cfg.limbBits,
		LimbCount:      cfg.limbCount,
		Selector:       cfg.selector,
	}
	if cfg.signal != "" {
		if params.Signal, err = signal.Parse(cfg.signal); err != nil {
			return params, fmt.Errorf("signal: %w", err)
		}
	}
	return params, nil
}

func runWitness(cfg *witnessConfig, stdout io.Writer) error {
	if cfg.xmlPath == "" {
		return fmt.Errorf("no XML given, use --xml or XML_PATH")
	}
	doc, err := os.ReadFile(cfg.xmlPath)
	if err != nil {
		return fmt.Errorf("failed to read the XML: %w", err)
	}

	params, err := cfg.params()
	if err != nil {
		return err
	}

	rec, err := witness.Generate(doc, params)
	if err != nil {
		return fmt.Errorf("witness generation failed: %w", err)
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	if cfg.outPath == "" {
		_, err = fmt.Fprintln(stdout, string(out))
		return err
	}
	if err := os.WriteFile(cfg.outPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.outPath, err)
	}
	fmt.Fprintf(os.Stderr, "[OK] Witness written to %s\n", cfg.outPath)
	return nil
}
