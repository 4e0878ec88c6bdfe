package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
)

// InitCircuit loads the setup files, compiling and running the setup first when a file is
// missing or forceCompile is set
func InitCircuit(ccsPath, pkPath, vkPath string, forceCompile bool, circuitTemplate frontend.Circuit) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	paths := []string{ccsPath, pkPath, vkPath}
	for _, p := range paths {
		if err := validatePath(p); err != nil {
			return nil, nil, nil, fmt.Errorf("invalid path %q: %w", p, err)
		}
	}

	if err := ensureDirectories(paths...); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if forceCompile {
		for _, p := range paths {
			if err := safeRemove(p); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to remove %s: %w", p, err)
			}
		}
	}

	if !fileExists(ccsPath) || !fileExists(pkPath) || !fileExists(vkPath) {
		fmt.Println("compiling the circuit")
		if err := SetupAndSave(circuitTemplate, ccsPath, pkPath, vkPath); err != nil {
			return nil, nil, nil, fmt.Errorf("setup and save failed: %w", err)
		}
	}

	return LoadSetup(ccsPath, pkPath, vkPath)
}

// TestCircuit creates the witness, proves and verifies against the public part only,
// printing the time taken by every step
func TestCircuit(assignment frontend.Circuit, ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey) error {
	fmt.Println("\n--- Creating Witness ---")
	startWitness := time.Now()
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("witness creation failed: %w", err)
	}
	witnessTime := time.Since(startWitness)
	fmt.Printf("✓ Witness created successfully! (took %v)\n", witnessTime)

	fmt.Println("\n--- Generating Proof ---")
	startProof := time.Now()
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return fmt.Errorf("proof generation failed: %w", err)
	}
	proofTime := time.Since(startProof)
	fmt.Printf("✓ Proof generated successfully! (took %v)\n", proofTime)

	publicWitness, err := witness.Public()
	if err != nil {
		return fmt.Errorf("public witness extraction failed: %w", err)
	}

	fmt.Println("\n--- Verifying Proof ---")
	startVerify := time.Now()
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return fmt.Errorf("❌ verification failed: %w", err)
	}
	verifyTime := time.Since(startVerify)
	fmt.Printf("✅ Proof verified successfully! (took %v)\n", verifyTime)

	fmt.Println("\n=== Performance Summary ===")
	fmt.Printf("Witness creation:  %v\n", witnessTime)
	fmt.Printf("Proof generation:  %v\n", proofTime)
	fmt.Printf("Verification:      %v\n", verifyTime)
	fmt.Printf("Total time:        %v\n", witnessTime+proofTime+verifyTime)
	return nil
}

var errUnsafePath = errors.New("path must be a non-empty file path without '..' segments")

func validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errUnsafePath
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		return errUnsafePath
	}
	if strings.HasSuffix(path, string(filepath.Separator)) {
		return errUnsafePath
	}
	return nil
}

func ensureDirectories(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// safeRemove deletes a regular file, a missing file is not an error
func safeRemove(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return os.Remove(path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
