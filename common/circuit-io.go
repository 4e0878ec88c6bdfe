package common

import (
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// SetupAndSave compiles the circuit over BN254, runs the groth16 setup and writes the
// constraint system and both keys
func SetupAndSave(circuitTemplate frontend.Circuit, ccsPath, pkPath, vkPath string) error {
	fmt.Println("\n--- Compiling Circuit ---")
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuitTemplate)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	fmt.Printf("✓ Circuit compiled: %d constraints\n", ccs.GetNbConstraints())

	if err := writeFile(ccsPath, ccs); err != nil {
		return err
	}

	fmt.Println("\n--- Running Setup ---")
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := writeFile(pkPath, pk); err != nil {
		return err
	}
	if err := writeFile(vkPath, vk); err != nil {
		return err
	}

	fmt.Println("✓ Setup completed and saved!")
	return nil
}

// LoadSetup reads a constraint system and its keys written by SetupAndSave
func LoadSetup(ccsPath, pkPath, vkPath string) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if err := readFile(ccsPath, ccs); err != nil {
		return nil, nil, nil, err
	}

	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFile(pkPath, pk); err != nil {
		return nil, nil, nil, err
	}

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFile(vkPath, vk); err != nil {
		return nil, nil, nil, err
	}

	fmt.Println("✓ Loaded pre-compiled setup")
	return ccs, pk, vk, nil
}

func writeFile(path string, obj io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := obj.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readFile(path string, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := obj.ReadFrom(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
