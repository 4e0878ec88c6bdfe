package api

import (
	"fmt"

	"github.com/mynextid/zk-xmldsig/common"
)

// CircuitRegistry stores compiled circuits by name
type CircuitRegistry struct {
	Circuits map[string]*Circuit
}

// NewCircuitRegistry creates a new registry
func NewCircuitRegistry() *CircuitRegistry {
	return &CircuitRegistry{
		Circuits: make(map[string]*Circuit),
	}
}

// LoadCircuit reads the setup files of a circuit and registers it under its name
func (cr *CircuitRegistry) LoadCircuit(ci CircuitInfo) error {
	ccsPath, pkPath, vkPath := ci.Paths()

	cs, pk, vk, err := common.LoadSetup(ccsPath, pkPath, vkPath)
	if err != nil {
		return fmt.Errorf("failed to load the circuit: %w", err)
	}

	return cr.Register(ci.Name, &Circuit{
		CS:           cs,
		ProvingKey:   pk,
		VerifyingKey: vk,
		InputParser:  ci.InputParser,
	})
}

// Get returns a circuit by name
func (cr *CircuitRegistry) Get(name string) (*Circuit, error) {
	if c, ok := cr.Circuits[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("circuit %s not found", name)
}

// Register registers a new circuit by user-defined name
func (cr *CircuitRegistry) Register(name string, circuit *Circuit) error {
	if _, ok := cr.Circuits[name]; ok {
		return fmt.Errorf("circuit with name %s already exists", name)
	}
	cr.Circuits[name] = circuit
	return nil
}
