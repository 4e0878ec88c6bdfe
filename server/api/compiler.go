package api

import (
	"fmt"
	"path/filepath"

	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-xmldsig/common"
)

// CircuitInfo describes a registered circuit and where its setup files live
type CircuitInfo struct {
	Circuit     frontend.Circuit
	Dir         string
	Name        string
	Version     uint
	Description string
	InputParser InputParser
}

// Paths returns the constraint system, proving key and verifying key paths
func (ci CircuitInfo) Paths() (ccsPath, pkPath, vkPath string) {
	base := filepath.Join(ci.Dir, fmt.Sprintf("%s-%d", ci.Name, ci.Version))
	return base + ".ccs", base + ".pk", base + ".vk"
}

// Compile compiles a circuit and stores the circuit information locally
func (ci CircuitInfo) Compile() error {
	ccsPath, pkPath, vkPath := ci.Paths()
	return common.SetupAndSave(ci.Circuit, ccsPath, pkPath, vkPath)
}
