package main

import (
	"github.com/mynextid/zk-xmldsig/cmd/zkproof"
	"github.com/spf13/cobra"
)

// Init the cmd
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zkxml",
		Short: "Witness preparation for signed XML credentials",
		Long:  `Verifies signed XML credentials locally and prepares the witness of a BN254 circuit, with an API server and circuit tooling`,
	}

	rootCmd.AddCommand(
		zkproof.NewWitnessCmd(),
		zkproof.NewServeCmd(),
		zkproof.NewCompileCmd(),
		NewVersionCmd(),
	)

	return rootCmd
}
