package main

import (
	"fmt"
	"os"
)

// zkxml - witness preparation for signed XML credentials, with an API service
// for the registered circuits
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
