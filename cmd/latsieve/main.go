// Command latsieve runs a Gauss sieve on a lattice basis, checkpointing to a
// blob store so that long runs can be suspended and resumed.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
