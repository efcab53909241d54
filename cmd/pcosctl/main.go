// Command pcosctl runs PCOS assessments and manages the patient tracker from the
// command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
