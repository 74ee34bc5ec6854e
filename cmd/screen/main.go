// Command screen runs a screening job in-process: it loads listing files,
// classifies every item against the configured inference provider,
// optionally refines flagged items, and writes the results to a file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
