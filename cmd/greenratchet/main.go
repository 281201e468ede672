// Command greenratchet evaluates sustainability-linked loan KPIs against
// cloud usage and grid reference data.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
