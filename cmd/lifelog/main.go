// Command lifelog is the command-line host for the LifeLog sync core. It
// records entries offline, reports queue health and drains the queue to
// the backend on demand or on lifecycle signals.
package main

import (
	"os"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
