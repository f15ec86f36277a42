// Command vaultctl bootstraps keys, migrates storage and runs the periodic
// share sweep and rotation reminders.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
