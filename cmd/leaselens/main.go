// Package main provides the entry point for the leaselens CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/leaselens/cmd/leaselens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
