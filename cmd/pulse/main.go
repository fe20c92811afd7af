package main

import (
	"os"

	"github.com/profitpulse/backend/cmd/pulse/commands"
)

// main is the entry point for the ProfitPulse CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
