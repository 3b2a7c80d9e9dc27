package main

import (
	"os"

	"github.com/wonny/energia/backend/cmd/energia/commands"
)

// main is the entry point for the energia CLI
// ⭐ single CLI entry point: go run ./cmd/energia [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
