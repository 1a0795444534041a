// Package main provides the entry point for the chatterm CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/chatiitd/chatterm/internal/cli"
)

func main() {
	// A .env next to the binary is a convenience for development; the real
	// configuration comes from the environment and the config file.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
