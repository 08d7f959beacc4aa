package main

import (
	"fmt"
	"os"

	"bridgectl/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; config falls back to process env and yaml.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
