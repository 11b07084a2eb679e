package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	cli "github.com/chatdock/chatdock/cmd/chatdock"
	"github.com/chatdock/chatdock/internal/config"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Load settings, writing defaults on first run
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load settings: %v\n", err)
		os.Exit(1)
	}

	if err := cli.SetupRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
