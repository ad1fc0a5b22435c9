package main

import (
	"log"
	"os"

	"trendwave-pipeline/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env (local dev only; CI passes secrets through the environment)
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		log.Printf("❌ Pipeline failed: %v", err)
		os.Exit(1)
	}
}
