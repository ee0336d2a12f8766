// Package main provides the entry point for the leadscout CLI and API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "leadscout",
	Short: "Lead discovery job pipeline",
	Long:  "Leadscout runs staged browser-automation jobs that search social platforms for posts matching your keywords, scores them as sales leads, and reports the results via CLI or REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
