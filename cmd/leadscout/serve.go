package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/leadscout/internal/server"
)

var (
	servePort     int
	serveWorkers  int
	serveBaseURL  string
	serveMediaDir string
	serveHeadless bool
	serveVerbose  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that accepts lead discovery jobs and runs them asynchronously on a browser worker pool.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 2, "Concurrent browser sessions")
	serveCmd.Flags().StringVar(&serveBaseURL, "base-url", "", "Target site root (default https://x.com)")
	serveCmd.Flags().StringVar(&serveMediaDir, "media-dir", "media", "Directory for captured screenshots")
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", true, "Run browsers headless")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Print detailed debug information")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := server.Config{
		Port:        servePort,
		Workers:     serveWorkers,
		BaseURL:     serveBaseURL,
		MediaDir:    serveMediaDir,
		Headless:    serveHeadless,
		Verbose:     serveVerbose,
		DatabaseURL: os.Getenv("DATABASE_URL"), // optional; empty keeps results in memory
		APIKey:      os.Getenv("GEMINI_API_KEY"),
	}

	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
