package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/leadscout/internal/capture"
	"github.com/jonathan/leadscout/internal/config"
	"github.com/jonathan/leadscout/internal/db"
	"github.com/jonathan/leadscout/internal/driver"
	"github.com/jonathan/leadscout/internal/llm"
	"github.com/jonathan/leadscout/internal/observability"
	"github.com/jonathan/leadscout/internal/pipeline"
	"github.com/jonathan/leadscout/internal/pipeline/stages"
	"github.com/jonathan/leadscout/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run a single lead discovery job end-to-end",
	Long: `Runs the full discovery sequence against the target site: authenticate -> search -> scan -> extract -> process_results.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runJobCmd,
}

var (
	runConfigPath   string
	runKeywords     []string
	runPriority     string
	runCaptureMedia bool
	runBaseURL      string
	runMediaDir     string
	runAPIKey       string
	runDatabaseURL  string
	runHeadless     bool
	runVerbose      bool
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringSliceVarP(&runKeywords, "keyword", "k", nil, "Keyword to search and score against (repeatable)")
	runCommand.Flags().StringVarP(&runPriority, "priority", "p", "", "Job priority: low, normal, or high")
	runCommand.Flags().BoolVar(&runCaptureMedia, "capture-media", false, "Capture screenshots at media-enabled stages")
	runCommand.Flags().StringVar(&runBaseURL, "base-url", "", "Target site root (default https://x.com)")
	runCommand.Flags().StringVar(&runMediaDir, "media-dir", "", "Directory for captured screenshots")
	runCommand.Flags().BoolVar(&runHeadless, "headless", true, "Run the browser headless")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for result persistence
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runJobCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}

		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	if cmd.Flags().Changed("keyword") {
		cfg.Keywords = runKeywords
	}
	if cmd.Flags().Changed("priority") {
		cfg.Priority = runPriority
	}
	if cmd.Flags().Changed("capture-media") {
		cfg.CaptureMedia = runCaptureMedia
	}
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = runBaseURL
	}
	if cmd.Flags().Changed("media-dir") {
		cfg.MediaDir = runMediaDir
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = runHeadless
	} else if runConfigPath == "" {
		cfg.Headless = true
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}

	// Step 3: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(config.Config{
		Priority: "normal",
		BaseURL:  "https://x.com",
		MediaDir: "media",
	})

	// Step 4: Validate required fields
	if len(cfg.Keywords) == 0 {
		return fmt.Errorf("at least one --keyword is required (via flag or config)")
	}

	// Step 5: API key is optional; without it extraction uses DOM heuristics
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	return executeJob(ctx, cfg)
}

func executeJob(ctx context.Context, cfg config.Config) error {
	var client llm.Client
	if cfg.APIKey != "" {
		var err error
		client, err = llm.NewGeminiClient(ctx, cfg.APIKey, llm.DefaultModel)
		if err != nil {
			return fmt.Errorf("failed to create llm client: %w", err)
		}
		defer client.Close()
	} else if cfg.Verbose {
		fmt.Println("No API key set; extraction will use DOM heuristics only")
	}

	d, err := driver.NewBrowserDriver(ctx, driver.Options{
		Headless: cfg.Headless,
		LLM:      client,
		Verbose:  cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer d.Close()

	sink, err := capture.NewFilesystemSink(d, cfg.MediaDir)
	if err != nil {
		return fmt.Errorf("failed to create media sink: %w", err)
	}

	jobConfig := types.JobConfig{
		JobID:        uuid.NewString(),
		Keywords:     cfg.Keywords,
		Priority:     types.Priority(cfg.Priority),
		CaptureMedia: cfg.CaptureMedia,
		RecordVideo:  cfg.RecordVideo,
	}
	stageList := stages.DefaultStages(stages.Options{
		BaseURL:  cfg.BaseURL,
		Keywords: cfg.Keywords,
	})

	start := time.Now()
	result, err := pipeline.New(d, sink, cfg.Verbose).Execute(ctx, jobConfig, stageList)
	if err != nil {
		return fmt.Errorf("job rejected: %w", err)
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintJobResult(result)
	printer.PrintLeads(result.Leads)
	fmt.Printf("Finished in %s\n", time.Since(start).Round(time.Millisecond))

	if cfg.DatabaseURL != "" {
		if err := persistResult(ctx, cfg.DatabaseURL, result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to persist result: %v\n", err)
		} else if cfg.Verbose {
			fmt.Printf("Result saved to database (job %s)\n", result.JobID)
		}
	}

	if result.Status == types.StatusFailed {
		return fmt.Errorf("job failed: %s", failureSummary(result))
	}
	return nil
}

func persistResult(ctx context.Context, databaseURL string, result *types.JobResult) error {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}
	return database.SaveResult(ctx, result)
}

// failureSummary lists the failed stages and their error kinds.
func failureSummary(result *types.JobResult) string {
	var parts []string
	for _, st := range result.Stages {
		if st.Outcome == types.OutcomeFailed && st.Error != nil {
			parts = append(parts, fmt.Sprintf("%s (%s)", st.StageName, st.Error.Kind))
		}
	}
	if len(parts) == 0 {
		return "no stage errors recorded"
	}
	return strings.Join(parts, ", ")
}
