// Command simplexkg-ingest processes an activity stream into a simplicial
// knowledge graph: parsing, entity extraction, vertex/edge storage, and
// witness-complex construction, with checkpoint/resume support.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"simplexkg/internal/config"
	"simplexkg/internal/extractor"
	"simplexkg/internal/ingest"
	"simplexkg/internal/logging"
	"simplexkg/internal/store"
)

var (
	verbose        bool
	dbPath         string
	limit          int
	windowMinutes  int
	delaySeconds   float64
	noResume       bool
	userID         string
	provider       string
	model          string
	checkpointPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "simplexkg-ingest [input]",
	Short: "Ingest an activity stream into a simplicial knowledge graph",
	Args:  cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		cwd, _ := os.Getwd()
		if err := logging.Initialize(cwd, verbose, "info"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runIngest,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().StringVar(&dbPath, "db", "simplexkg.db", "path to the SQLite database")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "limit the number of entries processed (0 = no limit)")
	rootCmd.Flags().IntVar(&windowMinutes, "window", 30, "temporal window size in minutes")
	rootCmd.Flags().Float64Var(&delaySeconds, "delay", 0.1, "delay between extractor calls, in seconds")
	rootCmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore any existing checkpoint and start fresh")
	rootCmd.Flags().StringVar(&userID, "user-id", "default", "user id to partition the graph under")
	rootCmd.Flags().StringVar(&provider, "provider", "genai", "extractor provider: genai or ollama")
	rootCmd.Flags().StringVar(&model, "model", "", "model name override for the selected provider")
	rootCmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "checkpoint file path (default: <db>.checkpoint.json)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	input := "activity.json"
	if len(args) == 1 {
		input = args[0]
	}
	if checkpointPath == "" {
		checkpointPath = dbPath + ".checkpoint.json"
	}

	apiKey := os.Getenv("SIMPLEXKG_API_KEY")
	if provider == "genai" && apiKey == "" {
		return fmt.Errorf("%w: SIMPLEXKG_API_KEY must be set when --provider=genai", config.ErrConfiguration)
	}

	ext, err := extractor.New(extractor.Config{
		Provider:    provider,
		Model:       model,
		APIKey:      apiKey,
		OllamaModel: model,
	})
	if err != nil {
		return fmt.Errorf("construct extractor: %w", err)
	}

	tree, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer tree.Close()

	pipeline, err := ingest.New(ingest.Config{
		InputPath:      input,
		UserID:         userID,
		Limit:          limit,
		Delay:          time.Duration(delaySeconds * float64(time.Second)),
		CheckpointPath: checkpointPath,
		Resume:         !noResume,
	}, tree, ext, windowMinutes)
	if err != nil {
		return fmt.Errorf("construct pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("ingest run failed", zap.Error(err), zap.Int("processed", summary.ProcessedThisRun))
		return err
	}

	logger.Info("ingest complete",
		zap.Int("total_entries", summary.TotalEntries),
		zap.Int("processed_this_run", summary.ProcessedThisRun),
		zap.Int("entries_with_vertices", summary.EntriesWithVertices),
	)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
