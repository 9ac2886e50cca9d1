// Command simplexkg-query answers a natural-language query against an
// existing simplicial knowledge graph database and prints the assembled
// context: matched entities, co-occurrence patterns, known relationships,
// and knowledge gaps.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"simplexkg/internal/config"
	"simplexkg/internal/embedding"
	"simplexkg/internal/logging"
	"simplexkg/internal/retrieval"
	"simplexkg/internal/store"
)

var (
	verbose   bool
	dbPath    string
	topK      int
	threshold float64
	userID    string
	provider  string
	model     string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "simplexkg-query [query]",
	Short: "Query a simplicial knowledge graph",
	Args:  cobra.ExactArgs(1),
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
	RunE: runQuery,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().StringVar(&dbPath, "db", "simplexkg.db", "path to the SQLite database")
	rootCmd.Flags().IntVar(&topK, "top-k", 10, "maximum number of matched vertices")
	rootCmd.Flags().Float64Var(&threshold, "threshold", 0.3, "minimum cosine similarity for a vertex match")
	rootCmd.Flags().StringVar(&userID, "user-id", "default", "user id to query within")
	rootCmd.Flags().StringVar(&provider, "provider", "genai", "embedding provider: genai or ollama")
	rootCmd.Flags().StringVar(&model, "model", "", "model name override for the selected provider")
}

func runQuery(cmd *cobra.Command, args []string) error {
	query := args[0]

	apiKey := os.Getenv("SIMPLEXKG_API_KEY")
	if provider == "genai" && apiKey == "" {
		return fmt.Errorf("%w: SIMPLEXKG_API_KEY must be set when --provider=genai", config.ErrConfiguration)
	}

	embCfg := embedding.DefaultConfig()
	embCfg.Provider = provider
	embCfg.GenAIAPIKey = apiKey
	if model != "" {
		embCfg.GenAIModel = model
		embCfg.OllamaModel = model
	}
	embedder, err := embedding.NewEngine(embCfg)
	if err != nil {
		return fmt.Errorf("construct embedding engine: %w", err)
	}

	tree, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer tree.Close()

	retriever := retrieval.New(tree, userID, embedder)

	result, err := retriever.Retrieve(context.Background(), query, topK, threshold)
	if err != nil {
		logger.Error("retrieve failed", zap.Error(err))
		return err
	}

	fmt.Printf("Query: %s\n\n", query)
	fmt.Println(retrieval.FormatContext(result))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
