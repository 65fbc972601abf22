// Package main provides the ingestion CLI: it sweeps a folder of extracted
// CV text files through the structuring, commit, and indexing pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/talentbase/cvsearch/internal/embedding"
	"github.com/talentbase/cvsearch/internal/enrich"
	"github.com/talentbase/cvsearch/internal/ingest"
	"github.com/talentbase/cvsearch/internal/llm"
	"github.com/talentbase/cvsearch/internal/store"
	"github.com/talentbase/cvsearch/internal/structurer"
	"github.com/talentbase/cvsearch/internal/vector"
)

var rootCmd = &cobra.Command{
	Use:   "cv-ingest",
	Short: "Ingest candidate CVs into the structured store and vector index",
	Long: `Processes a folder of extracted CV text files: each document is
structured via the completion service, committed to the record and attachment
stores, and indexed as embedded fragments for semantic search.

Items that fail processing are moved to the rejection folder with a reason
file. A fatal integrity error halts the sweep for manual reconciliation.

Environment variables:
  ANTHROPIC_API_KEY  Anthropic API key for CV structuring (required)
  OPENAI_API_KEY     OpenAI API key for embeddings (required)
  GITHUB_TOKEN       GitHub token for project enrichment (optional)
  QDRANT_HOST        Qdrant hostname (default: localhost)
  QDRANT_PORT        Qdrant gRPC port (default: 6334)`,
	RunE: runIngest,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("folder", "data/cv", "folder containing extracted CV .txt files")
	flags.String("rejected", "data/cv/rejected", "quarantine folder for rejected documents")
	flags.String("db", "data/cvsearch.db", "SQLite database path for records and attachments")
	flags.String("qdrant-host", "localhost", "Qdrant hostname")
	flags.Int("qdrant-port", 6334, "Qdrant gRPC port")
	flags.Int("workers", ingest.DefaultWorkers, "concurrent document pipelines")
	flags.String("model", "", "Anthropic model for structuring (default claude-3-5-haiku)")
	flags.Bool("no-enrich", false, "disable GitHub project enrichment")
	flags.Bool("debug", false, "verbose logging")

	viper.SetEnvPrefix("CVSEARCH")
	viper.AutomaticEnv()
	_ = viper.BindEnv("qdrant-host", "QDRANT_HOST")
	_ = viper.BindEnv("qdrant-port", "QDRANT_PORT")
	_ = viper.BindPFlags(flags)
}

func main() {
	// Load .env if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(viper.GetBool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	// Interruptible between documents; a started commit always finishes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlStore, err := store.NewSQLiteStore(viper.GetString("db"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer sqlStore.Close()

	index, err := vector.NewIndex(viper.GetString("qdrant-host"), viper.GetInt("qdrant-port"))
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensuring collection: %w", err)
	}

	claude, err := llm.NewClaudeClient(viper.GetString("model"))
	if err != nil {
		return err
	}

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return err
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // default batch size

	var projects structurer.ProjectSource
	if !viper.GetBool("no-enrich") {
		ghClient, err := enrich.NewClient()
		if err != nil {
			return fmt.Errorf("creating GitHub client: %w", err)
		}
		projects = enrich.NewProjectFetcher(ghClient, logger)
	}

	rejector, err := store.NewDirRejector(viper.GetString("rejected"))
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(
		structurer.New(claude, projects, logger),
		ingest.NewCoordinator(sqlStore.Records(), sqlStore.Attachments(), logger),
		ingest.NewIndexer(nil, embedder, index, logger),
		rejector,
		logger,
		viper.GetInt("workers"),
	)

	folder := viper.GetString("folder")
	fmt.Printf("Processing CVs in %s...\n", folder)

	result, err := pipeline.ProcessFolder(ctx, folder)
	if result != nil {
		fmt.Println()
		fmt.Printf("  Documents: %d\n", result.TotalDocs)
		fmt.Printf("  Committed: %d\n", result.CommittedDocs)
		fmt.Printf("  Rejected:  %d\n", len(result.RejectedDocs))
		fmt.Printf("  Duration:  %s\n", result.Duration.Round(time.Second))

		for _, rejected := range result.RejectedDocs {
			fmt.Printf("  - %s: %s\n", rejected.Ref, rejected.Reason)
		}
	}
	if err != nil {
		return fmt.Errorf("ingestion halted: %w", err)
	}

	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
