// Package main provides the search CLI: it ranks ingested candidates against
// a job description and prints the matching records.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/talentbase/cvsearch/internal/embedding"
	"github.com/talentbase/cvsearch/internal/llm"
	"github.com/talentbase/cvsearch/internal/profile"
	"github.com/talentbase/cvsearch/internal/retrieval"
	"github.com/talentbase/cvsearch/internal/store"
	"github.com/talentbase/cvsearch/internal/vector"
)

// defaultThreshold is the fixed re-ranking score cutoff.
const defaultThreshold = 0.65

var rootCmd = &cobra.Command{
	Use:   "cv-search [job-description-file]",
	Short: "Rank ingested candidates against a job description",
	Long: `Runs a two-stage search over ingested candidates: vector similarity
retrieval followed by LLM re-ranking against the job description. The job
description is read from the given file, or from --text, or from stdin.

Environment variables:
  OPENAI_API_KEY  OpenAI API key for embeddings and re-ranking (required)
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("text", "", "job description text (overrides the file argument)")
	flags.String("db", "data/cvsearch.db", "SQLite database path for records and attachments")
	flags.String("qdrant-host", "localhost", "Qdrant hostname")
	flags.Int("qdrant-port", 6334, "Qdrant gRPC port")
	flags.Float64("threshold", defaultThreshold, "minimum re-ranking score")
	flags.Bool("dynamic-threshold", false, "derive the cutoff from the score distribution instead of --threshold")
	flags.Int("top-k", retrieval.DefaultTopK, "stage-1 candidate set size")
	flags.Bool("full", false, "print the full structured record for each match")
	flags.String("save-attachments", "", "directory to export the matched candidates' original documents to")
	flags.Bool("debug", false, "verbose logging")

	viper.SetEnvPrefix("CVSEARCH")
	viper.AutomaticEnv()
	_ = viper.BindEnv("qdrant-host", "QDRANT_HOST")
	_ = viper.BindEnv("qdrant-port", "QDRANT_PORT")
	_ = viper.BindPFlags(flags)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(viper.GetBool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	jobDescription, err := readJobDescription(args)
	if err != nil {
		return err
	}

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

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return err
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0)
	completer := llm.NewOpenAIClient(embeddingClient.Client(), "")

	engine := retrieval.NewEngine(embedder, index, completer, viper.GetInt("top-k"), logger)

	threshold := viper.GetFloat64("threshold")
	if viper.GetBool("dynamic-threshold") {
		// A dynamic cutoff needs the score distribution first, so re-rank
		// unfiltered and apply the derived threshold here.
		threshold = 0
	}

	results, err := engine.Retrieve(ctx, jobDescription, threshold)
	if err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}

	if viper.GetBool("dynamic-threshold") {
		results = applyDynamicThreshold(results, logger)
	}

	if len(results) == 0 {
		fmt.Println("No matching candidates.")
		return nil
	}

	printResults(ctx, sqlStore.Records(), results, viper.GetBool("full"), logger)

	if dir := viper.GetString("save-attachments"); dir != "" {
		if err := saveAttachments(ctx, sqlStore.Attachments(), results, dir, logger); err != nil {
			return err
		}
	}
	return nil
}

// readJobDescription resolves the job description from --text, the file
// argument, or stdin, in that order.
func readJobDescription(args []string) (string, error) {
	if text := viper.GetString("text"); strings.TrimSpace(text) != "" {
		return text, nil
	}
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("reading job description: %w", err)
		}
		return string(data), nil
	}

	stat, err := os.Stdin.Stat()
	if err == nil && stat.Mode()&os.ModeCharDevice == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading job description from stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) != "" {
			return string(data), nil
		}
	}

	return "", fmt.Errorf("no job description given: pass a file, --text, or pipe to stdin")
}

func applyDynamicThreshold(results []retrieval.Result, logger *zap.Logger) []retrieval.Result {
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	cutoff := retrieval.DynamicThreshold(scores)
	logger.Info("dynamic threshold computed", zap.Float64("cutoff", cutoff))

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= cutoff {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// printResults assembles the final output: each ranked identifier resolved to
// its stored record. A record that cannot be read is reported and skipped
// rather than failing the whole query.
func printResults(ctx context.Context, records store.RecordStore, results []retrieval.Result, full bool, logger *zap.Logger) {
	fmt.Printf("Found %d matching candidates:\n", len(results))

	for i, r := range results {
		fmt.Printf("\n%d. %s (score %.4f)\n", i+1, r.ID, r.Score)
		if r.Reason != "" {
			fmt.Printf("   %s\n", r.Reason)
		}
		if !full {
			continue
		}

		rec, err := records.Read(ctx, r.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn("indexed candidate has no stored record", zap.String("id", r.ID))
				fmt.Println("   (record not found)")
				continue
			}
			logger.Warn("reading record failed", zap.String("id", r.ID), zap.Error(err))
			continue
		}

		for _, line := range strings.Split(profile.FormatText(rec), "\n") {
			fmt.Printf("   %s\n", line)
		}
	}
}

// saveAttachments exports each matched candidate's original document bytes to
// dir, named by identifier. Missing attachments are logged and skipped.
func saveAttachments(ctx context.Context, attachments store.AttachmentStore, results []retrieval.Result, dir string, logger *zap.Logger) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating attachment directory: %w", err)
	}

	for _, r := range results {
		data, err := attachments.Read(ctx, r.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn("candidate has no stored attachment", zap.String("id", r.ID))
				continue
			}
			return fmt.Errorf("reading attachment %s: %w", r.ID, err)
		}

		path := filepath.Join(dir, r.ID)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("writing attachment %s: %w", r.ID, err)
		}
		fmt.Printf("Saved %s\n", path)
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
