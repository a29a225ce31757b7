// ABOUTME: CLI command to ingest transcripts into the vector store
// ABOUTME: Parses, chunks, embeds and uploads under a per-collection file lock
package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/app"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

var (
	ingestChunkSize  int
	ingestOverlap    int
	ingestCollection string
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [dirs...]",
		Short: "Index transcripts into the vector store",
		Long: `Index timestamped transcripts into the vector store.

Reads every .txt transcript in the given directories (or TRANSCRIPT_DIRS),
splits them into overlapping chunks, embeds the chunks and replaces the
collection with the result. Files that fail to parse are skipped.

Examples:
  rome ingest
  rome ingest all_transcripts extra_transcripts
  rome ingest --chunk-size 768 --overlap 64 --collection rome_large`,
		RunE: runIngest,
	}

	cmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "Target chunk length in characters (default from CHUNK_SIZE)")
	cmd.Flags().IntVar(&ingestOverlap, "overlap", -1, "Overlap budget in characters (default from CHUNK_OVERLAP)")
	cmd.Flags().StringVar(&ingestCollection, "collection", "", "Collection to replace (default from COLLECTION_NAME)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if ingestChunkSize > 0 {
		cfg.ChunkSize = ingestChunkSize
	}
	if ingestOverlap >= 0 {
		cfg.ChunkOverlap = ingestOverlap
	}
	if ingestCollection != "" {
		cfg.Collection = ingestCollection
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dirs := args
	if len(dirs) == 0 {
		dirs = cfg.TranscriptDirs
	}

	lock := flock.New(ingestLockPath(cfg.Collection))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another ingestion into %q is already running", cfg.Collection)
	}
	defer func() { _ = lock.Unlock() }()

	chunker, err := core.NewChunkEngine(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := app.WaitForStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	embedder, closers, err := app.OpenEmbedder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("closing embedder", logging.Error(err))
			}
		}
	}()

	pipeline := app.NewIngestPipeline(cfg, chunker, embedder, store, progressFor(cmd.ErrOrStderr()), logger)
	report, err := pipeline.Run(ctx, dirs)
	if err != nil {
		if errors.Is(err, core.ErrNoTranscripts) {
			return fmt.Errorf("no transcripts found in %v", dirs)
		}
		return err
	}

	if wantJSON() {
		return printJSON(cmd, report)
	}
	printIngestReport(cmd, report)
	return nil
}

// ingestLockPath serializes ingestion runs per collection on this host
func ingestLockPath(collection string) string {
	return filepath.Join(os.TempDir(), collection+".ingest.lock")
}

func printIngestReport(cmd *cobra.Command, report *models.IngestReport) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"Collection", report.Collection},
		{"Files found", strconv.Itoa(report.FilesFound)},
		{"Files parsed", strconv.Itoa(report.FilesParsed)},
		{"Files skipped", strconv.Itoa(len(report.Skipped))},
		{"Chunks created", strconv.Itoa(report.ChunksCreated)},
		{"Points uploaded", strconv.Itoa(report.PointsUploaded)},
		{"Vector size", strconv.Itoa(report.VectorSize)},
	}
	fmt.Fprintln(out, renderTable([]string{"Ingestion", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(report.Skipped) > 0 && !quiet {
		skipped := make([][]string, 0, len(report.Skipped))
		for _, s := range report.Skipped {
			skipped = append(skipped, []string{filepath.Base(s.Path), truncate(s.Reason, 60)})
		}
		fmt.Fprintln(out, renderTable([]string{"Skipped file", "Reason"}, skipped, nil))
	}
}
