package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentbase/cvsearch/internal/profile"
	"github.com/talentbase/cvsearch/internal/store"
	"github.com/talentbase/cvsearch/internal/structurer"
)

// DefaultWorkers bounds concurrent document pipelines; the external services
// are rate-limited, so unbounded fan-out only trades one bottleneck for 429s.
const DefaultWorkers = 4

// Document is one unit of ingestion work: extracted plain text plus the
// original attachment bytes, identified by a stable reference.
type Document struct {
	Ref  string // Stable identifier, e.g. the source file path
	Text string // Extracted plain text
	Raw  []byte // Original document bytes persisted as the attachment
}

// Structurer turns extracted text into a candidate record.
type Structurer interface {
	Structure(ctx context.Context, extractedText, sourceID string) (*profile.Record, error)
}

// Result contains statistics about a batch ingestion run.
type Result struct {
	TotalDocs     int
	CommittedDocs int
	IndexedDocs   int
	RejectedDocs  []RejectedDoc
	Duration      time.Duration
}

// RejectedDoc records a document routed to the rejection sink.
type RejectedDoc struct {
	Ref    string
	Reason string
}

// Pipeline runs structure → commit → index per document, with per-item error
// isolation: one document's failure never aborts the batch. The single
// exception is an IntegrityError from the coordinator, which halts processing
// for operator attention.
type Pipeline struct {
	structurer  Structurer
	coordinator *Coordinator
	indexer     *Indexer
	rejector    store.Rejector
	logger      *zap.Logger
	workers     int
}

// NewPipeline creates a Pipeline. workers <= 0 selects DefaultWorkers.
func NewPipeline(
	s Structurer,
	coordinator *Coordinator,
	indexer *Indexer,
	rejector store.Rejector,
	logger *zap.Logger,
	workers int,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{
		structurer:  s,
		coordinator: coordinator,
		indexer:     indexer,
		rejector:    rejector,
		logger:      logger,
		workers:     workers,
	}
}

// ProcessDocument runs the full pipeline for one document. Rejections are
// routed to the sink and reported via the returned RejectedDoc; the error is
// non-nil only for an IntegrityError, which callers must treat as fatal.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc Document) (*RejectedDoc, error) {
	rec, err := p.structurer.Structure(ctx, doc.Text, doc.Ref)
	if err != nil {
		return p.reject(ctx, doc.Ref, classifyStructureErr(err)), nil
	}

	if err := p.coordinator.Commit(ctx, rec, doc.Raw); err != nil {
		var ierr *IntegrityError
		if errors.As(err, &ierr) {
			return nil, ierr
		}
		return p.reject(ctx, doc.Ref, classifyCommitErr(err)), nil
	}

	// Indexing is best-effort enrichment; a failure is logged and the item
	// stays committed for out-of-band re-indexing.
	if _, err := p.indexer.Index(ctx, rec.ID, profile.FormatText(rec)); err != nil {
		p.logger.Warn("indexing failed, record remains committed",
			zap.String("ref", doc.Ref), zap.String("id", rec.ID), zap.Error(err))
	}

	return nil, nil
}

// ProcessFolder sweeps every .txt file under dir through the pipeline using a
// bounded worker pool. Cancellation is honored between documents: a canceled
// context stops new items but never interrupts a commit in flight.
func (p *Pipeline) ProcessFolder(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading folder %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".txt") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	result := &Result{TotalDocs: len(paths)}
	p.logger.Info("starting folder sweep",
		zap.String("dir", dir), zap.Int("documents", len(paths)), zap.Int("workers", p.workers))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		fatalErr error
	)

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan string)
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				// The cancellation boundary is one document: check before
				// starting, never abandon a started item.
				if batchCtx.Err() != nil {
					return
				}

				doc, err := loadDocument(path)
				if err != nil {
					p.logger.Warn("unreadable document", zap.String("path", path), zap.Error(err))
					rejected := p.reject(batchCtx, path, ReasonEmptyText)
					mu.Lock()
					result.RejectedDocs = append(result.RejectedDocs, *rejected)
					mu.Unlock()
					continue
				}

				rejected, err := p.ProcessDocument(batchCtx, doc)
				mu.Lock()
				switch {
				case err != nil:
					if fatalErr == nil {
						fatalErr = err
					}
					cancel() // integrity failure halts the batch
				case rejected != nil:
					result.RejectedDocs = append(result.RejectedDocs, *rejected)
				default:
					result.CommittedDocs++
					result.IndexedDocs++
				}
				mu.Unlock()
			}
		}()
	}

	for _, path := range paths {
		if batchCtx.Err() != nil {
			break
		}
		select {
		case work <- path:
		case <-batchCtx.Done():
		}
	}
	close(work)
	wg.Wait()

	result.Duration = time.Since(start)
	p.logger.Info("folder sweep complete",
		zap.Int("committed", result.CommittedDocs),
		zap.Int("rejected", len(result.RejectedDocs)),
		zap.Duration("duration", result.Duration))

	if fatalErr != nil {
		return result, fatalErr
	}
	return result, ctx.Err()
}

// reject routes the item to the quarantine sink and returns its entry for the
// batch result. A failing sink is logged, not escalated.
func (p *Pipeline) reject(ctx context.Context, ref, reason string) *RejectedDoc {
	p.logger.Warn("rejecting document", zap.String("ref", ref), zap.String("reason", reason))
	if err := p.rejector.Move(ctx, ref, reason); err != nil {
		p.logger.Error("failed to quarantine document", zap.String("ref", ref), zap.Error(err))
	}
	return &RejectedDoc{Ref: ref, Reason: reason}
}

func classifyStructureErr(err error) string {
	switch {
	case errors.Is(err, structurer.ErrEmptyText):
		return ReasonEmptyText
	case errors.Is(err, structurer.ErrMalformedResponse):
		return ReasonMalformedResponse
	default:
		// Upstream service failure; keep the cause in the reason string.
		return fmt.Sprintf("UpstreamServiceError: %v", err)
	}
}

func classifyCommitErr(err error) string {
	switch {
	case errors.Is(err, ErrAttachmentWrite):
		return ReasonAttachmentWriteFailed
	case errors.Is(err, ErrRecordWrite):
		return ReasonRecordWriteFailed
	default:
		return err.Error()
	}
}

func loadDocument(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Ref:  path,
		Text: string(raw),
		Raw:  raw,
	}, nil
}
