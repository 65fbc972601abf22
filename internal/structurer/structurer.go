// Package structurer turns raw extracted CV text into a validated candidate
// record via a language model. It is a pure transform: the only side effect
// is the single completion call (plus optional enrichment lookups).
package structurer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentbase/cvsearch/internal/enrich"
	"github.com/talentbase/cvsearch/internal/llm"
	"github.com/talentbase/cvsearch/internal/profile"
)

const (
	// PromptCharBudget caps the prompt size sent to the completion service.
	// Longer prompts are truncated with a flag line appended.
	PromptCharBudget = 20000

	// MaxOutputTokens bounds the completion size.
	MaxOutputTokens = 8000

	// Temperature keeps extraction close to deterministic.
	Temperature = 0.2
)

// ProjectSource lists a candidate's public projects for prompt enrichment.
type ProjectSource interface {
	FetchProjects(ctx context.Context, profileURL string) []enrich.Project
}

// Structurer converts extracted CV text into candidate records.
type Structurer struct {
	completer llm.Completer
	projects  ProjectSource
	logger    *zap.Logger
}

// New creates a Structurer. projects may be nil to disable enrichment.
func New(completer llm.Completer, projects ProjectSource, logger *zap.Logger) *Structurer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Structurer{
		completer: completer,
		projects:  projects,
		logger:    logger,
	}
}

// Structure transforms extracted text into a candidate record. Blank input
// returns ErrEmptyText; unparseable model output returns ErrMalformedResponse.
// The returned record always carries an identifier: one embedded in the
// response if present, otherwise a freshly generated UUID.
func (s *Structurer) Structure(ctx context.Context, extractedText, sourceID string) (*profile.Record, error) {
	extractedText = strings.TrimSpace(extractedText)
	if extractedText == "" {
		return nil, fmt.Errorf("%s: %w", sourceID, ErrEmptyText)
	}

	projectsJSON := s.enrichProjects(ctx, extractedText)

	prompt := buildPrompt(extractedText, projectsJSON)
	if len(prompt) > PromptCharBudget {
		s.logger.Warn("prompt exceeds budget, truncating",
			zap.String("source", sourceID),
			zap.Int("length", len(prompt)))
		prompt = prompt[:PromptCharBudget] + "\n[Prompt truncated due to length.]"
	}

	s.logger.Info("calling completion service",
		zap.String("source", sourceID),
		zap.Int("prompt_chars", len(prompt)))

	response, err := s.completer.Complete(ctx, prompt, MaxOutputTokens, Temperature)
	if err != nil {
		return nil, fmt.Errorf("structuring %s: %w", sourceID, err)
	}

	rec, err := profile.FromJSON([]byte(stripCodeFence(response)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", sourceID, ErrMalformedResponse, err)
	}
	if rec.Empty() {
		return nil, fmt.Errorf("%s: %w: no sections extracted", sourceID, ErrMalformedResponse)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	s.logger.Info("structured CV",
		zap.String("source", sourceID),
		zap.String("id", rec.ID),
		zap.Int("sections", len(rec.Sections)))

	return rec, nil
}

// enrichProjects finds a GitHub profile URL in the CV text and returns the
// candidate's public projects as a JSON array, or "[]" if enrichment is
// disabled or yields nothing.
func (s *Structurer) enrichProjects(ctx context.Context, text string) string {
	if s.projects == nil {
		return "[]"
	}

	url := enrich.ExtractProfileURL(text)
	if url == "" {
		return "[]"
	}

	projects := s.projects.FetchProjects(ctx, url)
	if len(projects) == 0 {
		return "[]"
	}

	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// stripCodeFence removes a surrounding markdown code fence when the model
// wraps its JSON output in one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
