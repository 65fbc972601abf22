package retrieval

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// scoredLine is one parsed line of the re-ranker's response.
type scoredLine struct {
	ID     string
	Score  float64
	Reason string
}

// rerankLineRe is the strict grammar for re-ranker output:
//
//	identifier, score, reason
//
// Optional "Document ID:" / "Score:" / "Reason:" labels are tolerated since
// models tend to echo the requested field names.
var rerankLineRe = regexp.MustCompile(
	`^(?:Document ID:\s*)?([^,\s]+)\s*,\s*(?:Score:\s*)?([0-9]+(?:\.[0-9]+)?)\s*,\s*(?:Reason:\s*)?(.+)$`)

// parseRerankResponse parses the batched re-ranker output line by line.
// Lines that fail the grammar are dropped with a logged warning, never fatal.
// Duplicate identifiers keep only the first occurrence. Scores are clamped to
// [0,1] and kept at 4-decimal precision.
func parseRerankResponse(response string, logger *zap.Logger) []scoredLine {
	var parsed []scoredLine
	seen := map[string]bool{}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := rerankLineRe.FindStringSubmatch(line)
		if m == nil {
			logger.Warn("dropping unparseable re-rank line", zap.String("line", line))
			continue
		}

		score, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			logger.Warn("dropping re-rank line with bad score", zap.String("line", line))
			continue
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}

		id := m[1]
		if seen[id] {
			logger.Warn("dropping duplicate re-rank line", zap.String("id", id))
			continue
		}
		seen[id] = true

		parsed = append(parsed, scoredLine{
			ID:     id,
			Score:  round4(score),
			Reason: strings.TrimSpace(m[3]),
		})
	}

	return parsed
}
