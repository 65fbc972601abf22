// Package textsplit slices long candidate text into overlapping fragments for
// embedding. Fragment boundaries prefer paragraph breaks, then line breaks,
// then word breaks, so semantic context survives the cut.
package textsplit

import "strings"

const (
	// DefaultSize is the target fragment length in runes.
	DefaultSize = 1000

	// DefaultOverlap is how many runes consecutive fragments share.
	DefaultOverlap = 100
)

// Splitter produces overlapping fragments of roughly Size runes.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a splitter with the given size and overlap. Zero or
// negative values fall back to the defaults; overlap is clamped below size
// so the window always advances.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split divides text into fragments. Text at or under the target size comes
// back as a single fragment; blank text produces none.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.size {
		return []string{text}
	}

	var fragments []string
	pos := 0
	for {
		end := pos + s.size
		if end >= len(runes) {
			frag := strings.TrimSpace(string(runes[pos:]))
			if frag != "" {
				fragments = append(fragments, frag)
			}
			break
		}

		cut := s.findCut(runes, pos, end)
		frag := strings.TrimSpace(string(runes[pos:cut]))
		if frag != "" {
			fragments = append(fragments, frag)
		}

		next := cut - s.overlap
		if next <= pos {
			next = pos + 1 // always make progress
		}
		pos = next
	}

	return fragments
}

// findCut picks the best break position in (pos, end]. Boundaries in the
// first half of the window are ignored so fragments don't degenerate.
func (s *Splitter) findCut(runes []rune, pos, end int) int {
	window := string(runes[pos:end])
	half := s.size / 2

	for _, sep := range []string{"\n\n", "\n", " "} {
		if idx := strings.LastIndex(window, sep); idx > half {
			// Cut after the separator so the break itself is consumed.
			return pos + len([]rune(window[:idx+len(sep)]))
		}
	}

	return end // no usable boundary, hard cut
}
