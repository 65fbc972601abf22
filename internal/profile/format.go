package profile

import (
	"fmt"
	"sort"
	"strings"
)

// FormatText renders a record as indented plain text suitable for embedding
// and for human display. System keys (leading underscore) and the identifier
// are skipped. Keys are sorted so the rendering is deterministic.
func FormatText(r *Record) string {
	var b strings.Builder
	writeMap(&b, r.Sections, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeMap(b *strings.Builder, m map[string]any, depth int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, "_") || k == IDKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	indent := strings.Repeat("  ", depth)
	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]any:
			fmt.Fprintf(b, "%s%s:\n", indent, titleKey(k))
			writeMap(b, v, depth+1)
		case []any:
			fmt.Fprintf(b, "%s%s:\n", indent, titleKey(k))
			writeList(b, v, depth+1)
		default:
			fmt.Fprintf(b, "%s%s: %v\n", indent, titleKey(k), v)
		}
	}
}

func writeList(b *strings.Builder, items []any, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			writeMap(b, v, depth)
		case []any:
			writeList(b, v, depth)
		default:
			fmt.Fprintf(b, "%s- %v\n", indent, v)
		}
	}
}

// titleKey turns a snake_case section name into a display label.
// "informazioni_personali" -> "Informazioni personali".
func titleKey(k string) string {
	k = strings.ReplaceAll(k, "_", " ")
	r := []rune(k)
	if len(r) == 0 {
		return k
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
