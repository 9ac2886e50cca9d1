package retrieval

import (
	"fmt"
	"strings"
)

const (
	maxCofacesShown = 10
	maxEdgesShown   = 10
	maxGapsShown    = 5
)

// FormatContext renders a Result as a context block suitable for passing to
// an LLM prompt: matched entities, co-occurrence patterns, known
// relationships, and knowledge gaps, each section capped so a pathological
// result never blows up the prompt budget.
func FormatContext(result Result) string {
	var lines []string

	if len(result.MatchedVertices) > 0 {
		lines = append(lines, "=== Matched Entities ===")
		for _, v := range result.MatchedVertices {
			lines = append(lines, fmt.Sprintf("  - %s (similarity: %.2f)", v.Content, v.Similarity))
		}
	}

	if len(result.Cofaces) > 0 {
		lines = append(lines, "", "=== Co-occurrence Patterns (Simplices) ===")
		for _, c := range result.Cofaces[:min(len(result.Cofaces), maxCofacesShown)] {
			contents := make([]string, len(c.VertexIDs))
			for i, vid := range c.VertexIDs {
				if content, ok := result.ContextVertices[vid]; ok {
					contents[i] = content
				} else {
					contents[i] = fmt.Sprintf("%d", vid)
				}
			}
			lines = append(lines, fmt.Sprintf("  - [%s] {%s}", formatSimplexContext(c), strings.Join(contents, ", ")))
		}
	}

	if len(result.Edges) > 0 {
		lines = append(lines, "", "=== Known Relationships ===")
		for _, e := range result.Edges[:min(len(result.Edges), maxEdgesShown)] {
			lines = append(lines, fmt.Sprintf("  - (%s) --[%s]--> (%s)", e.Subject, e.Predicate, e.Object))
		}
	}

	if len(result.KnowledgeGaps) > 0 {
		lines = append(lines, "", "=== Knowledge Gaps (Unconfirmed Relationships) ===")
		for _, gap := range result.KnowledgeGaps[:min(len(result.KnowledgeGaps), maxGapsShown)] {
			contents := make([]string, len(gap))
			for i, vid := range gap {
				if content, ok := result.ContextVertices[vid]; ok {
					contents[i] = content
				} else {
					contents[i] = fmt.Sprintf("%d", vid)
				}
			}
			lines = append(lines, fmt.Sprintf("  - {%s} - never directly observed together", strings.Join(contents, ", ")))
		}
	}

	return strings.Join(lines, "\n")
}

func formatSimplexContext(c Coface) string {
	switch c.Type {
	case "temporal":
		start := metaString(c.Meta, "window_start")
		end := metaString(c.Meta, "window_end")
		return fmt.Sprintf("from %s to %s", start, end)
	case "location":
		return fmt.Sprintf("at %s", metaString(c.Meta, "location"))
	default:
		return c.Type
	}
}

func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return "?"
	}
	v, ok := meta[key]
	if !ok {
		return "?"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
