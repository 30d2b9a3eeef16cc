package synth

import (
	"fmt"
	"strings"

	"github.com/hyperjump/policyqa/internal/models"
)

// Excerpt is the best-ranked chunk of one source.
type Excerpt struct {
	Source  string
	Content string
}

// GroupBySource keeps the first (highest-ranked) hit of every source, in order
// of first appearance.
func GroupBySource(hits []*models.SearchHit) []Excerpt {
	seen := make(map[string]bool, len(hits))
	out := make([]Excerpt, 0, len(hits))
	for _, h := range hits {
		if h == nil || h.Chunk == nil {
			continue
		}
		src := h.Chunk.Source
		if src == "" {
			src = "unknown"
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, Excerpt{Source: src, Content: h.Chunk.Content})
	}
	return out
}

// Sources returns the source names of excerpts in order.
func Sources(excerpts []Excerpt) []string {
	out := make([]string, len(excerpts))
	for i, e := range excerpts {
		out[i] = e.Source
	}
	return out
}

const singleSourceTemplate = `Based on this document content, answer the user's question in simple, clear language.

Document Content: %s

User Question: %s

Please provide:
1. A direct, simple answer
2. A clear explanation in everyday language

Format your response exactly like this:
Answer: [your direct answer here]
Explanation: [your simple explanation here]
`

const multiSourceTemplate = `Based on content from multiple documents, answer the user's question by analyzing information across all sources.

Documents and Content:
%s

User Question: %s

Please provide:
1. A comprehensive answer that considers information from all relevant documents
2. A clear explanation highlighting any differences, similarities, or complementary information across documents
3. If there are conflicting information, mention it clearly

Format your response exactly like this:
Answer: [your comprehensive answer here]
Explanation: [your detailed explanation here]
Cross-Document Analysis: [analysis of how information relates across documents]
`

// BuildPrompt renders the single-source prompt for one excerpt and the
// cross-document prompt for several.
func BuildPrompt(query string, excerpts []Excerpt) string {
	lines := make([]string, len(excerpts))
	for i, e := range excerpts {
		lines[i] = fmt.Sprintf("From %s: %s", e.Source, e.Content)
	}
	if len(excerpts) > 1 {
		return fmt.Sprintf(multiSourceTemplate, strings.Join(lines, "\n"), query)
	}
	content := ""
	if len(lines) == 1 {
		content = lines[0]
	}
	return fmt.Sprintf(singleSourceTemplate, content, query)
}
