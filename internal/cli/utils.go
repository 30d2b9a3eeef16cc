// Package cli formats command output for the policyqa CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/policyqa/internal/models"
	"github.com/hyperjump/policyqa/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteQueryResult writes an answer in the given format.
func WriteQueryResult(w io.Writer, res *models.QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nAnswer: %s\n\n", res.Answer)
	fmt.Fprintf(w, "Explanation: %s\n", res.Explanation)
	if res.CrossDocumentAnalysis != nil {
		fmt.Fprintf(w, "\nCross-Document Analysis: %s\n", *res.CrossDocumentAnalysis)
	}
	if len(res.Sources) > 0 {
		fmt.Fprintf(w, "\nSources:\n")
		for _, s := range res.Sources {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	fmt.Fprintln(w)
	return nil
}

// WriteSearchHits writes ranked chunks in the given format.
func WriteSearchHits(w io.Writer, hits []*models.SearchHit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []*models.SearchHit{}
		}
		return writeJSON(w, hits)
	}
	fmt.Fprintf(w, "\nFound %d chunks\n\n", len(hits))
	for _, h := range hits {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Source: %s | Category: %s\n",
			h.Rank, h.Score, h.Chunk.Source, h.Chunk.Category)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(h.Chunk.Content, 200))
	}
	return nil
}

// WriteIngestionResults writes one line per ingested file.
func WriteIngestionResults(w io.Writer, results []*models.IngestionResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, models.UploadResponse{
			Message:        fmt.Sprintf("Successfully processed %d document(s)", len(results)),
			Documents:      results,
			TotalDocuments: len(results),
		})
	}
	for _, r := range results {
		fmt.Fprintf(w, "Ingested %s: %d chunks, %d characters\n", r.Filename, r.ChunksCreated, r.TextLength)
	}
	return nil
}

// Stats describes the store for the documents command.
type Stats struct {
	Documents  []string `json:"documents"`
	TotalCount int      `json:"total_count"`
	Chunks     int64    `json:"chunks"`
	DiskBytes  int64    `json:"disk_usage_bytes"`
}

// WriteStats writes the stored documents and store footprint.
func WriteStats(w io.Writer, st *Stats, format OutputFormat) error {
	if format == OutputJSON {
		if st.Documents == nil {
			st.Documents = []string{}
		}
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Documents: %d\n", st.TotalCount)
	for _, d := range st.Documents {
		fmt.Fprintf(w, "  - %s\n", d)
	}
	fmt.Fprintf(w, "Chunks: %d\n", st.Chunks)
	fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(st.DiskBytes))
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
