package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// extractPDF spools content to a transient file, parses it and removes the file
// whether or not parsing succeeded. The parser panics on some malformed input;
// those panics are reported as ErrUnreadablePDF.
func extractPDF(content []byte, tempDir string) (text string, err error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	path := filepath.Join(tempDir, "policyqa-"+uuid.New().String()+".pdf")
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("spool PDF: %w", err)
	}
	defer os.Remove(path)

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadablePDF, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}
	defer f.Close()

	var pages []string
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrUnreadablePDF, i, err)
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, " "), nil
}
