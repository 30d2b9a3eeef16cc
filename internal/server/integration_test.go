package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/hyperjump/policyqa/internal/classify"
	"github.com/hyperjump/policyqa/internal/docstore"
	"github.com/hyperjump/policyqa/internal/extract"
	"github.com/hyperjump/policyqa/internal/indexer"
	"github.com/hyperjump/policyqa/internal/llm"
	"github.com/hyperjump/policyqa/internal/models"
	"github.com/hyperjump/policyqa/internal/search"
	"github.com/hyperjump/policyqa/internal/synth"
)

// onePagePDF returns a minimal single-page PDF showing text in Helvetica.
func onePagePDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [4 0 R] /Count 1 >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents 5 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

var chunkHeader = regexp.MustCompile(`(?m)^Chunk \d+:$`)

// scriptedModel answers classification prompts with one label per chunk and
// every other prompt with a fixed cross-document answer.
func scriptedModel(calls *int) llm.Model {
	return llm.ModelFunc(func(_ context.Context, prompt string) (string, error) {
		*calls++
		if strings.HasSuffix(prompt, "Categories (one per line):") {
			n := len(chunkHeader.FindAllString(prompt, -1))
			return strings.Repeat("leave\n", n), nil
		}
		return "Answer: It depends on the document.\nExplanation: The handbook says twenty days and the contract says fifteen.\nCross-Document Analysis: The contract is stricter during probation.", nil
	})
}

func newIntegrationServer(t *testing.T, calls *int) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Storage.DatabasePath = filepath.Join(dir, "chunks.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Storage.TempDir = dir

	store := docstore.Open(cfg, nil)
	if !store.Connected() {
		t.Fatal("store did not open")
	}
	t.Cleanup(func() { _ = store.Close() })

	model := scriptedModel(calls)
	idx := indexer.NewIndexer(store,
		extract.NewExtractor(extract.WithTempDir(dir)),
		classify.New(model),
	)
	engine := search.NewEngine(store, search.NewRetriever(store), synth.New(model, nil))
	return NewServer(engine, idx, store, cfg, nil, nil, "")
}

func uploadPDFs(t *testing.T, s *Server, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"handbook.pdf", "contract.pdf", "benefits.pdf", "extra.pdf"} {
		text, ok := files[name]
		if !ok {
			continue
		}
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(onePagePDF(text))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return do(t, s, r)
}

func listDocuments(t *testing.T, s *Server) models.DocumentList {
	t.Helper()
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/documents", nil))
	var list models.DocumentList
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	return list
}

func TestIntegration_UploadQueryClear(t *testing.T) {
	var calls int
	s := newIntegrationServer(t, &calls)

	w := uploadPDFs(t, s, map[string]string{
		"handbook.pdf": "Annual leave is twenty days for all full-time employees.",
		"contract.pdf": "Annual leave entitlement is fifteen days during probation.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}
	var up models.UploadResponse
	if err := json.NewDecoder(w.Body).Decode(&up); err != nil {
		t.Fatal(err)
	}
	if up.TotalDocuments != 2 || up.Documents[0].ChunksCreated != 1 {
		t.Errorf("upload = %+v", up)
	}

	list := listDocuments(t, s)
	if list.TotalCount != 2 || list.Documents[0] != "contract.pdf" || list.Documents[1] != "handbook.pdf" {
		t.Errorf("documents = %+v", list)
	}

	w = do(t, s, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"annual leave days"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", w.Code, w.Body.String())
	}
	var res models.QueryResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Answer != "It depends on the document." || len(res.Sources) != 2 {
		t.Errorf("query = %+v", res)
	}
	if res.CrossDocumentAnalysis == nil {
		t.Error("cross-document analysis should be set for two sources")
	}

	w = do(t, s, httptest.NewRequest(http.MethodDelete, "/documents", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if list := listDocuments(t, s); list.TotalCount != 0 {
		t.Errorf("documents after clear = %+v", list)
	}

	before := calls
	w = do(t, s, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"annual leave"}`)))
	if !strings.Contains(w.Body.String(), "No relevant information found") || !strings.Contains(w.Body.String(), `"sources":null`) {
		t.Errorf("query after clear = %s", w.Body.String())
	}
	if calls != before {
		t.Error("model should not be called when nothing is retrieved")
	}
}

func TestIntegration_TooManyFilesStoresNothing(t *testing.T) {
	var calls int
	s := newIntegrationServer(t, &calls)

	w := uploadPDFs(t, s, map[string]string{
		"handbook.pdf": "Annual leave is twenty days for all full-time employees.",
		"contract.pdf": "Annual leave entitlement is fifteen days during probation.",
		"benefits.pdf": "Dental coverage begins after ninety days of employment.",
		"extra.pdf":    "Remote work requires written approval from a manager.",
	})
	if w.Code != http.StatusBadRequest || decodeError(t, w) != "Maximum 3 PDF files allowed" {
		t.Fatalf("status = %d", w.Code)
	}
	if list := listDocuments(t, s); list.TotalCount != 0 {
		t.Errorf("documents = %+v", list)
	}
	if calls != 0 {
		t.Errorf("model called %d times", calls)
	}
}

func TestIntegration_ShortTextCreatesNoChunks(t *testing.T) {
	var calls int
	s := newIntegrationServer(t, &calls)

	w := uploadPDFs(t, s, map[string]string{"handbook.pdf": "Too short."})
	if w.Code != http.StatusBadRequest || decodeError(t, w) != "Could not create chunks for: handbook.pdf" {
		t.Fatalf("status = %d", w.Code)
	}
	if list := listDocuments(t, s); list.TotalCount != 0 {
		t.Errorf("documents = %+v", list)
	}
}
