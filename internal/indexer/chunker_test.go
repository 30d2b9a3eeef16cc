package indexer

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunker_SplitShortTextIsSingleChunk(t *testing.T) {
	c := NewChunker(500, 50)
	text := "Employees may work remotely up to three days per week."
	chunks := c.Split(text)
	if len(chunks) != 1 || chunks[0] != text {
		t.Fatalf("got %q, want single chunk equal to input", chunks)
	}
}

func TestChunker_SplitOverlap(t *testing.T) {
	c := NewChunker(20, 10)
	chunks := c.Split("aaaa bbbb cccc dddd eeee ffff gggg")
	want := []string{"aaaa bbbb cccc dddd", "cccc dddd eeee ffff", "eeee ffff gggg"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %q, want %q", len(chunks), chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestChunker_SplitRespectsSize(t *testing.T) {
	c := NewChunker(100, 20)
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("The policy applies to all full-time staff. ")
	}
	b.WriteString(strings.Repeat("x", 250))
	chunks := c.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch); n > 100 {
			t.Errorf("chunk %d has %d characters", i, n)
		}
	}
}

func TestChunker_SplitPrefersSentenceBoundaries(t *testing.T) {
	c := NewChunker(60, 0)
	text := "First sentence is about leave. Second sentence is about pay. Third one covers travel."
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %q", chunks)
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("first chunk should end at a sentence: %q", chunks[0])
	}
}

func TestChunker_SplitMultibyte(t *testing.T) {
	c := NewChunker(10, 0)
	chunks := c.Split(strings.Repeat("é", 25))
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if utf8.RuneCountInString(chunks[0]) != 10 {
		t.Errorf("first chunk has %d runes", utf8.RuneCountInString(chunks[0]))
	}
}

func TestChunker_ChunkDocumentFiltersShortChunks(t *testing.T) {
	c := NewChunker(40, 0)
	text := "tiny. " + strings.Repeat("word ", 7) + "end of the long part here."
	chunks, err := c.ChunkDocument(text)
	if err != nil {
		t.Fatal(err)
	}
	for _, ch := range chunks {
		if utf8.RuneCountInString(strings.TrimSpace(ch)) <= MinChunkLength {
			t.Errorf("chunk %q should have been filtered", ch)
		}
	}
}

func TestChunker_ChunkDocumentExactlyThirtyCharsIsDropped(t *testing.T) {
	c := NewChunker(500, 50)
	if _, err := c.ChunkDocument(strings.Repeat("a", 30)); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("30-character document: err = %v, want ErrEmptyDocument", err)
	}
	chunks, err := c.ChunkDocument(strings.Repeat("a", 31))
	if err != nil || len(chunks) != 1 {
		t.Errorf("31-character document: chunks=%v err=%v", chunks, err)
	}
}

func TestChunker_ChunkDocumentEmpty(t *testing.T) {
	c := NewChunker(500, 50)
	if _, err := c.ChunkDocument(""); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestExploratoryChunker(t *testing.T) {
	c := ExploratoryChunker()
	if c.Size() != 1000 || c.chunkOverlap != 200 {
		t.Errorf("got %d/%d, want 1000/200", c.Size(), c.chunkOverlap)
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b  ", "a b"},
		{"line one\n\nline\ttwo", "line one line two"},
		{"Intro Page 3 body text", "Intro body text"},
		{"see PAGE12 and page 4", "see and"},
		{"pages 10 stay", "pages 10 stay"},
		{"ﬁle", "file"},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
