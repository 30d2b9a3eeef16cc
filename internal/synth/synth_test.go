package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/policyqa/internal/llm"
	"github.com/hyperjump/policyqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hit(source, content string, rank int) *models.SearchHit {
	return &models.SearchHit{Chunk: &models.Chunk{Source: source, Content: content}, Rank: rank}
}

func TestGroupBySource(t *testing.T) {
	hits := []*models.SearchHit{
		hit("b.pdf", "b first", 1),
		hit("a.pdf", "a first", 2),
		hit("b.pdf", "b second", 3),
		hit("c.pdf", "c first", 4),
	}
	got := GroupBySource(hits)
	require.Len(t, got, 3)
	assert.Equal(t, Excerpt{Source: "b.pdf", Content: "b first"}, got[0])
	assert.Equal(t, Excerpt{Source: "a.pdf", Content: "a first"}, got[1])
	assert.Equal(t, Excerpt{Source: "c.pdf", Content: "c first"}, got[2])
	assert.Equal(t, []string{"b.pdf", "a.pdf", "c.pdf"}, Sources(got))
}

func TestBuildPrompt(t *testing.T) {
	single := BuildPrompt("How many days?", []Excerpt{{Source: "a.pdf", Content: "Twenty days."}})
	assert.Contains(t, single, "Document Content: From a.pdf: Twenty days.")
	assert.Contains(t, single, "User Question: How many days?")
	assert.NotContains(t, single, "Cross-Document Analysis:")

	multi := BuildPrompt("How many days?", []Excerpt{
		{Source: "a.pdf", Content: "Twenty days."},
		{Source: "b.pdf", Content: "Fifteen days."},
	})
	assert.Contains(t, multi, "Documents and Content:\nFrom a.pdf: Twenty days.\nFrom b.pdf: Fifteen days.\n")
	assert.Contains(t, multi, "Cross-Document Analysis: [analysis")
}

func TestSynthesize_SingleSource(t *testing.T) {
	var prompt string
	model := llm.ModelFunc(func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "Answer: Twenty days.\nExplanation: Full-time staff get twenty days.", nil
	})
	out := New(model, nil).Synthesize(context.Background(), "leave?", []*models.SearchHit{
		hit("a.pdf", "Annual leave is twenty days.", 1),
		hit("a.pdf", "Leave must be approved.", 2),
	})
	require.NoError(t, out.Err)
	assert.Equal(t, "Twenty days.", out.Value.Answer)
	assert.Equal(t, []string{"a.pdf"}, out.Value.Sources)
	assert.Nil(t, out.Value.CrossDocumentAnalysis)
	assert.True(t, strings.Contains(prompt, "Annual leave is twenty days."))
	assert.False(t, strings.Contains(prompt, "Leave must be approved."))
}

func TestSynthesize_MultiSource(t *testing.T) {
	model := llm.ModelFunc(func(ctx context.Context, p string) (string, error) {
		return "Answer: A\nExplanation: E\nCross-Document Analysis: They differ.", nil
	})
	out := New(model, nil).Synthesize(context.Background(), "q", []*models.SearchHit{
		hit("a.pdf", "x", 1), hit("b.pdf", "y", 2),
	})
	require.NoError(t, out.Err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, out.Value.Sources)
	require.NotNil(t, out.Value.CrossDocumentAnalysis)
	assert.Equal(t, "They differ.", *out.Value.CrossDocumentAnalysis)
}

func TestSynthesize_ModelFailureFallback(t *testing.T) {
	model := llm.ModelFunc(func(ctx context.Context, p string) (string, error) {
		return "", errors.New("503")
	})
	out := New(model, nil).Synthesize(context.Background(), "q", []*models.SearchHit{
		hit("a.pdf", "x", 1), hit("b.pdf", "y", 2),
	})
	require.Error(t, out.Err)
	assert.Equal(t, "Found relevant information", out.Value.Answer)
	assert.Equal(t, "I found information in 2 document(s) that relates to your question.", out.Value.Explanation)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, out.Value.Sources)
	assert.NotNil(t, out.Value.CrossDocumentAnalysis)
}

func TestSynthesize_NilModel(t *testing.T) {
	out := New(nil, nil).Synthesize(context.Background(), "q", []*models.SearchHit{hit("a.pdf", "x", 1)})
	require.Error(t, out.Err)
	assert.Equal(t, "Found relevant information", out.Value.Answer)
	assert.Nil(t, out.Value.CrossDocumentAnalysis)
}
