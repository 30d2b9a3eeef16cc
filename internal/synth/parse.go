package synth

import (
	"fmt"
	"strings"
)

const (
	answerLabel      = "Answer:"
	explanationLabel = "Explanation:"
	crossLabel       = "Cross-Document Analysis:"

	defaultAnswer      = "Unable to generate answer"
	defaultExplanation = "There was an issue processing your question."
)

// Parsed is a model reply mapped onto the answer schema.
type Parsed struct {
	Answer                string
	Explanation           string
	CrossDocumentAnalysis *string
}

type parseState int

const (
	stateFindAnswer parseState = iota
	stateSplitExplanation
	stateSplitCross
	stateCheckAnswer
	stateScanLines
	stateFallback
	stateDone
)

// Parse maps a free-form reply in the form
//
//	[preamble] Answer: A [Explanation: E [Cross-Document Analysis: C]]
//
// onto Parsed. Each label is split on its first occurrence. If no answer is
// found the reply is scanned line by line for labelled lines, and failing that a
// generic answer naming the source count and query is used. The cross-document
// field is nil for a single source and never nil for several.
func Parse(reply string, sources int, query string) Parsed {
	p := Parsed{Answer: defaultAnswer, Explanation: defaultExplanation}
	var rest string
	var cross *string

	state := stateFindAnswer
	for state != stateDone {
		switch state {
		case stateFindAnswer:
			_, after, ok := strings.Cut(reply, answerLabel)
			if !ok {
				state = stateScanLines
				continue
			}
			rest = after
			state = stateSplitExplanation

		case stateSplitExplanation:
			answer, after, ok := strings.Cut(rest, explanationLabel)
			if !ok {
				p.Answer = strings.TrimSpace(rest)
				state = stateCheckAnswer
				continue
			}
			p.Answer = strings.TrimSpace(answer)
			rest = after
			state = stateSplitCross

		case stateSplitCross:
			explanation, after, ok := strings.Cut(rest, crossLabel)
			if ok {
				p.Explanation = strings.TrimSpace(explanation)
				c := strings.TrimSpace(after)
				cross = &c
			} else {
				p.Explanation = strings.TrimSpace(rest)
			}
			state = stateCheckAnswer

		case stateCheckAnswer:
			if p.Answer == "" {
				p.Answer = defaultAnswer
				state = stateScanLines
				continue
			}
			state = stateDone

		case stateScanLines:
			for _, line := range strings.Split(reply, "\n") {
				line = strings.TrimSpace(line)
				switch {
				case strings.HasPrefix(line, answerLabel):
					p.Answer = strings.TrimSpace(strings.TrimPrefix(line, answerLabel))
				case strings.HasPrefix(line, explanationLabel):
					p.Explanation = strings.TrimSpace(strings.TrimPrefix(line, explanationLabel))
				case strings.HasPrefix(line, crossLabel):
					c := strings.TrimSpace(strings.TrimPrefix(line, crossLabel))
					cross = &c
				}
			}
			if p.Answer == "" || p.Answer == defaultAnswer {
				state = stateFallback
				continue
			}
			state = stateDone

		case stateFallback:
			p.Answer = "Based on your document(s), here's what I found about your question."
			p.Explanation = fmt.Sprintf("Found relevant information in %d document(s) that relates to your question about '%s'.", sources, query)
			state = stateDone
		}
	}

	p.CrossDocumentAnalysis = crossFor(sources, cross)
	return p
}

// crossFor applies the cross-document rule: nil for one source, and for
// several either the parsed analysis or a fixed note.
func crossFor(sources int, parsed *string) *string {
	if sources <= 1 {
		return nil
	}
	if parsed != nil && *parsed != "" {
		return parsed
	}
	note := missingCrossNote(sources)
	return &note
}

func missingCrossNote(sources int) string {
	return fmt.Sprintf("Relevant information was found in %d documents, but no comparison across them is available.", sources)
}
