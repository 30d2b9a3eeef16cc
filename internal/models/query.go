package models

import "strings"

// QueryRequest is a natural-language question about the stored documents.
type QueryRequest struct {
	Query string `json:"query"`
}

// Validate trims the query and returns an error if it is empty.
func (q *QueryRequest) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return &ValidationError{Message: "Query cannot be empty"}
	}
	return nil
}

// QueryResult is the synthesized answer to a query. Sources is nil when nothing
// relevant was retrieved; CrossDocumentAnalysis is nil unless more than one
// source contributed.
type QueryResult struct {
	Answer                string   `json:"answer"`
	Explanation           string   `json:"explanation"`
	Sources               []string `json:"sources"`
	CrossDocumentAnalysis *string  `json:"cross_document_analysis"`
}
