package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *QueryRequest
		wantErr bool
		want    string
	}{
		{"empty query", &QueryRequest{Query: ""}, true, ""},
		{"whitespace only", &QueryRequest{Query: "  \n\t "}, true, ""},
		{"valid query", &QueryRequest{Query: "hello"}, false, "hello"},
		{"trims surrounding space", &QueryRequest{Query: "  leave policy  "}, false, "leave policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() error should wrap ErrValidation, got %v", err)
			}
			if !tt.wantErr && tt.query.Query != tt.want {
				t.Errorf("Query = %q, want %q", tt.query.Query, tt.want)
			}
		})
	}
}

func TestQueryResult_NullFields(t *testing.T) {
	data, err := json.Marshal(&QueryResult{Answer: "a", Explanation: "e"})
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, `"sources":null`) {
		t.Errorf("sources should encode as null: %s", s)
	}
	if !strings.Contains(s, `"cross_document_analysis":null`) {
		t.Errorf("cross_document_analysis should encode as null: %s", s)
	}
}
