package models

// SearchHit is a single ranked keyword match with its chunk.
type SearchHit struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}
