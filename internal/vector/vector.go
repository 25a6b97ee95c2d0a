package vector

import "context"

// Entry is one knowledge-base passage stored in the index.
type Entry struct {
	ID           string
	Text         string
	Jurisdiction string
	Topic        string
	Source       string
}

// Result is one search hit with its similarity score.
type Result struct {
	Entry Entry
	Score float32
}

// Index stores embedded knowledge-base passages and retrieves the ones
// closest to a query embedding, optionally scoped to a jurisdiction.
type Index interface {
	Upsert(ctx context.Context, entry Entry, embedding []float32) error
	Search(ctx context.Context, embedding []float32, jurisdiction string, topK int) ([]Result, error)
}
