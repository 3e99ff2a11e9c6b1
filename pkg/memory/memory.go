// SPDX-License-Identifier: Apache-2.0

// Package memory persists run outputs as embedded vectors so later runs
// can recall them. The Writer adapts a vector store and an embedder to
// the orchestration kernel's memory-writer role.
package memory

import "context"

// Point is one stored item in a vector collection.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// SearchResult is one scored match from a vector search.
type SearchResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Point Point   `json:"point"`
}

// VectorStore is the narrow contract to a vector database.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, vectorSize uint64) error
	// Upsert adds or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns the nearest points to the given vector.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error)
}

// Embedder converts text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
