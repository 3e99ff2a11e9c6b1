// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/telos-ai/telos/pkg/errors"
)

// InMemoryStore is a process-local vector store for tests and local runs.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Point
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string][]Point)}
}

func (s *InMemoryStore) EnsureCollection(_ context.Context, name string, _ uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = nil
	}
	return nil
}

func (s *InMemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.collections[collection]
	if !ok {
		return errors.New(errors.CodeMemoryError, "unknown collection "+collection, nil)
	}
	for _, point := range points {
		replaced := false
		for i := range existing {
			if existing[i].ID == point.ID {
				existing[i] = point
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, point)
		}
	}
	s.collections[collection] = existing
	return nil
}

func (s *InMemoryStore) Search(_ context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points, ok := s.collections[collection]
	if !ok {
		return nil, errors.New(errors.CodeMemoryError, "unknown collection "+collection, nil)
	}

	var results []SearchResult
	for _, point := range points {
		score := cosineSimilarity(vector, point.Vector)
		if score < scoreThreshold {
			continue
		}
		results = append(results, SearchResult{ID: point.ID, Score: score, Point: point})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of points in a collection.
func (s *InMemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
