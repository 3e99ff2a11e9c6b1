// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/telos-ai/telos/pkg/core"
	"github.com/telos-ai/telos/pkg/errors"
)

// DefaultVectorSize matches common sentence embedding models.
const DefaultVectorSize = 768

// Writer persists memory batches into a vector collection. It implements
// the kernel's memory-writer role.
type Writer struct {
	store      VectorStore
	embedder   Embedder
	collection string
	vectorSize uint64
	prepared   bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithVectorSize overrides the collection vector size.
func WithVectorSize(size uint64) WriterOption {
	return func(w *Writer) {
		if size > 0 {
			w.vectorSize = size
		}
	}
}

// NewWriter creates a writer over the given store and embedder.
func NewWriter(store VectorStore, embedder Embedder, collection string, opts ...WriterOption) (*Writer, error) {
	if store == nil {
		return nil, errors.New(errors.CodeInvalidInput, "vector store is required", nil)
	}
	if embedder == nil {
		return nil, errors.New(errors.CodeInvalidInput, "embedder is required", nil)
	}
	if collection == "" {
		return nil, errors.New(errors.CodeInvalidInput, "collection name is required", nil)
	}
	w := &Writer{
		store:      store,
		embedder:   embedder,
		collection: collection,
		vectorSize: DefaultVectorSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WriteBatch embeds and upserts every item. The batch is written as a
// whole; a failed embed fails the batch.
func (w *Writer) WriteBatch(ctx context.Context, batch []core.MemoryWriteRequest) (*core.MemoryReport, error) {
	batchID := uuid.NewString()
	if len(batch) == 0 {
		return &core.MemoryReport{BatchID: batchID, ItemsWritten: 0}, nil
	}

	if !w.prepared {
		if err := w.store.EnsureCollection(ctx, w.collection, w.vectorSize); err != nil {
			return nil, errors.New(errors.CodeMemoryError, "failed to prepare collection", err).
				WithContext("collection", w.collection)
		}
		w.prepared = true
	}

	now := time.Now().UTC().Unix()
	points := make([]Point, 0, len(batch))
	for _, item := range batch {
		vector, err := w.embedder.Embed(ctx, item.Content)
		if err != nil {
			return nil, errors.New(errors.CodeMemoryError, "failed to embed memory item", err).
				WithContext("batch_id", batchID)
		}
		points = append(points, Point{
			ID:     uuid.NewString(),
			Vector: vector,
			Payload: map[string]any{
				"content":     item.Content,
				"source":      item.Source,
				"reliability": item.Reliability,
				"batch_id":    batchID,
				"created_at":  now,
			},
		})
	}

	if err := w.store.Upsert(ctx, w.collection, points); err != nil {
		return nil, errors.New(errors.CodeMemoryError, "failed to upsert memory batch", err).
			WithContext("batch_id", batchID).
			WithContext("items", len(points))
	}

	return &core.MemoryReport{BatchID: batchID, ItemsWritten: len(points)}, nil
}
