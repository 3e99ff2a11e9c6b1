// SPDX-License-Identifier: Apache-2.0

// Package audit persists the orchestrator's own run history. This trail is
// operational bookkeeping, distinct from the audit role's drift reports.
package audit

import (
	"context"
	"sync"
	"time"
)

// Entry is one recorded orchestration outcome.
type Entry struct {
	RunID         string
	PlanID        string
	Success       bool
	Steps         int
	Verifications int
	DurationMs    int64
	Error         string
	CreatedAt     time.Time
}

// Filter limits trail queries.
type Filter struct {
	PlanID  string
	Success *bool
	Limit   int
}

// TrailStore persists orchestration run entries.
type TrailStore interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// MemoryTrailStore keeps entries in memory.
type MemoryTrailStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryTrailStore returns an in-memory trail store.
func NewMemoryTrailStore() *MemoryTrailStore {
	return &MemoryTrailStore{}
}

// Record appends an entry.
func (s *MemoryTrailStore) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return nil
}

// List returns filtered entries in insertion order.
func (s *MemoryTrailStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if filter.PlanID != "" && entry.PlanID != filter.PlanID {
			continue
		}
		if filter.Success != nil && entry.Success != *filter.Success {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// normalizeTrailTime ensures timestamps are stored in UTC.
func normalizeTrailTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}
