// Package telemetry collects per-run summaries and user feedback: a
// bounded in-memory ring for fast recent-run queries, with optional
// durable persistence to SQLite.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/model"
)

// DefaultRingSize bounds the in-memory run log.
const DefaultRingSize = 500

// persistTimeout bounds each best-effort durable write.
const persistTimeout = 5 * time.Second

// Feedback is one user rating for a completed run.
type Feedback struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder accumulates run summaries. Safe for concurrent use. Implements
// the pipeline's telemetry sink.
type Recorder struct {
	mu       sync.Mutex
	ring     []model.RunSummary
	feedback []Feedback
	max      int

	store *Store
}

// NewRecorder builds a Recorder with the given ring capacity. store may be
// nil for memory-only operation.
func NewRecorder(ringSize int, store *Store) *Recorder {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	return &Recorder{max: ringSize, store: store}
}

// Record appends one run summary, evicting the oldest entry when the ring
// is full. Durable persistence is best-effort and never blocks the caller
// on failure.
func (r *Recorder) Record(summary model.RunSummary) {
	r.mu.Lock()
	r.ring = append(r.ring, summary)
	if len(r.ring) > r.max {
		r.ring = r.ring[len(r.ring)-r.max:]
	}
	r.mu.Unlock()

	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.store.SaveRun(ctx, summary); err != nil {
			zap.L().Warn("persist run summary failed", zap.String("run_id", summary.RunID), zap.Error(err))
		}
	}
}

// Recent returns up to limit run summaries, newest first.
func (r *Recorder) Recent(limit int) []model.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.ring) {
		limit = len(r.ring)
	}
	out := make([]model.RunSummary, 0, limit)
	for i := len(r.ring) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.ring[i])
	}
	return out
}

// RecordFeedback stores one feedback entry, assigning its ID and
// timestamp.
func (r *Recorder) RecordFeedback(fb Feedback) Feedback {
	fb.ID = uuid.NewString()
	fb.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	r.feedback = append(r.feedback, fb)
	if len(r.feedback) > r.max {
		r.feedback = r.feedback[len(r.feedback)-r.max:]
	}
	r.mu.Unlock()

	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.store.SaveFeedback(ctx, fb); err != nil {
			zap.L().Warn("persist feedback failed", zap.String("id", fb.ID), zap.Error(err))
		}
	}
	return fb
}

// RecentFeedback returns up to limit feedback entries, newest first.
func (r *Recorder) RecentFeedback(limit int) []Feedback {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.feedback) {
		limit = len(r.feedback)
	}
	out := make([]Feedback, 0, limit)
	for i := len(r.feedback) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.feedback[i])
	}
	return out
}
