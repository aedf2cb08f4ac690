// Package processing simulates the four-step image processing pipeline
// (§4.7). No actual image decoding, resizing, or compression happens — each
// step sleeps for a random duration within its range and emits a
// PROCESSING event describing it.
package processing

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/photoflow-io/photoflow/internal/model"
)

// step is one sequential sub-step of the simulation.
type step struct {
	name    string
	message string
	min     time.Duration
	max     time.Duration
}

// steps is the fixed four-step pipeline from §4.7, run in order.
var steps = []step{
	{name: "validate", message: "File validation completed", min: 500 * time.Millisecond, max: 1000 * time.Millisecond},
	{name: "extract_metadata", message: "Metadata extracted", min: 500 * time.Millisecond, max: 1000 * time.Millisecond},
	{name: "create_thumbnail", message: "Thumbnail created", min: 1000 * time.Millisecond, max: 2000 * time.Millisecond},
	{name: "optimize", message: "Image optimization completed", min: 500 * time.Millisecond, max: 1000 * time.Millisecond},
}

// EventAppender records a PROCESSING sub-step event. Implemented by
// eventlog.Service.
type EventAppender interface {
	Append(ctx context.Context, photoID string, eventType model.EventType, message string, metadata map[string]any) (*model.Event, error)
}

// Simulator runs the four-step simulation for one photo. A single
// Simulator is shared across the worker pool; math/rand's package-level
// functions are safe for concurrent use, so no per-call locking is needed
// here.
type Simulator struct {
	events EventAppender
}

// New builds a Simulator appending sub-step events through events.
func New(events EventAppender) *Simulator {
	return &Simulator{events: events}
}

// Run executes all four sub-steps in order for photoID, sleeping a
// uniform-random duration within each step's range and appending its
// PROCESSING event before moving to the next step. Returns ctx.Err() if
// ctx is cancelled mid-step — the caller propagates this as a Failed
// transition (§4.7 "Interruption propagates as a Failed transition").
func (s *Simulator) Run(ctx context.Context, photoID string) error {
	for _, st := range steps {
		d := randomDuration(st.min, st.max)
		select {
		case <-ctx.Done():
			return fmt.Errorf("processing %s interrupted during %s: %w", photoID, st.name, ctx.Err())
		case <-time.After(d):
		}

		if _, err := s.events.Append(ctx, photoID, model.EventProcessing, st.message, map[string]any{"step": st.name}); err != nil {
			return fmt.Errorf("record %s event for %s: %w", st.name, photoID, err)
		}
	}
	return nil
}

func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
