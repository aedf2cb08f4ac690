package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/photoflow-io/photoflow/internal/lifecycle"
	"github.com/photoflow-io/photoflow/internal/model"
	"github.com/photoflow-io/photoflow/internal/photorepo"
)

// Simulator runs the processing simulation for one photo. Implemented by
// processing.Simulator.
type Simulator interface {
	Run(ctx context.Context, photoID string) error
}

// PhotoExistenceChecker reports whether a photo still exists, used to
// implement the "deleted before dispatch" / "deleted during processing"
// no-op checks in §4.6 step 2 and step 5.
type PhotoExistenceChecker interface {
	FindByID(ctx context.Context, id string) (*model.Photo, error)
}

// MessageHandler implements the per-message contract from §4.6 as a
// Handler suitable for Runner.
type MessageHandler struct {
	photos    PhotoExistenceChecker
	lifecycle *lifecycle.Coordinator
	simulator Simulator
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(photos PhotoExistenceChecker, coord *lifecycle.Coordinator, sim Simulator) *MessageHandler {
	return &MessageHandler{photos: photos, lifecycle: coord, simulator: sim}
}

// Handle implements the §4.6 "Per-message contract": existence check,
// Processing transition, simulation, existence recheck, Completed
// transition. When the simulation fails, a Failed transition is attempted
// (only if the photo still exists) and the message is still treated as
// successfully handled so the caller acks immediately — §4.6 requires
// "(a) ack on Failed to prevent re-processing". Any other error (existence
// check, Processing or Completed transition) is returned, leaving the
// message unacked for reclaim.
func (h *MessageHandler) Handle(ctx context.Context, job Job) error {
	exists, err := h.photoExists(ctx, job.PhotoID)
	if err != nil {
		return fmt.Errorf("check existence for %s: %w", job.PhotoID, err)
	}
	if !exists {
		// Deleted before dispatch: acknowledge and discard without
		// touching status (§4.6 step 2).
		return nil
	}

	if err := h.lifecycle.Transition(ctx, job.PhotoID, model.StatusProcessing, "Processing started"); err != nil {
		return fmt.Errorf("transition %s to processing: %w", job.PhotoID, err)
	}

	if err := h.simulator.Run(ctx, job.PhotoID); err != nil {
		h.failAndAck(ctx, job.PhotoID, err)
		return nil
	}

	exists, err = h.photoExists(ctx, job.PhotoID)
	if err != nil {
		return fmt.Errorf("recheck existence for %s: %w", job.PhotoID, err)
	}
	if !exists {
		// Deleted during processing: acknowledge and discard (§4.6 step 5).
		return nil
	}

	if err := h.lifecycle.Transition(ctx, job.PhotoID, model.StatusCompleted, "Processing completed"); err != nil {
		return fmt.Errorf("transition %s to completed: %w", job.PhotoID, err)
	}
	return nil
}

// failAndAck attempts a Failed transition (only if the photo still
// exists) and swallows any resulting error, since the caller always acks
// after this — §4.6 requires ack-on-Failed regardless of whether the
// transition itself succeeded.
func (h *MessageHandler) failAndAck(ctx context.Context, photoID string, cause error) {
	exists, err := h.photoExists(ctx, photoID)
	if err != nil || !exists {
		return
	}
	_ = h.lifecycle.Transition(ctx, photoID, model.StatusFailed, fmt.Sprintf("processing failed: %v", cause))
}

func (h *MessageHandler) photoExists(ctx context.Context, photoID string) (bool, error) {
	_, err := h.photos.FindByID(ctx, photoID)
	if errors.Is(err, photorepo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
