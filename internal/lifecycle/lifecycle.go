// Package lifecycle is the sole authority for photo status mutation
// (§4.8): it holds the static transition table, enforces that disallowed
// transitions are a programming error, and makes allowed ones atomically
// (row update + event + notification) through photorepo's row lock.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/photoflow-io/photoflow/internal/model"
	"github.com/photoflow-io/photoflow/internal/notify"
)

// Repository is the subset of photorepo.Repository the coordinator needs.
type Repository interface {
	TransitionStatus(ctx context.Context, photoID string, newStatus model.Status, eventType model.EventType, message string, terminal bool) (*model.Photo, *model.Event, error)
}

// eventTypeFor maps a target status to its event type — every target
// status, terminal or not, uses the event type of the same name (§3 event
// types mirror status names).
var eventTypeFor = map[model.Status]model.EventType{
	model.StatusQueued:     model.EventQueued,
	model.StatusProcessing: model.EventProcessing,
	model.StatusCompleted:  model.EventCompleted,
	model.StatusFailed:     model.EventFailed,
}

// Coordinator is the lifecycle coordinator (§4.8).
type Coordinator struct {
	repo     Repository
	notifier *notify.Broker
	log      *slog.Logger
}

// New builds a Coordinator.
func New(repo Repository, notifier *notify.Broker, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{repo: repo, notifier: notifier, log: log}
}

// Transition moves photoID to newStatus with the given event message
// (§4.8 transition(photoId, newStatus, message)). The row lock taken by
// photorepo.TransitionStatus is what actually enforces the table: the
// current status is read and checked under that same lock, so concurrent
// deliveries for one photo can never both apply.
//
// A missing photo row (delete-during-processing race, §4.8) and a
// transition attempted from an already-terminal status (re-delivery,
// §5.I5) both return nil — idempotent no-ops, not errors. Any other
// disallowed transition surfaces photorepo.ErrDisallowedTransition, a
// genuine programming error.
func (c *Coordinator) Transition(ctx context.Context, photoID string, newStatus model.Status, message string) error {
	eventType, ok := eventTypeFor[newStatus]
	if !ok {
		return fmt.Errorf("lifecycle: %q is not a valid transition target", newStatus)
	}

	photo, event, err := c.repo.TransitionStatus(ctx, photoID, newStatus, eventType, message, newStatus.Terminal())
	if err != nil {
		return fmt.Errorf("transition %s to %s: %w", photoID, newStatus, err)
	}
	if photo == nil {
		// Photo row missing: delete-during-processing race (§4.8). Log and
		// return — this is a no-op, not an error.
		c.log.Info("lifecycle transition skipped: photo not found", "photo_id", photoID, "target_status", newStatus)
		return nil
	}
	if event == nil {
		// Already terminal: idempotent no-op, no event, no notification
		// (§4.8, §5.I5).
		c.log.Debug("lifecycle transition skipped: photo already terminal", "photo_id", photoID, "current_status", photo.Status, "target_status", newStatus)
		return nil
	}

	if c.notifier != nil {
		c.notifier.Publish(notify.Notification{
			PhotoID:   photoID,
			EventType: string(newStatus),
			Message:   message,
			Timestamp: event.Timestamp,
		})
	}
	return nil
}

// CanTransition reports whether from -> to is allowed by the table in
// §4.8, delegating to model.Status.CanTransitionTo. Useful for callers
// that want to validate a target before attempting it, though Transition
// itself is always safe to call — it re-checks under the row lock regardless.
func CanTransition(from, to model.Status) bool {
	return from.CanTransitionTo(to)
}
