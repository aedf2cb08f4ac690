// Package eventlog is the append-only event log service (§4.3): it wraps
// photorepo's event operations with the validation and notification fan-out
// that every writer of an event must go through.
package eventlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/photoflow-io/photoflow/internal/model"
	"github.com/photoflow-io/photoflow/internal/notify"
	"github.com/photoflow-io/photoflow/internal/photorepo"
)

// Repository is the subset of photorepo.Repository the event log needs.
type Repository interface {
	AppendEvent(ctx context.Context, photoID string, eventType model.EventType, message string, metadata map[string]any) (*model.Event, error)
	ListByPhoto(ctx context.Context, photoID string) ([]*model.Event, error)
	List(ctx context.Context, filter model.EventFilter, page model.Page) ([]*model.Event, error)
}

// Service is the event log (§4.3).
type Service struct {
	repo     Repository
	notifier *notify.Broker
	log      *slog.Logger
}

// New builds a Service. notifier may be nil, in which case Append does not
// publish (used by offline tooling / tests that don't need pub/sub).
func New(repo Repository, notifier *notify.Broker, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, log: log}
}

// Append appends an event and publishes a notification for it (§4.3, §4.7
// "every status-changing event publishes a notification"). Non-status
// events (RENAMED, the free-form PROCESSING sub-steps) are still
// published — subscribers decide what they care about.
func (s *Service) Append(ctx context.Context, photoID string, eventType model.EventType, message string, metadata map[string]any) (*model.Event, error) {
	ev, err := s.repo.AppendEvent(ctx, photoID, eventType, message, metadata)
	if err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	s.log.Debug("event appended", "photo_id", photoID, "event_type", eventType, "sequence", ev.Sequence)

	if s.notifier != nil {
		s.notifier.Publish(notify.Notification{
			PhotoID:   photoID,
			EventType: string(eventType),
			Message:   message,
			Timestamp: ev.Timestamp,
		})
	}
	return ev, nil
}

// ListByPhoto returns a photo's event history, newest first.
func (s *Service) ListByPhoto(ctx context.Context, photoID string) ([]*model.Event, error) {
	events, err := s.repo.ListByPhoto(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", photoID, err)
	}
	return events, nil
}

// List returns events matching filter, paginated.
func (s *Service) List(ctx context.Context, filter model.EventFilter, page model.Page) ([]*model.Event, error) {
	events, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// compile-time check that photorepo.Repository satisfies the subset
// interface eventlog depends on.
var _ Repository = (*photorepo.Repository)(nil)
