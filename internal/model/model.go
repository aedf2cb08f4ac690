// Package model defines the domain types shared across photoflow's core
// packages: the Photo entity, its lifecycle status, and its append-only
// event log (§3 of SPEC_FULL.md).
package model

import "time"

// Status is a photo's lifecycle state (§3, §4.8).
type Status string

// Lifecycle statuses. Initial state on insert is StatusUploaded; terminal
// states are StatusCompleted and StatusFailed.
const (
	StatusUploaded   Status = "UPLOADED"
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether s is a terminal lifecycle state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the five defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// statusTransitions is the 5x5 lifecycle table (§4.8). Terminal states map
// to no entries: any transition attempted from them is handled as an
// idempotent no-op by the lifecycle coordinator, never applied.
var statusTransitions = map[Status]map[Status]bool{
	StatusUploaded:   {StatusQueued: true, StatusFailed: true},
	StatusQueued:     {StatusProcessing: true, StatusFailed: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransitionTo reports whether s -> to is a permitted lifecycle
// transition (§4.8). It is the single source of truth the lifecycle
// coordinator consults under the photo's row lock.
func (s Status) CanTransitionTo(to Status) bool {
	return statusTransitions[s][to]
}

// EventType identifies the kind of EventLog row (§3).
type EventType string

// Event types. PROCESSING covers both the status-transition event and the
// free-form processing sub-step events emitted during the simulation.
const (
	EventUploaded   EventType = "UPLOADED"
	EventQueued     EventType = "QUEUED"
	EventProcessing EventType = "PROCESSING"
	EventCompleted  EventType = "COMPLETED"
	EventFailed     EventType = "FAILED"
	EventRenamed    EventType = "RENAMED"
	EventRestored   EventType = "RESTORED"
)

// Photo is the primary entity (§3).
type Photo struct {
	ID               string
	ShortID          *string
	Filename         string
	OriginalFilename string
	Status           Status
	Size             int64
	MimeType         string
	StoragePath      string
	ThumbnailPath    *string
	Metadata         map[string]any
	IsFavorite       bool
	DeletedAt        *time.Time
	UploadedAt       time.Time
	ProcessedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Deleted reports whether the photo is soft-deleted.
func (p *Photo) Deleted() bool {
	return p.DeletedAt != nil
}

// Event is one append-only EventLog row (§3).
type Event struct {
	ID        int64
	PhotoID   string
	Type      EventType
	Message   string
	Metadata  map[string]any
	Timestamp time.Time
	Sequence  int64
}

// EventFilter restricts a Event listing query (§4.3 list(filter{...})).
type EventFilter struct {
	PhotoID   string
	EventType EventType
}

// Page bounds a paginated query.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the standard page-size defaults/clamps used across the
// repository's paginated queries.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
