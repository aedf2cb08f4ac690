package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Event holds the schema definition for the EventLog entity: the append-only
// history of a photo's lifecycle (§3 "EventLog" in SPEC_FULL.md).
type Event struct {
	ent.Schema
}

// Fields of the Event.
func (Event) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").
			Immutable(),
		field.String("photo_id").
			Immutable(),
		field.Enum("event_type").
			Values(
				"UPLOADED",
				"QUEUED",
				"PROCESSING",
				"COMPLETED",
				"FAILED",
				"RENAMED",
				"RESTORED",
			).
			Immutable(),
		field.String("message").
			Immutable(),
		field.JSON("metadata", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.Time("timestamp").
			Immutable(),
		field.Int64("sequence").
			Comment("Monotonic per-photo tiebreaker for same-wall-clock-tick events").
			Immutable(),
	}
}

// Edges of the Event.
func (Event) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("photo", Photo.Type).
			Ref("events").
			Field("photo_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Event.
func (Event) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("photo_id"),
		index.Fields("timestamp"),
		index.Fields("event_type"),
		index.Fields("photo_id", "sequence").
			Unique(),
	}
}
