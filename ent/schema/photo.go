package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Photo holds the schema definition for the Photo entity.
//
// This is the schema-of-record: migrations in internal/dbx/migrations are
// hand-written to match these fields exactly, the same relationship the
// teacher's ent/schema has with pkg/database/migrations. Runtime queries go
// through internal/photorepo (plain database/sql over pgx), not a generated
// ent client — see DESIGN.md.
type Photo struct {
	ent.Schema
}

// Fields of the Photo.
func (Photo) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("short_id").
			Optional().
			Nillable().
			Unique(),
		field.String("filename").
			Comment("Sanitized storage filename / object-store key stem"),
		field.String("original_filename").
			Comment("Client-provided name, stored verbatim"),
		field.Enum("status").
			Values("UPLOADED", "QUEUED", "PROCESSING", "COMPLETED", "FAILED").
			Default("UPLOADED"),
		field.Int64("size").
			Comment("Bytes"),
		field.String("mime_type"),
		field.String("storage_path").
			Comment("Object-store key of the original"),
		field.String("thumbnail_path").
			Optional().
			Nillable(),
		field.JSON("metadata", map[string]interface{}{}).
			Optional(),
		field.Bool("is_favorite").
			Default(false),
		field.Time("deleted_at").
			Optional().
			Nillable(),
		field.Time("uploaded_at").
			Immutable(),
		field.Time("processed_at").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Photo.
func (Photo) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("events", Event.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Photo.
func (Photo) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("uploaded_at"),
		index.Fields("is_favorite").
			Annotations(entsql.IndexWhere("is_favorite")),
		index.Fields("deleted_at"),
		index.Fields("updated_at"),
	}
}
