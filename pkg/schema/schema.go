// Package schema describes table metadata for the grid engine.
//
// A table is an ordered list of columns. Each column has a Field describing
// its semantic type and nullability, and relation-bearing columns additionally
// carry a Relation descriptor naming the relation kind, the target table, and
// the foreign-key columns involved.
//
// TableMeta.Signature() derives a stable fingerprint of the column/relation
// set. The signature changes if and only if the schema changes, and is the
// trigger for draft-row resynchronization downstream.
package schema

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
)

// FieldType is the semantic type of a column.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldNumber    FieldType = "number"
	FieldBoolean   FieldType = "boolean"
	FieldDate      FieldType = "date"
	FieldJSON      FieldType = "json"
	FieldGeometry  FieldType = "geometry"
	FieldRelation  FieldType = "relation"
	FieldUUID      FieldType = "uuid"
	FieldTimestamp FieldType = "timestamp"
)

// Field describes a single column of a table.
type Field struct {
	// Key is the column key, unique within the table.
	Key string

	// Type is the semantic type of the column.
	Type FieldType

	// Nullable reports whether the column accepts null.
	Nullable bool

	// ServerManaged marks columns the server owns (created/updated
	// timestamps, generated ids). They are never sent in create or
	// update payloads and cannot be edited on unsaved rows.
	ServerManaged bool
}

// IsRelation reports whether the field participates in a relation.
func (f Field) IsRelation() bool {
	return f.Type == FieldRelation
}

// RelationKind is the cardinality of a relation.
type RelationKind string

const (
	BelongsTo  RelationKind = "belongsTo"
	HasOne     RelationKind = "hasOne"
	HasMany    RelationKind = "hasMany"
	ManyToMany RelationKind = "manyToMany"
)

// IsToMany reports whether the relation can hold multiple related records.
func (k RelationKind) IsToMany() bool {
	return k == HasMany || k == ManyToMany
}

// Relation describes how a relation-bearing column links to another table.
type Relation struct {
	// Field is the column key carrying the relation.
	Field string

	// Kind is the relation cardinality.
	Kind RelationKind

	// TargetTable is the table the relation points at.
	TargetTable string

	// ForeignKeys are the key column(s) involved in the relation.
	ForeignKeys []string

	// DisplayFields are candidate columns on the target table used to
	// label related records, in preference order.
	DisplayFields []string
}

// DisplayField returns the first candidate display field, or "" when the
// descriptor names none.
func (r Relation) DisplayField() string {
	if len(r.DisplayFields) == 0 {
		return ""
	}
	return r.DisplayFields[0]
}

// TableMeta is the full column/relation metadata of one table.
//
// Fields and Relations are keyed by column key. ColumnOrder is the render
// order and is the authoritative column key set: a key absent from
// ColumnOrder is not part of the table even if present in the maps.
type TableMeta struct {
	TableKey    string
	ColumnOrder []string
	Fields      map[string]Field
	Relations   map[string]Relation
}

// Field returns the field for a column key.
func (m *TableMeta) Field(key string) (Field, bool) {
	f, ok := m.Fields[key]
	return f, ok
}

// Relation returns the relation descriptor for a column key.
func (m *TableMeta) Relation(key string) (Relation, bool) {
	r, ok := m.Relations[key]
	return r, ok
}

// HasColumn reports whether key is part of the table's column set.
func (m *TableMeta) HasColumn(key string) bool {
	_, ok := m.Fields[key]
	return ok
}

// Signature derives a stable fingerprint of the metadata. Two metas with the
// same columns, types, nullability, and relations produce the same signature;
// any schema change produces a different one.
func (m *TableMeta) Signature() string {
	h := fnv.New64a()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}

	write(m.TableKey)
	for _, key := range m.ColumnOrder {
		f := m.Fields[key]
		write(key, string(f.Type), strconv.FormatBool(f.Nullable), strconv.FormatBool(f.ServerManaged))
	}

	relKeys := make([]string, 0, len(m.Relations))
	for key := range m.Relations {
		relKeys = append(relKeys, key)
	}
	sort.Strings(relKeys)
	for _, key := range relKeys {
		r := m.Relations[key]
		write(key, string(r.Kind), r.TargetTable)
		write(r.ForeignKeys...)
		write(r.DisplayFields...)
	}

	return fmt.Sprintf("%016x", h.Sum64())
}

// Clone returns a deep copy so callers cannot mutate shared metadata.
func (m *TableMeta) Clone() *TableMeta {
	if m == nil {
		return nil
	}
	out := &TableMeta{
		TableKey:    m.TableKey,
		ColumnOrder: append([]string(nil), m.ColumnOrder...),
		Fields:      make(map[string]Field, len(m.Fields)),
	}
	for k, f := range m.Fields {
		out.Fields[k] = f
	}
	// A nil Relations map means "not provided yet" and is distinct from an
	// empty one, so nil-ness survives the copy.
	if m.Relations != nil {
		out.Relations = make(map[string]Relation, len(m.Relations))
		for k, r := range m.Relations {
			r.ForeignKeys = append([]string(nil), r.ForeignKeys...)
			r.DisplayFields = append([]string(nil), r.DisplayFields...)
			out.Relations[k] = r
		}
	}
	return out
}
