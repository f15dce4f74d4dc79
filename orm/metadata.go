package orm

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/mickamy/labcat/internal/naming"
)

// Field declares one column on an entity's own table.
type Field struct {
	Name     string
	Required bool // must be present for INSERT
}

// RefJoin is a further join from an association table to a lookup table,
// surfacing a human-readable label next to the raw foreign key.
type RefJoin struct {
	Table         string   // lookup table, e.g. "taxonomy"
	Field         string   // column on the association table holding the lookup id
	ReadableField string   // label column on the lookup table
	Cols          []string // optional: raw projection comes from these lookup columns
}

// Association describes how a secondary table relates to an entity.
type Association struct {
	Name  string
	Table string
	Cols  []string
	// IDCol is the association table column joined to the entity.
	IDCol string
	// AssocIDCol overrides the entity side of the join (default "id"), for
	// lookups such as library.technique_id -> technique.id.
	AssocIDCol string
	RefJoin    *RefJoin
	OneToOne   bool
	// Shared marks rows that outlive the entity even though they point at
	// it, e.g. anatomy terms listed under a cv_list entry.
	Shared bool
}

// owned reports whether rows of the association table belong to the entity,
// i.e. may be deleted along with it.
func (a *Association) owned() bool {
	return !a.Shared && (a.AssocIDCol == "" || a.AssocIDCol == "id")
}

// SelfJoin describes a self-referencing relation table.
type SelfJoin struct {
	Table       string
	ParentField string
	ChildField  string
}

// Values is a caller-supplied field/value map for writes.
type Values map[string]any

// Lookup resolves references while a write is in progress. Lookups run on the
// same connection as the write.
type Lookup interface {
	// LookupID returns the id of the single row of table whose field equals value.
	LookupID(ctx context.Context, table, field string, value any) (int64, error)
}

// Ref lets callers name a referenced row instead of supplying its id:
// {"project": "demo"} becomes {"project_id": <id of project "demo">}.
type Ref struct {
	Key   string // caller key, e.g. "project"
	Field string // foreign key field it fills, e.g. "project_id"
	Table string // referenced table
	By    string // column of Table matched against the value, e.g. "short_name"
}

// LoaderFunc converts the caller's value for an association into rows for the
// association table. parentID is the entity's id.
type LoaderFunc func(ctx context.Context, lk Lookup, parentID int64, value any) ([]Values, error)

// Meta is the static declaration of an entity type.
type Meta struct {
	Kind         string // e.g. "Subject"
	Table        string // defaults to the snake_case kind
	Fields       []Field
	Associations []Association
	SelfJoin     *SelfJoin
	// Updatable lists the columns UPDATE may touch. Association-backed values
	// are never updated through this path.
	Updatable []string
	// NaturalKey identifies a row for Update when "id" is not supplied.
	NaturalKey string
	// Defaults are merged into every read filter and every insert
	// (e.g. is_grant = 0).
	Defaults Values
	// Timestamp names a column stamped from the context Clock on insert when
	// the caller omits it.
	Timestamp string
	// Refs are resolved, in order, before INSERT and UPDATE.
	Refs []Ref

	Loaders map[string]LoaderFunc

	fieldIdx map[string]int
	assocIdx map[string]int
}

// Build validates m and fills derived indexes. It must be called once before
// the Meta is used; NewRepo does so.
func (m *Meta) Build() error {
	if m.Kind == "" {
		return errors.New("orm: entity kind is required")
	}
	if m.Table == "" {
		m.Table = naming.CamelToSnake(m.Kind)
	}
	m.fieldIdx = make(map[string]int, len(m.Fields))
	for i, f := range m.Fields {
		if f.Name == "" || f.Name == "id" {
			return errors.Newf("orm: %s: invalid field name %q", m.Kind, f.Name)
		}
		if _, dup := m.fieldIdx[f.Name]; dup {
			return errors.Newf("orm: %s: duplicate field %q", m.Kind, f.Name)
		}
		m.fieldIdx[f.Name] = i
	}
	m.assocIdx = make(map[string]int, len(m.Associations))
	for i, a := range m.Associations {
		if _, clash := m.fieldIdx[a.Name]; clash || a.Name == "id" {
			return errors.Newf("orm: %s: association %q collides with a field", m.Kind, a.Name)
		}
		if _, dup := m.assocIdx[a.Name]; dup {
			return errors.Newf("orm: %s: duplicate association %q", m.Kind, a.Name)
		}
		if a.Table == "" || a.IDCol == "" {
			return errors.Newf("orm: %s: association %q needs a table and id column", m.Kind, a.Name)
		}
		m.assocIdx[a.Name] = i
	}
	for _, col := range m.Updatable {
		if !m.HasField(col) {
			return errors.Newf("orm: %s: updatable column %q is not a field", m.Kind, col)
		}
	}
	for name := range m.Loaders {
		if _, ok := m.assocIdx[name]; !ok {
			return errors.Newf("orm: %s: loader for undeclared association %q", m.Kind, name)
		}
	}
	for k := range m.Defaults {
		if !m.HasField(k) {
			return errors.Newf("orm: %s: default for unknown field %q", m.Kind, k)
		}
	}
	if m.Timestamp != "" && !m.HasField(m.Timestamp) {
		return errors.Newf("orm: %s: timestamp column %q is not a field", m.Kind, m.Timestamp)
	}
	if m.NaturalKey != "" && !m.HasField(m.NaturalKey) {
		return errors.Newf("orm: %s: natural key %q is not a field", m.Kind, m.NaturalKey)
	}
	for _, ref := range m.Refs {
		if !m.HasField(ref.Field) {
			return errors.Newf("orm: %s: reference %q fills unknown field %q", m.Kind, ref.Key, ref.Field)
		}
		if m.HasField(ref.Key) || ref.Key == "id" {
			return errors.Newf("orm: %s: reference key %q collides with a field", m.Kind, ref.Key)
		}
		// A reference may share its name with the one-to-one association that
		// reads the same foreign key back, e.g. Cohort "project".
		if a := m.Association(ref.Key); a != nil && (!a.OneToOne || a.AssocIDCol != ref.Field) {
			return errors.Newf("orm: %s: reference key %q collides with association", m.Kind, ref.Key)
		}
		if ref.Table == "" || ref.By == "" {
			return errors.Newf("orm: %s: reference %q needs a table and column", m.Kind, ref.Key)
		}
	}
	return nil
}

func (m *Meta) ref(key string) *Ref {
	for i := range m.Refs {
		if m.Refs[i].Key == key {
			return &m.Refs[i]
		}
	}
	return nil
}

// checkWrite validates the keys of caller values for Add (insert) or Update.
func (m *Meta) checkWrite(v Values, insert bool) error {
	for k := range v {
		switch {
		case k == "id":
			if insert {
				return errors.Wrapf(ErrInvalidArgument, "%s: id is generated by the database", m.Kind)
			}
		case m.HasField(k), m.ref(k) != nil:
		case m.Association(k) != nil:
			if m.Loaders[k] == nil {
				return errors.Wrapf(ErrInvalidArgument, "%s: association %q cannot be written", m.Kind, k)
			}
		default:
			return errors.Wrapf(ErrInvalidArgument, "%s has no attribute %q (allowed: %v)", m.Kind, k, m.Attrs())
		}
	}
	if !insert {
		return nil
	}
	var missing []string
	for _, f := range m.Fields {
		if !f.Required {
			continue
		}
		if _, ok := v[f.Name]; ok {
			continue
		}
		if _, ok := m.Defaults[f.Name]; ok || f.Name == m.Timestamp {
			continue
		}
		if !m.providedByRef(v, f.Name) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrMissingField, "%s requires %v", m.Kind, missing)
	}
	return nil
}

func (m *Meta) providedByRef(v Values, field string) bool {
	for _, ref := range m.Refs {
		if ref.Field != field {
			continue
		}
		if _, ok := v[ref.Key]; ok {
			return true
		}
	}
	return false
}

// HasField reports whether name is a declared field (not "id").
func (m *Meta) HasField(name string) bool {
	_, ok := m.fieldIdx[name]
	return ok
}

// Association returns the descriptor for name, or nil.
func (m *Meta) Association(name string) *Association {
	i, ok := m.assocIdx[name]
	if !ok {
		return nil
	}
	return &m.Associations[i]
}

// Attrs returns every attribute usable on a Record: "id", the fields, and the
// association names.
func (m *Meta) Attrs() []string {
	attrs := make([]string, 0, 1+len(m.Fields)+len(m.Associations))
	attrs = append(attrs, "id")
	for _, f := range m.Fields {
		attrs = append(attrs, f.Name)
	}
	for _, a := range m.Associations {
		attrs = append(attrs, a.Name)
	}
	return attrs
}

// columns returns "id" followed by the declared field names.
func (m *Meta) columns() []string {
	cols := make([]string, 0, 1+len(m.Fields))
	cols = append(cols, "id")
	for _, f := range m.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

func (m *Meta) validateFilter(f Filter) error {
	for k := range f {
		if k != "id" && !m.HasField(k) {
			return errors.Wrapf(ErrInvalidArgument, "%s has no field %q (allowed: %v)", m.Kind, k, m.columns())
		}
	}
	return nil
}

func (m *Meta) validateAssocs(names []string) error {
	for _, n := range names {
		if m.Association(n) == nil {
			return errors.Wrapf(ErrUnknownAssociation, "%s has no association %q", m.Kind, n)
		}
	}
	return nil
}

func (m *Meta) String() string { return fmt.Sprintf("%s(%s)", m.Kind, m.Table) }
