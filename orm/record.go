package orm

import (
	"encoding/json"
	"fmt"
)

// AssocValue holds the resolved rows of one association on a Record.
//
// Associations with a reference join keep two index-aligned views: the
// human-readable labels from the lookup table and the raw association rows.
// Associations without one keep only raw rows; single-column rows collapse to
// bare values.
type AssocValue struct {
	oneToOne bool
	hasRef   bool
	human    []any
	raw      []any
}

// HumanReadable returns the label view. It is nil for associations without
// a reference join.
func (v *AssocValue) HumanReadable() []any {
	if v == nil {
		return nil
	}
	return v.human
}

// Raw returns the raw view: one Values per row, or bare values for
// single-column associations without a reference join.
func (v *AssocValue) Raw() []any {
	if v == nil {
		return nil
	}
	return v.raw
}

// One returns the row of a one-to-one association, or nil if none matched.
func (v *AssocValue) One() Values {
	if v == nil || len(v.raw) == 0 {
		return nil
	}
	row, _ := v.raw[0].(Values)
	return row
}

// Len returns the number of resolved rows.
func (v *AssocValue) Len() int {
	if v == nil {
		return 0
	}
	return len(v.raw)
}

// Value returns the default view: the label (or labels) when a reference
// join is present, the single row for one-to-one associations, and the raw
// list otherwise. An association with no rows yields nil.
func (v *AssocValue) Value() any {
	if v == nil || len(v.raw) == 0 {
		return nil
	}
	switch {
	case v.oneToOne && v.hasRef:
		return v.human[0]
	case v.oneToOne:
		return v.One()
	case v.hasRef:
		return v.human
	default:
		return v.raw
	}
}

// add records one joined row. One-to-one associations overwrite.
func (v *AssocValue) add(row Values, label any) {
	if v.oneToOne {
		v.raw = []any{row}
		if v.hasRef {
			v.human = []any{label}
		}
		return
	}
	if v.hasRef {
		v.human = append(v.human, label)
		v.raw = append(v.raw, row)
		return
	}
	if len(row) == 1 {
		for _, only := range row {
			v.raw = append(v.raw, only)
		}
		return
	}
	v.raw = append(v.raw, row)
}

func (v *AssocValue) MarshalJSON() ([]byte, error) {
	if v.hasRef {
		return json.Marshal(map[string]any{"human_readable": v.human, "raw": v.raw})
	}
	return json.Marshal(v.Value())
}

// Record is one entity row plus the associations requested when it was read.
type Record struct {
	Kind   string
	ID     int64
	Fields map[string]any

	meta   *Meta
	assocs map[string]*AssocValue
}

func newRecord(m *Meta, cols []any) *Record {
	r := &Record{
		Kind:   m.Kind,
		ID:     toInt64(cols[0]),
		Fields: make(map[string]any, len(m.Fields)),
		meta:   m,
	}
	for i, f := range m.Fields {
		r.Fields[f.Name] = cols[i+1]
	}
	return r
}

// Meta returns the entity declaration the record was read with.
func (r *Record) Meta() *Meta { return r.meta }

// Get returns the value of an attribute: "id", a field, or an association's
// default view. ok is false for names the entity does not declare.
// Associations that were not requested read as nil.
func (r *Record) Get(name string) (value any, ok bool) {
	if name == "id" {
		return r.ID, true
	}
	if v, ok := r.Fields[name]; ok {
		return v, true
	}
	if r.meta != nil && r.meta.Association(name) != nil {
		return r.assocs[name].Value(), true
	}
	return nil, false
}

// Assoc returns the resolved association, or nil if it was not requested.
func (r *Record) Assoc(name string) *AssocValue {
	return r.assocs[name]
}

// Loaded reports whether the association was requested when reading r.
func (r *Record) Loaded(name string) bool {
	_, ok := r.assocs[name]
	return ok
}

func (r *Record) assoc(a *Association) *AssocValue {
	if r.assocs == nil {
		r.assocs = make(map[string]*AssocValue)
	}
	v, ok := r.assocs[a.Name]
	if !ok {
		v = &AssocValue{oneToOne: a.OneToOne, hasRef: a.RefJoin != nil}
		r.assocs[a.Name] = v
	}
	return v
}

func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2+len(r.Fields)+len(r.assocs))
	out["id"] = r.ID
	for k, v := range r.Fields {
		out[k] = v
	}
	for k, v := range r.assocs {
		out[k] = v
	}
	return json.Marshal(out)
}

func (r *Record) String() string {
	return fmt.Sprintf("%s(id=%d)", r.Kind, r.ID)
}

// normalize converts driver values into the types records expose: []byte
// becomes string, and integer types widen to int64.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	}
	return v
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint64:
		return int64(x) //nolint:gosec // ids fit in int64
	case float64:
		return int64(x)
	case string:
		var n int64
		_, _ = fmt.Sscan(x, &n)
		return n
	}
	return 0
}
