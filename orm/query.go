package orm

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/mickamy/labcat/scope"
)

// Filter maps field names to match values. A nil value matches NULL, a slice
// matches any of its elements, anything else matches by equality. Keys are
// ANDed.
type Filter map[string]any

// Scopes builds a Filter from scope fragments.
//
//	orm.Scopes(scope.Eq("sbj_id", "sbj-001"), scope.IsNull("alt_id"))
func Scopes(scopes ...scope.Scope) Filter {
	f := Filter{}
	for _, s := range scopes {
		s.Apply(f)
	}
	return f
}

// --- scope.Applier implementation ---

func (f Filter) ApplyEq(field string, value any)    { f[field] = value }
func (f Filter) ApplyIn(field string, values []any) { f[field] = values }
func (f Filter) ApplyNull(field string)             { f[field] = nil }

var _ scope.Applier = Filter(nil)

// withDefaults returns a copy of f with defaults added for keys f lacks.
func (f Filter) withDefaults(defaults Values) Filter {
	out := make(Filter, len(f)+len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f Filter) keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// quoter qualifies and quotes identifiers for one dialect.
type quoter struct{ d Dialect }

func (q quoter) qi(name string) string { return q.d.QuoteIdent(name) }

// col returns table.column, both quoted.
func (q quoter) col(table, column string) string {
	return q.qi(table) + "." + q.qi(column)
}

// ref quotes a possibly qualified column; unqualified names belong to table.
func (q quoter) ref(table, column string) string {
	if t, c, ok := strings.Cut(column, "."); ok {
		return q.col(t, c)
	}
	return q.col(table, column)
}

func (q quoter) list(table string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = q.col(table, c)
	}
	return out
}

// where renders the WHERE clause for f with named placeholders. Columns are
// qualified with table so the clause stays unambiguous under joins.
func (q quoter) where(table string, f Filter, named map[string]any) string {
	if len(f) == 0 {
		return ""
	}
	parts := make([]string, 0, len(f))
	for _, k := range f.keys() {
		col := q.col(table, k)
		v := f[k]
		if isNull(v) {
			parts = append(parts, col+" IS NULL")
			continue
		}
		if vs, ok := listValues(v); ok {
			if len(vs) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			ph := make([]string, len(vs))
			for i, x := range vs {
				name := fmt.Sprintf("%s_%d", k, i)
				named[name] = x
				ph[i] = ":" + name
			}
			parts = append(parts, col+" IN ("+strings.Join(ph, ", ")+")")
			continue
		}
		named[k] = v
		parts = append(parts, col+" = :"+k)
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

// BuildSelect returns the SELECT for the entity's own columns.
func BuildSelect(d Dialect, m *Meta, f Filter) (Stmt, error) {
	if err := m.validateFilter(f); err != nil {
		return Stmt{}, err
	}
	q := quoter{d}
	named := map[string]any{}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.list(m.Table, m.columns()), ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.qi(m.Table))
	b.WriteString(q.where(m.Table, f, named))
	b.WriteString(" ORDER BY ")
	b.WriteString(q.col(m.Table, "id"))
	return Stmt{SQL: b.String(), Named: named}, nil
}

// assocLayout describes the column layout of an association SELECT, in
// result order after the entity's own columns.
type assocLayout struct {
	assocCols []string // association columns (IDCol excluded)
	hasLabel  bool     // one label column from the lookup table follows
	refCols   []string // lookup columns follow the label
}

// rawCols returns the column names that make up one raw row.
func (l assocLayout) rawCols() []string {
	if len(l.refCols) > 0 {
		return l.refCols
	}
	return l.assocCols
}

func layoutFor(a *Association) assocLayout {
	l := assocLayout{}
	for _, c := range a.Cols {
		if c == a.IDCol {
			continue
		}
		l.assocCols = append(l.assocCols, c)
	}
	if a.RefJoin != nil {
		l.hasLabel = true
		for _, c := range a.RefJoin.Cols {
			if c == a.IDCol {
				continue
			}
			l.refCols = append(l.refCols, c)
		}
	}
	return l
}

// BuildAssocSelect returns the SELECT resolving one association: the
// entity's columns LEFT JOINed to the association table (and its lookup
// table), so that entities without related rows are still returned.
func BuildAssocSelect(d Dialect, m *Meta, assoc string, f Filter) (Stmt, error) {
	if err := m.validateFilter(f); err != nil {
		return Stmt{}, err
	}
	a := m.Association(assoc)
	if a == nil {
		return Stmt{}, errors.Wrapf(ErrUnknownAssociation, "%s has no association %q", m.Kind, assoc)
	}
	stmt, _ := buildAssocSelect(d, m, a, f)
	return stmt, nil
}

func buildAssocSelect(d Dialect, m *Meta, a *Association, f Filter) (Stmt, assocLayout) {
	q := quoter{d}
	l := layoutFor(a)
	named := map[string]any{}

	cols := q.list(m.Table, m.columns())
	cols = append(cols, q.list(a.Table, l.assocCols)...)
	if l.hasLabel {
		cols = append(cols, q.col(a.RefJoin.Table, a.RefJoin.ReadableField))
		cols = append(cols, q.list(a.RefJoin.Table, l.refCols)...)
	}

	entityCol := "id"
	if a.AssocIDCol != "" {
		entityCol = a.AssocIDCol
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.qi(m.Table))
	fmt.Fprintf(&b, " LEFT JOIN %s ON %s = %s",
		q.qi(a.Table), q.col(a.Table, a.IDCol), q.ref(m.Table, entityCol))
	if a.RefJoin != nil {
		fmt.Fprintf(&b, " LEFT JOIN %s ON %s = %s",
			q.qi(a.RefJoin.Table), q.col(a.RefJoin.Table, "id"), q.col(a.Table, a.RefJoin.Field))
	}
	b.WriteString(q.where(m.Table, f, named))
	b.WriteString(" ORDER BY ")
	b.WriteString(q.col(m.Table, "id"))
	return Stmt{SQL: b.String(), Named: named}, l
}

// BuildInsert returns the INSERT for v. Required fields come first in
// declaration order, followed by the optional fields present in v; Args is
// aligned with that column order.
func BuildInsert(d Dialect, m *Meta, v Values) (Stmt, error) {
	for k := range v {
		if !m.HasField(k) {
			return Stmt{}, errors.Wrapf(ErrInvalidArgument, "%s has no insertable field %q", m.Kind, k)
		}
	}

	var missing []string
	cols := make([]string, 0, len(v))
	args := make([]any, 0, len(v))
	for _, f := range m.Fields {
		if !f.Required {
			continue
		}
		val, ok := v[f.Name]
		if !ok {
			missing = append(missing, f.Name)
			continue
		}
		cols = append(cols, f.Name)
		args = append(args, val)
	}
	if len(missing) > 0 {
		return Stmt{}, errors.Wrapf(ErrMissingField, "%s requires %v", m.Kind, missing)
	}
	for _, f := range m.Fields {
		if f.Required {
			continue
		}
		if val, ok := v[f.Name]; ok {
			cols = append(cols, f.Name)
			args = append(args, val)
		}
	}

	q := quoter{d}
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = q.qi(c)
		placeholders[i] = "?"
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		q.qi(m.Table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
	return Stmt{SQL: query, Args: args}, nil
}

// BuildUpdate returns the UPDATE for the updatable columns present in v,
// scoped by id. ok is false when v touches none of them.
func BuildUpdate(d Dialect, m *Meta, id int64, v Values) (stmt Stmt, ok bool) {
	q := quoter{d}
	named := map[string]any{}
	var sets []string
	for _, col := range m.Updatable {
		val, present := v[col]
		if !present {
			continue
		}
		named[col] = val
		sets = append(sets, q.qi(col)+" = :"+col)
	}
	if len(sets) == 0 {
		return Stmt{}, false
	}
	named["id"] = id
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :id", q.qi(m.Table), strings.Join(sets, ", "), q.qi("id"))
	return Stmt{SQL: query, Named: named}, true
}

// BuildDelete returns the DELETE for one entity row.
func BuildDelete(d Dialect, m *Meta, id int64) Stmt {
	q := quoter{d}
	return Stmt{
		SQL:   fmt.Sprintf("DELETE FROM %s WHERE %s = :id", q.qi(m.Table), q.qi("id")),
		Named: map[string]any{"id": id},
	}
}

func buildAssocDelete(d Dialect, a *Association, parentID int64) Stmt {
	q := quoter{d}
	return Stmt{
		SQL:   fmt.Sprintf("DELETE FROM %s WHERE %s = :%s", q.qi(a.Table), q.qi(a.IDCol), a.IDCol),
		Named: map[string]any{a.IDCol: parentID},
	}
}

// buildAssocInsert inserts one association row, restricted to the declared
// association columns present in row.
func buildAssocInsert(d Dialect, a *Association, row Values) (Stmt, error) {
	q := quoter{d}
	named := map[string]any{}
	var cols, ph []string
	for _, c := range a.Cols {
		v, ok := row[c]
		if !ok {
			continue
		}
		named[c] = v
		cols = append(cols, q.qi(c))
		ph = append(ph, ":"+c)
	}
	if len(cols) == 0 {
		return Stmt{}, errors.Wrapf(ErrInvalidArgument, "association %q row has none of %v", a.Name, a.Cols)
	}
	return Stmt{
		SQL:   fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", q.qi(a.Table), strings.Join(cols, ", "), strings.Join(ph, ", ")),
		Named: named,
	}, nil
}

func buildLookup(d Dialect, table, field string, value any) Stmt {
	q := quoter{d}
	return Stmt{
		SQL:   fmt.Sprintf("SELECT %s FROM %s WHERE %s = :%s", q.qi("id"), q.qi(table), q.qi(field), field),
		Named: map[string]any{field: value},
	}
}

func buildFieldValue(d Dialect, table, field string, id int64) Stmt {
	q := quoter{d}
	return Stmt{
		SQL:   fmt.Sprintf("SELECT %s FROM %s WHERE %s = :id", q.qi(field), q.qi(table), q.qi("id")),
		Named: map[string]any{"id": id},
	}
}

// listValues expands any slice except []byte into []any.
func listValues(v any) ([]any, bool) {
	switch vs := v.(type) {
	case []any:
		return vs, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
