package scope

// Applier is implemented by filter builders to receive scope fragments.
// This interface lives in the scope package so that orm can import scope
// without creating circular dependencies.
type Applier interface {
	ApplyEq(field string, value any)
	ApplyIn(field string, values []any)
	ApplyNull(field string)
}

type scopeKind int

const (
	kindEq scopeKind = iota
	kindIn
	kindNull
)

// Scope represents a single filter condition on one field.
// Scopes are immutable and safe to reuse across queries.
type Scope struct {
	kind   scopeKind
	field  string
	value  any
	values []any
}

// Apply dispatches this Scope to the given Applier.
func (s Scope) Apply(a Applier) {
	switch s.kind {
	case kindEq:
		a.ApplyEq(s.field, s.value)
	case kindIn:
		a.ApplyIn(s.field, append([]any(nil), s.values...))
	case kindNull:
		a.ApplyNull(s.field)
	}
}

// Field returns the field this Scope constrains.
func (s Scope) Field() string { return s.field }

// Eq returns a Scope matching field = value.
//
//	scope.Eq("sbj_id", "sbj-001")
func Eq(field string, value any) Scope {
	return Scope{kind: kindEq, field: field, value: value}
}

// In returns a Scope matching any of values. An empty list matches nothing.
// No reflection is used; generics handle the type conversion.
//
//	scope.In("id", []int64{1, 2, 3})
func In[T any](field string, values []T) Scope {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return Scope{kind: kindIn, field: field, values: args}
}

// IsNull returns a Scope matching rows where field is NULL.
func IsNull(field string) Scope {
	return Scope{kind: kindNull, field: field}
}

// Scopes is a named slice of Scope, useful for conditionally building
// up a set of scopes.
//
//	var s scope.Scopes
//	if onlyRoots {
//	    s = s.Append(scope.IsNull("parent_id"))
//	}
//	s = s.Append(scope.Eq("project_id", 7))
type Scopes []Scope

// Append adds scopes and returns a new Scopes. The receiver is not modified.
func (ss Scopes) Append(scopes ...Scope) Scopes {
	return append(append(Scopes(nil), ss...), scopes...)
}

// Merge concatenates two Scopes and returns a new Scopes.
// Neither receiver nor argument is modified.
func (ss Scopes) Merge(other Scopes) Scopes {
	return append(append(Scopes(nil), ss...), other...)
}

// Apply applies every scope in order; later scopes on the same field win.
func (ss Scopes) Apply(a Applier) {
	for _, s := range ss {
		s.Apply(a)
	}
}

// Combine creates a Scopes from the given scopes.
//
//	scope.Combine(scope.Eq("project_id", 7), scope.IsNull("alt_id"))
func Combine(scopes ...Scope) Scopes {
	return Scopes(scopes)
}
