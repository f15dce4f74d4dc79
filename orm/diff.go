package orm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"time"
)

// timestampLayout is how stored timestamps are rendered when compared with
// a string.
const timestampLayout = "2006-01-02 15:04:05.000000"

// dateLayout matches DATE columns, which scan as midnight.
const dateLayout = "2006-01-02"

// Discrepancy describes how one field differs. Scalar differences set Arg and
// DB; lists of rows set MissingFromDB and InDBNotInArgs instead.
type Discrepancy struct {
	Arg any
	DB  any

	MissingFromDB []any // candidate rows with no equal stored row
	InDBNotInArgs []any // stored rows with no equal candidate row
}

func (d Discrepancy) rows() bool { return d.MissingFromDB != nil || d.InDBNotInArgs != nil }

func (d Discrepancy) MarshalJSON() ([]byte, error) {
	if d.rows() {
		out := map[string]any{}
		if d.MissingFromDB != nil {
			out["values_missing_from_db"] = d.MissingFromDB
		}
		if d.InDBNotInArgs != nil {
			out["values_in_db_not_in_args"] = d.InDBNotInArgs
		}
		return json.Marshal(out)
	}
	return json.Marshal(map[string]any{"arg": d.Arg, "db": d.DB})
}

// Diff maps field names to discrepancies. A nil Diff means no differences.
type Diff map[string]Discrepancy

// Compare reports how candidate differs from r. Only keys of candidate are
// examined; attributes r does not declare compare as nil. Associations
// compare through their default view (see AssocValue.Value).
func (r *Record) Compare(candidate Values) Diff {
	var diff Diff
	for _, field := range sortedKeys(candidate) {
		stored, _ := r.Get(field)
		d, differs := compareValue(candidate[field], stored)
		if !differs {
			continue
		}
		if diff == nil {
			diff = Diff{}
		}
		diff[field] = d
	}
	return diff
}

func compareValue(arg, db any) (Discrepancy, bool) {
	if falsy(arg) && falsy(db) {
		return Discrepancy{}, false
	}
	scalar := Discrepancy{Arg: arg, DB: db}

	ka, kd := kindOf(arg), kindOf(db)
	if ka != kd {
		switch {
		case kd == kindTime && ka == kindString:
			return scalar, !timeMatches(db.(time.Time), stringify(arg))
		case ka == kindString:
			return scalar, stringify(db) != stringify(arg)
		case kd == kindString:
			return scalar, stringify(arg) != stringify(db)
		default:
			return scalar, true
		}
	}

	if ka == kindList {
		a, _ := listValues(arg)
		d, _ := listValues(db)
		return compareLists(a, d)
	}
	return scalar, !looseEqual(arg, db)
}

func timeMatches(t time.Time, s string) bool {
	if t.Format(timestampLayout) == s {
		return true
	}
	h, m, sec := t.Clock()
	midnight := h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0
	return midnight && t.Format(dateLayout) == s
}

func compareLists(arg, db []any) (Discrepancy, bool) {
	// Two empty lists never get here: both are falsy.
	switch {
	case len(arg) == 0:
		return Discrepancy{Arg: "Empty list", DB: fmt.Sprint(db)}, true
	case len(db) == 0:
		return Discrepancy{Arg: fmt.Sprint(arg), DB: "Empty list"}, true
	}

	if kindOf(arg[0]) != kindOf(db[0]) {
		return Discrepancy{
			Arg: fmt.Sprintf("type is: %T first value is: %v", arg[0], arg[0]),
			DB:  fmt.Sprintf("type is: %T first value is: %v", db[0], db[0]),
		}, true
	}

	if kindOf(arg[0]) != kindMap {
		if subset(arg, db) && subset(db, arg) {
			return Discrepancy{}, false
		}
		return Discrepancy{Arg: arg, DB: db}, true
	}

	ka, kd := mapKeys(arg[0]), mapKeys(db[0])
	if !slices.Equal(ka, kd) {
		return Discrepancy{
			Arg: fmt.Sprintf("keys are: %v", ka),
			DB:  fmt.Sprintf("keys are: %v", kd),
		}, true
	}
	d := Discrepancy{
		MissingFromDB: missing(arg, db),
		InDBNotInArgs: missing(db, arg),
	}
	return d, d.rows()
}

// missing returns the elements of from that have no equal element in in.
func missing(from, in []any) []any {
	var out []any
	for _, x := range from {
		if !contains(in, x) {
			out = append(out, x)
		}
	}
	return out
}

func subset(sub, of []any) bool {
	for _, x := range sub {
		if !contains(of, x) {
			return false
		}
	}
	return true
}

func contains(list []any, x any) bool {
	for _, y := range list {
		if looseEqual(x, y) {
			return true
		}
	}
	return false
}

type valueKind int

const (
	kindNull valueKind = iota
	kindString
	kindNumber
	kindBool
	kindTime
	kindList
	kindMap
	kindOther
)

func kindOf(v any) valueKind {
	if isNull(v) {
		return kindNull
	}
	switch v.(type) {
	case string:
		return kindString
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	case []byte:
		return kindString
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return kindNumber
	case reflect.Slice, reflect.Array:
		return kindList
	case reflect.Map:
		return kindMap
	}
	return kindOther
}

// falsy reports whether v is nil, zero, empty, or false.
func falsy(v any) bool {
	if isNull(v) {
		return true
	}
	if t, ok := v.(time.Time); ok {
		return t.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() == 0
	}
	return rv.IsZero()
}

// looseEqual compares values the way stored rows and caller maps need:
// numbers by value regardless of Go type, times by instant, and lists and
// maps element-wise.
func looseEqual(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case kindNull:
		return true
	case kindString:
		return stringify(a) == stringify(b)
	case kindNumber:
		return numberEqual(a, b)
	case kindTime:
		return a.(time.Time).Equal(b.(time.Time))
	case kindList:
		la, _ := listValues(a)
		lb, _ := listValues(b)
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !looseEqual(la[i], lb[i]) {
				return false
			}
		}
		return true
	case kindMap:
		ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
		if ra.Len() != rb.Len() {
			return false
		}
		for _, k := range ra.MapKeys() {
			vb := rb.MapIndex(k)
			if !vb.IsValid() || !looseEqual(ra.MapIndex(k).Interface(), vb.Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func numberEqual(a, b any) bool {
	ia, aInt := asInt(a)
	ib, bInt := asInt(b)
	if aInt && bInt {
		return ia == ib
	}
	return asFloat(a) == asFloat(b)
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true //nolint:gosec // catalog values fit in int64
	}
	return 0, false
}

func asFloat(v any) float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	if i, ok := asInt(v); ok {
		return float64(i)
	}
	return 0
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(timestampLayout)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

func mapKeys(m any) []string {
	rv := reflect.ValueOf(m)
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, fmt.Sprint(k.Interface()))
	}
	slices.Sort(keys)
	return keys
}

func sortedKeys(v Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
