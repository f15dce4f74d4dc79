package catalog

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/mickamy/labcat/orm"
)

// attributeKeys must be present on every attribute value.
var attributeKeys = []string{"attr_name", "value", "unit"}

// linkIDs writes one row per id, pairing the entity (ownCol) with the
// supplied id (otherCol). A single id is accepted as well as a list.
func linkIDs(ownCol, otherCol string) orm.LoaderFunc {
	return func(_ context.Context, _ orm.Lookup, parentID int64, value any) ([]orm.Values, error) {
		items := asList(value)
		rows := make([]orm.Values, 0, len(items))
		for _, id := range items {
			rows = append(rows, orm.Values{ownCol: parentID, otherCol: id})
		}
		return rows, nil
	}
}

// linkNames is linkIDs for values given by name: each name is resolved to
// the id of the table row whose by column equals it.
func linkNames(ownCol, otherCol, table, by string) orm.LoaderFunc {
	return func(ctx context.Context, lk orm.Lookup, parentID int64, value any) ([]orm.Values, error) {
		items := asList(value)
		rows := make([]orm.Values, 0, len(items))
		for _, name := range items {
			id, err := lk.LookupID(ctx, table, by, name)
			if err != nil {
				return nil, err
			}
			rows = append(rows, orm.Values{ownCol: parentID, otherCol: id})
		}
		return rows, nil
	}
}

// attributes converts {attr_name, value, unit[, source_value]} maps into
// attribute rows, resolving attr_name against the attributes table.
func attributes(ownCol string) orm.LoaderFunc {
	return func(ctx context.Context, lk orm.Lookup, parentID int64, value any) ([]orm.Values, error) {
		items := asList(value)
		rows := make([]orm.Values, 0, len(items))
		for _, item := range items {
			attr, err := asValues(item, attributeKeys)
			if err != nil {
				return nil, err
			}
			id, err := lk.LookupID(ctx, "attributes", "attr_name", attr["attr_name"])
			if err != nil {
				return nil, err
			}
			rows = append(rows, orm.Values{
				"value":         attr["value"],
				"unit":          attr["unit"],
				"attributes_id": id,
				"source_value":  attr["source_value"],
				ownCol:          parentID,
			})
		}
		return rows, nil
	}
}

// records passes caller maps through as rows after checking the required
// keys, setting ownCol to the entity id.
func records(ownCol string, required ...string) orm.LoaderFunc {
	return func(_ context.Context, _ orm.Lookup, parentID int64, value any) ([]orm.Values, error) {
		items := asList(value)
		rows := make([]orm.Values, 0, len(items))
		for _, item := range items {
			row, err := asValues(item, required)
			if err != nil {
				return nil, err
			}
			row[ownCol] = parentID
			rows = append(rows, row)
		}
		return rows, nil
	}
}

// asList returns the elements of a slice, or v itself as a one-element list.
func asList(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case string, []byte:
		return []any{v}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// asValues copies a string-keyed map and checks that it has every required key.
func asValues(v any, required []string) (orm.Values, error) {
	out := orm.Values{}
	switch x := v.(type) {
	case orm.Values:
		for k, val := range x {
			out[k] = val
		}
	case map[string]any:
		for k, val := range x {
			out[k] = val
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return nil, errors.Wrapf(orm.ErrInvalidArgument, "expected a map with keys %v, got %T", required, v)
		}
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
	}
	for _, k := range required {
		if _, ok := out[k]; !ok {
			return nil, errors.Wrapf(orm.ErrInvalidArgument, "values require the keys %v, got %v", required, v)
		}
	}
	return out, nil
}
