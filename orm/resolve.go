package orm

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// query binds s for q's dialect and runs it.
func query(ctx context.Context, q Querier, s Stmt) (*sql.Rows, error) {
	text, args, err := s.Bind(q.dialect())
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %q", text)
	}
	return rows, nil
}

// exec binds s for q's dialect and executes it.
func exec(ctx context.Context, q Querier, s Stmt) (sql.Result, error) {
	text, args, err := s.Bind(q.dialect())
	if err != nil {
		return nil, err
	}
	res, err := q.ExecContext(ctx, text, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "exec %q", text)
	}
	return res, nil
}

// eachRow scans every row positionally into normalized values and passes
// them to fn. rows is always closed.
func eachRow(rows *sql.Rows, fn func(vals []any) error) error {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return errors.Wrap(err, "columns")
	}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return errors.Wrap(err, "scan")
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	return errors.Wrap(rows.Err(), "iterate rows")
}

// fetch reads the records matching f, resolving the named associations.
// Validation has already happened.
func fetch(ctx context.Context, q Querier, m *Meta, f Filter, assocs []string) ([]*Record, error) {
	if len(assocs) == 0 {
		return fetchPlain(ctx, q, m, f)
	}
	return fetchWithAssociations(ctx, q, m, f, assocs)
}

func fetchPlain(ctx context.Context, q Querier, m *Meta, f Filter) ([]*Record, error) {
	stmt, err := BuildSelect(q.dialect(), m, f)
	if err != nil {
		return nil, err
	}
	rows, err := query(ctx, q, stmt)
	if err != nil {
		return nil, err
	}
	var out []*Record
	err = eachRow(rows, func(vals []any) error {
		out = append(out, newRecord(m, vals))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// fetchWithAssociations runs one LEFT JOIN query per association and folds
// the rows into records keyed by id, in order of first appearance.
func fetchWithAssociations(ctx context.Context, q Querier, m *Meta, f Filter, assocs []string) ([]*Record, error) {
	byID := make(map[int64]*Record)
	var order []*Record
	width := len(m.columns())

	for _, name := range distinct(assocs) {
		a := m.Association(name)
		stmt, layout := buildAssocSelect(q.dialect(), m, a, f)
		rows, err := query(ctx, q, stmt)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s.%s", m.Kind, name)
		}
		err = eachRow(rows, func(vals []any) error {
			id := toInt64(vals[0])
			rec, ok := byID[id]
			if !ok {
				rec = newRecord(m, vals[:width])
				byID[id] = rec
				order = append(order, rec)
			}
			av := rec.assoc(a)

			off := width
			assocVals := vals[off : off+len(layout.assocCols)]
			off += len(layout.assocCols)
			var label any
			var refVals []any
			if layout.hasLabel {
				label = vals[off]
				off++
				refVals = vals[off : off+len(layout.refCols)]
			}

			rawCols, rawVals := layout.assocCols, assocVals
			if len(layout.refCols) > 0 {
				rawCols, rawVals = layout.refCols, refVals
			}
			// A LEFT JOIN that matched nothing yields only NULLs.
			if allNull(rawVals) {
				return nil
			}
			row := make(Values, len(rawCols))
			for i, c := range rawCols {
				row[c] = rawVals[i]
			}
			av.add(row, label)
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s.%s", m.Kind, name)
		}
	}
	return order, nil
}

func allNull(vals []any) bool {
	for _, v := range vals {
		if v != nil {
			return false
		}
	}
	return true
}

// distinct drops repeated association names, keeping first occurrences.
func distinct(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
