package orm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// JoinPair is one (source, target) row of a link table.
type JoinPair[S, T comparable] struct {
	Source S
	Target T
}

// QueryJoinTable reads the (sourceCol, targetCol) rows of table whose source
// is one of sourceIDs. Rows with a NULL target are skipped. Pairs are ordered
// by source then target.
func QueryJoinTable[S, T comparable](
	ctx context.Context, q Querier, table, sourceCol, targetCol string, sourceIDs []S,
) ([]JoinPair[S, T], error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}

	qt := quoter{q.dialect()}
	src, dst := qt.qi(sourceCol), qt.qi(targetCol)
	named := make(map[string]any, len(sourceIDs))
	ph := make([]string, len(sourceIDs))
	for i, id := range sourceIDs {
		name := fmt.Sprintf("src_%d", i)
		named[name] = id
		ph[i] = ":" + name
	}
	stmt := Stmt{
		SQL: fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s) AND %s IS NOT NULL ORDER BY %s, %s",
			src, dst, qt.qi(table), src, strings.Join(ph, ", "), dst, src, dst),
		Named: named,
	}

	rows, err := query(ctx, q, stmt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pairs []JoinPair[S, T]
	for rows.Next() {
		var p JoinPair[S, T]
		if err := rows.Scan(&p.Source, &p.Target); err != nil {
			return nil, errors.Wrapf(err, "scan %s", table)
		}
		pairs = append(pairs, p)
	}
	return pairs, errors.Wrapf(rows.Err(), "iterate %s", table)
}

// GroupBySource maps each source to its targets, keeping pair order.
func GroupBySource[S, T comparable](pairs []JoinPair[S, T]) map[S][]T {
	m := make(map[S][]T)
	for _, p := range pairs {
		m[p.Source] = append(m[p.Source], p.Target)
	}
	return m
}
