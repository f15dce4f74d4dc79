package orm

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Direction selects which way Walk follows a self-join.
type Direction int

const (
	// Ancestors follows child -> parent links.
	Ancestors Direction = iota
	// Descendants follows parent -> child links.
	Descendants
)

func (d Direction) String() string {
	if d == Descendants {
		return "descendants"
	}
	return "ancestors"
}

// Levels holds the ids discovered by a walk, indexed by depth: Levels[0] are
// the direct parents (or children), Levels[1] the next generation, and so on.
type Levels [][]int64

// Flatten returns every id in depth order.
func (l Levels) Flatten() []int64 {
	var out []int64
	for _, level := range l {
		out = append(out, level...)
	}
	return out
}

// walk runs a breadth-first search from start over the self-join table.
// Every id is reported once, at the depth where it is first reached, so
// diamonds and cycles terminate. Each depth costs one query.
func walk(ctx context.Context, q Querier, sj *SelfJoin, start int64, dir Direction) (Levels, error) {
	from, to := sj.ChildField, sj.ParentField
	if dir == Descendants {
		from, to = to, from
	}

	visited := map[int64]bool{start: true}
	frontier := []int64{start}
	var levels Levels
	for len(frontier) > 0 {
		pairs, err := QueryJoinTable[int64, int64](ctx, q, sj.Table, from, to, frontier)
		if err != nil {
			return nil, errors.Wrapf(err, "walk %s", dir)
		}
		next := GroupBySource(pairs)

		var level []int64
		for _, id := range frontier {
			for _, t := range next[id] {
				if visited[t] {
					continue
				}
				visited[t] = true
				level = append(level, t)
			}
		}
		if len(level) == 0 {
			break
		}
		levels = append(levels, level)
		frontier = level
	}
	return levels, nil
}
