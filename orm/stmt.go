package orm

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Stmt is a ready-to-execute statement. Statements with Named set use
// ":name" placeholders; otherwise SQL uses "?" and Args is positional.
type Stmt struct {
	SQL   string
	Args  []any
	Named map[string]any
}

// Bind converts the statement to the dialect's positional placeholders and
// returns the matching argument list.
func (s Stmt) Bind(d Dialect) (string, []any, error) {
	if s.Named == nil {
		return rewritePlaceholders(d, s.SQL), s.Args, nil
	}

	var b strings.Builder
	b.Grow(len(s.SQL))
	args := make([]any, 0, len(s.Named))
	idx := 1
	for i := 0; i < len(s.SQL); i++ {
		c := s.SQL[i]
		if c != ':' || i+1 >= len(s.SQL) || !isIdentStart(s.SQL[i+1]) {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(s.SQL) && isIdentPart(s.SQL[j]) {
			j++
		}
		name := s.SQL[i+1 : j]
		v, ok := s.Named[name]
		if !ok {
			return "", nil, errors.Newf("orm: no value bound for :%s", name)
		}
		b.WriteString(d.Placeholder(idx))
		idx++
		args = append(args, v)
		i = j - 1
	}
	return b.String(), args, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// rewritePlaceholders converts ? to dialect-specific placeholders. Both
// shipped dialects use "?", so this only rewrites for a custom Dialect.
func rewritePlaceholders(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	idx := 1
	for i := range len(query) {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
