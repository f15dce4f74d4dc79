package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// CamelToSnake converts a CamelCase string to snake_case.
// Consecutive uppercase letters (acronyms) are kept together:
// "CVList" → "cv_list", "LibraryPool" → "library_pool", "InsCert" → "ins_cert".
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			next := rune(0)
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && unicode.IsLower(next)) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// EntityKey folds an entity kind or table name, singular or plural, to one
// lookup key: "LibraryPool", "library_pools" and "library-pool" all become
// "library_pool". Only the last word is singularized.
func EntityKey(name string) string {
	s := CamelToSnake(strings.TrimSpace(name))
	s = strings.ReplaceAll(strings.ToLower(s), "-", "_")
	words := strings.Split(s, "_")
	last := len(words) - 1
	words[last] = inflection.Singular(words[last])
	return strings.Join(words, "_")
}
