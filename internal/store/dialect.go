package store

import (
	"strconv"
	"strings"

	"github.com/dukerupert/shelflife/internal/database"
)

// bind rewrites ? placeholders to $n for postgres. Queries in this package
// never contain a literal question mark.
func bind(d database.Dialect, query string) string {
	if d != database.Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
