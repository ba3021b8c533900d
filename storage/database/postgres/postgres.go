// Package postgresrepos implements the core repositories on PostgreSQL
// with sqlx and squirrel.
package postgresrepos

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/kazihub/kazi/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func orderClause(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return fallback
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return strings.Join(parts, ", ")
}
