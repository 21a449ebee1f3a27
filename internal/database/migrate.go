package database

import (
	"context"
	"embed"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

//go:embed schema/*.sql
var schemas embed.FS

// Migrate creates any missing tables and indexes.  Every statement is
// idempotent, so it is safe to run on each start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	name := "schema/mysql.sql"
	switch db.DriverName() {
	case DriverPostgres:
		name = "schema/postgres.sql"
	case DriverSQLite:
		name = "schema/sqlite.sql"
	}
	raw, err := schemas.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "read schema")
	}
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate: %s", firstLine(stmt))
		}
	}
	return nil
}

// splitStatements cuts a script on semicolons that end a line and drops
// blank and comment-only chunks.
func splitStatements(script string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
