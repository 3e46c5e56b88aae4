package database

import (
	"context"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Execer runs a single statement.  ExecFunc adapts *sql.DB and pgxpool.Pool,
// whose Exec signatures differ.
type Execer interface {
	Exec(ctx context.Context, stmt string) error
}

// ExecFunc adapts a function to Execer.
type ExecFunc func(ctx context.Context, stmt string) error

func (f ExecFunc) Exec(ctx context.Context, stmt string) error { return f(ctx, stmt) }

// Schema returns the statements of the bundled schema for driver (mysql or
// postgres).  Every statement is idempotent.
func Schema(driver string) ([]string, error) {
	raw, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return nil, fmt.Errorf("no schema for driver %q: %w", driver, err)
	}
	return splitStatements(string(raw)), nil
}

// ApplySchema executes the bundled schema for driver statement by statement.
func ApplySchema(ctx context.Context, driver string, db Execer) error {
	stmts, err := Schema(driver)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// splitStatements drops "--" comment lines and splits on semicolons.  The
// bundled files never put a semicolon inside a literal.
func splitStatements(src string) []string {
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
