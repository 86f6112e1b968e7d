package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

// ApplyMigrations replays the goose "Up" section of every .sql file in dir, in
// filename order. Applied filenames are recorded in schema_migrations, so
// running against an already-migrated database skips every file and exits
// clean. Used by the migrate command and by the integration tests, which
// replay the same files into a throwaway schema.
func ApplyMigrations(ctx context.Context, exec rawExecutor, dir string) error {
	if err := ensureVersionTable(ctx, exec); err != nil {
		return err
	}
	applied, err := appliedMigrations(ctx, exec)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if applied[name] {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("migration %s: %w", name, err)
			}
		}
		if _, err := exec.NewRaw("INSERT INTO schema_migrations (filename) VALUES (?)", name).Exec(ctx); err != nil {
			return fmt.Errorf("migration %s: record: %w", name, err)
		}
	}

	return nil
}

func ensureVersionTable(ctx context.Context, exec rawExecutor) error {
	_, err := exec.NewRaw(
		"CREATE TABLE IF NOT EXISTS schema_migrations (filename text PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())",
	).Exec(ctx)
	return err
}

func appliedMigrations(ctx context.Context, exec rawExecutor) (map[string]bool, error) {
	var names []string
	if err := exec.NewRaw("SELECT filename FROM schema_migrations").Scan(ctx, &names); err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}

func extractGooseUp(sql string) (string, error) {
	const (
		upMarker   = "-- +goose Up"
		downMarker = "-- +goose Down"
	)

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

// splitSQLStatements splits on top-level semicolons. Semicolons inside a
// dollar-quoted body (DO $$ ... $$, $tag$ ... $tag$) do not terminate a
// statement.
func splitSQLStatements(sql string) []string {
	var out []string
	var b strings.Builder
	var tag string

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if tag == "" {
			if ch == ';' {
				flush()
				continue
			}
			if ch == '$' {
				if t, ok := dollarTag(sql[i:]); ok {
					tag = t
					b.WriteString(t)
					i += len(t) - 1
					continue
				}
			}
		} else if ch == '$' && strings.HasPrefix(sql[i:], tag) {
			b.WriteString(tag)
			i += len(tag) - 1
			tag = ""
			continue
		}
		b.WriteByte(ch)
	}
	flush()
	return out
}

// dollarTag reads a dollar-quote delimiter ($$ or $tag$) at the start of s.
func dollarTag(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1], true
		}
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", false
		}
	}
	return "", false
}
