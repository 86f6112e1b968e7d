package postgres

import (
	"strings"
	"testing"
)

func TestExtractGooseUp(t *testing.T) {
	up, err := extractGooseUp("-- +goose Up\nCREATE TABLE t (id int);\n-- +goose Down\nDROP TABLE t;\n")
	if err != nil {
		t.Fatalf("extractGooseUp error: %v", err)
	}
	if up != "CREATE TABLE t (id int);" {
		t.Fatalf("up = %q", up)
	}

	up, err = extractGooseUp("-- +goose Up\nCREATE TABLE t (id int);\n")
	if err != nil {
		t.Fatalf("extractGooseUp without down error: %v", err)
	}
	if up != "CREATE TABLE t (id int);" {
		t.Fatalf("up = %q", up)
	}

	if _, err := extractGooseUp("CREATE TABLE t (id int);"); err == nil {
		t.Fatalf("missing up marker accepted")
	}
}

func TestSplitSQLStatements(t *testing.T) {
	got := splitSQLStatements("CREATE TABLE a (id int);\n\nCREATE TABLE b (id int);\n")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id int)" || got[1] != "CREATE TABLE b (id int)" {
		t.Fatalf("got = %q", got)
	}
}

func TestSplitSQLStatements_DollarQuotedBody(t *testing.T) {
	sql := `CREATE TABLE a (id int);
DO $$
BEGIN
    IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'c') THEN
        ALTER TABLE a ADD CONSTRAINT c CHECK (id > 0);
    END IF;
END;
$$;
CREATE INDEX a_idx ON a (id);`

	got := splitSQLStatements(sql)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id int)" {
		t.Fatalf("got[0] = %q", got[0])
	}
	// The DO block keeps its internal semicolons.
	if !strings.Contains(got[1], "ADD CONSTRAINT c") || !strings.Contains(got[1], "END;") {
		t.Fatalf("got[1] = %q", got[1])
	}
	if got[2] != "CREATE INDEX a_idx ON a (id)" {
		t.Fatalf("got[2] = %q", got[2])
	}
}

func TestSplitSQLStatements_TaggedDollarQuote(t *testing.T) {
	sql := `CREATE FUNCTION f() RETURNS int AS $fn$
BEGIN
    RETURN 1;
END;
$fn$ LANGUAGE plpgsql;
SELECT 1;`

	got := splitSQLStatements(sql)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %q", len(got), got)
	}
	if !strings.Contains(got[0], "RETURN 1;") || !strings.Contains(got[0], "$fn$ LANGUAGE plpgsql") {
		t.Fatalf("got[0] = %q", got[0])
	}
	if got[1] != "SELECT 1" {
		t.Fatalf("got[1] = %q", got[1])
	}
}
