package content

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE authors (id TEXT, name TEXT, email TEXT, posts INTEGER)`,
		`INSERT INTO authors VALUES ('ann', 'Ann', 'ann@example.com', 3)`,
		`INSERT INTO authors VALUES ('bo', 'Bo', 'bo@example.com', 1)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func TestLoadSQL(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	var authors []Author
	if err := LoadSQL(ctx, db, `SELECT id, name, email FROM authors ORDER BY id`, &authors); err != nil {
		t.Fatal(err)
	}
	if len(authors) != 2 || authors[0].ID != "ann" || authors[1].Email != "bo@example.com" {
		t.Errorf("authors = %+v", authors)
	}

	var rows []map[string]any
	if err := LoadSQL(ctx, db, `SELECT name, posts FROM authors WHERE posts > ?`, &rows, 2); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Ann" || rows[0]["posts"] != int64(3) {
		t.Errorf("rows = %#v", rows)
	}

	var one Author
	if err := LoadSQL(ctx, db, `SELECT * FROM authors WHERE id = ?`, &one, "bo"); err != nil {
		t.Fatal(err)
	}
	if one.Name != "Bo" {
		t.Errorf("one = %+v", one)
	}

	err := LoadSQL(ctx, db, `SELECT * FROM authors WHERE id = ?`, &one, "nobody")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}

	var none []Author
	if err := LoadSQL(ctx, db, `SELECT * FROM authors WHERE 0`, &none); err != nil || len(none) != 0 {
		t.Errorf("none = %v, %v", none, err)
	}

	if err := LoadSQL(ctx, db, `SELECT * FROM missing`, &none); err == nil || !strings.Contains(err.Error(), "query") {
		t.Errorf("bad query err = %v", err)
	}
}

func TestOpenDB(t *testing.T) {
	ctx := context.Background()
	if _, err := OpenDB(ctx, "oracle", "x"); err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("err = %v", err)
	}

	path := filepath.Join(t.TempDir(), "site.db")
	db, err := OpenDB(ctx, "sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE pages (slug TEXT)`); err != nil {
		t.Fatal(err)
	}
}
