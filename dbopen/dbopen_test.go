package dbopen_test

import (
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/quotedoc/dbopen"
)

func TestOpen(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var sync int
	if err := db.QueryRow("PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatal(err)
	}
	if sync != 1 { // NORMAL
		t.Fatalf("synchronous = %d, want 1", sync)
	}
}

func TestOpenWithSchema(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`))
	if _, err := db.Exec(`INSERT INTO notes (body) VALUES ('x')`); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}

func TestOpenBadSchema(t *testing.T) {
	if _, err := dbopen.Open(":memory:", dbopen.WithSchema("NOT SQL")); err == nil {
		t.Fatal("Open accepted a broken schema")
	}
}

func TestOpenWithSQLTrace(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSQLTrace(),
		dbopen.WithSchema(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`))
	if _, err := db.Exec(`INSERT INTO notes (body) VALUES ('traced')`); err != nil {
		t.Fatalf("insert through tracing driver: %v", err)
	}
	var body string
	if err := db.QueryRow(`SELECT body FROM notes`).Scan(&body); err != nil {
		t.Fatal(err)
	}
	if body != "traced" {
		t.Fatalf("body = %q", body)
	}
}

func TestIsBusy(t *testing.T) {
	if dbopen.IsBusy(nil) {
		t.Error("nil is not busy")
	}
	if !dbopen.IsBusy(errors.New("stmt: database is locked")) {
		t.Error("locked error not recognised")
	}
	if dbopen.IsBusy(errors.New("no such table")) {
		t.Error("unrelated error reported busy")
	}
}
