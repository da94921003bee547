package migrate

import (
	"testing"

	"doandearn/internal/db"
)

func TestLoadMigrationsPerDialect(t *testing.T) {
	for _, d := range []db.Dialect{db.SQLite, db.Postgres} {
		ms, err := loadMigrations(d)
		if err != nil {
			t.Fatalf("%s: load: %v", d, err)
		}
		if len(ms) == 0 || ms[0].Version != 1 {
			t.Fatalf("%s: expected first migration version 1, got %+v", d, ms)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	for i := 0; i < 2; i++ {
		if err := Migrate(conn, dialect); err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
	}
	v, err := Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected schema version 1, got %d", v)
	}
	if _, err := conn.Exec(`INSERT INTO users(email,name,role,available_coin,created_at) VALUES ('a@x','a','worker',-1,'now')`); err == nil {
		t.Fatalf("expected negative balance to violate check constraint")
	}
}
