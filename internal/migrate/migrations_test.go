package migrate_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/facumancuso/minoil/internal/db"
	"github.com/facumancuso/minoil/internal/migrate"
)

func TestMigrateJournalsAndIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := migrate.Migrate(conn, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v < 1 {
		t.Fatalf("schema version = %d, want at least 1", v)
	}

	var journaled int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&journaled); err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if journaled != v {
		t.Fatalf("journal rows = %d, want one per applied migration (%d)", journaled, v)
	}

	// A second run must apply nothing and leave the journal alone.
	if err := migrate.Migrate(conn, zerolog.Nop()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var again int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&again); err != nil {
		t.Fatal(err)
	}
	if again != journaled {
		t.Fatalf("journal grew from %d to %d on a no-op run", journaled, again)
	}

	// The order tables are usable after migration.
	if _, err := conn.Exec(`SELECT id FROM work_orders LIMIT 1`); err != nil {
		t.Fatalf("work_orders missing: %v", err)
	}
	if _, err := conn.Exec(`SELECT id FROM work_order_notes LIMIT 1`); err != nil {
		t.Fatalf("work_order_notes missing: %v", err)
	}
}

func TestVersionEmptyJournal(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(`DELETE FROM schema_migrations`); err != nil {
		t.Fatal(err)
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version on empty journal: %v", err)
	}
	if v != 0 {
		t.Fatalf("version = %d, want 0 for an empty journal", v)
	}
}
