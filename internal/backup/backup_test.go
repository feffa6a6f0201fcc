package backup_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/facumancuso/minoil/internal/backup"
)

func writeSnapshot(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	s := backup.Scheduler{Dir: dir, Log: zerolog.Nop()}
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	writeSnapshot(t, dir, "full-old.json", base)
	writeSnapshot(t, dir, "full-new.json", base.AddDate(0, 0, 2))
	writeSnapshot(t, dir, "notes.txt", base.AddDate(0, 0, 5)) // ignored

	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 json files", len(entries))
	}
	if entries[0].Name != "full-new.json" {
		t.Fatalf("order = %s first, want newest", entries[0].Name)
	}
}

func TestListMissingDir(t *testing.T) {
	s := backup.Scheduler{Dir: filepath.Join(t.TempDir(), "absent"), Log: zerolog.Nop()}
	entries, err := s.List()
	if err != nil || entries != nil {
		t.Fatalf("missing dir should list nothing, got %v, %v", entries, err)
	}
}

func TestCleanOldKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	s := backup.Scheduler{Dir: dir, Log: zerolog.Nop()}
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		writeSnapshot(t, dir, fmt.Sprintf("snap-%c.json", 'a'+i), base.AddDate(0, 0, i))
	}
	removed, err := s.CleanOld(2)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name != "snap-e.json" || entries[1].Name != "snap-d.json" {
		t.Fatalf("kept = %+v, want the two newest", entries)
	}
}
