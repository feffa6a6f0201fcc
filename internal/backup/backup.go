// Package backup writes JSON snapshots of the order book. Incremental
// snapshots fire after every mutation and never block or fail the write that
// triggered them; full snapshots are taken on demand from the CLI.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/facumancuso/minoil/internal/domain"
	"github.com/facumancuso/minoil/internal/repo"
)

const DefaultKeep = 30

type Scheduler struct {
	Dir  string
	Repo repo.Repo
	Log  zerolog.Logger
	Now  func() time.Time
}

type incrementalSnapshot struct {
	Collection string           `json:"collection"`
	DocumentID string           `json:"document_id"`
	TakenAt    time.Time        `json:"taken_at"`
	Order      domain.WorkOrder `json:"order"`
}

type fullSnapshot struct {
	TakenAt time.Time          `json:"taken_at"`
	Orders  []domain.WorkOrder `json:"orders"`
}

func (s Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ScheduleIncremental snapshots one document in the background. Errors are
// logged and dropped; the triggering write has already committed.
func (s Scheduler) ScheduleIncremental(collection, documentID string) {
	go func() {
		if err := s.writeIncremental(collection, documentID); err != nil {
			s.Log.Error().Err(err).
				Str("collection", collection).
				Str("document_id", documentID).
				Msg("incremental backup failed")
			return
		}
		s.Log.Debug().
			Str("collection", collection).
			Str("document_id", documentID).
			Msg("incremental backup written")
	}()
}

func (s Scheduler) writeIncremental(collection, documentID string) error {
	o, err := s.Repo.GetOrder(context.Background(), documentID)
	if err != nil {
		return err
	}
	return s.writeOrderSnapshot(collection, o)
}

// WriteOrderSnapshot writes an incremental snapshot of an already-loaded
// order, synchronously. Used before destructive operations.
func (s Scheduler) WriteOrderSnapshot(o domain.WorkOrder) error {
	return s.writeOrderSnapshot("work_orders", o)
}

func (s Scheduler) writeOrderSnapshot(collection string, o domain.WorkOrder) error {
	at := s.now()
	snap := incrementalSnapshot{
		Collection: collection,
		DocumentID: o.ID,
		TakenAt:    at,
		Order:      o,
	}
	name := fmt.Sprintf("incremental-%s-%s.json", collection, at.UTC().Format("20060102T150405.000000000"))
	return s.writeFile(name, snap)
}

// CreateFull snapshots every order into one file and returns its path.
func (s Scheduler) CreateFull(ctx context.Context) (string, error) {
	orders, err := s.Repo.ListOrders(ctx)
	if err != nil {
		return "", err
	}
	at := s.now()
	snap := fullSnapshot{TakenAt: at, Orders: orders}
	name := fmt.Sprintf("full-%s.json", at.UTC().Format("20060102T150405"))
	if err := s.writeFile(name, snap); err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, name), nil
}

func (s Scheduler) writeFile(name string, v any) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, name), data, 0o644)
}

// Entry describes one snapshot file on disk.
type Entry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// List returns snapshot files, newest first.
func (s Scheduler) List() ([]Entry, error) {
	files, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var res []Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			return nil, err
		}
		res = append(res, Entry{Name: f.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ModTime.After(res[j].ModTime) })
	return res, nil
}

// CleanOld deletes all but the newest keep snapshots and reports how many
// were removed. keep <= 0 falls back to DefaultKeep.
func (s Scheduler) CleanOld(keep int) (int, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	entries, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for i, e := range entries {
		if i < keep {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, e.Name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
