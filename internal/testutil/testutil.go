// Package testutil provides shared test helpers for setting up snapshot
// databases, file directories and sample playground states.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/playground"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/storage"
)

// TestDB creates a temporary SQLite snapshot database that is automatically
// cleaned up.
func TestDB(t *testing.T) *snapshot.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "pinboard-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := snapshot.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDir creates a temporary directory with a storage.Provider.
func TestDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SampleSnapshot builds a snapshot of a small playground: a note titled
// "Launch plan" connected to a "Revenue chart" element, and a second note
// implicitly linked to the same element.
func SampleSnapshot(t *testing.T, userID, viewID string) snapshot.Snapshot {
	t.Helper()
	pg := playground.New(
		playground.WithLogger(Logger()),
		playground.WithClock(func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }),
	)
	pg.Resize(4000, 3000)

	plan, err := pg.PlaceNote(grid.Cell{Row: 5, Col: 5})
	if err != nil {
		t.Fatal(err)
	}
	if err := pg.EditNote(plan.ID, "# Launch plan\nship it #q3"); err != nil {
		t.Fatal(err)
	}
	chart, err := pg.DropElement(models.ElementRef{
		ElementID:   "widget-revenue",
		ElementName: "Revenue chart",
		ElementType: "chart",
	}, grid.Cell{Row: 40, Col: 5})
	if err != nil {
		t.Fatal(err)
	}
	pg.Graph().Add(models.Connection{
		SourceID:       plan.ID,
		SourceType:     models.EntityNote,
		SourcePosition: models.EdgeBottom,
		TargetID:       chart.ID,
		TargetType:     models.EntityElement,
		TargetPosition: models.EdgeTop,
	})
	caption, err := pg.PlaceLinkedNote(grid.Cell{Row: 5, Col: 30}, chart.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := pg.EditNote(caption.ID, "Caption"); err != nil {
		t.Fatal(err)
	}

	snap, err := pg.Snapshot(playground.Meta{SessionID: "session-1", UserID: userID, ViewID: viewID})
	if err != nil {
		t.Fatal(err)
	}
	return snap
}
