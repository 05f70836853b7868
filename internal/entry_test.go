package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(dir, "pinboard.db")
	cfg.Snapshots.ImportDir = filepath.Join(dir, "import")
	cfg.Snapshots.ExportDir = filepath.Join(dir, "export")
	return cfg
}

// seedImport writes a sample snapshot file named view.json without a viewId.
func seedImport(t *testing.T, cfg *Config, view string) {
	t.Helper()
	s := testutil.SampleSnapshot(t, "alice", "")
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Snapshots.ImportDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Snapshots.ImportDir, view+".json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func importedID(t *testing.T, cfg *Config, view string) string {
	t.Helper()
	b, err := openBackend(context.Background(), cfg, testutil.Logger())
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	defer b.Close()
	items, err := b.svc.List(context.Background(), snapshot.Filter{ViewID: view})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("imported %d snapshots for %s, want 1", len(items), view)
	}
	return items[0].ID
}

func TestOpenBackend_ImportsOnce(t *testing.T) {
	cfg := testConfig(t)
	seedImport(t, cfg, "q3")

	id := importedID(t, cfg, "q3")
	if id == "" {
		t.Fatal("empty id")
	}
	// A second start sees the same checksum and imports nothing new.
	if again := importedID(t, cfg, "q3"); again != id {
		t.Errorf("reimported: %s != %s", again, id)
	}
}

func TestExport_DefaultName(t *testing.T) {
	cfg := testConfig(t)
	seedImport(t, cfg, "q3")
	id := importedID(t, cfg, "q3")

	path, err := Export(context.Background(), id, "", 0, WithConfig(cfg), WithLogWriter(io.Discard))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != "export" {
		t.Errorf("path %s not under export dir", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "q3-v1-") {
		t.Errorf("name = %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("not a PNG")
	}
}

func TestExport_ExplicitPath(t *testing.T) {
	cfg := testConfig(t)
	seedImport(t, cfg, "ops")
	id := importedID(t, cfg, "ops")

	out := filepath.Join(t.TempDir(), "renders", "ops.png")
	path, err := Export(context.Background(), id, out, 0.5, WithConfig(cfg), WithLogWriter(io.Discard))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if path != out {
		t.Errorf("path = %s, want %s", path, out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestExport_UnknownSnapshot(t *testing.T) {
	cfg := testConfig(t)
	out := filepath.Join(t.TempDir(), "missing.png")

	_, err := Export(context.Background(), "nope", out, 0, WithConfig(cfg), WithLogWriter(io.Discard))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("failed export left a file behind")
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
	if err := RunMCP(context.Background()); err == nil {
		t.Fatal("RunMCP without config should fail")
	}
	if _, err := Export(context.Background(), "id", "", 0); err == nil {
		t.Fatal("Export without config should fail")
	}
}
