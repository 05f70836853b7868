package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/pinboard/internal/checksum"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte(`{"notes":[]}`)
	if err := s.Write("board.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("board.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("team/q1/board.json", []byte("{}")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Read("team/q1/board.json"); err != nil {
		t.Fatalf("Read: %v", err)
	}
}

func TestWriteEmptyPath(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("", []byte("x")); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestList_FiltersByExtension(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a.json", []byte("a"))
	_ = s.Write("sub/b.json", []byte("b"))
	_ = s.Write("board.png", []byte("png"))

	items, err := s.List("", ".json")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Path == "sub/b.json" && it.Checksum != checksum.Sum([]byte("b")) {
			t.Errorf("checksum = %q", it.Checksum)
		}
	}

	all, err := s.List("", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)
	for _, p := range []string{"../../etc/passwd", "../outside.json", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("atomic.json", []byte("original"))
	if err := s.Write("atomic.json", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "pinboard-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
