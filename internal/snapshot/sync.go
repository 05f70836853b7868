package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/pinboard/internal/checksum"
	"github.com/starford/pinboard/internal/storage"
)

// ImportExt is the extension of snapshot files picked up from the import
// directory.
const ImportExt = ".json"

// Sync imports every snapshot file under the provider root whose checksum
// differs from the last recorded import. Malformed files are logged and
// skipped. It returns the snapshots created.
func Sync(ctx context.Context, db *DB, files storage.Provider, logger *slog.Logger) ([]Snapshot, error) {
	metas, err := files.List("", ImportExt)
	if err != nil {
		return nil, err
	}
	seen, err := db.ImportChecksums()
	if err != nil {
		return nil, err
	}

	var created []Snapshot
	for _, m := range metas {
		if seen[m.Path] == m.Checksum {
			continue
		}
		s, err := importFile(ctx, db, files, m.Path)
		if err != nil {
			logger.Warn("sync: import failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: imported", slog.String("path", m.Path), slog.String("snapshot_id", s.ID))
		created = append(created, s)
	}
	return created, nil
}

// importFile creates a snapshot from one file and records the import. A file
// without a viewId takes its base name as the view.
func importFile(ctx context.Context, db *DB, files storage.Provider, p string) (Snapshot, error) {
	data, err := files.Read(p)
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: parse %s: %w", p, err)
	}
	if s.ViewID == "" {
		s.ViewID = strings.TrimSuffix(path.Base(p), ImportExt)
	}
	if s.UserID == "" {
		s.UserID = "import"
	}
	s.ID = ""
	s.Version = 0
	if err := s.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: validate %s: %w", p, err)
	}
	res, err := db.Create(ctx, s)
	if err != nil {
		return Snapshot{}, err
	}
	if err := db.RecordImport(p, checksum.Sum(data), res.ID); err != nil {
		return Snapshot{}, err
	}
	s.ID = res.ID
	s.Version = res.Version
	return s, nil
}
