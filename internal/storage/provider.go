// Package storage is the directory abstraction used for snapshot imports and
// rendered exports.
package storage

import "time"

// FileMeta describes one file under a storage root.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider lists, reads and atomically writes files under a root directory.
// All paths are relative to the root.
type Provider interface {
	// List returns metadata for every file under dir whose name ends in ext.
	// An empty ext matches every file.
	List(dir, ext string) ([]FileMeta, error)
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
	Root() string
}
