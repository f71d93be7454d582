// Package storage defines the vault file-system abstraction the indexer
// reads through. The host owns the files; this layer never writes.
package storage

import "github.com/starford/laguz/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every file under dir (relative to vault root).
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Metadata returns checksum, modification time, frontmatter, and tags
	// for the file at path.
	Metadata(path string) (*models.FileMetadata, error)
}
