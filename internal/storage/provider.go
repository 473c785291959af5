// Package storage defines the file abstraction behind persisted journal data.
package storage

// Provider is the interface for whole-file operations relative to a data root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	// A missing file yields an error matching os.ErrNotExist.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
	// Abs returns the absolute location of path.
	Abs(path string) (string, error)
}
