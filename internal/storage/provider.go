// Package storage defines the vault file-system abstraction.
package storage

import "time"

// File describes one note file in the vault.
type File struct {
	// Name is the file name relative to the vault root.
	Name      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for vault file operations. Names are relative
// to the vault root.
type Provider interface {
	// List returns every .md file under dir.
	List(dir string) ([]File, error)
	Read(name string) ([]byte, error)
	// Write replaces the file atomically.
	Write(name string, content []byte) error
	Delete(name string) error
	Move(oldName, newName string) error
	// Root returns the absolute vault directory.
	Root() string
}
