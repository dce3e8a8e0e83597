// Package datastore lays out a scan datastore directory: the results
// database and, optionally, the content of every scanned blob.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/betwixt/pkg/store"
)

const (
	// DatabaseName is the results database inside a datastore directory.
	DatabaseName = "datastore.db"

	blobsDir = "blobs"
)

// Datastore is an open results database with its optional blob storage.
type Datastore struct {
	Path  string      // directory, or the database file for plain databases
	Store store.Store // results
	Blobs *BlobStore  // nil unless blob contents are stored
}

// Options configures datastore behavior.
type Options struct {
	StoreBlobs bool // keep the content of scanned blobs (--store-blobs)
}

// Open opens or creates a datastore directory.
// An existing blobs directory is opened even without StoreBlobs.
func Open(path string, opts Options) (*Datastore, error) {
	if path == "" {
		return nil, fmt.Errorf("datastore path is required")
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating datastore directory: %w", err)
	}

	blobsPath := filepath.Join(path, blobsDir)
	if opts.StoreBlobs {
		if err := os.MkdirAll(blobsPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating blobs directory: %w", err)
		}
	}

	// keep scan results out of the repositories they describe
	gitignorePath := filepath.Join(path, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("*\n"), 0o644); err != nil {
		return nil, fmt.Errorf("writing .gitignore: %w", err)
	}

	s, err := store.New(store.Config{Path: filepath.Join(path, DatabaseName)})
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	ds := &Datastore{Path: path, Store: s}
	if info, err := os.Stat(blobsPath); err == nil && info.IsDir() {
		ds.Blobs = &BlobStore{Root: blobsPath}
	}
	return ds, nil
}

// OpenPath opens path as a datastore directory when it is one, or when
// blobs are to be stored; otherwise path is a plain results database.
func OpenPath(path string, opts Options) (*Datastore, error) {
	if info, err := os.Stat(path); (err == nil && info.IsDir()) || opts.StoreBlobs {
		return Open(path, opts)
	}

	s, err := store.New(store.Config{Path: path})
	if err != nil {
		return nil, err
	}
	return &Datastore{Path: path, Store: s}, nil
}

// Close closes the datastore and releases resources.
func (d *Datastore) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}
