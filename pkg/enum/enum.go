package enum

import (
	"context"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// BlobFunc receives one enumerated blob. Enumerators may call it from
// several goroutines at once.
type BlobFunc func(content []byte, blobID types.BlobID, prov types.Provenance) error

// Enumerator discovers content to scan from a source.
type Enumerator interface {
	// Enumerate yields blobs from the source.
	// The callback receives blob content, its ID, and provenance information.
	Enumerate(ctx context.Context, callback BlobFunc) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration: a directory, a single file,
	// or a git repository for GitEnumerator.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// Workers is the number of parallel file readers (0 = one per CPU).
	Workers int

	// ExtractArchives selects the document and archive formats whose text
	// is extracted and scanned instead of the raw file (comma-separated
	// list such as "docx,pdf", or "all"). Empty disables extraction.
	ExtractArchives string
}
