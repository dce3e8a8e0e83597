package enum

import (
	"context"
	"sync"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// CombinedEnumerator runs multiple enumerators sequentially and deduplicates
// blobs by BlobID so each unique blob is yielded at most once.
type CombinedEnumerator struct {
	enumerators []Enumerator

	// OnDuplicate, when set, receives the provenance of every suppressed
	// blob so callers can still record where it was seen.
	OnDuplicate func(blobID types.BlobID, prov types.Provenance) error
}

// NewCombinedEnumerator creates a CombinedEnumerator that wraps the provided
// enumerators. They are run in order and duplicate blobs (same BlobID) are
// suppressed.
func NewCombinedEnumerator(enumerators ...Enumerator) *CombinedEnumerator {
	return &CombinedEnumerator{enumerators: enumerators}
}

// Enumerate runs each child enumerator in sequence, passing unique blobs to
// callback. A blob is a duplicate if any earlier enumerator, or an earlier
// file of the same one, already yielded its BlobID.
func (c *CombinedEnumerator) Enumerate(ctx context.Context, callback BlobFunc) error {
	var mu sync.Mutex
	seen := make(map[types.BlobID]bool)

	for _, e := range c.enumerators {
		err := e.Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
			mu.Lock()
			dup := seen[blobID]
			seen[blobID] = true
			mu.Unlock()

			if dup {
				if c.OnDuplicate != nil {
					return c.OnDuplicate(blobID, prov)
				}
				return nil
			}
			return callback(content, blobID, prov)
		})
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
