package datastore

import (
	"github.com/praetorian-inc/betwixt/pkg/matcher"
	"github.com/praetorian-inc/betwixt/pkg/store"
	"github.com/praetorian-inc/betwixt/pkg/types"
)

// Results returns the datastore's store. With contextLines >= 0 and stored
// blobs, match snippets are rebuilt from the blobs with that many context
// lines instead of the ones captured at scan time.
func (d *Datastore) Results(contextLines int) store.Store {
	if contextLines < 0 || d.Blobs == nil {
		return d.Store
	}
	return &snippetStore{Store: d.Store, blobs: d.Blobs, lines: contextLines}
}

// snippetStore rewrites the snippets of the matches it returns.
type snippetStore struct {
	store.Store
	blobs *BlobStore
	lines int
}

func (s *snippetStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	matches, err := s.Store.GetMatches(blobID)
	if err != nil {
		return nil, err
	}
	s.resnippet(matches)
	return matches, nil
}

func (s *snippetStore) GetAllMatches() ([]*types.Match, error) {
	matches, err := s.Store.GetAllMatches()
	if err != nil {
		return nil, err
	}
	s.resnippet(matches)
	return matches, nil
}

// resnippet keeps the stored snippet of matches whose blob was not stored.
func (s *snippetStore) resnippet(matches []*types.Match) {
	contents := make(map[types.BlobID][]byte)
	for _, m := range matches {
		content, ok := contents[m.BlobID]
		if !ok {
			content, _ = s.blobs.Get(m.BlobID)
			contents[m.BlobID] = content
		}
		if content == nil {
			continue
		}
		enc := m.Enclosing.Offset
		m.Snippet = matcher.Snippet(content, int(enc.Start), int(enc.End), s.lines)
	}
}
