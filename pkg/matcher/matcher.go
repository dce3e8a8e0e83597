package matcher

import "github.com/praetorian-inc/betwixt/pkg/types"

// Matcher scans content for rule matches.
type Matcher interface {
	// Match scans content against all loaded rules.
	// Returns matches with offsets, content and snippets.
	Match(content []byte) ([]*types.Match, error)

	// MatchWithBlobID scans content with a known BlobID.
	MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error)

	// MatchDetailed scans content and reports per-rule statistics.
	MatchDetailed(content []byte, blobID types.BlobID) (*MatchResult, error)

	// Close releases resources.
	Close() error
}

// Config for matcher initialization.
type Config struct {
	// Rules to load into the matcher
	Rules []*types.Rule

	// ContextLines is the number of lines captured before and after each match
	ContextLines int

	// MaxMatchesPerBlob limits matches returned per blob (0 = unlimited)
	MaxMatchesPerBlob int

	// DisablePrefilter runs every rule on every blob
	DisablePrefilter bool

	// Dedupe selects how repeated matches within a blob are collapsed
	Dedupe DedupeMode
}

// New creates a new Matcher with the given config.
func New(cfg Config) (Matcher, error) {
	return NewDelimiter(cfg)
}
