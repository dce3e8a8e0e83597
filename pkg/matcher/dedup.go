package matcher

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// DedupeMode controls how matches are deduplicated.
type DedupeMode int

const (
	// DedupeByLocation deduplicates by exact location (rule + blob + offsets).
	// Rules with identical delimiters report a region once.
	DedupeByLocation DedupeMode = iota

	// DedupeByContent deduplicates by extracted text (rule + content).
	// The same text appearing multiple times in a blob counts once.
	DedupeByContent

	// DedupeOff keeps every match.
	DedupeOff
)

// String returns "location", "content" or "off".
func (m DedupeMode) String() string {
	switch m {
	case DedupeByContent:
		return "content"
	case DedupeOff:
		return "off"
	default:
		return "location"
	}
}

// ParseDedupeMode parses the textual form produced by String.
func ParseDedupeMode(s string) (DedupeMode, bool) {
	switch s {
	case "", "location":
		return DedupeByLocation, true
	case "content":
		return DedupeByContent, true
	case "off", "none":
		return DedupeOff, true
	default:
		return DedupeByLocation, false
	}
}

// Deduplicator removes duplicate matches based on configurable criteria.
// It is not safe for concurrent use; matchers create one per blob.
type Deduplicator struct {
	seen map[string]bool
	mode DedupeMode
}

// NewDeduplicator creates a new deduplicator with location-based deduplication.
func NewDeduplicator() *Deduplicator {
	return NewDeduplicatorMode(DedupeByLocation)
}

// NewContentDeduplicator creates a deduplicator that deduplicates by content.
func NewContentDeduplicator() *Deduplicator {
	return NewDeduplicatorMode(DedupeByContent)
}

// NewDeduplicatorMode creates a deduplicator for mode.
func NewDeduplicatorMode(mode DedupeMode) *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]bool),
		mode: mode,
	}
}

// SetMode changes the deduplication mode.
func (d *Deduplicator) SetMode(mode DedupeMode) {
	d.mode = mode
}

// IsDuplicate returns true if match was already seen.
func (d *Deduplicator) IsDuplicate(m *types.Match) bool {
	if d.mode == DedupeOff {
		return false
	}
	key := d.computeKey(m)
	return d.seen[key]
}

// Add marks a match as seen.
func (d *Deduplicator) Add(m *types.Match) {
	if d.mode == DedupeOff {
		return
	}
	key := d.computeKey(m)
	d.seen[key] = true
}

// Observe adds m and reports whether it is new.
func (d *Deduplicator) Observe(m *types.Match) bool {
	if d.IsDuplicate(m) {
		return false
	}
	d.Add(m)
	return true
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

// computeKey generates the deduplication key based on mode.
func (d *Deduplicator) computeKey(m *types.Match) string {
	switch d.mode {
	case DedupeByContent:
		// rule + extracted groups; the snippet would include context
		h := sha256.New()
		h.Write([]byte(m.RuleID))
		h.Write([]byte{0})
		for _, group := range m.Groups {
			h.Write(group)
			h.Write([]byte{0})
		}
		return hex.EncodeToString(h.Sum(nil))
	default:
		// Dedupe by structural ID (location-based)
		return m.StructuralID
	}
}
