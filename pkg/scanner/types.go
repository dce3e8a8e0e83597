package scanner

import "github.com/praetorian-inc/betwixt/pkg/types"

// ContentItem represents a content item to scan
type ContentItem struct {
	Source   string            `json:"source"`   // e.g., "page:index.html", "stdin"
	Content  string            `json:"content"`  // the actual content to scan
	Metadata map[string]string `json:"metadata"` // optional metadata, kept with the provenance
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string         `json:"source"`
	Matches []*types.Match `json:"matches"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
}

// ExtractRequest describes an ad-hoc extraction with caller-supplied delimiters.
type ExtractRequest struct {
	Content     string   `json:"content"`
	Identifiers []string `json:"identifiers"`
	Terminators []string `json:"terminators"`
	StartAnchor bool     `json:"start_anchor"` // identifiers only match at offset 0
	EndAnchor   bool     `json:"end_anchor"`   // terminators only match at the end of content
	First       bool     `json:"first"`        // stop after the first substring
}

// ExtractRange is one extracted substring with its byte ranges.
type ExtractRange struct {
	Content        string `json:"content"`
	Start          int64  `json:"start"`
	End            int64  `json:"end"`
	EnclosingStart int64  `json:"enclosing_start"`
	EnclosingEnd   int64  `json:"enclosing_end"`
}

// ExtractResult holds the substrings of an extraction in discovery order.
type ExtractResult struct {
	Substrings []string       `json:"substrings"`
	Ranges     []ExtractRange `json:"ranges"`
}

// DebugLogger receives diagnostic output from long-lived components
type DebugLogger interface {
	Log(format string, args ...interface{})
}

// NoopLogger is a no-op logger
type NoopLogger struct{}

func (NoopLogger) Log(format string, args ...interface{}) {}
