package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/betwixt/pkg/scanner"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "scan" | "scan_batch" | "extract" | "findings" | "close"
	Payload json.RawMessage `json:"payload"`
}

// ScanPayload is the payload for "scan" requests
type ScanPayload struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// ScanBatchPayload is the payload for "scan_batch" requests
type ScanBatchPayload struct {
	Items []scanner.ContentItem `json:"items"`
}

// ExtractPayload is the payload for "extract" requests
type ExtractPayload = scanner.ExtractRequest

// FindingData is one entry of a "findings" response
type FindingData struct {
	ID      string `json:"id"`
	RuleID  string `json:"rule_id"`
	Content string `json:"content"`
	Matches int    `json:"matches"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | request type | "decode" | "unknown"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
	Rules   int    `json:"rules"`
}
