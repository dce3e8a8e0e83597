package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Match is one extracted region.
//
// Location covers only the content between identifier and terminator.
// Enclosing covers identifier, content and terminator, so slicing the blob
// with Enclosing.Offset yields Identifier.Text + Content + Terminator.Text.
type Match struct {
	BlobID       BlobID
	StructuralID string // SHA-1(rule_structural_id + '\0' + blob_id + '\0' + start + '\0' + end)
	FindingID    string // SHA-1(rule_structural_id + '\0' + json(groups))
	RuleID       string // e.g., "betwixt.html.comment"
	RuleName     string // e.g., "HTML Comment"
	Content      string
	Location     Location
	Enclosing    Location
	Identifier   Identifier
	Terminator   Terminator
	Groups       [][]byte // Groups[0] is the content
	Snippet      Snippet
}

// ComputeStructuralID computes the location-based unique ID.
// Format: SHA-1(rule_structural_id + '\0' + blob_id + '\0' + start + '\0' + end)
// where start/end are the content offsets.
func (m *Match) ComputeStructuralID(ruleStructuralID string) string {
	h := sha1.New()

	h.Write([]byte(ruleStructuralID))
	h.Write([]byte{0})

	h.Write(m.BlobID[:])
	h.Write([]byte{0})

	h.Write(strconv.AppendInt(nil, m.Location.Offset.Start, 10))
	h.Write([]byte{0})

	h.Write(strconv.AppendInt(nil, m.Location.Offset.End, 10))

	return hex.EncodeToString(h.Sum(nil))
}
