package types

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
)

// Finding groups matches with same (rule, content) for deduplication.
type Finding struct {
	ID      string // SHA-1(rule_structural_id + '\0' + json(groups))
	RuleID  string
	Groups  [][]byte
	Matches []*Match // matches belonging to this finding
}

// Content returns the extracted text shared by the finding's matches.
func (f *Finding) Content() string {
	if len(f.Groups) == 0 {
		return ""
	}
	return string(f.Groups[0])
}

// ComputeFindingID computes content-based finding ID.
// Format: SHA-1(rule_structural_id + '\0' + json(groups))
func ComputeFindingID(ruleStructuralID string, groups [][]byte) string {
	h := sha1.New()

	h.Write([]byte(ruleStructuralID))
	h.Write([]byte{0})

	groupsJSON, _ := json.Marshal(groups)
	h.Write(groupsJSON)

	return hex.EncodeToString(h.Sum(nil))
}
