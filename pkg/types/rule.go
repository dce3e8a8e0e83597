package types

import (
	"crypto/sha1"
	"encoding/hex"
)

// Rule is a named identifier/terminator set with metadata.
type Rule struct {
	ID               string       // e.g., "betwixt.html.comment"
	Name             string       // human-readable name
	Identifiers      []Identifier // any one opens a region
	Terminators      []Terminator // any one closes it
	SingleShot       bool         // stop at the first terminated region per blob
	StructuralID     string       // SHA-1 of the patterns (computed)
	Description      string       // optional
	Examples         []Example    // inputs with their expected substrings
	NegativeExamples []string     // inputs that must not match
	References       []string     // documentation URLs
	Categories       []string     // classification tags
}

// Example pairs an input with the substrings a rule must extract from it.
type Example struct {
	Input  string   `json:"input"`
	Expect []string `json:"expect"`
}

// ComputeStructuralID computes SHA-1 over the canonical pattern encoding.
// Metadata (name, description, examples) does not contribute, so two rules
// that extract exactly the same regions share a structural ID.
func (r *Rule) ComputeStructuralID() string {
	h := sha1.New()
	for _, id := range r.Identifiers {
		h.Write([]byte{'i', byte('0' + id.Anchor)})
		h.Write([]byte(id.Text))
		h.Write([]byte{0})
	}
	for _, t := range r.Terminators {
		h.Write([]byte{'t', byte('0' + t.Anchor)})
		h.Write([]byte(t.Text))
		h.Write([]byte{0})
	}
	if r.SingleShot {
		h.Write([]byte("single"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Keywords returns the distinct non-empty pattern literals of the rule.
func (r *Rule) Keywords() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, id := range r.Identifiers {
		add(id.Text)
	}
	for _, t := range r.Terminators {
		add(t.Text)
	}
	return out
}

// Ruleset groups rules together.
type Ruleset struct {
	ID          string
	Name        string
	Description string
	RuleIDs     []string
}
