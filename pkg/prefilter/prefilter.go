package prefilter

import (
	"bytes"

	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/betwixt/pkg/types"
)

// Prefilter uses Aho-Corasick to skip rules whose delimiters are absent.
//
// A rule can only match when at least one identifier and at least one
// terminator occur in the content. Zero-width anchors are always present;
// anchored literals are checked at their end of the content.
type Prefilter struct {
	matcher  *ahocorasick.Matcher
	keywords []string // keyword at each index
	rules    []ruleNeeds
}

// ruleNeeds is what a rule requires from the content.
type ruleNeeds struct {
	rule        *types.Rule
	always      bool // both sides satisfied without looking at content
	never       bool // one side can never be satisfied
	identifiers side
	terminators side
}

type side struct {
	zeroWidth bool
	keywords  []int    // unanchored literals, as keyword indices
	prefixes  []string // start-anchored identifier literals
	suffixes  []string // end-anchored terminator literals
}

// New creates a prefilter from rules. Rule order is preserved by Filter.
func New(rules []*types.Rule) *Prefilter {
	pf := &Prefilter{}
	index := make(map[string]int)

	keyword := func(s string) int {
		if k, ok := index[s]; ok {
			return k
		}
		k := len(pf.keywords)
		index[s] = k
		pf.keywords = append(pf.keywords, s)
		return k
	}

	for _, rule := range rules {
		needs := ruleNeeds{rule: rule}

		for _, id := range rule.Identifiers {
			switch {
			case id.ZeroWidth():
				needs.identifiers.zeroWidth = true
			case id.Text == "":
				// never matches
			case id.Anchor == types.AnchorStart:
				needs.identifiers.prefixes = append(needs.identifiers.prefixes, id.Text)
			default:
				needs.identifiers.keywords = append(needs.identifiers.keywords, keyword(id.Text))
			}
		}
		for _, t := range rule.Terminators {
			switch {
			case t.ZeroWidth():
				needs.terminators.zeroWidth = true
			case t.Text == "":
			case t.Anchor == types.AnchorEnd:
				needs.terminators.suffixes = append(needs.terminators.suffixes, t.Text)
			default:
				needs.terminators.keywords = append(needs.terminators.keywords, keyword(t.Text))
			}
		}

		needs.always = needs.identifiers.zeroWidth && needs.terminators.zeroWidth
		needs.never = needs.identifiers.empty() || needs.terminators.empty()
		pf.rules = append(pf.rules, needs)
	}

	// Build Aho-Corasick matcher if we have keywords
	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}

	return pf
}

func (s side) empty() bool {
	return !s.zeroWidth && len(s.keywords) == 0 && len(s.prefixes) == 0 && len(s.suffixes) == 0
}

// Filter returns the rules that might match content, in their original order.
// It is safe for concurrent use.
func (pf *Prefilter) Filter(content []byte) []*types.Rule {
	var found []bool
	if pf.matcher != nil {
		found = make([]bool, len(pf.keywords))
		for _, hit := range pf.matcher.MatchThreadSafe(content) {
			found[hit] = true
		}
	}

	result := make([]*types.Rule, 0, len(pf.rules))
	for _, needs := range pf.rules {
		if needs.never {
			continue
		}
		if needs.always ||
			(needs.identifiers.present(content, found) && needs.terminators.present(content, found)) {
			result = append(result, needs.rule)
		}
	}
	return result
}

// Skipped returns the prefilter's rules that are not in kept, in order.
func (pf *Prefilter) Skipped(kept []*types.Rule) []*types.Rule {
	in := make(map[*types.Rule]bool, len(kept))
	for _, r := range kept {
		in[r] = true
	}
	var out []*types.Rule
	for _, needs := range pf.rules {
		if !in[needs.rule] {
			out = append(out, needs.rule)
		}
	}
	return out
}

func (s side) present(content []byte, found []bool) bool {
	if s.zeroWidth {
		return true
	}
	for _, k := range s.keywords {
		if found[k] {
			return true
		}
	}
	for _, p := range s.prefixes {
		if bytes.HasPrefix(content, []byte(p)) {
			return true
		}
	}
	for _, p := range s.suffixes {
		if bytes.HasSuffix(content, []byte(p)) {
			return true
		}
	}
	return false
}

// Keywords returns the distinct unanchored literals the automaton searches for.
func (pf *Prefilter) Keywords() []string {
	return append([]string(nil), pf.keywords...)
}
