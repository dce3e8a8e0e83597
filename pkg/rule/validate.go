package rule

import (
	"fmt"
	"slices"

	"github.com/praetorian-inc/betwixt/pkg/scan"
	"github.com/praetorian-inc/betwixt/pkg/types"
)

// ValidateRule checks rule consistency and required fields, then runs the
// rule against its examples.
// Returns error if rule is invalid.
func ValidateRule(r *types.Rule) error {
	if err := ValidateRuleStructure(r); err != nil {
		return err
	}
	return CheckExamples(r)
}

// ValidateRuleStructure checks everything ValidateRule does except examples.
func ValidateRuleStructure(r *types.Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}

	// Check required fields
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required for rule %s", r.ID)
	}
	if len(r.Identifiers) == 0 {
		return fmt.Errorf("rule %s needs at least one identifier", r.ID)
	}
	if len(r.Terminators) == 0 {
		return fmt.Errorf("rule %s needs at least one terminator", r.ID)
	}

	for _, id := range r.Identifiers {
		switch {
		case id.Anchor == types.AnchorEnd:
			return fmt.Errorf("rule %s: identifier %s cannot be anchored to the end", r.ID, id)
		case id.Text == "" && id.Anchor != types.AnchorStart:
			return fmt.Errorf("rule %s: empty identifier must be anchored to the start", r.ID)
		}
	}
	for _, t := range r.Terminators {
		switch {
		case t.Anchor == types.AnchorStart:
			return fmt.Errorf("rule %s: terminator %s cannot be anchored to the start", r.ID, t)
		case t.Text == "" && t.Anchor != types.AnchorEnd:
			return fmt.Errorf("rule %s: empty terminator must be anchored to the end", r.ID)
		}
	}

	// Validate StructuralID matches computed value
	expectedID := r.ComputeStructuralID()
	if r.StructuralID != "" && r.StructuralID != expectedID {
		return fmt.Errorf("rule %s has inconsistent StructuralID: got %s, expected %s",
			r.ID, r.StructuralID, expectedID)
	}

	return nil
}

// CheckExamples runs the rule over each example and negative example.
func CheckExamples(r *types.Rule) error {
	for i, ex := range r.Examples {
		got := Extract(r, ex.Input)
		if !sameStrings(got, ex.Expect) {
			return fmt.Errorf("rule %s: example %d %q: got %q, expected %q",
				r.ID, i+1, ex.Input, got, ex.Expect)
		}
	}
	for i, input := range r.NegativeExamples {
		if got := Extract(r, input); len(got) > 0 {
			return fmt.Errorf("rule %s: negative example %d %q matched %q",
				r.ID, i+1, input, got)
		}
	}
	return nil
}

func sameStrings(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}

// Matcher builds the scan matcher for r.
func Matcher(r *types.Rule, handler scan.Handler) scan.Matcher {
	mult := scan.AllowMultiple
	if r.SingleShot {
		mult = scan.SingleShot
	}
	return scan.Matcher{
		Identifiers:  r.Identifiers,
		Terminators:  r.Terminators,
		Multiplicity: mult,
		Handler:      handler,
	}
}

// Extract returns the substrings r extracts from input, in order.
func Extract(r *types.Rule, input string) []string {
	var out []string
	// the handler never fails
	_ = scan.Scan(input, []scan.Matcher{Matcher(r, func(h scan.Hit) error {
		out = append(out, h.Content)
		return nil
	})})
	return out
}

// ValidateRuleset checks ruleset consistency and required fields.
// knownRuleIDs is a map of valid rule IDs for reference checking.
// Returns error if ruleset is invalid.
func ValidateRuleset(rs *types.Ruleset, knownRuleIDs map[string]bool) error {
	if rs == nil {
		return fmt.Errorf("ruleset is nil")
	}

	// Check required fields
	if rs.ID == "" {
		return fmt.Errorf("ruleset ID is required")
	}
	if rs.Name == "" {
		return fmt.Errorf("ruleset name is required")
	}
	if len(rs.RuleIDs) == 0 {
		return fmt.Errorf("ruleset %s must reference at least one rule", rs.ID)
	}

	// Validate all referenced rule IDs exist
	if knownRuleIDs != nil {
		for _, ruleID := range rs.RuleIDs {
			if !knownRuleIDs[ruleID] {
				return fmt.Errorf("ruleset %s references unknown rule ID: %s", rs.ID, ruleID)
			}
		}
	}

	// Check for duplicate rule IDs
	seen := make(map[string]bool)
	for _, ruleID := range rs.RuleIDs {
		if seen[ruleID] {
			return fmt.Errorf("ruleset %s contains duplicate rule ID: %s", rs.ID, ruleID)
		}
		seen[ruleID] = true
	}

	return nil
}

// SelectRuleset returns the rules named by rs, in the ruleset's order.
// Unknown rule IDs are an error.
func SelectRuleset(rules []*types.Rule, rs *types.Ruleset) ([]*types.Rule, error) {
	byID := make(map[string]*types.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	selected := make([]*types.Rule, 0, len(rs.RuleIDs))
	for _, id := range rs.RuleIDs {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("ruleset %s references unknown rule ID: %s", rs.ID, id)
		}
		selected = append(selected, r)
	}
	return selected, nil
}
