package rule

import (
	"strings"
	"testing"

	"github.com/praetorian-inc/betwixt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule() *types.Rule {
	rule := &types.Rule{
		ID:          "test.rule.1",
		Name:        "Test Rule",
		Identifiers: types.Idents("<"),
		Terminators: types.Terms(">"),
	}
	rule.StructuralID = rule.ComputeStructuralID()
	return rule
}

func TestValidateRule_Valid(t *testing.T) {
	err := ValidateRule(validRule())
	if err != nil {
		t.Errorf("ValidateRule failed for valid rule: %v", err)
	}
}

func TestValidateRule_NilRule(t *testing.T) {
	err := ValidateRule(nil)
	if err == nil {
		t.Error("expected error for nil rule")
	}
	if !strings.Contains(err.Error(), "nil") {
		t.Errorf("expected 'nil' in error message, got: %v", err)
	}
}

func TestValidateRule_Structure(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *types.Rule)
		wantErr string
	}{
		{
			name:    "missing ID",
			mutate:  func(r *types.Rule) { r.ID = "" },
			wantErr: "ID",
		},
		{
			name:    "missing name",
			mutate:  func(r *types.Rule) { r.Name = "" },
			wantErr: "name",
		},
		{
			name:    "no identifiers",
			mutate:  func(r *types.Rule) { r.Identifiers = nil },
			wantErr: "identifier",
		},
		{
			name:    "no terminators",
			mutate:  func(r *types.Rule) { r.Terminators = nil },
			wantErr: "terminator",
		},
		{
			name:    "empty unanchored identifier",
			mutate:  func(r *types.Rule) { r.Identifiers = types.Idents("") },
			wantErr: "empty identifier",
		},
		{
			name:    "empty unanchored terminator",
			mutate:  func(r *types.Rule) { r.Terminators = types.Terms("") },
			wantErr: "empty terminator",
		},
		{
			name: "identifier anchored to the end",
			mutate: func(r *types.Rule) {
				r.Identifiers = []types.Identifier{{Text: "<", Anchor: types.AnchorEnd}}
			},
			wantErr: "anchored to the end",
		},
		{
			name: "terminator anchored to the start",
			mutate: func(r *types.Rule) {
				r.Terminators = []types.Terminator{{Text: ">", Anchor: types.AnchorStart}}
			},
			wantErr: "anchored to the start",
		},
		{
			name:    "stale structural ID",
			mutate:  func(r *types.Rule) { r.Terminators = types.Terms("]") },
			wantErr: "inconsistent StructuralID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.mutate(rule)

			err := ValidateRule(rule)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRule_AnchoredPatterns(t *testing.T) {
	rule := &types.Rule{
		ID:          "test.anchored",
		Name:        "Anchored",
		Identifiers: []types.Identifier{types.ExactStart(), types.StartIdent("#!")},
		Terminators: []types.Terminator{types.ExactEnd(), types.EndTerm(";")},
	}
	assert.NoError(t, ValidateRule(rule))
}

func TestValidateRule_EmptyStructuralIDAllowed(t *testing.T) {
	rule := validRule()
	rule.StructuralID = ""
	assert.NoError(t, ValidateRule(rule))
}

func TestCheckExamples(t *testing.T) {
	rule := validRule()
	rule.Examples = []types.Example{
		{Input: "<a> <b>", Expect: []string{"a", "b"}},
		{Input: "<>", Expect: nil},
	}
	rule.NegativeExamples = []string{"no markers", "<unterminated"}
	require.NoError(t, CheckExamples(rule))

	rule.Examples = append(rule.Examples, types.Example{Input: "<c>", Expect: []string{"d"}})
	err := CheckExamples(rule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "example 3")
	assert.Contains(t, err.Error(), rule.ID)
}

func TestCheckExamples_Negative(t *testing.T) {
	rule := validRule()
	rule.NegativeExamples = []string{"plain", "<oops>"}

	err := CheckExamples(rule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative example 2")
}

func TestCheckExamples_SingleShot(t *testing.T) {
	rule := validRule()
	rule.SingleShot = true
	rule.Examples = []types.Example{{Input: "<a><b>", Expect: []string{"a"}}}
	assert.NoError(t, CheckExamples(rule))
}

func TestMatcher(t *testing.T) {
	rule := validRule()
	m := Matcher(rule, nil)
	assert.Equal(t, rule.Identifiers, m.Identifiers)
	assert.Equal(t, rule.Terminators, m.Terminators)
	assert.Nil(t, m.Handler)

	rule.SingleShot = true
	assert.Equal(t, Matcher(rule, nil).Multiplicity.String(), "single")
}

func TestValidateRuleset_Valid(t *testing.T) {
	rs := &types.Ruleset{
		ID:      "rs.test",
		Name:    "Test Ruleset",
		RuleIDs: []string{"test.rule.1", "test.rule.2"},
	}
	known := map[string]bool{"test.rule.1": true, "test.rule.2": true}

	assert.NoError(t, ValidateRuleset(rs, known))
	assert.NoError(t, ValidateRuleset(rs, nil))
}

func TestValidateRuleset_Invalid(t *testing.T) {
	known := map[string]bool{"test.rule.1": true}

	tests := []struct {
		name    string
		rs      *types.Ruleset
		wantErr string
	}{
		{"nil", nil, "nil"},
		{"missing ID", &types.Ruleset{Name: "x", RuleIDs: []string{"test.rule.1"}}, "ID"},
		{"missing name", &types.Ruleset{ID: "rs", RuleIDs: []string{"test.rule.1"}}, "name"},
		{"no rules", &types.Ruleset{ID: "rs", Name: "x"}, "at least one"},
		{"unknown rule", &types.Ruleset{ID: "rs", Name: "x", RuleIDs: []string{"nope"}}, "unknown"},
		{"duplicate", &types.Ruleset{ID: "rs", Name: "x", RuleIDs: []string{"test.rule.1", "test.rule.1"}}, "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuleset(tt.rs, known)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSelectRuleset(t *testing.T) {
	a := &types.Rule{ID: "a"}
	b := &types.Rule{ID: "b"}
	c := &types.Rule{ID: "c"}

	selected, err := SelectRuleset([]*types.Rule{a, b, c}, &types.Ruleset{ID: "rs", RuleIDs: []string{"c", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []*types.Rule{c, a}, selected)

	_, err = SelectRuleset([]*types.Rule{a}, &types.Ruleset{ID: "rs", RuleIDs: []string{"z"}})
	assert.Error(t, err)
}
