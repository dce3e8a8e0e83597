package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRule_ComputeStructuralID(t *testing.T) {
	rule := Rule{
		ID:          "betwixt.html.comment",
		Name:        "HTML Comment",
		Identifiers: Idents("<!--"),
		Terminators: Terms("-->"),
	}

	structuralID := rule.ComputeStructuralID()
	assert.Len(t, structuralID, 40)

	// metadata does not contribute
	renamed := Rule{
		ID:          "other.id",
		Name:        "Other Name",
		Identifiers: Idents("<!--"),
		Terminators: Terms("-->"),
	}
	assert.Equal(t, structuralID, renamed.ComputeStructuralID())

	tests := []struct {
		name string
		rule Rule
	}{
		{"different terminator", Rule{Identifiers: Idents("<!--"), Terminators: Terms("->")}},
		{"anchored identifier", Rule{Identifiers: []Identifier{StartIdent("<!--")}, Terminators: Terms("-->")}},
		{"single shot", Rule{Identifiers: Idents("<!--"), Terminators: Terms("-->"), SingleShot: true}},
		{"swapped sides", Rule{Identifiers: Idents("-->"), Terminators: Terms("<!--")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, structuralID, tt.rule.ComputeStructuralID())
		})
	}
}

func TestRule_Keywords(t *testing.T) {
	rule := Rule{
		Identifiers: []Identifier{Ident("{{"), ExactStart(), Ident("{%")},
		Terminators: []Terminator{Term("}}"), ExactEnd(), Term("{{")},
	}
	assert.Equal(t, []string{"{{", "{%", "}}"}, rule.Keywords())
}

func TestRuleset(t *testing.T) {
	ruleset := Ruleset{
		ID:      "markup",
		Name:    "Markup",
		RuleIDs: []string{"betwixt.html.comment", "betwixt.xml.cdata"},
	}
	assert.Len(t, ruleset.RuleIDs, 2)
}
