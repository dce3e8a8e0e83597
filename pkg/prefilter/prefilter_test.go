package prefilter

import (
	"testing"

	"github.com/praetorian-inc/betwixt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(rules []*types.Rule) []string {
	var out []string
	for _, r := range rules {
		out = append(out, r.ID)
	}
	return out
}

func commentRules() []*types.Rule {
	return []*types.Rule{
		{
			ID:          "html.comment",
			Identifiers: types.Idents("<!--"),
			Terminators: types.Terms("-->"),
		},
		{
			ID:          "c.comment",
			Identifiers: types.Idents("/*"),
			Terminators: types.Terms("*/"),
		},
	}
}

func TestPrefilter_RulesWithMatchingDelimiters(t *testing.T) {
	pf := New(commentRules())

	filtered := pf.Filter([]byte("<p>hi</p> <!-- note -->"))

	require.Len(t, filtered, 1)
	assert.Equal(t, "html.comment", filtered[0].ID)
}

func TestPrefilter_IdentifierWithoutTerminator(t *testing.T) {
	pf := New(commentRules())

	filtered := pf.Filter([]byte("<!-- unterminated"))
	assert.Empty(t, filtered)
}

func TestPrefilter_RulesWithNonMatchingDelimiters(t *testing.T) {
	pf := New(commentRules())

	filtered := pf.Filter([]byte("no delimiters here"))
	assert.Empty(t, filtered)
}

func TestPrefilter_PreservesRuleOrder(t *testing.T) {
	rules := commentRules()
	pf := New(rules)

	filtered := pf.Filter([]byte("/* a */ <!-- b -->"))
	assert.Equal(t, []string{"html.comment", "c.comment"}, ids(filtered))
}

func TestPrefilter_AnyIdentifierAnyTerminator(t *testing.T) {
	pf := New([]*types.Rule{{
		ID:          "template",
		Identifiers: types.Idents("{{", "{%"),
		Terminators: types.Terms("}}", "%}"),
	}})

	assert.Len(t, pf.Filter([]byte("{% if x }}")), 1)
	assert.Empty(t, pf.Filter([]byte("{% if x")))
}

func TestPrefilter_Anchors(t *testing.T) {
	tests := []struct {
		name    string
		rule    *types.Rule
		content string
		want    bool
	}{
		{
			name: "exact start and end always survive",
			rule: &types.Rule{
				ID:          "whole",
				Identifiers: []types.Identifier{types.ExactStart()},
				Terminators: []types.Terminator{types.ExactEnd()},
			},
			content: "anything",
			want:    true,
		},
		{
			name: "exact start needs the terminator",
			rule: &types.Rule{
				ID:          "first-line",
				Identifiers: []types.Identifier{types.ExactStart()},
				Terminators: types.Terms("\n"),
			},
			content: "single line",
			want:    false,
		},
		{
			name: "start anchored literal present at offset 0",
			rule: &types.Rule{
				ID:          "shebang",
				Identifiers: []types.Identifier{types.StartIdent("#!")},
				Terminators: types.Terms("\n"),
			},
			content: "#!/bin/sh\n",
			want:    true,
		},
		{
			name: "start anchored literal present elsewhere",
			rule: &types.Rule{
				ID:          "shebang",
				Identifiers: []types.Identifier{types.StartIdent("#!")},
				Terminators: types.Terms("\n"),
			},
			content: "x\n#!/bin/sh\n",
			want:    false,
		},
		{
			name: "end anchored literal",
			rule: &types.Rule{
				ID:          "tail",
				Identifiers: types.Idents("("),
				Terminators: []types.Terminator{types.EndTerm(")")},
			},
			content: "f(a)b",
			want:    false,
		},
		{
			name: "empty unanchored patterns never survive",
			rule: &types.Rule{
				ID:          "empty",
				Identifiers: types.Idents(""),
				Terminators: []types.Terminator{types.ExactEnd()},
			},
			content: "anything",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf := New([]*types.Rule{tt.rule})
			filtered := pf.Filter([]byte(tt.content))
			if tt.want {
				assert.Len(t, filtered, 1)
			} else {
				assert.Empty(t, filtered)
			}
		})
	}
}

func TestPrefilter_SharedKeywords(t *testing.T) {
	pf := New([]*types.Rule{
		{ID: "quotes", Identifiers: types.Idents(`"`), Terminators: types.Terms(`"`)},
		{ID: "attr", Identifiers: types.Idents(`="`), Terminators: types.Terms(`"`)},
	})

	assert.ElementsMatch(t, []string{`"`, `="`}, pf.Keywords())
	assert.Equal(t, []string{"quotes"}, ids(pf.Filter([]byte(`say "hi"`))))
	assert.Equal(t, []string{"quotes", "attr"}, ids(pf.Filter([]byte(`a="b"`))))
}

func TestPrefilter_Skipped(t *testing.T) {
	rules := commentRules()
	pf := New(rules)

	kept := pf.Filter([]byte("/* a */"))
	skipped := pf.Skipped(kept)
	assert.Equal(t, []string{"html.comment"}, ids(skipped))
}

func TestPrefilter_Empty(t *testing.T) {
	pf := New(nil)
	assert.Empty(t, pf.Filter([]byte("content")))
	assert.Empty(t, pf.Keywords())
}

func BenchmarkPrefilter(b *testing.B) {
	pf := New(commentRules())
	content := make([]byte, 0, 64*1024)
	for len(content) < 64*1024 {
		content = append(content, "lorem ipsum dolor sit amet /* x */ "...)
	}
	b.SetBytes(int64(len(content)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pf.Filter(content)
	}
}
