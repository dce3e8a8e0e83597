package scanner

import (
	"fmt"

	"github.com/praetorian-inc/betwixt/pkg/rule"
	"github.com/praetorian-inc/betwixt/pkg/scan"
	"github.com/praetorian-inc/betwixt/pkg/types"
)

// Patterns turns the delimiters of req into engine patterns. With
// StartAnchor and no identifiers the region starts at offset 0; with
// EndAnchor and no terminators it runs to the end of the content.
func (req ExtractRequest) Patterns() ([]types.Identifier, []types.Terminator, error) {
	var identifiers []types.Identifier
	var terminators []types.Terminator

	for _, text := range req.Identifiers {
		id := types.Ident(text)
		if req.StartAnchor {
			id = types.StartIdent(text)
		}
		identifiers = append(identifiers, id)
	}
	if len(identifiers) == 0 && req.StartAnchor {
		identifiers = append(identifiers, types.ExactStart())
	}

	for _, text := range req.Terminators {
		term := types.Term(text)
		if req.EndAnchor {
			term = types.EndTerm(text)
		}
		terminators = append(terminators, term)
	}
	if len(terminators) == 0 && req.EndAnchor {
		terminators = append(terminators, types.ExactEnd())
	}

	// checked the same way as a rule so the errors read the same
	adhoc := &types.Rule{ID: "extract", Name: "extract", Identifiers: identifiers, Terminators: terminators}
	if err := rule.ValidateRuleStructure(adhoc); err != nil {
		return nil, nil, err
	}
	return identifiers, terminators, nil
}

// Extract runs one ad-hoc extraction over req.Content.
func Extract(req ExtractRequest) (*ExtractResult, error) {
	identifiers, terminators, err := req.Patterns()
	if err != nil {
		return nil, fmt.Errorf("invalid delimiters: %w", err)
	}

	result := &ExtractResult{Substrings: []string{}, Ranges: []ExtractRange{}}
	m := scan.Matcher{
		Identifiers: identifiers,
		Terminators: terminators,
		Handler: func(h scan.Hit) error {
			result.Substrings = append(result.Substrings, h.Content)
			result.Ranges = append(result.Ranges, ExtractRange{
				Content:        h.Content,
				Start:          h.Span.Start,
				End:            h.Span.End,
				EnclosingStart: h.Enclosing.Start,
				EnclosingEnd:   h.Enclosing.End,
			})
			return nil
		},
	}
	if req.First {
		m.Multiplicity = scan.SingleShot
	}

	if err := scan.Scan(req.Content, []scan.Matcher{m}); err != nil {
		return nil, err
	}
	return result, nil
}
