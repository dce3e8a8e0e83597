package scan

import "github.com/praetorian-inc/betwixt/pkg/types"

// SubstringsBetween returns every substring of input found between
// identifier and terminator, in discovery order.
func SubstringsBetween(input, identifier, terminator string) []string {
	return SubstringsBetweenAny(input, types.Idents(identifier), types.Terms(terminator))
}

// SubstringsBetweenAny is SubstringsBetween for sets of patterns.
// Any identifier may be closed by any terminator.
func SubstringsBetweenAny(input string, identifiers []types.Identifier, terminators []types.Terminator) []string {
	var out []string
	collect(input, identifiers, terminators, AllowMultiple, func(h Hit) {
		out = append(out, h.Content)
	})
	return out
}

// FirstSubstringBetween returns the substring of the first region closed by
// a terminator. It reports false when that region is empty, or when no
// region is closed. The scan stops at the first terminator.
func FirstSubstringBetween(input string, identifiers []types.Identifier, terminators []types.Terminator) (string, bool) {
	var (
		out   string
		found bool
	)
	collect(input, identifiers, terminators, SingleShot, func(h Hit) {
		out, found = h.Content, true
	})
	return out, found
}

// RangesBetween returns the full hits, including content and enclosing
// ranges, in discovery order.
func RangesBetween(input string, identifiers []types.Identifier, terminators []types.Terminator) []Hit {
	var out []Hit
	collect(input, identifiers, terminators, AllowMultiple, func(h Hit) {
		out = append(out, h)
	})
	return out
}

func collect(input string, identifiers []types.Identifier, terminators []types.Terminator, mult Multiplicity, fn func(Hit)) {
	// the handler never fails, so neither does Scan
	_ = Scan(input, []Matcher{{
		Identifiers:  identifiers,
		Terminators:  terminators,
		Multiplicity: mult,
		Handler: func(h Hit) error {
			fn(h)
			return nil
		},
	}})
}
