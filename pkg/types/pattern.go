package types

import (
	"fmt"
	"strconv"
)

// Anchor pins a pattern to one end of the input.
type Anchor int

const (
	// AnchorNone lets a pattern match anywhere.
	AnchorNone Anchor = iota
	// AnchorStart restricts an identifier to input offset 0.
	AnchorStart
	// AnchorEnd restricts a terminator to the last byte of the input.
	AnchorEnd
)

// String returns "start", "end" or "" for AnchorNone.
func (a Anchor) String() string {
	switch a {
	case AnchorStart:
		return "start"
	case AnchorEnd:
		return "end"
	default:
		return ""
	}
}

// ParseAnchor parses the textual form produced by String.
// "none" and "anywhere" are accepted as AnchorNone.
func ParseAnchor(s string) (Anchor, error) {
	switch s {
	case "", "none", "anywhere":
		return AnchorNone, nil
	case "start":
		return AnchorStart, nil
	case "end":
		return AnchorEnd, nil
	default:
		return AnchorNone, fmt.Errorf("unknown anchor %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Anchor) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Anchor) UnmarshalText(text []byte) error {
	parsed, err := ParseAnchor(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Identifier is the literal that opens a match region.
//
// An empty Text only means something together with AnchorStart: it is the
// zero-width "exact start" identifier and the region begins at offset 0.
// An empty unanchored identifier never matches. AnchorEnd is ignored on
// identifiers.
type Identifier struct {
	Text   string `json:"text"`
	Anchor Anchor `json:"anchor,omitempty"`
}

// Terminator is the literal that closes a match region.
//
// An empty Text only means something together with AnchorEnd: it is the
// zero-width "exact end" terminator and closes the region at the end of
// the input. An empty unanchored terminator never matches. AnchorStart is
// ignored on terminators.
type Terminator struct {
	Text   string `json:"text"`
	Anchor Anchor `json:"anchor,omitempty"`
}

// Ident returns an identifier that may match anywhere.
func Ident(text string) Identifier {
	return Identifier{Text: text}
}

// StartIdent returns an identifier that only matches at offset 0.
func StartIdent(text string) Identifier {
	return Identifier{Text: text, Anchor: AnchorStart}
}

// ExactStart returns the zero-width identifier matching at offset 0.
func ExactStart() Identifier {
	return Identifier{Anchor: AnchorStart}
}

// Term returns a terminator that may match anywhere.
func Term(text string) Terminator {
	return Terminator{Text: text}
}

// EndTerm returns a terminator that only matches at the end of the input.
func EndTerm(text string) Terminator {
	return Terminator{Text: text, Anchor: AnchorEnd}
}

// ExactEnd returns the zero-width terminator matching at the end of the input.
func ExactEnd() Terminator {
	return Terminator{Anchor: AnchorEnd}
}

// Idents converts literal strings into unanchored identifiers.
func Idents(texts ...string) []Identifier {
	out := make([]Identifier, len(texts))
	for i, t := range texts {
		out[i] = Ident(t)
	}
	return out
}

// Terms converts literal strings into unanchored terminators.
func Terms(texts ...string) []Terminator {
	out := make([]Terminator, len(texts))
	for i, t := range texts {
		out[i] = Term(t)
	}
	return out
}

// ZeroWidth reports whether the identifier is the exact-start anchor.
func (id Identifier) ZeroWidth() bool {
	return id.Text == "" && id.Anchor == AnchorStart
}

// ZeroWidth reports whether the terminator is the exact-end anchor.
func (t Terminator) ZeroWidth() bool {
	return t.Text == "" && t.Anchor == AnchorEnd
}

func (id Identifier) String() string {
	if id.Anchor == AnchorStart {
		return "^" + strconv.Quote(id.Text)
	}
	return strconv.Quote(id.Text)
}

func (t Terminator) String() string {
	if t.Anchor == AnchorEnd {
		return strconv.Quote(t.Text) + "$"
	}
	return strconv.Quote(t.Text)
}
