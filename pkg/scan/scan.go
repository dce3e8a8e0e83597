// Package scan implements the single-pass delimiter engine.
//
// A Matcher names a set of identifiers and a set of terminators. Scan walks
// the input once, byte by byte, advancing every matcher together, and calls
// each matcher's Handler for every region that starts right after one of
// its identifiers and ends right before one of its terminators.
//
// Semantics worth knowing before reading the code:
//
//   - A matcher is idle when it has neither an open session nor a partial
//     identifier. Only idle matchers start candidates.
//   - Identifiers are tracked breadth-first. Every identifier of an idle
//     matcher whose first byte is seen starts a candidate, and candidates
//     survive until the input contradicts them. No identifier is preferred
//     for being longer or shorter. Once all of a matcher's candidates are
//     contradicted it is idle again and retries at the contradicting byte.
//   - While a matcher has an open session, new identifier occurrences are
//     plain content. "<Par<Nested>sed>" between "<" and ">" yields
//     "Par<Nested", and "abababX>" between "abab" and ">" yields "abX".
//   - A terminator closes a session once it fits entirely inside the
//     content seen so far. The same byte may then start the next session,
//     so "|First|Second|" between "|" and "|" yields "First" and "Second".
//   - Empty content is never reported, but the terminator still ends the
//     session. A single-shot matcher retires at its first terminator either
//     way. Sessions still open when the input ends are dropped.
//   - At one position, handlers run in matcher registration order.
package scan

import (
	"errors"
	"slices"

	"github.com/praetorian-inc/betwixt/pkg/types"
)

// ErrStop may be returned by a Handler to end the scan early.
// Scan then returns nil.
var ErrStop = errors.New("scan: stop")

// Multiplicity controls how many matches a Matcher reports per scan.
type Multiplicity int

const (
	// AllowMultiple reports every match until the input ends.
	AllowMultiple Multiplicity = iota
	// SingleShot retires the matcher at the first terminator that closes one
	// of its sessions, whether or not that region was reported.
	SingleShot
)

func (m Multiplicity) String() string {
	if m == SingleShot {
		return "single"
	}
	return "multiple"
}

// Handler receives matches. A non-nil error aborts the scan; sessions that
// are still open are abandoned and the error is returned from Scan.
type Handler func(Hit) error

// Matcher describes one set of delimiters. It must not be modified while a
// scan using it is running.
type Matcher struct {
	Identifiers  []types.Identifier
	Terminators  []types.Terminator
	Multiplicity Multiplicity
	Handler      Handler

	// OnRetire, when set, is called once if the matcher retires before the
	// input ends.
	OnRetire func()
}

// Hit is a single match.
type Hit struct {
	Matcher    int              // index of the matcher in the slice passed to Scan
	Content    string           // text between identifier and terminator, never empty
	Span       types.OffsetSpan // byte range of Content
	Enclosing  types.OffsetSpan // identifier start through terminator end
	Identifier types.Identifier
	Terminator types.Terminator
}

// session is an open region: an identifier completed and content is
// accumulating from offset content onward.
type session struct {
	matcher    int
	identifier int
	start      int // offset of the identifier's first byte
	content    int // offset of the first content byte
}

// candidate is an identifier seen partially, starting at offset start.
type candidate struct {
	matcher    int
	identifier int
	start      int
}

type engine struct {
	input    string
	matchers []Matcher

	active  []session   // ordered by matcher, then by opening
	partial []candidate // in creation order
	idle    []int       // matchers with no session and no candidate, ascending

	open    []int  // open sessions per matcher
	pending []int  // partial candidates per matcher
	retired []bool // per matcher
	live    int    // matchers not retired

	scratch []int
}

// Scan runs every matcher over input in a single forward pass.
//
// Handlers are called synchronously, in the order their terminators are
// found; handlers for the same position run in the order of matchers.
// Scan returns early once every matcher has retired.
func Scan(input string, matchers []Matcher) error {
	if len(input) == 0 || len(matchers) == 0 {
		return nil
	}

	e := &engine{
		input:    input,
		matchers: matchers,
		idle:     make([]int, len(matchers)),
		open:     make([]int, len(matchers)),
		pending:  make([]int, len(matchers)),
		retired:  make([]bool, len(matchers)),
		live:     len(matchers),
	}
	for i := range matchers {
		e.idle[i] = i
	}

	err := e.run()
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func (e *engine) run() error {
	e.openExactStart()

	for i := 0; i < len(e.input); i++ {
		if e.live == 0 {
			return nil
		}
		if err := e.advanceActive(i); err != nil {
			return err
		}
		e.advancePartial(i)
		e.advanceIdle(i)
	}
	return nil
}

// openExactStart opens zero-width sessions at offset 0, so the byte at
// offset 0 is already content.
func (e *engine) openExactStart() {
	for m := range e.matchers {
		for j, id := range e.matchers[m].Identifiers {
			if id.ZeroWidth() {
				e.openSession(m, j, 0, 0)
			}
		}
	}
}

// advanceActive extends every open session by the byte at i and closes the
// ones whose content now ends with a terminator.
func (e *engine) advanceActive(i int) error {
	kept := e.active[:0]
	for k := 0; k < len(e.active); k++ {
		s := e.active[k]
		if e.retired[s.matcher] {
			continue
		}

		m := &e.matchers[s.matcher]
		t, ok := e.terminatorAt(m, s, i)
		if !ok {
			kept = append(kept, s)
			continue
		}

		e.open[s.matcher]--
		end := i + 1 - len(m.Terminators[t].Text)
		if end > s.content {
			hit := Hit{
				Matcher:    s.matcher,
				Content:    e.input[s.content:end],
				Span:       types.Span(s.content, end),
				Enclosing:  types.Span(s.start, i+1),
				Identifier: m.Identifiers[s.identifier],
				Terminator: m.Terminators[t],
			}
			if m.Handler != nil {
				if err := m.Handler(hit); err != nil {
					return err
				}
			}
		}
		if m.Multiplicity == SingleShot {
			e.retire(s.matcher)
			continue
		}
		e.settle(s.matcher)
	}

	// a matcher retired above may still own sessions kept earlier in the loop
	e.active = slices.DeleteFunc(kept, func(s session) bool {
		return e.retired[s.matcher]
	})
	return nil
}

// terminatorAt returns the first terminator of m, in registration order,
// that ends session s at offset i.
func (e *engine) terminatorAt(m *Matcher, s session, i int) (int, bool) {
	last := i == len(e.input)-1
	seen := i + 1 - s.content

	for t, term := range m.Terminators {
		if term.Anchor == types.AnchorEnd && !last {
			continue
		}
		n := len(term.Text)
		if n == 0 {
			if term.Anchor == types.AnchorEnd {
				return t, true
			}
			continue
		}
		if n <= seen && e.input[i+1-n:i+1] == term.Text {
			return t, true
		}
	}
	return 0, false
}

// advancePartial feeds the byte at i to every partial identifier.
// Candidates that complete open a session; contradicted ones are dropped.
// A matcher left with neither candidates nor sessions is idle again and is
// considered by advanceIdle at the same offset.
func (e *engine) advancePartial(i int) {
	b := e.input[i]
	kept := e.partial[:0]
	for _, c := range e.partial {
		if e.retired[c.matcher] {
			continue
		}

		text := e.matchers[c.matcher].Identifiers[c.identifier].Text
		k := i - c.start
		if text[k] != b {
			e.pending[c.matcher]--
			e.settle(c.matcher)
			continue
		}
		if k == len(text)-1 {
			e.pending[c.matcher]--
			e.openSession(c.matcher, c.identifier, c.start, i+1)
			continue
		}
		kept = append(kept, c)
	}
	e.partial = kept
}

// advanceIdle starts candidates for every identifier beginning with the
// byte at i, for idle matchers. All candidates of a matcher therefore share
// one start offset.
func (e *engine) advanceIdle(i int) {
	b := e.input[i]

	// openSession and leaveIdle edit e.idle
	e.scratch = append(e.scratch[:0], e.idle...)
	for _, m := range e.scratch {
		for j, id := range e.matchers[m].Identifiers {
			if id.Text == "" || id.Text[0] != b {
				continue
			}
			if id.Anchor == types.AnchorStart && i != 0 {
				continue
			}
			if len(id.Text) == 1 {
				e.openSession(m, j, i, i+1)
				continue
			}
			e.partial = append(e.partial, candidate{matcher: m, identifier: j, start: i})
			e.pending[m]++
			e.leaveIdle(m)
		}
	}
}

// openSession opens a region for matcher m whose content starts at
// content. A second session with the same content start would only
// duplicate the first one's matches, so it is not opened.
func (e *engine) openSession(m, identifier, start, content int) {
	pos := len(e.active)
	for k, s := range e.active {
		if s.matcher == m && s.content == content {
			return
		}
		if s.matcher > m {
			pos = k
			break
		}
	}
	e.active = slices.Insert(e.active, pos, session{
		matcher:    m,
		identifier: identifier,
		start:      start,
		content:    content,
	})
	e.open[m]++
	e.leaveIdle(m)
}

// settle returns m to the idle pool once it has no session and no
// candidate left.
func (e *engine) settle(m int) {
	if e.retired[m] || e.open[m] > 0 || e.pending[m] > 0 {
		return
	}
	if k, found := slices.BinarySearch(e.idle, m); !found {
		e.idle = slices.Insert(e.idle, k, m)
	}
}

func (e *engine) leaveIdle(m int) {
	if k, found := slices.BinarySearch(e.idle, m); found {
		e.idle = slices.Delete(e.idle, k, k+1)
	}
}

// retire stops matcher m for the rest of the scan. Its sessions and
// candidates are skipped lazily.
func (e *engine) retire(m int) {
	if e.retired[m] {
		return
	}
	e.retired[m] = true
	e.live--
	e.open[m] = 0
	e.pending[m] = 0
	e.leaveIdle(m)
	if fn := e.matchers[m].OnRetire; fn != nil {
		fn()
	}
}
