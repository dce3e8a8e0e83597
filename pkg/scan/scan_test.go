package scan

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/praetorian-inc/betwixt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record runs Scan and returns every hit in emission order.
func record(t *testing.T, input string, matchers ...Matcher) []Hit {
	t.Helper()
	var hits []Hit
	for i := range matchers {
		matchers[i].Handler = func(h Hit) error {
			hits = append(hits, h)
			return nil
		}
	}
	require.NoError(t, Scan(input, matchers))
	return hits
}

func contents(hits []Hit) []string {
	var out []string
	for _, h := range hits {
		out = append(out, h.Content)
	}
	return out
}

func pair(identifier, terminator string) Matcher {
	return Matcher{
		Identifiers: types.Idents(identifier),
		Terminators: types.Terms(terminator),
	}
}

func TestScan_SinglePair(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		identifier string
		terminator string
		want       []string
	}{
		{"empty input", "", "[(", ")]", nil},
		{"no identifier", "plain text without markers", "[(", ")]", nil},
		{"one match", "text [(Match)] text", "[(", ")]", []string{"Match"}},
		{"empty content suppressed", "text [()]", "[(", ")]", nil},
		{"unterminated discarded", "text [(Match", "[(", ")]", nil},
		{"back to back", "|First|Second|", "|", "|", []string{"First", "Second"}},
		{"nested is literal", "<Par<Nested>sed>", "<", ">", []string{"Par<Nested"}},
		{"several", "a[(1)]b[(22)]c[(333)]", "[(", ")]", []string{"1", "22", "333"}},
		{"multi byte content", "«héllo» «wörld»", "«", "»", []string{"héllo", "wörld"}},
		{"identifier retried at contradicting byte", "<<!--x-->", "<!--", "-->", []string{"x"}},
		{"retry starts only at contradicting byte", "aaabX;", "aab", ";", nil},
		{"overlapping identifier is content", "abababX>", "abab", ">", []string{"abX"}},
		{"repeated identifier is content", "[([(x)]", "[(", ")]", []string{"[(x"}},
		{"repeated identifier then second region", "[([(x)] [(y)]", "[(", ")]", []string{"[(x", "y"}},
		{"identifier overlapping terminator", "abcabcX;", "abca", ";", []string{"bcX"}},
		{"terminator needs content room", "<>x>", "<", ">", nil},
		{"terminator inside identifier ignored", "abab!ba", "aba", "ba", []string{"b!"}},
		{"whole input", "<abc>", "<", ">", []string{"abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := record(t, tt.input, pair(tt.identifier, tt.terminator))
			assert.Equal(t, tt.want, contents(hits))
		})
	}
}

func TestScan_Anchors(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		identifiers []types.Identifier
		terminators []types.Terminator
		want        []string
	}{
		{
			name:        "exact start includes first byte",
			input:       "<Scanned> text",
			identifiers: []types.Identifier{types.ExactStart()},
			terminators: types.Terms(">"),
			want:        []string{"<Scanned"},
		},
		{
			name:        "literal identifier excludes it",
			input:       "<Scanned> text",
			identifiers: types.Idents("<"),
			terminators: types.Terms(">"),
			want:        []string{"Scanned"},
		},
		{
			name:        "start anchored literal at offset 0",
			input:       "#!/bin/sh\necho",
			identifiers: []types.Identifier{types.StartIdent("#!")},
			terminators: types.Terms("\n"),
			want:        []string{"/bin/sh"},
		},
		{
			name:        "start anchored literal elsewhere",
			input:       " #!/bin/sh\n",
			identifiers: []types.Identifier{types.StartIdent("#!")},
			terminators: types.Terms("\n"),
			want:        nil,
		},
		{
			name:        "start anchored only once",
			input:       "<a><b>",
			identifiers: []types.Identifier{types.StartIdent("<")},
			terminators: types.Terms(">"),
			want:        []string{"a"},
		},
		{
			name:        "exact end",
			input:       "key=value",
			identifiers: types.Idents("="),
			terminators: []types.Terminator{types.ExactEnd()},
			want:        []string{"value"},
		},
		{
			name:        "end anchored literal",
			input:       "a(b)c(d)",
			identifiers: types.Idents("("),
			terminators: []types.Terminator{types.EndTerm(")")},
			want:        []string{"b)c(d"},
		},
		{
			name:        "end anchored literal not at end",
			input:       "a(b)c",
			identifiers: types.Idents("("),
			terminators: []types.Terminator{types.EndTerm(")")},
			want:        nil,
		},
		{
			name:        "exact start and exact end",
			input:       "whole",
			identifiers: []types.Identifier{types.ExactStart()},
			terminators: []types.Terminator{types.ExactEnd()},
			want:        []string{"whole"},
		},
		{
			name:        "identifier at last byte leaves nothing",
			input:       "abc=",
			identifiers: types.Idents("="),
			terminators: []types.Terminator{types.ExactEnd()},
			want:        nil,
		},
		{
			name:        "empty unanchored patterns never match",
			input:       "anything",
			identifiers: types.Idents(""),
			terminators: types.Terms(""),
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := record(t, tt.input, Matcher{Identifiers: tt.identifiers, Terminators: tt.terminators})
			assert.Equal(t, tt.want, contents(hits))
		})
	}
}

func TestScan_PatternSets(t *testing.T) {
	m := Matcher{
		Identifiers: types.Idents("{{", "{%"),
		Terminators: types.Terms("}}", "%}"),
	}
	hits := record(t, "{{ name }} and {% if x %} and {{ y %}", m)
	assert.Equal(t, []string{" name ", " if x ", " y "}, contents(hits))
	assert.Equal(t, "{{", hits[0].Identifier.Text)
	assert.Equal(t, "{%", hits[1].Identifier.Text)
	assert.Equal(t, "%}", hits[2].Terminator.Text)
}

func TestScan_FirstRegisteredTerminatorWins(t *testing.T) {
	m := Matcher{
		Identifiers: types.Idents("<"),
		Terminators: types.Terms("b>", ">"),
	}
	hits := record(t, "<ab>", m)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Content)
	assert.Equal(t, "b>", hits[0].Terminator.Text)
}

func TestScan_PrefixIdentifiersAreTrackedTogether(t *testing.T) {
	m := Matcher{
		Identifiers: types.Idents("<", "<<"),
		Terminators: types.Terms(">"),
	}
	hits := record(t, "<<x>", m)
	assert.Equal(t, []string{"<x", "x"}, contents(hits))
	assert.Equal(t, types.Span(0, 4), hits[0].Enclosing)
	assert.Equal(t, types.Span(0, 4), hits[1].Enclosing)
	assert.Equal(t, "<<", hits[1].Identifier.Text)
}

func TestScan_PendingCandidateHoldsMatcher(t *testing.T) {
	m := Matcher{
		Identifiers: types.Idents("ab", "xab"),
		Terminators: types.Terms(";"),
	}
	// "ab" starting at 1 is not tried while "xab" from 0 is still partial
	hits := record(t, "xab1;", m)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].Content)
	assert.Equal(t, "xab", hits[0].Identifier.Text)
	assert.Equal(t, types.Span(0, 5), hits[0].Enclosing)
}

func TestScan_SameContentStartReportedOnce(t *testing.T) {
	m := Matcher{
		Identifiers: types.Idents("<!", "<!"),
		Terminators: types.Terms(">"),
	}
	hits := record(t, "<!x>", m)
	require.Len(t, hits, 1)
	assert.Equal(t, "x", hits[0].Content)
}

func TestScan_SingleShot(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		identifiers []types.Identifier
		terminators []types.Terminator
		want        []string
	}{
		{"first region only", "[a][b][c]", types.Idents("["), types.Terms("]"), []string{"a"}},
		{"empty first region retires", "[][b][c]", types.Idents("["), types.Terms("]"), nil},
		{"empty multi byte region retires", "[()] [(x)]", types.Idents("[("), types.Terms(")]"), nil},
		{"unterminated region keeps it live", "[(a", types.Idents("[("), types.Terms(")]"), nil},
		{"empty first line", "\nbody\n", []types.Identifier{types.ExactStart()}, types.Terms("\n"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := record(t, tt.input, Matcher{
				Identifiers:  tt.identifiers,
				Terminators:  tt.terminators,
				Multiplicity: SingleShot,
			})
			assert.Equal(t, tt.want, contents(hits))
		})
	}
}

func TestScan_SingleShotEmptyRegionStopsEarly(t *testing.T) {
	once := pair("[", "]")
	once.Multiplicity = SingleShot
	calls := 0
	once.Handler = func(Hit) error {
		calls++
		return nil
	}
	// the only matcher retires at offset 1, so nothing after it is reported
	require.NoError(t, Scan("[][a][b]", []Matcher{once}))
	assert.Zero(t, calls)
}

func TestScan_IndependentMatchers(t *testing.T) {
	hits := record(t, "<a> [b] <c> [d",
		pair("<", ">"),
		pair("[", "]"),
	)

	require.Len(t, hits, 3)
	assert.Equal(t, []string{"a", "b", "c"}, contents(hits))
	assert.Equal(t, []int{0, 1, 0}, []int{hits[0].Matcher, hits[1].Matcher, hits[2].Matcher})
}

func TestScan_NoCrossMatcherInterference(t *testing.T) {
	hits := record(t, "<a>>b!",
		pair("<", ">"),
		pair(">>", "!"),
	)
	assert.Equal(t, []string{"a", "b"}, contents(hits))
}

func TestScan_SamePositionFollowsRegistrationOrder(t *testing.T) {
	short := pair("(", "b)")
	long := pair("(", ")")

	hits := record(t, "(ab)", short, long)
	assert.Equal(t, []string{"a", "ab"}, contents(hits))

	hits = record(t, "(ab)", long, short)
	assert.Equal(t, []string{"ab", "a"}, contents(hits))
}

func TestScan_MixedMultiplicity(t *testing.T) {
	once := pair("<", ">")
	once.Multiplicity = SingleShot
	hits := record(t, "<a><b>", once, pair("<", ">"))
	assert.Equal(t, []string{"a", "a", "b"}, contents(hits))
}

func TestScan_HandlerErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Scan("[a][b][c]", []Matcher{{
		Identifiers: types.Idents("["),
		Terminators: types.Terms("]"),
		Handler: func(h Hit) error {
			calls++
			return boom
		},
	}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestScan_ErrStop(t *testing.T) {
	var got []string
	err := Scan("[a][b][c]", []Matcher{{
		Identifiers: types.Idents("["),
		Terminators: types.Terms("]"),
		Handler: func(h Hit) error {
			got = append(got, h.Content)
			if len(got) == 2 {
				return ErrStop
			}
			return nil
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestScan_NilHandler(t *testing.T) {
	assert.NotPanics(t, func() {
		require.NoError(t, Scan("[a]", []Matcher{pair("[", "]")}))
	})
}

func TestScan_NoMatchers(t *testing.T) {
	require.NoError(t, Scan("[a]", nil))
}

func TestScan_RangesSliceBackToPatterns(t *testing.T) {
	inputs := []string{
		"text [(Match)] and [(More)]",
		"|First|Second|",
		"<Par<Nested>sed>",
		"{{ a }}{% b %}",
	}
	m := Matcher{
		Identifiers: types.Idents("[(", "|", "<", "{{", "{%"),
		Terminators: types.Terms(")]", "|", ">", "}}", "%}"),
	}

	for _, input := range inputs {
		hits := record(t, input, m)
		require.NotEmpty(t, hits, input)
		for _, h := range hits {
			assert.Equal(t, h.Content, h.Span.Of(input))
			assert.Equal(t, h.Identifier.Text+h.Content+h.Terminator.Text, h.Enclosing.Of(input))
		}
	}
}

// naiveSingleByte is an obviously correct scanner for one single-byte
// identifier and a different single-byte terminator.
func naiveSingleByte(input string, open, close byte) []string {
	var out []string
	start := -1
	for i := 0; i < len(input); i++ {
		switch {
		case start < 0 && input[i] == open:
			start = i + 1
		case start >= 0 && input[i] == close:
			if i > start {
				out = append(out, input[start:i])
			}
			start = -1
		}
	}
	return out
}

func TestScan_AgreesWithNaiveScanner(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []byte("<>ab")

	for n := 0; n < 500; n++ {
		var sb strings.Builder
		for k := rng.Intn(40); k > 0; k-- {
			sb.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		input := sb.String()

		hits := record(t, input, pair("<", ">"))
		assert.Equal(t, naiveSingleByte(input, '<', '>'), contents(hits), input)

		// strictly left to right
		for k := 1; k < len(hits); k++ {
			assert.Less(t, hits[k-1].Enclosing.End, hits[k].Enclosing.End, input)
		}
	}
}

func BenchmarkScan(b *testing.B) {
	var sb strings.Builder
	for sb.Len() < 64*1024 {
		sb.WriteString(`<div class="x"><!-- note -->{{ .Name }} [(link)] "quoted" </div>`)
		sb.WriteByte('\n')
	}
	input := sb.String()

	matchers := []Matcher{
		pair("<!--", "-->"),
		pair("{{", "}}"),
		pair("[(", ")]"),
		pair(`"`, `"`),
		pair("<", ">"),
	}
	count := 0
	for i := range matchers {
		matchers[i].Handler = func(Hit) error {
			count++
			return nil
		}
	}

	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Scan(input, matchers); err != nil {
			b.Fatal(err)
		}
	}
}
