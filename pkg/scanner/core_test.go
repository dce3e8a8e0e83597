package scanner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `rules:
  - id: test.comment
    name: Comment
    identifiers: ["<!--"]
    terminators: ["-->"]
  - id: test.lead
    name: Lead
    identifiers:
      - text: ""
        anchor: start
    terminators: [";"]
    single_shot: true
`

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Log(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func newTestCore(t *testing.T) *Core {
	t.Helper()
	core, err := NewCore(testRules, nil)
	require.NoError(t, err)
	t.Cleanup(core.Close)
	return core
}

func TestNewCore_Builtin(t *testing.T) {
	logger := &recordingLogger{}
	core, err := NewCore("builtin", logger)
	require.NoError(t, err)
	defer core.Close()

	builtin, err := GetBuiltinRules()
	require.NoError(t, err)
	assert.Equal(t, len(builtin), core.RuleCount())
	assert.NotEmpty(t, logger.lines)

	again, err := NewCore("", nil)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, core.RuleCount(), again.RuleCount())
}

func TestNewCore_CustomRules(t *testing.T) {
	core := newTestCore(t)
	assert.Equal(t, 2, core.RuleCount())
}

func TestNewCore_JSONRules(t *testing.T) {
	core, err := NewCore(`{"rules":[{"id":"j","name":"J","identifiers":["("],"terminators":[")"]}]}`, nil)
	require.NoError(t, err)
	defer core.Close()

	result, err := core.Scan("f(x)", "json")
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "x", result.Matches[0].Content)
}

func TestNewCore_InvalidRules(t *testing.T) {
	_, err := NewCore("rules: [", nil)
	assert.Error(t, err)

	_, err = NewCore(`rules:
  - id: bad
    name: Bad
    identifiers: ["("]
    terminators: []
`, nil)
	assert.Error(t, err)
}

func TestCore_Scan(t *testing.T) {
	core := newTestCore(t)

	result, err := core.Scan("a;<!-- one --> b; <!--two-->", "page.html")
	require.NoError(t, err)

	assert.Equal(t, "page.html", result.Source)
	require.Len(t, result.Matches, 3)
	assert.Equal(t, "a", result.Matches[0].Content)
	assert.Equal(t, "test.lead", result.Matches[0].RuleID)
	assert.Equal(t, " one ", result.Matches[1].Content)
	assert.Equal(t, "two", result.Matches[2].Content)
	assert.Equal(t, 1, result.Matches[1].Location.Source.Start.Line)
}

func TestCore_ScanNoMatches(t *testing.T) {
	core := newTestCore(t)

	result, err := core.Scan("nothing here", "plain")
	require.NoError(t, err)
	assert.NotNil(t, result.Matches)
	assert.Empty(t, result.Matches)
}

func TestCore_ScanBatch(t *testing.T) {
	core := newTestCore(t)

	result, err := core.ScanBatch([]ContentItem{
		{Source: "s1", Content: "<!--a-->"},
		{Source: "s2", Content: "none"},
		{Source: "s3", Content: "x;<!--b--><!--c-->", Metadata: map[string]string{"url": "https://example.com"}},
	})
	require.NoError(t, err)

	require.Len(t, result.Results, 3)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, "s3", result.Results[2].Source)
	assert.Len(t, result.Results[2].Matches, 3)
}

func TestCore_Findings(t *testing.T) {
	core := newTestCore(t)

	_, err := core.Scan("<!--same--> <!--same-->", "one")
	require.NoError(t, err)
	_, err = core.Scan("<!--same--> <!--other-->", "two")
	require.NoError(t, err)

	findings, err := core.Findings()
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "same", findings[0].Content())
	assert.Len(t, findings[0].Matches, 3)
	assert.Equal(t, "other", findings[1].Content())
}
