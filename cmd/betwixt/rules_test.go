package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRulesList(t *testing.T) {
	cmd, stdout, _ := newTestCmd()

	// Reset flags for test
	rulesPath = ""
	rulesetID = ""
	outputFormat = "table"

	require.NoError(t, runRulesList(cmd, []string{}))

	output := stdout.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "Delimiters")
	assert.Contains(t, output, "betwixt.html.comment")
	assert.Contains(t, output, `"<!--" .. "-->"`)
	assert.Contains(t, output, `^"#!" .. "\n" (first)`)
	assert.Contains(t, output, `"{{" (+1) .. "}}" (+1)`)
}

func TestRunRulesListJSON(t *testing.T) {
	cmd, stdout, _ := newTestCmd()

	rulesPath = ""
	rulesetID = "documents"
	outputFormat = "json"

	require.NoError(t, runRulesList(cmd, []string{}))

	var rules []map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rules))
	assert.Len(t, rules, 4)
}

func TestRunRulesList_UnknownFormat(t *testing.T) {
	cmd, _, _ := newTestCmd()

	rulesPath = ""
	rulesetID = ""
	outputFormat = "xml"

	err := runRulesList(cmd, []string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRunRulesCheck_Builtin(t *testing.T) {
	quiet = false
	cmd, stdout, _ := newTestCmd()

	require.NoError(t, runRulesCheck(cmd, []string{}))

	output := stdout.String()
	assert.Contains(t, output, "ok   betwixt.html.comment (4 examples)")
	assert.Contains(t, output, "ok   ruleset default (6 rules)")
	assert.Contains(t, output, "ok   ruleset documents (4 rules)")
	assert.NotContains(t, output, "FAIL")
}

func TestRunRulesCheck_Failures(t *testing.T) {
	quiet = false
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - id: good.pipe
    name: Pipe
    identifiers: ["|"]
    terminators: ["|"]
    examples:
      - input: "|a|"
        expect: ["a"]
  - id: bad.example
    name: Bad Example
    identifiers: ["("]
    terminators: [")"]
    examples:
      - input: "(a)"
        expect: ["b"]
  - id: good.pipe
    name: Pipe Again
    identifiers: ["|"]
    terminators: ["|"]
`), 0o644))

	cmd, stdout, _ := newTestCmd()
	err := runRulesCheck(cmd, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 checks failed")

	output := stdout.String()
	assert.Contains(t, output, "ok   good.pipe (1 examples)")
	assert.Contains(t, output, "FAIL bad.example")
	assert.Contains(t, output, "FAIL good.pipe: duplicate rule ID")
}
