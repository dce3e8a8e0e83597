package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand_Exists(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"serve"})
	assert.NoError(t, err)
	assert.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Name())
}

// runServeWith runs the serve command over input and returns the decoded
// response lines.
func runServeWith(t *testing.T, input string) []map[string]interface{} {
	t.Helper()
	out := &bytes.Buffer{}
	testCmd := &cobra.Command{
		Use:  "serve",
		RunE: runServe,
	}
	testCmd.SetIn(strings.NewReader(input))
	testCmd.SetOut(out)
	testCmd.SetErr(&bytes.Buffer{})
	testCmd.SetArgs([]string{})
	require.NoError(t, testCmd.Execute())

	var responses []map[string]interface{}
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestServeCommand_Integration(t *testing.T) {
	serveRulesPath = ""

	responses := runServeWith(t, strings.Join([]string{
		`{"type":"scan","payload":{"content":"<p>x</p><!-- note -->","source":"page"}}`,
		`{"type":"extract","payload":{"content":"|a|b|","identifiers":["|"],"terminators":["|"]}}`,
		`{"type":"close","payload":{}}`,
	}, "\n")+"\n")

	// close ends the stream without a response
	require.Len(t, responses, 3)
	assert.Equal(t, "ready", responses[0]["type"])
	assert.Equal(t, "scan", responses[1]["type"])
	assert.Equal(t, true, responses[1]["success"])
	assert.Equal(t, "extract", responses[2]["type"])

	extract := responses[2]["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"a", "b"}, extract["substrings"])
}

func TestServeCommand_CustomRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - id: custom.pipe
    name: Pipe
    identifiers: ["|"]
    terminators: ["|"]
`), 0o644))
	serveRulesPath = path
	defer func() { serveRulesPath = "" }()

	// input ends without close; the server stops at EOF
	responses := runServeWith(t, `{"type":"scan","payload":{"content":"|a|","source":"s"}}`+"\n")

	require.Len(t, responses, 2)
	ready := responses[0]["data"].(map[string]interface{})
	assert.Equal(t, float64(1), ready["rules"])
	assert.Equal(t, true, responses[1]["success"])
}

func TestServeCommand_MissingRules(t *testing.T) {
	serveRulesPath = filepath.Join(t.TempDir(), "missing.yml")
	defer func() { serveRulesPath = "" }()

	cmd, _, _ := newTestCmd()
	err := runServe(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading rules")
}
