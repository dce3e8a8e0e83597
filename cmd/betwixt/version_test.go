package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/betwixt/pkg/sarif"
)

func TestRunVersion(t *testing.T) {
	cmd, stdout, _ := newTestCmd()

	require.NoError(t, runVersion(cmd, []string{}))

	output := stdout.String()
	assert.Contains(t, output, "Betwixt v"+version)
	assert.Contains(t, output, "Commit:")
	assert.Contains(t, output, "Go version:")
	assert.Contains(t, output, "OS/Arch:")
}

func TestVersionInSARIF(t *testing.T) {
	assert.Equal(t, version, sarif.ToolVersion)
}

func TestRootCommand_Subcommands(t *testing.T) {
	for _, name := range []string{"scan", "extract", "rules", "report", "serve", "merge", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
