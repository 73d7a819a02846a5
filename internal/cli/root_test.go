package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

const projectionProblem = `package problems

problem: project_a: {
	description: "column a of T"
	input: T: {
		columns: [{name: "a", type: "int"}, {name: "b", type: "int"}]
		rows: [[1, 2], [3, 4]]
	}
	output: {columns: [{name: "a"}], rows: [[3], [1]]}
}
`

const zeroBoundProblem = `package problems

problem: unreachable: {
	input: T: {
		columns: [{name: "a", type: "int"}, {name: "b", type: "int"}]
		rows: [[1, 2], [3, 4]]
	}
	output: {columns: [{name: "a"}], rows: [[3], [1]]}
	bounds: max_complexity: 0
}
`

// writeProblemDir writes CUE files into a fresh directory.
func writeProblemDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "sqlsynth", cmd.Use)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"search", "enumerate", "validate", "trace", "test"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	dir := writeProblemDir(t, map[string]string{"p.cue": projectionProblem})

	_, err := executeCommand(t, "validate", dir, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}
