package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonFormatter() (*OutputFormatter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &OutputFormatter{Format: "json", Writer: buf}, buf
}

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	f, buf := jsonFormatter()
	require.NoError(t, f.Success(map[string]int{"found": 2}))

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data["found"])
}

func TestOutputFormatter_JSONError(t *testing.T) {
	f, buf := jsonFormatter()
	require.NoError(t, f.Error("E103", "row 2 has 1 cells, want 2", map[string]string{"file": "p.cue"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E103", resp.Error.Code)
	assert.Equal(t, "row 2 has 1 cells, want 2", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		details  any
		contains []string
		excludes []string
	}{
		{"plain", false, nil, []string{"Error [E001]: load failed"}, []string{"Details:"}},
		{"details_hidden", false, "p.cue", []string{"Error [E001]"}, []string{"Details:"}},
		{"details_verbose", true, "p.cue", []string{"Error [E001]", "Details: p.cue"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}
			require.NoError(t, f.Error("E001", "load failed", tt.details))
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	f, buf := jsonFormatter()
	cause := errors.New("disk full")

	err := f.Fail(ExitCommandError, ErrCodeRunLog, "failed to open database", cause)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, cause)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, ErrCodeRunLog, resp.Error.Code)
	assert.Equal(t, "failed to open database: disk full", resp.Error.Message)

	err = f.Fail(ExitFailure, ErrCodeRunLog, "run not found: x", nil)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "run not found: x", err.Error())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}

	quiet := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}
	quiet.VerboseLog("loading %s", "p.cue")
	assert.Empty(t, diag.String())

	loud := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}
	loud.VerboseLog("loading %s", "p.cue")
	assert.Equal(t, "loading p.cue\n", diag.String())
	assert.Empty(t, out.String(), "diagnostics never reach stdout")

	fallback := &OutputFormatter{Format: "text", Writer: out, Verbose: true}
	fallback.VerboseLog("x")
	assert.Equal(t, "x\n", out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flags")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "no query", errors.New("exhausted")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "outer: no query: exhausted", wrapped.Error())
}
