package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSON(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Success(map[string]int{"count": 3}))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Nil(t, resp.Error)
		assert.NotContains(t, buf.String(), "basis_t")
	})

	t.Run("error with details", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Error(ErrCodeOrphanSymbol, "orphan symbols", []string{"?x"}))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeOrphanSymbol, resp.Error.Code)
		assert.Equal(t, []any{"?x"}, resp.Error.Details)
	})
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		write   func(f *OutputFormatter)
		want    []string
		notWant []string
	}{
		{
			name:  "success",
			write: func(f *OutputFormatter) { _ = f.Success("2 queries valid") },
			want:  []string{"2 queries valid\n"},
		},
		{
			name:    "error hides details",
			write:   func(f *OutputFormatter) { _ = f.Error("E001", "bad file", "line 4") },
			want:    []string{"Error [E001]: bad file"},
			notWant: []string{"Details"},
		},
		{
			name:    "verbose error shows details",
			verbose: true,
			write:   func(f *OutputFormatter) { _ = f.Error("E001", "bad file", "line 4") },
			want:    []string{"Error [E001]: bad file", "Details: line 4"},
		},
		{
			name:    "verbose log",
			verbose: true,
			write:   func(f *OutputFormatter) { f.VerboseLog("compiling %s", "people.cue") },
			want:    []string{"compiling people.cue"},
		},
		{
			name:    "quiet log",
			write:   func(f *OutputFormatter) { f.VerboseLog("compiling %s", "people.cue") },
			notWant: []string{"compiling"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(&OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose})
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}
	f.VerboseLog("opened %s", "data.db")
	assert.Empty(t, out.String())
	assert.Equal(t, "opened data.db\n", diag.String())
}

func TestOutputFormatter_SuccessAt(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.SuccessAt([]int{1, 2}, 7))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(7), resp.BasisT)
	assert.Contains(t, buf.String(), `"basis_t":7`)
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(ExitFailure, ErrCodeOrphanSymbol, "orphan symbols: ?age", nil)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "E103")
	assert.Contains(t, buf.String(), "Error [E103]: orphan symbols: ?age")
}

func TestOutputFormatter_FailLoad(t *testing.T) {
	t.Run("load error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}

		err := formatter.FailLoad(&LoadError{Code: ErrCodeNotFound, Message: "query file not found: x.cue"})
		assert.Equal(t, ExitCommandError, GetExitCode(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("other error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}

		err := formatter.FailLoad(assert.AnError)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, buf.String(), "Error [E001]")
	})
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "failed", assert.AnError)))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
