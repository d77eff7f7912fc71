package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryText(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "query", filepath.Join("testdata", "queries", "people.cue"), "--db", db, "--name", "adults")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.ElementsMatch(t, []string{`["Joe" 30]`, `["Bob" 45]`}, lines)
}

func TestQueryAllQueries(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "query", filepath.Join("testdata", "queries", "people.yaml"), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "names (tuples, 3)")
	assert.Contains(t, out, "adults (tuples, 2)")
	assert.Less(t, strings.Index(out, "names"), strings.Index(out, "adults"))
}

func TestQueryMapsJSON(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "--format", "json", "query", filepath.Join("testdata", "queries", "people.yaml"),
		"--db", db, "--name", "adults", "--shape", "maps")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(2), resp.BasisT)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var results []QueryResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "maps", results[0].Shape)
	assert.Equal(t, 2, results[0].Count)

	var got []string
	for _, r := range results[0].Results {
		got = append(got, string(r))
	}
	assert.ElementsMatch(t, []string{`{"age":30,"name":"Joe"}`, `{"age":45,"name":"Bob"}`}, got)
}

func TestQueryAsOf(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "query", filepath.Join("testdata", "queries", "people.cue"), "--db", db, "--name", "names", "--as-of", "1")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	_, err = execute(t, "query", filepath.Join("testdata", "queries", "people.cue"), "--db", db, "--as-of", "9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQueryErrors(t *testing.T) {
	db := seededDB(t)

	t.Run("bad shape", func(t *testing.T) {
		_, err := execute(t, "query", filepath.Join("testdata", "queries", "people.cue"), "--db", db, "--shape", "sets")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("compile error", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "query", filepath.Join("testdata", "queries", "orphan.yaml"), "--db", db)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		resp := decodeResponse(t, out)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeOrphanSymbol, resp.Error.Code)
	})

	t.Run("both symbol errors keep their names", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "query", filepath.Join("testdata", "queries", "both.yaml"), "--db", db)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		resp := decodeResponse(t, out)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeOrphanSymbol, resp.Error.Code)
		assert.Equal(t, []any{"?q", "?w*"}, resp.Error.Details)
	})

	t.Run("unknown attribute matches nothing", func(t *testing.T) {
		out, err := execute(t, "query", filepath.Join("testdata", "queries", "unknown_attr.yaml"), "--db", db)
		require.NoError(t, err)
		assert.Empty(t, strings.TrimSpace(out))
	})

	t.Run("missing database directory", func(t *testing.T) {
		_, err := execute(t, "query", filepath.Join("testdata", "queries", "people.cue"),
			"--db", filepath.Join(t.TempDir(), "missing", "x.db"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestQueryWarnsOnPullUnderSetShape(t *testing.T) {
	db := seededDB(t)
	run := func(shapeName string) (string, string) {
		cmd := NewRootCommand()
		out, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(stderr)
		cmd.SetArgs([]string{"query", filepath.Join("testdata", "queries", "pull.yaml"), "--db", db, "--shape", shapeName})
		require.NoError(t, cmd.ExecuteContext(t.Context()))
		return out.String(), stderr.String()
	}

	out, stderr := run("tuples")
	assert.Contains(t, stderr, "pull projection under a set shape")
	assert.Contains(t, out, "Joe")

	out, stderr = run("rows")
	assert.NotContains(t, stderr, "pull projection")
	assert.Contains(t, out, "Joe")
}
