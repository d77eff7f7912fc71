package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileQueryFiles(t *testing.T) {
	for _, file := range []string{"people.cue", "people.yaml"} {
		t.Run(file, func(t *testing.T) {
			out, err := execute(t, "compile", filepath.Join("testdata", "queries", file))
			require.NoError(t, err)

			assert.Contains(t, out, "✓ Compiled 2 query(ies)")
			assert.Contains(t, out, "names: [:find ?name :in $ :where [?e* :person/name ?name]]")
			assert.Contains(t, out, "adults: [:find ?name ?age :in $ % :where [?e :person/name ?name] [?e :person/age ?age] (adult ?e)]")
		})
	}
}

func TestCompileSameDocumentFromCUEAndYAML(t *testing.T) {
	ids := make(map[string]string)
	for _, file := range []string{"people.cue", "people.yaml"} {
		out, err := execute(t, "--format", "json", "compile", filepath.Join("testdata", "queries", file), "--name", "adults")
		require.NoError(t, err)

		resp := decodeResponse(t, out)
		assert.Equal(t, "ok", resp.Status)

		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var result CompilationResult
		require.NoError(t, json.Unmarshal(data, &result))
		require.Len(t, result.Queries, 1)
		assert.Equal(t, "adults", result.Queries[0].Name)
		assert.NotEmpty(t, result.Queries[0].Document)
		ids[file] = result.Queries[0].ID
	}
	assert.NotEmpty(t, ids["people.cue"])
	assert.Equal(t, ids["people.cue"], ids["people.yaml"])
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := execute(t, "compile", filepath.Join("testdata", "queries", "people.yaml"), "-o", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote canonical documents to")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Queries, 2)
}

func TestCompileErrors(t *testing.T) {
	t.Run("orphan symbol", func(t *testing.T) {
		out, err := execute(t, "compile", filepath.Join("testdata", "queries", "orphan.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "✗ Compilation failed")
		assert.Contains(t, out, ErrCodeOrphanSymbol)
		assert.Contains(t, out, "?age")
	})

	t.Run("orphan symbol json", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "compile", filepath.Join("testdata", "queries", "orphan.yaml"))
		require.Error(t, err)

		resp := decodeResponse(t, out)
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeOrphanSymbol, resp.Error.Code)
		assert.Equal(t, []any{"?age"}, resp.Error.Details)
	})

	t.Run("orphan and overused wildcard json", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "compile", filepath.Join("testdata", "queries", "both.yaml"))
		require.Error(t, err)

		resp := decodeResponse(t, out)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeOrphanSymbol, resp.Error.Code)
		assert.Equal(t, []any{"?q", "?w*"}, resp.Error.Details)
	})

	t.Run("orphan and overused wildcard text", func(t *testing.T) {
		out, err := execute(t, "compile", filepath.Join("testdata", "queries", "both.yaml"))
		require.Error(t, err)
		assert.Contains(t, out, "?q")
		assert.Contains(t, out, "?w*")
	})

	t.Run("lenient", func(t *testing.T) {
		out, err := execute(t, "compile", filepath.Join("testdata", "queries", "orphan.yaml"), "--lenient")
		require.NoError(t, err)
		assert.Contains(t, out, "orphan: [:find ?name")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "compile", filepath.Join("testdata", "queries", "nope.cue"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), ErrCodeNotFound)
	})

	t.Run("unknown query name", func(t *testing.T) {
		_, err := execute(t, "compile", filepath.Join("testdata", "queries", "people.cue"), "--name", "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no query named "nope"`)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "query.json")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))
		_, err := execute(t, "compile", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrCodeNoFiles)
	})

	t.Run("malformed clause", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("yield: [\"?e\"]\nwhere: [\"?e\"]\n"), 0644))
		_, err := execute(t, "compile", path)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}
