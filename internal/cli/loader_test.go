package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadQueries(t *testing.T) {
	for _, file := range []string{"people.cue", "people.yaml"} {
		t.Run(file, func(t *testing.T) {
			qf, err := LoadQueries(filepath.Join("testdata", "queries", file))
			require.NoError(t, err)

			require.Len(t, qf.Queries, 2)
			assert.Equal(t, "names", qf.Queries[0].Name)
			assert.Equal(t, "adults", qf.Queries[1].Name)
			assert.Len(t, qf.Rules, 1)

			q, ok := qf.Lookup("adults")
			require.True(t, ok)
			assert.Len(t, q.Context.Rules, 1)

			selected, err := qf.Select("")
			require.NoError(t, err)
			assert.Len(t, selected, 2)
		})
	}
}

func TestLoadSingleQuery(t *testing.T) {
	qf, err := LoadQueries(filepath.Join("testdata", "queries", "orphan.yaml"))
	require.NoError(t, err)
	require.Len(t, qf.Queries, 1)
	assert.Equal(t, "orphan", qf.Queries[0].Name)
	assert.Empty(t, qf.Rules)
}

func TestLoadCUEDirectory(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join("testdata", "queries", "people.cue"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.cue"), src, 0644))

	qf, err := LoadQueries(dir)
	require.NoError(t, err)
	assert.Len(t, qf.Queries, 2)
}

func TestLoadQueriesErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing", filepath.Join(dir, "missing.cue"), ErrCodeNotFound},
		{"unsupported", write("q.json", "{}"), ErrCodeNoFiles},
		{"empty queries", write("empty.yaml", "queries: {}\n"), ErrCodeNoFiles},
		{"queries not a mapping", write("list.yaml", "queries: [a, b]\n"), ErrCodeGeneric},
		{"cue syntax", write("bad.cue", "queries: {\n"), ErrCodeLoadFailed},
		{"cue float", write("float.cue", "yield: [\"?e\"]\nwhere: [{\":db/id\": \"?e\", \":p/score\": 1.5}]\n"), ErrCodeInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadQueries(tt.path)
			require.Error(t, err)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), err)
			assert.Equal(t, tt.code, loadErr.Code, err.Error())
		})
	}

	qf, err := LoadQueries(filepath.Join("testdata", "queries", "people.yaml"))
	require.NoError(t, err)
	_, err = qf.Select("nope")
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}
