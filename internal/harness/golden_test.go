package harness

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/ir"
)

func TestRunWithGolden_People(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "people.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalTrace_Determinism(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "people.yaml"))
	require.NoError(t, err)

	var first []byte
	for i := range 3 {
		result, err := Run(t.Context(), scenario)
		require.NoError(t, err)
		out, err := MarshalTrace(scenario.Name, result)
		require.NoError(t, err)
		if i == 0 {
			first = out
			continue
		}
		assert.Equal(t, string(first), string(out), "run %d differs", i)
	}
}

func TestMarshalTrace_Format(t *testing.T) {
	result := NewResult()
	result.AddTransactTrace("schema", 1, nil, "")
	result.AddTransactTrace("people", 2, map[string]ir.Eid{"joe": 8796093022209}, "")
	result.AddQueryTrace("empty", "tuples", nil, "")
	result.AddQueryTrace("bad", "maps", nil, "INVALID_PROJECTION")

	out, err := MarshalTrace("format", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"format","trace":[`+
			`{"name":"schema","t":1,"type":"transact"},`+
			`{"name":"people","t":2,"tempids":{"joe":8796093022209},"type":"transact"},`+
			`{"name":"empty","rows":[],"shape":"tuples","type":"query"},`+
			`{"error":"INVALID_PROJECTION","name":"bad","shape":"maps","type":"query"}]}`,
		string(out))
}

func TestGoldenFiles(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "people.golden"),
		GoldenPath(filepath.Join("scenarios", "people.yaml")))

	path := GoldenPath(filepath.Join(t.TempDir(), "people.yaml"))
	_, err := MatchGolden(path, []byte("{}"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, WriteGolden(path, []byte("{\"a\":1}\n")))
	match, err := MatchGolden(path, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.True(t, match)

	match, err = MatchGolden(path, []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.False(t, match)
}
