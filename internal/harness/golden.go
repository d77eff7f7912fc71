package harness

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/sebdah/goldie/v2"

	"github.com/roach88/datoms/internal/ir"
)

// canonical is the event as plain maps and IR values, the input
// ir.MarshalCanonical accepts. Zero fields are omitted, except that a
// successful query always carries its rows.
func (e TraceEvent) canonical() map[string]any {
	m := map[string]any{"type": e.Type}
	if e.Name != "" {
		m["name"] = e.Name
	}
	if e.T != 0 {
		m["t"] = e.T
	}
	if len(e.Tempids) > 0 {
		ids := make(map[string]any, len(e.Tempids))
		for name, eid := range e.Tempids {
			ids[name] = eid
		}
		m["tempids"] = ids
	}
	if e.Shape != "" {
		m["shape"] = e.Shape
	}
	switch {
	case e.Error != "":
		m["error"] = e.Error
	case e.Type == EventQuery:
		rows := e.Rows
		if rows == nil {
			rows = ir.IRArray{}
		}
		m["rows"] = rows
	}
	return m
}

// MarshalTrace renders a scenario trace as canonical JSON:
// {"scenario_name": ..., "trace": [event...]}.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	events := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		events[i] = e.canonical()
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"trace":         events,
	})
}

// GoldenPath is where the golden trace of a scenario file lives:
// golden/<base name>.golden beside the file.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// WriteGolden records trace at path, creating the directory.
func WriteGolden(path string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create golden directory")
	}
	return errors.Wrap(os.WriteFile(path, trace, 0o644), "write golden file")
}

// MatchGolden reports whether the golden file at path holds trace. Trailing
// whitespace in the file is ignored. A missing file is os.ErrNotExist.
func MatchGolden(path string, trace []byte) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return bytes.Equal(bytes.TrimSpace(want), trace), nil
}

// RunWithGolden runs scenario and asserts its trace against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden asserts an existing result's trace against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	trace, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}
	goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	).Assert(t, scenarioName, trace)
	return nil
}
