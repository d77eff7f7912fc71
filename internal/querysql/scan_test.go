package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/ir"
)

func TestParseIndex(t *testing.T) {
	for _, s := range []string{":eavt", "eavt", "aevt", ":avet", "vaet"} {
		_, err := ParseIndex(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseIndex("teav")
	assert.Error(t, err)
}

func TestCompileScanOrder(t *testing.T) {
	tests := []struct {
		index Index
		order string
	}{
		{EAVT, "ORDER BY f.e ASC, f.a ASC, f.vt ASC, f.v COLLATE BINARY ASC, f.tx ASC"},
		{AEVT, "ORDER BY f.a ASC, f.e ASC, f.vt ASC, f.v COLLATE BINARY ASC, f.tx ASC"},
		{AVET, "ORDER BY f.a ASC, f.vt ASC, f.v COLLATE BINARY ASC, f.e ASC, f.tx ASC"},
		{VAET, "ORDER BY f.vt ASC, f.v COLLATE BINARY ASC, f.a ASC, f.e ASC, f.tx ASC"},
	}

	for _, tt := range tests {
		t.Run(string(tt.index), func(t *testing.T) {
			sql, params, err := NewSQLCompiler(basis).CompileScan(tt.index, nil)
			require.NoError(t, err)
			assert.Contains(t, sql, tt.order)
			assert.Equal(t, []any{basis, basis}, params)
		})
	}
}

func TestCompileScanComponents(t *testing.T) {
	sql, params, err := NewSQLCompiler(basis).CompileScan(AVET, []ir.IRValue{
		ir.IRKeyword(":person/email"),
		ir.IRString("joe@example.com"),
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "f.a = (SELECT i.e FROM facts i")
	assert.Contains(t, sql, "f.v = ? AND f.vt IN (1, 5)")
	assert.Equal(t, []any{basis, basis, ":person/email", "joe@example.com"}, params)
}

func TestCompileScanVAETOnlyRefs(t *testing.T) {
	sql, params, err := NewSQLCompiler(basis).CompileScan(VAET, []ir.IRValue{ir.IRInt(42)})
	require.NoError(t, err)
	assert.Contains(t, sql, "f.vt = 0 AND f.v = ?")
	assert.Equal(t, []any{basis, basis, int64(42)}, params)
}

func TestCompileScanErrors(t *testing.T) {
	c := NewSQLCompiler(basis)

	_, _, err := c.CompileScan(Index(":xyz"), nil)
	assert.Error(t, err)

	_, _, err = c.CompileScan(EAVT, []ir.IRValue{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3), ir.IRInt(4), ir.IRInt(5)})
	assert.Error(t, err)

	_, _, err = c.CompileScan(EAVT, []ir.IRValue{ir.IRString("not-an-entity")})
	assert.Error(t, err)

	_, _, err = c.CompileScan(EAVT, []ir.IRValue{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3), ir.IRString("tx")})
	assert.Error(t, err)
}
