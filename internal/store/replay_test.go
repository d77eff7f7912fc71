package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/txdata"
)

func TestTxDatoms_MatchesReport(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	report, err := s.Transact(t.Context(), []txdata.Item{
		txdata.Add(txdata.EntityID(user(1)), ":person/age", 31),
	})
	require.NoError(t, err)

	got, err := s.TxDatoms(t.Context(), report.DBAfter.BasisT)
	require.NoError(t, err)
	assert.Equal(t, report.TxData, got)
}

func TestVerifyLog_Intact(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	mismatches, err := s.VerifyLog(t.Context())
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestVerifyLog_DetectsTampering(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	age, _ := s.Attribute(":person/age")
	_, err := s.DB().ExecContext(t.Context(),
		"UPDATE datoms SET v = 99 WHERE e = ? AND a = ?", user(2), age.ID)
	require.NoError(t, err)

	mismatches, err := s.VerifyLog(t.Context())
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, int64(2), mismatches[0].T)
	assert.NotEqual(t, mismatches[0].Recorded, mismatches[0].Actual)
}

func TestReopen_KeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	seedPeople(t, s)
	require.NoError(t, s.Close())

	s, err = Open(path, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, int64(2), s.Db().BasisT)
	_, ok := s.Attribute(":person/friend")
	assert.True(t, ok, "schema is reloaded from datoms")

	report, err := s.Transact(t.Context(), []txdata.Item{
		entity(t, txdata.NewTempID("dee"), ":person/name", "Dee"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.MakeEid(ir.PartUser, 4), report.Tempids["dee"])

	mismatches, err := s.VerifyLog(t.Context())
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}
