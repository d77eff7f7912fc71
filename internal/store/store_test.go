package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/ir"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Bootstraps(t *testing.T) {
	s := createTestStore(t)

	assert.Equal(t, int64(0), s.Db().BasisT)

	attr, ok := s.Attribute(ir.IdentAttribute)
	require.True(t, ok)
	assert.Equal(t, Attr{
		ID:          ir.EidIdent,
		Ident:       ir.IdentAttribute,
		ValueType:   ir.TypeKeyword,
		Cardinality: ir.CardinalityOne,
		Unique:      ir.UniqueIdentity,
	}, attr)

	assert.Len(t, s.Attributes(), len(systemAttributes))
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	_, err = s1.Transact(ctx, personSchema(t))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, int64(1), s2.Db().BasisT, "basis resumes from the last transaction")
	_, ok := s2.Attribute(":person/email")
	assert.True(t, ok, "installed attributes are reloaded")

	var n int
	require.NoError(t, s2.db.QueryRow("SELECT COUNT(*) FROM txs").Scan(&n))
	assert.Equal(t, 2, n, "bootstrap runs once")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path, DefaultOptions())
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"datoms", "txs", "partitions"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db", DefaultOptions())
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

func TestSchema_DatomsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "datoms")
	for _, col := range []string{"e", "a", "v", "vt", "tx", "added"} {
		if !slices.Contains(columns, col) {
			t.Errorf("datoms table missing column %q", col)
		}
	}

	indexes := getTableIndexes(t, s.db, "datoms")
	for _, idx := range []string{"idx_datoms_eavt", "idx_datoms_aevt", "idx_datoms_avet", "idx_datoms_vaet"} {
		if !slices.Contains(indexes, idx) {
			t.Errorf("datoms table missing index %q", idx)
		}
	}
}

func TestSnapshot(t *testing.T) {
	s := createTestStore(t)

	_, err := s.AsOf(1)
	assert.Error(t, err, "basis past the current transaction")
	_, err = s.AsOf(-1)
	assert.Error(t, err)

	snap, err := s.AsOf(0)
	require.NoError(t, err)
	assert.Equal(t, "#db[0]", snap.String())
	assert.Equal(t, ir.TxEid(0), snap.BasisTx())
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to list indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		names = append(names, name)
	}
	return names
}
