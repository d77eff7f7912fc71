package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/ir"
	"github.com/roach88/datoms/internal/txdata"
)

func user(seq int64) ir.Eid { return ir.MakeEid(ir.PartUser, seq) }

func TestTransact_InstallsSchema(t *testing.T) {
	s := createTestStore(t)

	report, err := s.Transact(t.Context(), personSchema(t))
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.DBBefore.BasisT)
	assert.Equal(t, int64(1), report.DBAfter.BasisT)
	assert.Equal(t, int64(1), s.Db().BasisT)

	email, ok := s.Attribute(":person/email")
	require.True(t, ok)
	assert.Equal(t, ir.MakeEid(ir.PartDB, ir.FirstSchemaSeq+1), email.ID)
	assert.Equal(t, ir.UniqueIdentity, email.Unique)

	friend, ok := s.Attribute(":person/friend")
	require.True(t, ok)
	assert.Equal(t, ir.TypeRef, friend.ValueType)
	assert.Equal(t, ir.CardinalityMany, friend.Cardinality)

	e, err := s.Entid(t.Context(), s.Db(), ":person/email")
	require.NoError(t, err)
	assert.Equal(t, email.ID, e)
}

func TestTransact_SchemaRedefinition(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	_, err := s.Transact(ctx, personSchema(t))
	require.NoError(t, err)

	report, err := s.Transact(ctx, personSchema(t))
	require.NoError(t, err, "identical redefinition is a no-op")
	assert.Len(t, report.TxData, 1, "only the transaction instant is written")

	redefined, err := txdata.Attribute(":person/age", "string")
	require.NoError(t, err)
	_, err = s.Transact(ctx, []txdata.Item{redefined})
	require.Error(t, err)
	assert.Equal(t, ErrCodeSchemaConflict, CodeOf(err))
}

func TestTransact_Tempids(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	report, err := s.Transact(t.Context(), []txdata.Item{
		entity(t, txdata.NewTempID("cat"), ":person/name", "Cat"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]ir.Eid{"cat": user(4)}, report.Tempids)

	friends, err := s.Pull(t.Context(), s.Db(), user(3), []string{":person/friend"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{":person/friend": ir.IRArray{ir.IRInt(user(1)), ir.IRInt(user(2))}}, friends)
}

func TestTransact_TxData(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Transact(t.Context(), personSchema(t))
	require.NoError(t, err)

	report, err := s.Transact(t.Context(), []txdata.Item{
		entity(t, txdata.NewTempID("joe"), ":person/name", "Joe", ":person/age", 30),
	})
	require.NoError(t, err)

	name, _ := s.Attribute(":person/name")
	age, _ := s.Attribute(":person/age")
	tx := ir.TxEid(2)
	assert.Equal(t, []ir.Datom{
		{E: user(1), A: name.ID, V: ir.IRString("Joe"), Tx: tx, Added: true},
		{E: user(1), A: age.ID, V: ir.IRInt(30), Tx: tx, Added: true},
		{E: tx, A: ir.EidTxInstant, V: ir.IRString("2024-01-02T03:04:05.000Z"), Tx: tx, Added: true},
	}, report.TxData)

	hash, err := ir.TxHash(report.TxData)
	require.NoError(t, err)
	assert.Equal(t, hash, report.Hash)
}

func TestTransact_CardinalityOneReplaces(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)
	before := s.Db()

	report, err := s.Transact(t.Context(), []txdata.Item{
		txdata.Add(txdata.EntityID(user(1)), ":person/age", 31),
	})
	require.NoError(t, err)

	age, _ := s.Attribute(":person/age")
	require.Len(t, report.TxData, 3)
	assert.Equal(t, ir.Datom{E: user(1), A: age.ID, V: ir.IRInt(30), Tx: ir.TxEid(3), Added: false}, report.TxData[0])
	assert.Equal(t, ir.Datom{E: user(1), A: age.ID, V: ir.IRInt(31), Tx: ir.TxEid(3), Added: true}, report.TxData[1])

	now, err := s.Pull(t.Context(), s.Db(), user(1), []string{":person/age"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{":person/age": ir.IRInt(31)}, now)

	then, err := s.Pull(t.Context(), before, user(1), []string{":person/age"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{":person/age": ir.IRInt(30)}, then, "older snapshots are unchanged")
}

func TestTransact_RedundantAndAbsent(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	report, err := s.Transact(t.Context(), []txdata.Item{
		txdata.Add(txdata.EntityID(user(1)), ":person/age", 30),
		txdata.Retract(txdata.EntityID(user(1)), ":person/age", 99),
	})
	require.NoError(t, err)
	assert.Len(t, report.TxData, 1, "only the transaction instant is written")
}

func TestTransact_Retract(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	_, err := s.Transact(t.Context(), []txdata.Item{
		txdata.Retract(txdata.EntityID(user(3)), ":person/friend", txdata.EntityID(user(2))),
	})
	require.NoError(t, err)

	got, err := s.Pull(t.Context(), s.Db(), user(3), []string{":person/friend"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{":person/friend": ir.IRArray{ir.IRInt(user(1))}}, got)
}

func TestTransact_UpsertByIdentity(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	report, err := s.Transact(t.Context(), []txdata.Item{
		entity(t, txdata.NewTempID("x"), ":person/email", "joe@example.com", ":person/name", "Joseph"),
	})
	require.NoError(t, err)
	assert.Equal(t, user(1), report.Tempids["x"])

	got, err := s.Pull(t.Context(), s.Db(), user(1), []string{":person/name"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{":person/name": ir.IRString("Joseph")}, got)
}

func TestTransact_LookupRef(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	ref, err := txdata.NewLookupRef(":person/email", "ann@example.com")
	require.NoError(t, err)
	_, err = s.Transact(t.Context(), []txdata.Item{txdata.Add(ref, ":person/age", 18)})
	require.NoError(t, err)

	got, err := s.Pull(t.Context(), s.Db(), user(2), []string{":person/age"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{":person/age": ir.IRInt(18)}, got)

	missing, _ := txdata.NewLookupRef(":person/email", "nobody@example.com")
	_, err = s.Transact(t.Context(), []txdata.Item{txdata.Add(missing, ":person/age", 1)})
	assert.Equal(t, ErrCodeUnknownEntity, CodeOf(err))

	notUnique, _ := txdata.NewLookupRef(":person/name", "Ann")
	_, err = s.Transact(t.Context(), []txdata.Item{txdata.Add(notUnique, ":person/age", 1)})
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))
}

func TestTransact_Errors(t *testing.T) {
	tests := []struct {
		name  string
		items func(t *testing.T) []txdata.Item
		code  ErrorCode
	}{
		{
			name: "unknown attribute",
			items: func(t *testing.T) []txdata.Item {
				return []txdata.Item{txdata.Add(txdata.EntityID(user(1)), ":person/height", 180)}
			},
			code: ErrCodeUnknownAttribute,
		},
		{
			name: "unique value held by another entity",
			items: func(t *testing.T) []txdata.Item {
				return []txdata.Item{txdata.Add(txdata.EntityID(user(2)), ":person/email", "joe@example.com")}
			},
			code: ErrCodeUniqueConflict,
		},
		{
			name: "two entities claim one unique value",
			items: func(t *testing.T) []txdata.Item {
				return []txdata.Item{
					txdata.Add(txdata.EntityID(user(1)), ":person/email", "same@example.com"),
					txdata.Add(txdata.EntityID(user(2)), ":person/email", "same@example.com"),
				}
			},
			code: ErrCodeUniqueConflict,
		},
		{
			name: "two values for cardinality one",
			items: func(t *testing.T) []txdata.Item {
				return []txdata.Item{
					txdata.Add(txdata.EntityID(user(1)), ":person/age", 40),
					txdata.Add(txdata.EntityID(user(1)), ":person/age", 41),
				}
			},
			code: ErrCodeDatomConflict,
		},
		{
			name: "assert and retract the same fact",
			items: func(t *testing.T) []txdata.Item {
				return []txdata.Item{
					txdata.Add(txdata.EntityID(user(3)), ":person/friend", txdata.EntityID(user(1))),
					txdata.Retract(txdata.EntityID(user(3)), ":person/friend", txdata.EntityID(user(1))),
				}
			},
			code: ErrCodeDatomConflict,
		},
		{
			name: "tempid only used as a value",
			items: func(t *testing.T) []txdata.Item {
				return []txdata.Item{txdata.Add(txdata.EntityID(user(1)), ":person/friend", txdata.NewTempID("ghost"))}
			},
			code: ErrCodeTempid,
		},
		{
			name: "unknown ident",
			items: func(t *testing.T) []txdata.Item {
				return []txdata.Item{txdata.Add(txdata.Ident(":nobody/here"), ":person/age", 1)}
			},
			code: ErrCodeUnknownEntity,
		},
		{
			name: "unknown partition",
			items: func(t *testing.T) []txdata.Item {
				return []txdata.Item{entity(t, txdata.TempIDIn(":no.part/here", "x"), ":person/name", "X")}
			},
			code: ErrCodeTempid,
		},
		{
			name: "ref needs an entity",
			items: func(t *testing.T) []txdata.Item {
				return []txdata.Item{txdata.Add(txdata.EntityID(user(1)), ":person/friend", true)}
			},
			code: ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			seedPeople(t, s)
			basis := s.Db()

			_, err := s.Transact(t.Context(), tt.items(t))
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err), "%v", err)
			assert.Equal(t, basis, s.Db(), "failed transactions do not advance the basis")

			txs, err := s.Log(t.Context(), 0, 100)
			require.NoError(t, err)
			assert.Len(t, txs, 3)
		})
	}
}

func TestTransact_ValueTypeMismatch(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	_, err := s.Transact(t.Context(), []txdata.Item{
		txdata.Add(txdata.EntityID(user(1)), ":person/age", "thirty"),
	})
	require.Error(t, err)
	assert.True(t, txdata.IsInvalidValueType(err))
}

func TestTransact_SchemalessInstallsOnFirstUse(t *testing.T) {
	opts := DefaultOptions()
	opts.EnforceSchema = false
	s := createTestStoreWith(t, opts)

	_, err := s.Transact(t.Context(), []txdata.Item{
		entity(t, txdata.NewTempID("joe"),
			":person/name", "Joe",
			":person/age", 30,
			":person/role", ":role/admin",
			":person/tags", []any{"a", "b"}),
	})
	require.NoError(t, err)

	tests := []struct {
		ident string
		vt    ir.ValueType
		card  ir.Cardinality
	}{
		{":person/name", ir.TypeString, ir.CardinalityOne},
		{":person/age", ir.TypeLong, ir.CardinalityOne},
		{":person/role", ir.TypeKeyword, ir.CardinalityOne},
		{":person/tags", ir.TypeString, ir.CardinalityMany},
	}
	for _, tt := range tests {
		attr, ok := s.Attribute(tt.ident)
		require.True(t, ok, tt.ident)
		assert.Equal(t, tt.vt, attr.ValueType, tt.ident)
		assert.Equal(t, tt.card, attr.Cardinality, tt.ident)
	}
}

func TestTransact_Partitions(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	part, err := txdata.Partition(":app.part/people")
	require.NoError(t, err)
	_, err = s.Transact(t.Context(), []txdata.Item{part})
	require.NoError(t, err)

	report, err := s.Transact(t.Context(), []txdata.Item{
		entity(t, txdata.TempIDIn(":app.part/people", "dee"), ":person/name", "Dee"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.MakeEid(3, 1), report.Tempids["dee"])

	parts, err := s.Partitions(t.Context())
	require.NoError(t, err)
	require.Len(t, parts, 4)
	assert.Equal(t, Partition{Ident: ":app.part/people", Eid: parts[3].Eid, Index: 3, NextSeq: 2}, parts[3])
	assert.Equal(t, int64(4), parts[ir.PartUser].NextSeq)
}

func TestTransact_TxEntity(t *testing.T) {
	s := createTestStore(t)
	seedPeople(t, s)

	doc, err := txdata.Attribute(":audit/by", "string")
	require.NoError(t, err)
	_, err = s.Transact(t.Context(), []txdata.Item{doc})
	require.NoError(t, err)

	report, err := s.Transact(t.Context(), []txdata.Item{
		entity(t, txdata.TempIDIn(ir.PartitionTx, "tx"), ":audit/by", "importer"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.TxEid(4), report.Tempids["tx"])

	got, err := s.Pull(t.Context(), s.Db(), ir.TxEid(4), []string{"*"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{
		":db/id":        ir.IRInt(ir.TxEid(4)),
		":audit/by":     ir.IRString("importer"),
		":db/txInstant": ir.IRString("2024-01-02T03:04:05.000Z"),
	}, got)
}
