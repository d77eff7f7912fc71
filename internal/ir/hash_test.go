package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIDDeterminism(t *testing.T) {
	canonical := []byte(`{"find":["?e"],"in":["$"],"where":[["?e",":person/name","?n"]]}`)

	id1 := DocumentID(canonical)
	id2 := DocumentID(canonical)

	assert.Equal(t, id1, id2, "DocumentID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
	assert.NotEqual(t, id1, DocumentID([]byte(`{}`)))
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain(DomainDocument, data), hashWithDomain(DomainTx, data))
}

func TestTxHash(t *testing.T) {
	datoms := []Datom{
		{E: 1, A: 10, V: IRString("Joe"), Tx: 100, Added: true},
		{E: 1, A: 11, V: IRInt(42), Tx: 100, Added: true},
	}

	h1, err := TxHash(datoms)
	require.NoError(t, err)
	h2, err := TxHash(datoms)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	datoms[1].Added = false
	h3, err := TxHash(datoms)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "assertion flag is part of the hash")
}

func TestDatomString(t *testing.T) {
	d := Datom{E: 1, A: 10, V: IRString("Joe"), Tx: 100, Added: true}
	assert.Equal(t, `#datom[1 10 "Joe" 100 true]`, d.String())
	assert.Equal(t, IRArray{IRInt(1), IRInt(10), IRString("Joe"), IRInt(100), IRBool(true)}, d.IR())
}
