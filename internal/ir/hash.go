package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDocument = "datoms/document/v1"
	DomainTx       = "datoms/tx/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentID computes the content-addressed ID of a canonical query document.
// canonical must already be the RFC 8785 encoding of the document.
func DocumentID(canonical []byte) string {
	return hashWithDomain(DomainDocument, canonical)
}

// TxHash computes the content hash of the datoms written by one transaction.
// It is recorded next to the transaction id so replays can be compared.
func TxHash(datoms []Datom) (string, error) {
	arr := make(IRArray, len(datoms))
	for i, d := range datoms {
		arr[i] = d.IR()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("TxHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTx, canonical), nil
}
