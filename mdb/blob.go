package mdb

import (
	"bytes"

	"github.com/dgryski/go-farm"
)

// Blob is a byte slice compared and hashed by content, grounded on
// original_source/memdb/row.h's blob type (the return type of
// Row::get_blob).
type Blob []byte

func (b Blob) Compare(o Blob) int {
	return bytes.Compare(b, o)
}

func (b Blob) Equal(o Blob) bool {
	return bytes.Equal(b, o)
}

func (b Blob) Hash() uint64 {
	return farm.Fingerprint64(b)
}
