// Package mdb implements the in-memory row storage substrate: tagged
// scalar values, schemas, and the row variants (basic, coarse-locked,
// fine-locked, versioned, multi-versioned) that the rococo package builds
// transactions on top of.
package mdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dgryski/go-farm"
)

// Kind tags a Value's underlying representation. Total order between
// kinds is I32 < I64 < DOUBLE < STR, used when comparing values of
// different kinds (e.g. inside a MultiValue where callers mixed types).
type Kind uint8

const (
	KindI32 Kind = iota
	KindI64
	KindDouble
	KindStr
)

func (k Kind) String() string {
	switch k {
	case KindI32:
		return "I32"
	case KindI64:
		return "I64"
	case KindDouble:
		return "DOUBLE"
	case KindStr:
		return "STR"
	default:
		return "UNKNOWN"
	}
}

// Value is a discriminated, immutable scalar. The zero Value is a valid
// I32 holding 0.
type Value struct {
	kind Kind
	i    int64
	d    float64
	s    string
}

func I32(v int32) Value      { return Value{kind: KindI32, i: int64(v)} }
func I64(v int64) Value      { return Value{kind: KindI64, i: v} }
func Double(v float64) Value { return Value{kind: KindDouble, d: v} }
func Str(v string) Value     { return Value{kind: KindStr, s: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) I32() int32 {
	Verify(v.kind == KindI32, "Value.I32: kind is %v", v.kind)
	return int32(v.i)
}

func (v Value) I64() int64 {
	Verify(v.kind == KindI64, "Value.I64: kind is %v", v.kind)
	return v.i
}

func (v Value) Double() float64 {
	Verify(v.kind == KindDouble, "Value.Double: kind is %v", v.kind)
	return v.d
}

func (v Value) Str() string {
	Verify(v.kind == KindStr, "Value.Str: kind is %v", v.kind)
	return v.s
}

// Fixed reports whether this kind occupies a fixed-width slot in a Row's
// fixed part (everything but STR).
func (k Kind) Fixed() bool { return k != KindStr }

// FixedWidth is the byte width of a fixed-width kind.
func (k Kind) FixedWidth() int {
	switch k {
	case KindI32:
		return 4
	case KindI64:
		return 8
	case KindDouble:
		return 8
	default:
		panic(fmt.Sprintf("mdb: Kind %v has no fixed width", k))
	}
}

// Equal reports element-wise equality; values of differing kind are
// never equal.
func (v Value) Equal(o Value) bool {
	return v.Compare(o) == 0
}

// Compare gives a total order over Values. Differing kinds at the same
// position order by kind tag (I32 < I64 < DOUBLE < STR).
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		if v.kind < o.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case KindI32, KindI64:
		switch {
		case v.i < o.i:
			return -1
		case v.i > o.i:
			return 1
		default:
			return 0
		}
	case KindDouble:
		switch {
		case v.d < o.d:
			return -1
		case v.d > o.d:
			return 1
		default:
			return 0
		}
	case KindStr:
		return bytes.Compare([]byte(v.s), []byte(o.s))
	default:
		panic(fmt.Sprintf("mdb: unknown Kind %v", v.kind))
	}
}

// Hash returns a type-specific hash of the value, grounded on
// kv/tikv/util.go's farm.Fingerprint64 use for key hashing.
func (v Value) Hash() uint64 {
	switch v.kind {
	case KindI32, KindI64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v.i))
		return farm.Fingerprint64(buf[:])
	case KindDouble:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.d))
		return farm.Fingerprint64(buf[:])
	case KindStr:
		return farm.Fingerprint64([]byte(v.s))
	default:
		panic(fmt.Sprintf("mdb: unknown Kind %v", v.kind))
	}
}

// EncodedWidth returns the byte width this value occupies in a Row's
// fixed part (0 for variable-width STR values).
func (v Value) EncodedWidth() int {
	if !v.kind.Fixed() {
		return 0
	}
	return v.kind.FixedWidth()
}

// encodeFixed writes the raw bytes of a fixed-width value into dst, which
// must be exactly EncodedWidth() bytes.
func (v Value) encodeFixed(dst []byte) {
	switch v.kind {
	case KindI32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v.i)))
	case KindI64:
		binary.LittleEndian.PutUint64(dst, uint64(v.i))
	case KindDouble:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.d))
	default:
		panic(fmt.Sprintf("mdb: %v is not fixed-width", v.kind))
	}
}

func decodeFixed(kind Kind, src []byte) Value {
	switch kind {
	case KindI32:
		return I32(int32(binary.LittleEndian.Uint32(src)))
	case KindI64:
		return I64(int64(binary.LittleEndian.Uint64(src)))
	case KindDouble:
		return Double(math.Float64frombits(binary.LittleEndian.Uint64(src)))
	default:
		panic(fmt.Sprintf("mdb: %v is not fixed-width", kind))
	}
}

// encodeVar returns the variable-width byte encoding of a STR value.
func (v Value) encodeVar() []byte {
	Verify(v.kind == KindStr, "encodeVar: kind is %v", v.kind)
	return []byte(v.s)
}
