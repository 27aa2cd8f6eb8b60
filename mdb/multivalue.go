package mdb

import "strconv"

// MultiValue is an owned, fixed-length sequence of Values, used as a
// primary key. Grounded on original_source/deptran/dtxn.h's MultiValue
// class: equality is element-wise, order is lexicographic by Compare.
type MultiValue struct {
	vs []Value
}

// NewMultiValue copies vs into a new owned MultiValue.
func NewMultiValue(vs ...Value) MultiValue {
	owned := make([]Value, len(vs))
	copy(owned, vs)
	return MultiValue{vs: owned}
}

func (mv MultiValue) Len() int { return len(mv.vs) }

func (mv MultiValue) At(i int) Value { return mv.vs[i] }

// Compare returns -1/0/+1 using lexicographic element comparison.
func (mv MultiValue) Compare(o MultiValue) int {
	n := mv.Len()
	if o.Len() < n {
		n = o.Len()
	}
	for i := 0; i < n; i++ {
		if c := mv.vs[i].Compare(o.vs[i]); c != 0 {
			return c
		}
	}
	switch {
	case mv.Len() < o.Len():
		return -1
	case mv.Len() > o.Len():
		return 1
	default:
		return 0
	}
}

func (mv MultiValue) Equal(o MultiValue) bool {
	return mv.Compare(o) == 0
}

func (mv MultiValue) Less(o MultiValue) bool {
	return mv.Compare(o) == -1
}

// Hash XORs per-element hashes, grounded on dtxn.h's multi_value_hasher.
func (mv MultiValue) Hash() uint64 {
	var ret uint64
	for _, v := range mv.vs {
		ret ^= v.Hash()
	}
	return ret
}

// String renders a MultiValue for logging and test failure messages;
// Table and rococo.RowMap also use it as their map key.
func (mv MultiValue) String() string {
	var buf []byte
	buf = append(buf, '(')
	for i, v := range mv.vs {
		if i > 0 {
			buf = append(buf, ',', ' ')
		}
		switch v.Kind() {
		case KindStr:
			buf = append(buf, '"')
			buf = append(buf, v.Str()...)
			buf = append(buf, '"')
		default:
			buf = append(buf, []byte(printValue(v))...)
		}
	}
	buf = append(buf, ')')
	return string(buf)
}

func printValue(v Value) string {
	switch v.Kind() {
	case KindI32:
		return strconv.FormatInt(int64(v.I32()), 10)
	case KindI64:
		return strconv.FormatInt(v.I64(), 10)
	case KindDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	default:
		return ""
	}
}
