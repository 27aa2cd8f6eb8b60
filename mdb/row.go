package mdb

import (
	"encoding/binary"
	"io"
)

// rowKind selects between the dense and sparse var-part representations
// of a Row, grounded on original_source/memdb/row.h's anonymous
// DENSE/SPARSE enum.
type rowKind uint8

const (
	rowDense rowKind = iota
	rowSparse
)

// Row is the basic row type: a schema-bound fixed part plus a var part
// that is either dense (contiguous bytes + per-column end-offset index)
// or sparse (map column_id -> bytes). Row variants (CoarseLockedRow,
// FineLockedRow, VersionedRow, MultiVersionedRow) embed *Row and add
// concurrency/version metadata without touching column storage.
//
// Grounded on original_source/memdb/row.h's Row class.
type Row struct {
	schema *Schema

	fixedPart []byte

	kind         rowKind
	denseVar     []byte // contiguous var-part bytes, DENSE only
	denseVarIdx  []int  // cumulative end-offsets into denseVar, one per var column, DENSE only
	sparseVar    map[int][]byte // column_id -> bytes, SPARSE only

	tbl    *Table // weak back-reference; Table owns the Row, not vice versa
	rdonly bool
}

// NewRow constructs a dense Row for schema from values, one per column in
// schema order. Grounded on Row::create in original_source/memdb/row.h.
func NewRow(schema *Schema, values []Value) *Row {
	Verify(len(values) == schema.ColumnsCount(), "NewRow: got %d values, schema has %d columns", len(values), schema.ColumnsCount())

	r := &Row{
		schema:      schema,
		fixedPart:   make([]byte, schema.FixedPartSize()),
		kind:        rowDense,
		denseVarIdx: make([]int, schema.VarSizeCols()),
	}

	var varBuf []byte
	for id, v := range values {
		col := schema.Column(id)
		Verify(v.Kind() == col.Kind, "NewRow: column %q expects kind %v, got %v", col.Name, col.Kind, v.Kind())
		if col.Kind.Fixed() {
			v.encodeFixed(r.fixedPart[schema.fixedOffset(id):])
		} else {
			varBuf = append(varBuf, v.encodeVar()...)
			r.denseVarIdx[schema.varIndex(id)] = len(varBuf)
		}
	}
	r.denseVar = varBuf
	return r
}

func (r *Row) Schema() *Schema { return r.schema }

func (r *Row) Readonly() bool { return r.rdonly }

func (r *Row) MakeReadonly() { r.rdonly = true }

// SetTable sets the row's weak back-reference to its owning table. May
// only be called once, per original_source/memdb/row.h's set_table.
func (r *Row) SetTable(t *Table) {
	if t != nil {
		Verify(r.tbl == nil, "SetTable: row already belongs to a table")
	}
	r.tbl = t
}

func (r *Row) Table() *Table { return r.tbl }

// MakeSparse converts a dense row to the sparse representation in place.
// Dense favors point access; sparse favors rows that are updated
// frequently or have no var columns.
func (r *Row) MakeSparse() {
	if r.kind == rowSparse {
		return
	}
	sparse := make(map[int][]byte, r.schema.VarSizeCols())
	start := 0
	for id := 0; id < r.schema.ColumnsCount(); id++ {
		col := r.schema.Column(id)
		if col.Kind.Fixed() {
			continue
		}
		end := r.denseVarIdx[r.schema.varIndex(id)]
		buf := make([]byte, end-start)
		copy(buf, r.denseVar[start:end])
		sparse[id] = buf
		start = end
	}
	r.kind = rowSparse
	r.sparseVar = sparse
	r.denseVar = nil
	r.denseVarIdx = nil
}

// GetColumn returns the value stored at col.
func (r *Row) GetColumn(col int) Value {
	c := r.schema.Column(col)
	if c.Kind.Fixed() {
		off := r.schema.fixedOffset(col)
		return decodeFixed(c.Kind, r.fixedPart[off:off+c.Kind.FixedWidth()])
	}
	return Str(string(r.getVarBytes(col)))
}

// GetColumnByName resolves name then defers to GetColumn.
func (r *Row) GetColumnByName(name string) Value {
	return r.GetColumn(r.schema.GetColumnID(name))
}

// GetBlob returns the raw bytes backing col, which must be a variable-
// width (STR) column.
func (r *Row) GetBlob(col int) Blob {
	return Blob(r.getVarBytes(col))
}

func (r *Row) getVarBytes(col int) []byte {
	c := r.schema.Column(col)
	Verify(!c.Kind.Fixed(), "getVarBytes: column %q is fixed-width", c.Name)
	switch r.kind {
	case rowDense:
		idx := r.schema.varIndex(col)
		start := 0
		if idx > 0 {
			start = r.denseVarIdx[idx-1]
		}
		end := r.denseVarIdx[idx]
		return r.denseVar[start:end]
	case rowSparse:
		return r.sparseVar[col]
	default:
		panic("mdb: unknown row kind")
	}
}

// GetKey builds the row's primary key from its primary-key columns in
// schema order.
func (r *Row) GetKey() MultiValue {
	ids := r.schema.KeyColumnIDs()
	vs := make([]Value, len(ids))
	for i, id := range ids {
		vs[i] = r.GetColumn(id)
	}
	return NewMultiValue(vs...)
}

// Update overwrites the value at col. Fixed-width columns are rewritten
// in place; variable-width columns rewrite the var segment (and, for
// dense rows, the offset index) or replace the sparse map entry. Fails
// fatally if the row is readonly or kind-mismatched.
func (r *Row) Update(col int, v Value) {
	Verify(!r.rdonly, "Update: row is readonly")
	c := r.schema.Column(col)
	Verify(v.Kind() == c.Kind, "Update: column %q expects kind %v, got %v", c.Name, c.Kind, v.Kind())

	if c.Kind.Fixed() {
		off := r.schema.fixedOffset(col)
		v.encodeFixed(r.fixedPart[off : off+c.Kind.FixedWidth()])
		return
	}

	newBytes := v.encodeVar()
	switch r.kind {
	case rowSparse:
		if r.sparseVar == nil {
			r.sparseVar = make(map[int][]byte)
		}
		r.sparseVar[col] = newBytes
	case rowDense:
		idx := r.schema.varIndex(col)
		start := 0
		if idx > 0 {
			start = r.denseVarIdx[idx-1]
		}
		end := r.denseVarIdx[idx]
		delta := len(newBytes) - (end - start)

		rebuilt := make([]byte, 0, len(r.denseVar)+delta)
		rebuilt = append(rebuilt, r.denseVar[:start]...)
		rebuilt = append(rebuilt, newBytes...)
		rebuilt = append(rebuilt, r.denseVar[end:]...)
		r.denseVar = rebuilt

		for i := idx; i < len(r.denseVarIdx); i++ {
			r.denseVarIdx[i] += delta
		}
	}
}

func (r *Row) UpdateByName(name string, v Value) {
	r.Update(r.schema.GetColumnID(name), v)
}

// Compare orders rows by their primary-key columns only. Both rows must
// share the same schema.
func (r *Row) Compare(o *Row) int {
	return r.GetKey().Compare(o.GetKey())
}

// copyInto is the extension point row variants use to copy their own
// metadata on top of the Basic copy, mirroring
// original_source/memdb/row.h's copy_into chain (Row::copy_into,
// CoarseLockedRow::copy_into, VersionedRow::copy_into, ...).
func (r *Row) copyInto(dst *Row) {
	dst.schema = r.schema
	dst.rdonly = r.rdonly
	dst.kind = r.kind
	dst.fixedPart = append([]byte(nil), r.fixedPart...)
	switch r.kind {
	case rowDense:
		dst.denseVar = append([]byte(nil), r.denseVar...)
		dst.denseVarIdx = append([]int(nil), r.denseVarIdx...)
	case rowSparse:
		dst.sparseVar = make(map[int][]byte, len(r.sparseVar))
		for k, v := range r.sparseVar {
			dst.sparseVar[k] = append([]byte(nil), v...)
		}
	}
	// tbl_ is intentionally NOT copied: a copy is a fresh, table-less row
	// until explicitly inserted, matching set_table's "at most once" rule.
}

// Copy returns a deep copy of the row's columns and readonly/kind state.
func (r *Row) Copy() *Row {
	dst := &Row{}
	r.copyInto(dst)
	return dst
}

// Encode serializes the row's binary wire format to w:
//
//	fixed_part_size(u32) | fixed_part | kind(u8) | [var_idx(u8 per var column) | var_part]
//
// the var_idx/var_part suffix is only present for dense rows with at
// least one variable-width column. Grounded on
// original_source/memdb/row.h's Row::to_string, including its
// append-rather-than-replace shape (callers may Encode several rows
// into one growing buffer).
func (r *Row) Encode(w io.Writer) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(r.fixedPart)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(r.fixedPart); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(r.kind)}); err != nil {
		return err
	}
	if r.kind == rowDense && r.schema.VarSizeCols() > 0 {
		idxBytes := make([]byte, r.schema.VarSizeCols())
		prev := 0
		for i, end := range r.denseVarIdx {
			width := end - prev
			Verify(width >= 0 && width < 256, "Encode: var column %d segment width %d does not fit in a byte index", i, width)
			idxBytes[i] = byte(width)
			prev = end
		}
		if _, err := w.Write(idxBytes); err != nil {
			return err
		}
		if _, err := w.Write(r.denseVar); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a row previously written by Encode, against schema. The
// row keeps the kind recorded in the encoding. The wire format carries
// var_idx/var_part only for dense rows, so a decoded sparse row has its
// fixed part but no variable-width column data.
func Decode(schema *Schema, r io.Reader) (*Row, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	fixedSize := binary.LittleEndian.Uint32(hdr[:])
	fixedPart := make([]byte, fixedSize)
	if _, err := io.ReadFull(r, fixedPart); err != nil {
		return nil, err
	}
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, err
	}

	row := &Row{
		schema:    schema,
		fixedPart: fixedPart,
		kind:      rowKind(kindByte[0]),
	}

	if row.kind == rowDense && schema.VarSizeCols() > 0 {
		idxBytes := make([]byte, schema.VarSizeCols())
		if _, err := io.ReadFull(r, idxBytes); err != nil {
			return nil, err
		}
		total := 0
		idx := make([]int, schema.VarSizeCols())
		for i, w := range idxBytes {
			total += int(w)
			idx[i] = total
		}
		varPart := make([]byte, total)
		if _, err := io.ReadFull(r, varPart); err != nil {
			return nil, err
		}
		row.denseVar = varPart
		row.denseVarIdx = idx
	}

	return row, nil
}
