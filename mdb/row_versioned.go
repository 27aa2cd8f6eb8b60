package mdb

// VersionedRow adds a monotonic per-column version counter on top of
// CoarseLockedRow, so that OCC-style commit validation and MVCC readers
// can tell whether a column changed since a transaction last observed it.
// Grounded on original_source/memdb/row.h's VersionedRow, with the
// version-stamps-an-update concept carried over from
// kv/transaction/mvcc/transaction.go's commit-ts-stamped writes (there,
// the stamp lives in the key; here it lives alongside the column since
// there is no encoded key to carry it).
type VersionedRow struct {
	*CoarseLockedRow
	versions []uint64
}

// NewVersionedRow wraps row with a per-column version counter, all
// starting at 0, guarded by a single row-granularity ALock.
func NewVersionedRow(row *Row, policy LockPolicy, timeout int64) *VersionedRow {
	return &VersionedRow{
		CoarseLockedRow: NewCoarseLockedRow(row, policy, timeout),
		versions:        make([]uint64, row.Schema().ColumnsCount()),
	}
}

// ColumnVersion returns col's current version counter.
func (r *VersionedRow) ColumnVersion(col int) uint64 {
	return r.versions[col]
}

// UpdateVersioned writes v to col and bumps its version counter. Callers
// must already hold the row's write lock.
func (r *VersionedRow) UpdateVersioned(col int, v Value) {
	r.Row.Update(col, v)
	r.incrColumnVer(col)
}

func (r *VersionedRow) incrColumnVer(col int) {
	r.versions[col]++
}

// Copy deep-copies columns, the lock (unlocked), and the version
// counters, so a transaction can compare the copy's versions against the
// live row at validation time without racing concurrent writers.
func (r *VersionedRow) Copy() *VersionedRow {
	return &VersionedRow{
		CoarseLockedRow: r.CoarseLockedRow.Copy(),
		versions:        append([]uint64(nil), r.versions...),
	}
}
