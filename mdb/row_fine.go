package mdb

// FineLockedRow locks each column independently, one ALock per column,
// trading CoarseLockedRow's simplicity for finer concurrency: two
// transactions that touch disjoint columns of the same row never
// conflict. Grounded on original_source/memdb/row.h's FineLockedRow (the
// active class; an earlier commented-out version in the same header used
// a single plain RWLock, matching what CoarseLockedRow already covers).
type FineLockedRow struct {
	*Row
	colLocks []*ALock
}

// NewFineLockedRow wraps row with one ALock per column, all sharing
// policy and timeout.
func NewFineLockedRow(row *Row, policy LockPolicy, timeout int64) *FineLockedRow {
	n := row.Schema().ColumnsCount()
	locks := make([]*ALock, n)
	d := nsToDuration(timeout)
	for i := range locks {
		locks[i] = NewALock(policy, d)
	}
	return &FineLockedRow{Row: row, colLocks: locks}
}

// RLockColumn requests shared access to a single column on behalf of ts.
func (r *FineLockedRow) RLockColumn(col int, ts TxnTS, grant GrantFunc, fail FailFunc) {
	r.colLocks[col].RegRLock(ts, grant, fail)
}

// WLockColumn requests exclusive access to a single column on behalf of ts.
func (r *FineLockedRow) WLockColumn(col int, ts TxnTS, grant GrantFunc, fail FailFunc) {
	r.colLocks[col].RegWLock(ts, grant, fail)
}

// UnlockColumn releases ts's hold on col.
func (r *FineLockedRow) UnlockColumn(col int, ts TxnTS) {
	r.colLocks[col].UnlockBy(ts)
}

// UnlockAll releases ts's hold across every column, used when a
// transaction commits or aborts and must release everything it touched
// without tracking which columns individually.
func (r *FineLockedRow) UnlockAll(ts TxnTS) {
	for _, l := range r.colLocks {
		l.UnlockBy(ts)
	}
}

// Copy is intentionally unsupported: copying a row with independent
// per-column locks held by arbitrary transactions has no well-defined
// semantics (which locks does the copy inherit?), so the original source
// fails this loudly with verify(0) rather than defining one. We preserve
// that refusal as a typed error instead of a fatal abort, since unlike
// the original's Update/GetColumn paths this one is reachable from
// ordinary caller code, not just an internal invariant.
func (r *FineLockedRow) Copy() (*FineLockedRow, error) {
	return nil, newProtocolViolation("FineLockedRow.Copy is not supported: per-column lock ownership cannot be cloned")
}
