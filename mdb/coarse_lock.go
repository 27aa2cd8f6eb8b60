package mdb

// CoarseLockedRow guards an entire Row behind one ALock: a transaction
// must acquire the row lock (read or write) before touching any column.
// This is the cheapest of the three locking Row variants and the one
// VersionedRow builds on. Grounded on latches.Latches's "lock the whole
// key" granularity, replacing its per-Table map of WaitGroups with one
// ALock per row, picking per-row over per-table granularity.
type CoarseLockedRow struct {
	*Row
	lock *ALock
}

// NewCoarseLockedRow wraps row with a row-granularity ALock using policy.
func NewCoarseLockedRow(row *Row, policy LockPolicy, timeout int64) *CoarseLockedRow {
	return &CoarseLockedRow{
		Row:  row,
		lock: NewALock(policy, nsToDuration(timeout)),
	}
}

// RLock requests shared access to the row on behalf of ts.
func (r *CoarseLockedRow) RLock(ts TxnTS, grant GrantFunc, fail FailFunc) {
	r.lock.RegRLock(ts, grant, fail)
}

// WLock requests exclusive access to the row on behalf of ts.
func (r *CoarseLockedRow) WLock(ts TxnTS, grant GrantFunc, fail FailFunc) {
	r.lock.RegWLock(ts, grant, fail)
}

// Unlock releases ts's hold on the row, granting queued waiters that can
// now proceed.
func (r *CoarseLockedRow) Unlock(ts TxnTS) {
	r.lock.UnlockBy(ts)
}

// Abort cancels ts's still-pending lock request, if any.
func (r *CoarseLockedRow) Abort(ts TxnTS, write bool) {
	r.lock.AbortLockReq(ts, write)
}

// Copy deep-copies the row's columns but not its lock: the copy starts
// unlocked, matching copy_into's "copy is a fresh row" semantics in
// original_source/memdb/row.h.
func (r *CoarseLockedRow) Copy() *CoarseLockedRow {
	return &CoarseLockedRow{
		Row:  r.Row.Copy(),
		lock: NewALock(r.lock.policy, r.lock.timeout),
	}
}
