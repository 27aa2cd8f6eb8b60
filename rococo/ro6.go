package rococo

import (
	"github.com/rococo-db/txnengine/mdb"
)

// ErrStaleSnapshot is returned by RO6DTxn.SnapshotRead when the row has
// no value for the requested snapshot version (for example, because it
// was garbage collected).
var ErrStaleSnapshot = mdb.ErrStaleVersion

// RO6DTxn is the read-only fast path: it inherits RCCDTxn's staging and
// commit machinery (a read-only transaction may still be created through
// the same DTxnMgr lifecycle), including StartRO unchanged, and adds
// SnapshotRead to read a consistent snapshot version V* instead of
// staging conflict-tracking reads.
// Grounded on original_source/deptran/dtxn.h's
// `class RO6DTxn : public RCCDTxn` — the original leaves it an empty
// override point; the snapshot-version read path is the one substantive
// addition here.
type RO6DTxn struct {
	*RCCDTxn
}

func newRO6DTxn(tid int64, mgr *DTxnMgr) *RO6DTxn {
	return &RO6DTxn{RCCDTxn: newRCCDTxn(tid, mgr)}
}

// SnapshotRead reads col of row at the coordinator-chosen snapshot
// version v. The coordinator derives v from the set of concurrent
// writers it observed, so that every shard's value is consistent with
// one global commit order.
func (t *RO6DTxn) SnapshotRead(row *mdb.MultiVersionedRow, col int, v uint64) (mdb.Value, error) {
	val, err := row.GetColumnByVersion(col, v)
	if err != nil {
		return mdb.Value{}, ErrStaleSnapshot
	}
	return val, nil
}
