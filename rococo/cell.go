// Package rococo implements the transaction registry, dependency graph,
// and deferred-execution commit protocol (RCC), its read-only fast path
// (RO-6), and the 2PL/OCC lock-acquisition helpers that drive mdb.Row
// variants at runtime.
package rococo

import (
	"github.com/dgryski/go-farm"

	"github.com/rococo-db/txnengine/mdb"
)

// CellLocator identifies one cell — a single column of a single row in a
// named table — for dependency tracking. Grounded on
// original_source/deptran/dtxn.h's cell_locator.
type CellLocator struct {
	Table string
	Key   mdb.MultiValue
	Col   int
}

// Equal reports whether two locators name the same cell.
func (c CellLocator) Equal(o CellLocator) bool {
	return c.Table == o.Table && c.Col == o.Col && c.Key.Equal(o.Key)
}

// Less gives CellLocator a total order: table name, then column id, then
// primary key, matching cell_locator::operator< in the original.
func (c CellLocator) Less(o CellLocator) bool {
	if c.Table != o.Table {
		return c.Table < o.Table
	}
	if c.Col != o.Col {
		return c.Col < o.Col
	}
	return c.Key.Less(o.Key)
}

// Hash combines the table name, column id, and key hashes, grounded on
// cell_locator_hasher.
func (c CellLocator) Hash() uint64 {
	ret := farm.Fingerprint64([]byte(c.Table))
	ret <<= 1
	ret ^= uint64(c.Col)
	ret <<= 1
	ret ^= c.Key.Hash()
	return ret
}

// EntryT is the per-cell dependency tracker: it remembers the most
// recent writer vertex that touched the cell. Grounded on
// original_source/deptran/dtxn.h's entry_t.
type EntryT struct {
	last *TxnVertex
}

// Touch records tv as the cell's latest writer. If a previous writer
// exists and differs from tv, it adds a dependency edge from that
// previous writer to tv in dg, labeled immediate when the write must be
// ordered in the commit decision (a true W-W conflict) and EdgeWR
// otherwise (a write that merely follows a read in program order).
func (e *EntryT) Touch(dg *DepGraph, tv *TxnVertex, immediate bool) {
	prev := e.last
	e.last = tv
	if prev == nil || prev.Tid == tv.Tid {
		return
	}
	kind := EdgeWR
	if immediate {
		kind = EdgeWW
	}
	dg.AddEdge(prev.Tid, tv.Tid, kind)
}

// RoTouch appends the cell's last writer's TxnInfo to conflictTxns, used
// by RCCDTxn.StartRO to stage a R-after-W dependency for the coordinator
// to wait out.
func (e *EntryT) RoTouch(conflictTxns *[]*TxnInfo) {
	if e.last != nil {
		*conflictTxns = append(*conflictTxns, &e.last.Info)
	}
}
