package rococo

import (
	"sync"

	"github.com/rococo-db/txnengine/mdb"
)

// PieceStatus tracks one piece's lock-acquisition progress under 2PL/OCC,
// grounded on original_source/deptran/dtxn.h's mdb::Txn2PL::PieceStatus
// reference in TPL::get_2pl_fail_callback/get_2pl_succ_callback.
type PieceStatus int

const (
	PieceWaiting PieceStatus = iota
	PieceAcquired
	PieceAborted
)

// LockRequest names one (row, column) a piece needs, and whether it needs
// write or read access. The lock taken is Row's whole-row lock; Col is
// not consulted when acquiring.
type LockRequest struct {
	Row   *mdb.CoarseLockedRow
	Col   int
	Write bool
}

// txnLocks tracks, per transaction, every row lock it currently holds so
// DoCommit/DoAbort can release them all.
type txnLocks struct {
	mu   sync.Mutex
	held map[*mdb.CoarseLockedRow]bool
}

func newTxnLocks() *txnLocks {
	return &txnLocks{held: make(map[*mdb.CoarseLockedRow]bool)}
}

func (l *txnLocks) add(row *mdb.CoarseLockedRow) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[row] = true
}

func (l *txnLocks) releaseAll(ts mdb.TxnTS) {
	l.mu.Lock()
	rows := make([]*mdb.CoarseLockedRow, 0, len(l.held))
	for r := range l.held {
		rows = append(rows, r)
	}
	l.held = make(map[*mdb.CoarseLockedRow]bool)
	l.mu.Unlock()

	for _, r := range rows {
		r.Unlock(ts)
	}
}

// Txn2PL accumulates the lock set one transaction acquires across every
// one of its PreExecute2PL piece invocations, so that a lock granted to
// an early piece is still held when a later piece of the same
// transaction runs. Grounded on original_source/deptran/dtxn.h's
// mdb::Txn2PL, which TPL carries across do_prepare/do_commit/do_abort
// rather than releasing per piece.
type Txn2PL struct {
	ts    mdb.TxnTS
	locks *txnLocks
}

// TPL provides the two transaction-lifecycle lock phases and the
// proceed/success/fail callback shape the defer==DFNo immediate path
// uses under two-phase locking: PreExecute2PL acquires the locks one
// piece needs and adds them to its transaction's held set; DoCommit and
// DoAbort release them, and so does PreExecute2PL itself when a piece's
// lock acquisition or handler fails. Grounded on
// original_source/deptran/dtxn.h's TPL class.
type TPL struct {
	registry *TxnRegistry

	mu   sync.Mutex
	txns map[mdb.TxnTS]*Txn2PL
}

// NewTPL returns a TPL callback factory dispatching through registry.
func NewTPL(registry *TxnRegistry) *TPL {
	return &TPL{registry: registry, txns: make(map[mdb.TxnTS]*Txn2PL)}
}

// getOrCreateTxn returns ts's Txn2PL, creating an empty one on first use.
func (p *TPL) getOrCreateTxn(ts mdb.TxnTS) *Txn2PL {
	p.mu.Lock()
	defer p.mu.Unlock()
	txn, ok := p.txns[ts]
	if !ok {
		txn = &Txn2PL{ts: ts, locks: newTxnLocks()}
		p.txns[ts] = txn
	}
	return txn
}

// releaseTxn drops ts's Txn2PL and releases every lock it accumulated.
// Used by both DoCommit and DoAbort: 2PL releases the same way in either
// case, only the handler effects already applied differ.
func (p *TPL) releaseTxn(ts mdb.TxnTS) {
	p.mu.Lock()
	txn, ok := p.txns[ts]
	if ok {
		delete(p.txns, ts)
	}
	p.mu.Unlock()
	if ok {
		txn.locks.releaseAll(ts)
	}
}

// DoCommit releases every lock ts's transaction has accumulated across
// its pieces. The caller must only call this once the coordinator has
// confirmed every piece reported PieceAcquired. Grounded on
// original_source/deptran/dtxn.h's TPL::do_commit.
func (p *TPL) DoCommit(ts mdb.TxnTS) {
	p.releaseTxn(ts)
}

// DoAbort releases every lock ts's transaction holds without applying
// any further effect, mirroring TPL::do_abort.
func (p *TPL) DoAbort(ts mdb.TxnTS) {
	p.releaseTxn(ts)
}

// OCC embeds TPL unchanged: optimistic concurrency control reuses the
// same proceed/success/fail callback shape, differing only in when locks
// are acquired (at validate/commit time rather than up front) — a
// decision left to the caller's access-set construction, not to these
// callbacks. Grounded on original_source/deptran/dtxn.h's
// `class OCC : public TPL {}` (an intentionally empty subclass).
type OCC struct {
	*TPL
}

// NewOCC returns an OCC callback factory dispatching through registry.
func NewOCC(registry *TxnRegistry) *OCC {
	return &OCC{TPL: NewTPL(registry)}
}

// PreExecute2PL acquires every lock in reqs on behalf of ts, adding them
// to ts's transaction-wide held set, then invokes handler with header
// and input. On success the locks are held across every piece of the
// transaction and released when the caller later calls DoCommit (every
// piece acquired) or DoAbort (any piece failed). If this piece's lock
// acquisition fails, or its handler returns anything but ResultOK,
// PreExecute2PL releases every lock the transaction holds before
// returning PieceAborted. This is
// the one canonical form of the original's two overloaded
// pre_execute_2pl signatures (vector-based and raw-array): reqs names
// the row/column access set explicitly rather than deriving it from a
// separately-registered access descriptor.
func (p *TPL) PreExecute2PL(
	header RequestHeader,
	ts mdb.TxnTS,
	input []mdb.Value,
	reqs []LockRequest,
) (output []mdb.Value, res Result, status PieceStatus) {
	handler, _ := p.registry.GetForHeader(header)
	txn := p.getOrCreateTxn(ts)

	var acquireErr error
	done := make(chan struct{}, 1)

	proceed := p.getProceedCallback(ts, reqs, txn.locks, done, &acquireErr)
	proceed()
	<-done

	if acquireErr != nil {
		// a lock acquisition failure means the transaction cannot proceed
		// under 2PL: release everything it holds, not just this piece's
		// partial acquisition.
		p.releaseTxn(ts)
		return nil, ResultReject, PieceAborted
	}

	out := make([]mdb.Value, 0)
	r := handler(header, input, &out, NewRowMap(), nil, nil, nil)

	if r != ResultOK {
		p.releaseTxn(ts)
		return out, r, PieceAborted
	}
	return out, ResultOK, PieceAcquired
}

// getProceedCallback enqueues a row lock request for every entry of reqs
// (read or write per entry); once all are granted it signals done. Any single failure aborts
// the whole acquisition and signals done with acquireErr set. Adapted to
// a synchronous wait on a done channel (see PreExecute2PL) since a piece
// handler invocation is itself synchronous.
func (p *TPL) getProceedCallback(ts mdb.TxnTS, reqs []LockRequest, locks *txnLocks, done chan struct{}, acquireErr *error) func() {
	return func() {
		if len(reqs) == 0 {
			done <- struct{}{}
			return
		}
		var wg sync.WaitGroup
		wg.Add(len(reqs))
		var mu sync.Mutex
		var firstErr error

		for _, req := range reqs {
			req := req
			grant := func() {
				locks.add(req.Row)
				wg.Done()
			}
			fail := func(err error) {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				wg.Done()
			}
			if req.Write {
				req.Row.WLock(ts, grant, fail)
			} else {
				req.Row.RLock(ts, grant, fail)
			}
		}

		wg.Wait()
		*acquireErr = firstErr
		done <- struct{}{}
	}
}
