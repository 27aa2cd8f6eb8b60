package rococo

import (
	"sync"

	"github.com/juju/errors"
	"github.com/ngaut/log"
	"github.com/pingcap/failpoint"

	"github.com/rococo-db/txnengine/mdb"
)

// ErrGraphIncomplete marks a commit decision that needs a vertex not yet
// present in the local graph fragment: issue ask_req and defer the reply
// rather than fail outright. The dependency-graph transport that would
// carry the requested subgraph back is out of scope; RCCDTxn.AskReq is
// the seam an external coordinator wires a real push/pull into.
var ErrGraphIncomplete = errors.New("rococo: dependency graph incomplete, unknown vertex referenced")

// rccState is RCCDTxn's lifecycle state machine: Started ->
// (Deferred|Immediate piece executions) -> FinishRequested -> Decided ->
// Applied | Aborted.
type rccState int

const (
	rccStarted rccState = iota
	rccFinishRequested
	rccDecided
	rccApplied
	rccAborted
)

// DeferredRequest is one piece execution staged for later replay at
// commit-decide time. Grounded on
// original_source/deptran/dtxn.h's DeferredRequest (header, inputs,
// row_map).
type DeferredRequest struct {
	Header RequestHeader
	Inputs []mdb.Value
	RowMap RowMap
}

// GraphEdge is one edge of a dependency-graph fragment carried on a
// FinishRequest, as assembled by the (out-of-scope) coordinator from
// every shard's per-cell EntryT.Touch calls.
type GraphEdge struct {
	From, To int64
	Kind     edgeKind
}

// FinishRequest is the coordinator's request to commit tid, carrying the
// globally assembled dependency-graph fragment for merge into dep_s.
type FinishRequest struct {
	Tid   int64
	Edges []GraphEdge
}

// FinishResponse reports whether tid committed.
type FinishResponse struct {
	Tid       int64
	Committed bool
}

// PieceOutput is one deferred piece's result, produced by ExeDeferred in
// invocation order.
type PieceOutput struct {
	Header RequestHeader
	Res    Result
	Output []mdb.Value
}

// RCCDTxn is a single server's view of one Rococo-style distributed
// transaction: it stages deferred pieces, tracks per-cell dependency
// edges via EntryT, and commits by waiting for its dependency-graph
// vertex's ancestors to decide before executing its SCC in a
// deterministic order. Grounded on
// original_source/deptran/dtxn.h's RCCDTxn.
type RCCDTxn struct {
	baseDTxn

	registry *TxnRegistry
	dep      *DepGraph

	mu    sync.Mutex
	state rccState
	dreqs []DeferredRequest

	// AskReq is invoked when a vertex referenced by this transaction's
	// dependency graph is unknown locally (an incomplete graph fragment).
	// The dependency-graph transport itself is out of scope; this hook is
	// the seam an external coordinator wires in. Defaults to a log line.
	AskReq func(tid int64)
}

func newRCCDTxn(tid int64, mgr *DTxnMgr) *RCCDTxn {
	return &RCCDTxn{
		baseDTxn: baseDTxn{tid: tid, mgr: mgr},
		registry: mgr.registry,
		dep:      mgr.dep,
		AskReq:   func(tid int64) { log.Infof("rcc: ask_req for unknown vertex tid=%d", tid) },
	}
}

// Start executes or defers one piece. If the piece's defer policy is
// DFReal or DFFake, its invocation is staged as a DeferredRequest and
// deferred is true with no output yet available. If DFNo, it runs
// immediately against this transaction's own dependency-graph vertex, so
// that its reads and writes still participate in dependency tracking.
func (t *RCCDTxn) Start(header RequestHeader, input []mdb.Value) (deferred bool, output []mdb.Value, res Result) {
	handler, defer_ := t.registry.GetForHeader(header)

	if defer_ == DFReal || defer_ == DFFake {
		t.mu.Lock()
		t.dreqs = append(t.dreqs, DeferredRequest{
			Header: header,
			Inputs: append([]mdb.Value(nil), input...),
			RowMap: NewRowMap(),
		})
		t.mu.Unlock()
		return true, nil, ResultOK
	}

	tv := t.dep.GetOrCreate(t.tid)
	out := make([]mdb.Value, 0)
	res = handler(header, input, &out, NewRowMap(), nil, tv, nil)
	return false, out, res
}

// StartRO invokes a piece in read-only mode: every cell it reads appends
// its last writer's TxnInfo to the returned conflict list, which the
// coordinator uses to wait out those transactions before returning a
// linearizable read.
func (t *RCCDTxn) StartRO(header RequestHeader, input []mdb.Value) (output []mdb.Value, conflictTxns []*TxnInfo, res Result) {
	handler, _ := t.registry.GetForHeader(header)
	out := make([]mdb.Value, 0)
	var conflicts []*TxnInfo
	res = handler(header, input, &out, NewRowMap(), nil, nil, &conflicts)
	return out, conflicts, res
}

// Commit merges the coordinator-assembled dependency-graph fragment into
// dep_s and schedules a commit decision. onDecided fires exactly once,
// asynchronously, when the decision is reached — the transaction must
// not reply to the coordinator before that.
func (t *RCCDTxn) Commit(req FinishRequest, onDecided func(FinishResponse)) {
	for _, e := range req.Edges {
		t.dep.AddEdge(e.From, e.To, e.Kind)
	}

	t.mu.Lock()
	t.state = rccFinishRequested
	t.mu.Unlock()

	tv := t.dep.GetOrCreate(t.tid)
	t.ToDecide(tv, onDecided)
}

// ToDecide waits (via callback, never blocking) for every ancestor of tv
// in dep_s to be Decided, then computes the SCC containing tv and
// executes the deferred pieces of every SCC member in deterministic
// order: tid ascending within the SCC.
func (t *RCCDTxn) ToDecide(tv *TxnVertex, onDecided func(FinishResponse)) {
	incomplete := false
	failpoint.Inject("rccGraphIncomplete", func() {
		incomplete = true
	})
	if incomplete {
		// graph incomplete: issue ask_req and defer the reply; the
		// coordinator retries to_decide once the missing vertex arrives.
		t.SendAskReq(tv)
		return
	}

	t.dep.OnAncestorsDecided(tv.Tid, func() {
		members := t.dep.SCCMembers(tv.Tid)

		for _, member := range members {
			t.dep.MarkDecided(member)
			if dt, ok := t.mgr.lookup(member); ok {
				if rcc, ok := dt.(*RCCDTxn); ok {
					rcc.ExeDeferred()
				}
			}
		}

		t.mu.Lock()
		t.state = rccDecided
		t.mu.Unlock()

		if onDecided != nil {
			onDecided(FinishResponse{Tid: t.tid, Committed: true})
		}
	})
}

// ExeDeferred replays every staged DeferredRequest in invocation order,
// invoking each one's handler against its frozen RowMap (DFFake pieces
// are skipped and report ResultOK with no output), and marks the
// transaction Applied once done.
func (t *RCCDTxn) ExeDeferred() []PieceOutput {
	t.mu.Lock()
	dreqs := t.dreqs
	t.mu.Unlock()

	outputs := make([]PieceOutput, 0, len(dreqs))
	tv := t.dep.GetOrCreate(t.tid)
	for _, dr := range dreqs {
		handler, defer_ := t.registry.GetForHeader(dr.Header)
		out := make([]mdb.Value, 0)
		if defer_ == DFFake {
			// DFFake pieces are staged for bookkeeping only: nothing runs.
			outputs = append(outputs, PieceOutput{Header: dr.Header, Res: ResultOK, Output: out})
			continue
		}
		res := handler(dr.Header, dr.Inputs, &out, dr.RowMap, nil, tv, nil)
		outputs = append(outputs, PieceOutput{Header: dr.Header, Res: res, Output: out})
	}

	t.mu.Lock()
	t.state = rccApplied
	t.mu.Unlock()
	return outputs
}

// SendAskReq requests the server owning av's transaction push its
// subgraph, correlated on av.Tid. The actual push is the coordinator's
// concern (dependency-graph transport is out of scope); this just
// invokes the AskReq hook.
func (t *RCCDTxn) SendAskReq(av *TxnVertex) {
	t.AskReq(av.Tid)
}

// Abort discards staged deferred requests and marks the transaction
// Aborted. It does not remove or mark the transaction's vertex in dep_s:
// the vertex and its edges stay in the graph, and successors waiting in
// OnAncestorsDecided keep waiting until that vertex is marked Decided.
func (t *RCCDTxn) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dreqs = nil
	t.state = rccAborted
}
