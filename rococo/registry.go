package rococo

import (
	"fmt"
	"sync"

	"github.com/rococo-db/txnengine/mdb"
)

// DeferT classifies how a registered piece's effects are staged.
// Grounded on original_source/deptran/dtxn.h's defer_t enum.
type DeferT int

const (
	// DFReal defers write effects until the enclosing transaction
	// decides; conflicting reads record dependency edges.
	DFReal DeferT = iota
	// DFNo executes immediately (read-only, or externally idempotent).
	DFNo
	// DFFake is marked deferred for protocol bookkeeping but is a no-op
	// at execute time.
	DFFake
)

// Result codes returned by a piece invocation.
type Result int32

const (
	ResultOK Result = iota
	ResultReject
	ResultStaleVersion
	ResultInternal
)

// RequestHeader carries a piece invocation's routing and transaction
// identity, grounded on the RequestHeader parameter threaded through
// every handler signature in original_source/deptran/dtxn.h.
type RequestHeader struct {
	TType int32
	PType int32
	Tid   int64
	Sid   int32
}

// RowMap is the set of rows a deferred piece has staged, keyed by table
// name then by the row's rendered primary key. Grounded on
// original_source/deptran/dtxn.h's row_map_t
// (unordered_map<char*, unordered_map<MultiBlob, Row*>>).
type RowMap map[string]map[string]*mdb.Row

// NewRowMap returns an empty RowMap.
func NewRowMap() RowMap { return make(RowMap) }

// Put stages row under table, keyed by its own primary key.
func (m RowMap) Put(table string, row *mdb.Row) {
	rows, ok := m[table]
	if !ok {
		rows = make(map[string]*mdb.Row)
		m[table] = rows
	}
	rows[row.GetKey().String()] = row
}

// Get retrieves a previously staged row.
func (m RowMap) Get(table string, key mdb.MultiValue) *mdb.Row {
	rows, ok := m[table]
	if !ok {
		return nil
	}
	return rows[key.String()]
}

// TxnHandler is a pre-declared piece implementation. row_map, pv, tv, and
// roConflict are only meaningful when the piece runs under RCC; TPL/OCC
// invocations pass an empty RowMap and nil for the other three.
type TxnHandler func(
	header RequestHeader,
	input []mdb.Value,
	output *[]mdb.Value,
	rowMap RowMap,
	pv *PieVertex,
	tv *TxnVertex,
	roConflict *[]*TxnInfo,
) Result

// PieVertex is the piece-level dependency vertex passed to a handler
// under RCC, grounded on original_source/deptran/dtxn.h's Vertex<PieInfo>
// parameter.
type PieVertex struct {
	Info PieInfo
}

type handlerEntry struct {
	handler TxnHandler
	defer_  DeferT
}

// TxnRegistry is the process-wide, write-once (t_type, p_type) -> handler
// map. Grounded on original_source/deptran/dtxn.h's TxnRegistry
// (reg/get, both fatal on misuse), restructured from C++ static member
// functions into an explicit instance so tests can build independent
// registries rather than sharing hidden global state.
type TxnRegistry struct {
	mu       sync.RWMutex
	handlers map[regKey]handlerEntry
}

type regKey struct {
	tType int32
	pType int32
}

// NewTxnRegistry returns an empty registry.
func NewTxnRegistry() *TxnRegistry {
	return &TxnRegistry{handlers: make(map[regKey]handlerEntry)}
}

// Reg registers handler for (tType, pType) with the given defer policy.
// Fatal if the pair is already registered (append-only).
func (r *TxnRegistry) Reg(tType, pType int32, defer_ DeferT, handler TxnHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := regKey{tType, pType}
	_, exists := r.handlers[key]
	mdb.Verify(!exists, "TxnRegistry.Reg: duplicate registration for (t_type=%d, p_type=%d)", tType, pType)
	r.handlers[key] = handlerEntry{handler: handler, defer_: defer_}
}

// Get returns the handler and defer policy for (tType, pType). Fatal if
// unregistered: unregistered lookups are a bug, not a runtime error.
func (r *TxnRegistry) Get(tType, pType int32) (TxnHandler, DeferT) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.handlers[regKey{tType, pType}]
	mdb.Verify(ok, "TxnRegistry.Get: no handler registered for (t_type=%d, p_type=%d)", tType, pType)
	return e.handler, e.defer_
}

// GetForHeader resolves the handler named by header.
func (r *TxnRegistry) GetForHeader(header RequestHeader) (TxnHandler, DeferT) {
	return r.Get(header.TType, header.PType)
}

func (k regKey) String() string {
	return fmt.Sprintf("(%d,%d)", k.tType, k.pType)
}
