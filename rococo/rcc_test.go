package rococo

import (
	"testing"

	"github.com/pingcap/failpoint"
	"github.com/rococo-db/txnengine/mdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tTypeTransfer int32 = 1
	pTypeDebit    int32 = 1
	pTypeCredit   int32 = 2
	pTypeBalance  int32 = 3
)

func newTransferRegistry(defer_ DeferT, tbl *mdb.Table) *TxnRegistry {
	r := NewTxnRegistry()
	r.Reg(tTypeTransfer, pTypeDebit, defer_, balanceHandler(tbl, -100))
	r.Reg(tTypeTransfer, pTypeCredit, defer_, balanceHandler(tbl, 100))
	r.Reg(tTypeTransfer, pTypeBalance, DFNo, balanceHandler(tbl, 0))
	return r
}

func TestRCCDTxnStartDefersRealPieces(t *testing.T) {
	registry := newTransferRegistry(DFReal, newAccountsTable(testAccountSchema()))
	mgr := NewDTxnMgr(ModeRCC, registry, NewDepGraph())
	dt, err := mgr.Create(1)
	require.NoError(t, err)
	txn := dt.(*RCCDTxn)

	deferred, out, res := txn.Start(RequestHeader{TType: tTypeTransfer, PType: pTypeDebit, Tid: 1}, []mdb.Value{mdb.I64(1)})
	assert.True(t, deferred)
	assert.Nil(t, out)
	assert.Equal(t, ResultOK, res)
}

func TestRCCDTxnStartRunsDFNoImmediately(t *testing.T) {
	registry := newTransferRegistry(DFReal, newAccountsTable(testAccountSchema()))
	mgr := NewDTxnMgr(ModeRCC, registry, NewDepGraph())
	dt, err := mgr.Create(1)
	require.NoError(t, err)
	txn := dt.(*RCCDTxn)

	deferred, out, res := txn.Start(RequestHeader{TType: tTypeTransfer, PType: pTypeBalance, Tid: 1}, []mdb.Value{mdb.I64(1)})
	assert.False(t, deferred)
	assert.Equal(t, ResultOK, res)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1000), out[0].I64())
}

func TestRCCDTxnCommitExecutesDeferredPieces(t *testing.T) {
	tbl := newAccountsTable(testAccountSchema())
	registry := newTransferRegistry(DFReal, tbl)
	dep := NewDepGraph()
	mgr := NewDTxnMgr(ModeRCC, registry, dep)

	dt, err := mgr.Create(1)
	require.NoError(t, err)
	txn := dt.(*RCCDTxn)

	deferred, _, res := txn.Start(RequestHeader{TType: tTypeTransfer, PType: pTypeDebit, Tid: 1}, []mdb.Value{mdb.I64(1)})
	require.True(t, deferred)
	require.Equal(t, ResultOK, res)

	var response FinishResponse
	committed := false
	txn.Commit(FinishRequest{Tid: 1}, func(r FinishResponse) {
		response = r
		committed = true
	})

	assert.True(t, committed)
	assert.Equal(t, int64(1), response.Tid)
	assert.True(t, response.Committed)

	row := tbl.Get(mdb.NewMultiValue(mdb.I64(1)))
	require.NotNil(t, row)
	assert.Equal(t, int64(900), row.GetColumn(2).I64(), "the deferred debit must have been applied by ExeDeferred")
}

func TestRCCDTxnToDecideWaitsForAncestors(t *testing.T) {
	tbl := newAccountsTable(testAccountSchema())
	registry := newTransferRegistry(DFReal, tbl)
	dep := NewDepGraph()
	mgr := NewDTxnMgr(ModeRCC, registry, dep)

	dt1, err := mgr.Create(1)
	require.NoError(t, err)
	dt2, err := mgr.Create(2)
	require.NoError(t, err)
	txn1 := dt1.(*RCCDTxn)
	txn2 := dt2.(*RCCDTxn)

	_, _, _ = txn1.Start(RequestHeader{TType: tTypeTransfer, PType: pTypeDebit, Tid: 1}, []mdb.Value{mdb.I64(1)})
	_, _, _ = txn2.Start(RequestHeader{TType: tTypeTransfer, PType: pTypeCredit, Tid: 2}, []mdb.Value{mdb.I64(2)})

	dep.AddEdge(1, 2, EdgeWW) // txn2 depends on txn1

	decided2 := false
	tv2 := dep.GetOrCreate(2)
	txn2.ToDecide(tv2, func(FinishResponse) { decided2 = true })
	assert.False(t, decided2, "txn2 must wait for txn1 to decide first")

	decided1 := false
	tv1 := dep.GetOrCreate(1)
	txn1.ToDecide(tv1, func(FinishResponse) { decided1 = true })
	assert.True(t, decided1)
	assert.True(t, decided2, "txn2 must become ready once its ancestor decides")
}

func TestRCCDTxnStartROCollectsConflicts(t *testing.T) {
	registry := NewTxnRegistry()
	registry.Reg(tTypeTransfer, pTypeBalance, DFNo, func(header RequestHeader, input []mdb.Value, output *[]mdb.Value, rowMap RowMap, pv *PieVertex, tv *TxnVertex, roConflict *[]*TxnInfo) Result {
		*roConflict = append(*roConflict, &TxnInfo{Tid: 42})
		return ResultOK
	})
	mgr := NewDTxnMgr(ModeRCC, registry, NewDepGraph())
	dt, err := mgr.Create(9)
	require.NoError(t, err)
	txn := dt.(*RCCDTxn)

	_, conflicts, res := txn.StartRO(RequestHeader{TType: tTypeTransfer, PType: pTypeBalance, Tid: 9}, nil)
	assert.Equal(t, ResultOK, res)
	require.Len(t, conflicts, 1)
	assert.Equal(t, int64(42), conflicts[0].Tid)
}

func TestRCCDTxnToDecideAsksOnGraphIncomplete(t *testing.T) {
	registry := newTransferRegistry(DFReal, newAccountsTable(testAccountSchema()))
	dep := NewDepGraph()
	mgr := NewDTxnMgr(ModeRCC, registry, dep)
	dt, err := mgr.Create(1)
	require.NoError(t, err)
	txn := dt.(*RCCDTxn)

	var asked int64 = -1
	txn.AskReq = func(tid int64) { asked = tid }

	require.NoError(t, failpoint.Enable("github.com/rococo-db/txnengine/rococo/rccGraphIncomplete", "return"))
	defer failpoint.Disable("github.com/rococo-db/txnengine/rococo/rccGraphIncomplete")

	decided := false
	tv := dep.GetOrCreate(1)
	txn.ToDecide(tv, func(FinishResponse) { decided = true })

	assert.Equal(t, int64(1), asked, "ToDecide must ask_req when the graph fragment is incomplete")
	assert.False(t, decided, "onDecided must not fire until the missing vertex arrives and to_decide is retried")
}

func TestRCCDTxnAbortDiscardsDeferredRequests(t *testing.T) {
	registry := newTransferRegistry(DFReal, newAccountsTable(testAccountSchema()))
	mgr := NewDTxnMgr(ModeRCC, registry, NewDepGraph())
	dt, err := mgr.Create(1)
	require.NoError(t, err)
	txn := dt.(*RCCDTxn)

	_, _, _ = txn.Start(RequestHeader{TType: tTypeTransfer, PType: pTypeDebit, Tid: 1}, []mdb.Value{mdb.I64(1)})
	txn.Abort()

	outputs := txn.ExeDeferred()
	assert.Empty(t, outputs)
}
