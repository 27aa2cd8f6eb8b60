package rococo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMgr(mode Mode) *DTxnMgr {
	return NewDTxnMgr(mode, NewTxnRegistry(), NewDepGraph())
}

func TestDTxnMgrCreateRCC(t *testing.T) {
	mgr := newTestMgr(ModeRCC)
	dt, err := mgr.Create(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dt.Tid())

	_, ok := dt.(*RCCDTxn)
	assert.True(t, ok)
}

func TestDTxnMgrCreateROT(t *testing.T) {
	mgr := newTestMgr(ModeROT)
	dt, err := mgr.Create(2)
	require.NoError(t, err)

	_, ok := dt.(*RO6DTxn)
	assert.True(t, ok)
}

func TestDTxnMgrGetAndDestroy(t *testing.T) {
	mgr := newTestMgr(ModeRCC)
	_, err := mgr.Create(5)
	require.NoError(t, err)

	dt := mgr.Get(5)
	assert.Equal(t, int64(5), dt.Tid())

	mgr.Destroy(5)
	_, ok := mgr.lookup(5)
	assert.False(t, ok)
}

func TestDTxnMgrGetOrCreateReusesExisting(t *testing.T) {
	mgr := newTestMgr(ModeRCC)
	dt1, err := mgr.GetOrCreate(7)
	require.NoError(t, err)
	dt2, err := mgr.GetOrCreate(7)
	require.NoError(t, err)
	assert.Same(t, dt1, dt2)
}

func TestDTxnMgrRegAndGetTable(t *testing.T) {
	mgr := newTestMgr(ModeRCC)
	schema := testAccountSchema()
	tbl := newAccountsTable(schema)
	mgr.RegTable("accounts", tbl)

	assert.Same(t, tbl, mgr.GetTable("accounts"))
	assert.Nil(t, mgr.GetTable("missing"))
}
