package mdb

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFineLockedRow() *FineLockedRow {
	return NewFineLockedRow(testRow(testSchema()), PolicyWaitDie, 0)
}

func TestFineLockedRowDisjointColumnsDoNotConflict(t *testing.T) {
	r := testFineLockedRow()

	g1, g2 := false, false
	r.WLockColumn(1, 1, func() { g1 = true }, func(error) { t.Fatal("unexpected fail") })
	r.WLockColumn(2, 2, func() { g2 = true }, func(error) { t.Fatal("unexpected fail") })

	assert.True(t, g1)
	assert.True(t, g2)
}

func TestFineLockedRowSameColumnConflicts(t *testing.T) {
	r := testFineLockedRow()
	r.WLockColumn(1, 10, func() {}, func(error) { t.Fatal("holder should not fail") })

	failed := false
	r.WLockColumn(1, 20, func() { t.Fatal("should not be granted") }, func(error) { failed = true })
	assert.True(t, failed, "younger requester on the same column must die under wait-die")
}

func TestFineLockedRowUnlockAllReleasesEveryColumn(t *testing.T) {
	r := testFineLockedRow()
	r.WLockColumn(0, 1, func() {}, func(error) { t.Fatal("unexpected fail") })
	r.WLockColumn(1, 1, func() {}, func(error) { t.Fatal("unexpected fail") })

	r.UnlockAll(1)

	granted := false
	r.WLockColumn(0, 2, func() { granted = true }, func(error) { t.Fatal("unexpected fail") })
	assert.True(t, granted)
}

func TestFineLockedRowCopyUnsupported(t *testing.T) {
	r := testFineLockedRow()
	c, err := r.Copy()
	require.Nil(t, c)
	require.Error(t, err)

	_, ok := errors.Cause(err).(*ErrProtocolViolation)
	assert.True(t, ok)
}
