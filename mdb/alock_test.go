package mdb

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestALockGrantsImmediatelyWhenUncontended(t *testing.T) {
	l := NewALock(PolicyWaitDie, 0)
	var granted bool
	l.RegWLock(1, func() { granted = true }, func(error) { t.Fatal("unexpected fail") })
	assert.True(t, granted)
	assert.Equal(t, 1, l.HolderCount())
}

func TestALockReadersShareTheLock(t *testing.T) {
	l := NewALock(PolicyWaitDie, 0)
	var grants int
	g := func() { grants++ }
	f := func(error) { t.Fatal("unexpected fail") }
	l.RegRLock(1, g, f)
	l.RegRLock(2, g, f)
	assert.Equal(t, 2, grants)
	assert.Equal(t, 2, l.HolderCount())
}

func TestALockWaitDieYoungerRequesterDies(t *testing.T) {
	l := NewALock(PolicyWaitDie, 0)
	l.RegWLock(10, func() {}, func(error) { t.Fatal("holder should not fail") })

	var failed error
	// ts=20 is younger (larger) than the holder at ts=10: must die.
	l.RegWLock(20, func() { t.Fatal("younger requester should not be granted") }, func(err error) {
		failed = err
	})

	assert.Equal(t, ErrLockDied, failed)
	assert.Equal(t, 1, l.HolderCount())
}

func TestALockWaitDieOlderRequesterWaitsThenGranted(t *testing.T) {
	l := NewALock(PolicyWaitDie, 0)
	l.RegWLock(20, func() {}, func(error) { t.Fatal("holder should not fail") })

	granted := false
	// ts=10 is older than the holder at ts=20: it waits rather than dying.
	l.RegWLock(10, func() { granted = true }, func(error) { t.Fatal("older requester should not die") })
	assert.False(t, granted, "older requester must queue, not be granted immediately")

	l.UnlockBy(20)
	assert.True(t, granted)
	assert.Equal(t, 1, l.HolderCount())
}

func TestALockWoundDieWoundsYoungerHolders(t *testing.T) {
	l := NewALock(PolicyWoundDie, 0)

	var woundedErr error
	l.RegWLock(20, func() {}, func(err error) { woundedErr = err })

	granted := false
	// ts=10 is older than the holder at ts=20: wound-die wounds the holder.
	l.RegWLock(10, func() { granted = true }, func(error) { t.Fatal("unexpected fail") })

	require.NotNil(t, woundedErr)
	assert.Equal(t, ErrLockDied, woundedErr)
	assert.True(t, granted)
	assert.Equal(t, 1, l.HolderCount())
}

func TestALockWoundDieOlderHolderSurvives(t *testing.T) {
	l := NewALock(PolicyWoundDie, 0)
	l.RegWLock(10, func() {}, func(error) { t.Fatal("older holder should not be wounded") })

	granted := false
	// ts=20 is younger than the holder at ts=10: requester queues instead.
	l.RegWLock(20, func() { granted = true }, func(error) { t.Fatal("unexpected fail") })
	assert.False(t, granted)
	assert.Equal(t, 1, l.HolderCount())

	l.UnlockBy(10)
	assert.True(t, granted)
}

func TestALockTimeoutPolicyFailsAfterDeadline(t *testing.T) {
	l := NewALock(PolicyTimeout, 10*time.Millisecond)
	l.RegWLock(1, func() {}, func(error) { t.Fatal("holder should not fail") })

	var wg sync.WaitGroup
	wg.Add(1)
	var failErr error
	l.RegWLock(2, func() { t.Fatal("should not be granted before timeout") }, func(err error) {
		failErr = err
		wg.Done()
	})

	wg.Wait()
	assert.Equal(t, ErrLockTimeout, failErr)
}

func TestALockTimeoutPolicyGrantedBeforeDeadlineCancelsTimer(t *testing.T) {
	l := NewALock(PolicyTimeout, 50*time.Millisecond)
	l.RegWLock(1, func() {}, func(error) { t.Fatal("holder should not fail") })

	granted := false
	l.RegWLock(2, func() { granted = true }, func(error) { t.Fatal("should not time out") })

	l.UnlockBy(1)
	assert.True(t, granted)
}

func TestALockAbortLockReqRemovesWaiter(t *testing.T) {
	l := NewALock(PolicyTimeout, time.Second)
	l.RegWLock(1, func() {}, func(error) { t.Fatal("holder should not fail") })

	l.RegWLock(2, func() { t.Fatal("should never be granted") }, func(error) { t.Fatal("should never fail, it was aborted") })
	l.AbortLockReq(2, true)

	l.UnlockBy(1)
	assert.Equal(t, 0, l.HolderCount())
}
