package mdb

import (
	"sync"
	"time"

	"github.com/pingcap/failpoint"
)

// LockPolicy selects the deadlock-avoidance strategy an ALock uses when a
// lock request conflicts with existing holders. Mechanically this
// replaces the fixed wait-or-detect scheme in lockwaiter.Manager (moved
// out of tree) with three interchangeable policies, each ALock taking its
// policy when it is constructed.
type LockPolicy int

const (
	// PolicyWaitDie aborts the requester if it is younger than any
	// conflicting holder; otherwise it queues and waits.
	PolicyWaitDie LockPolicy = iota
	// PolicyWoundDie aborts conflicting holders that are younger than the
	// requester (by asking them to release), and queues the requester to
	// wait for older holders.
	PolicyWoundDie
	// PolicyTimeout queues unconditionally and fails the request if it is
	// not granted before its timeout elapses.
	PolicyTimeout
)

// TxnTS is a transaction timestamp used to order requesters for wait-die
// and wound-die: smaller is older.
type TxnTS uint64

// GrantFunc is invoked, at most once, when a lock request is granted.
// FailFunc is invoked, at most once, when a request is refused under
// wait-die, times out, or is wounded under wound-die. A wounded holder has
// already received its GrantFunc before its FailFunc. A request canceled
// via AbortLockReq receives neither callback.
type GrantFunc func()
type FailFunc func(err error)

// ErrLockDied is passed to a wait-die/wound-die victim's FailFunc.
var ErrLockDied = newProtocolViolation("lock request aborted by deadlock-avoidance policy")

// ErrLockTimeout is passed to a PolicyTimeout requester's FailFunc.
var ErrLockTimeout = newProtocolViolation("lock request timed out")

// lockReq is one pending or granted request against an ALock.
type lockReq struct {
	ts      TxnTS
	write   bool
	grant   GrantFunc
	fail    FailFunc
	timer   *time.Timer
	granted bool
}

// ALock is an adaptive single-cell lock: it grants at most one writer, or
// any number of concurrent readers, and never blocks the calling
// goroutine — grant/fail are delivered asynchronously via callback, so
// worker pools never park a thread on a lock acquisition. Grounded on
// lockwaiter.Manager's queue-of-waiters shape, adapted from
// channel-blocking Wait() to callback delivery.
type ALock struct {
	mu      sync.Mutex
	policy  LockPolicy
	timeout time.Duration

	holders []*lockReq
	waiters []*lockReq
}

// NewALock constructs an ALock using policy. timeout is only consulted
// under PolicyTimeout.
func NewALock(policy LockPolicy, timeout time.Duration) *ALock {
	return &ALock{policy: policy, timeout: timeout}
}

// nsToDuration converts a millisecond count, as carried by config.Config,
// into a time.Duration. Defined here since ALock is the only consumer of
// a raw integer timeout.
func nsToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (l *ALock) conflicts(write bool) bool {
	if len(l.holders) == 0 {
		return false
	}
	if write {
		return true
	}
	// a read request only conflicts with a write holder
	return l.holders[0].write
}

// RegWLock requests exclusive access on behalf of ts. Exactly one of grant
// or fail will eventually be called, possibly synchronously if the lock is
// immediately available.
func (l *ALock) RegWLock(ts TxnTS, grant GrantFunc, fail FailFunc) {
	l.reg(ts, true, grant, fail)
}

// RegRLock requests shared access on behalf of ts.
func (l *ALock) RegRLock(ts TxnTS, grant GrantFunc, fail FailFunc) {
	l.reg(ts, false, grant, fail)
}

func (l *ALock) reg(ts TxnTS, write bool, grant GrantFunc, fail FailFunc) {
	failpoint.Inject("alockRegDelay", func() {
		time.Sleep(time.Millisecond)
	})

	l.mu.Lock()

	if !l.conflicts(write) {
		req := &lockReq{ts: ts, write: write, grant: grant, fail: fail, granted: true}
		l.holders = append(l.holders, req)
		l.mu.Unlock()
		grant()
		return
	}

	switch l.policy {
	case PolicyWaitDie:
		if l.youngerThanAnyHolder(ts) {
			l.mu.Unlock()
			fail(ErrLockDied)
			return
		}
		l.enqueue(ts, write, grant, fail, 0)
		l.mu.Unlock()

	case PolicyWoundDie:
		wounded := l.woundYoungerHolders(ts)
		granted := !l.conflicts(write)
		if granted {
			l.holders = append(l.holders, &lockReq{ts: ts, write: write, grant: grant, fail: fail, granted: true})
		} else {
			l.enqueue(ts, write, grant, fail, 0)
		}
		l.mu.Unlock()
		for _, w := range wounded {
			w.fail(ErrLockDied)
		}
		if granted {
			grant()
		}

	case PolicyTimeout:
		req := l.enqueue(ts, write, grant, fail, l.timeout)
		l.mu.Unlock()
		_ = req

	default:
		l.mu.Unlock()
		Verify(false, "ALock: unknown policy %d", l.policy)
	}
}

// youngerThanAnyHolder reports whether ts is younger (larger) than any
// current holder, i.e. whether ts should die under wait-die.
func (l *ALock) youngerThanAnyHolder(ts TxnTS) bool {
	for _, h := range l.holders {
		if ts > h.ts {
			return true
		}
	}
	return false
}

// woundYoungerHolders removes holders younger than ts from the holder set
// and returns them so the caller can invoke their fail callbacks outside
// the lock. Grounded on wound-die's "requester wounds younger holders"
// rule.
func (l *ALock) woundYoungerHolders(ts TxnTS) []*lockReq {
	var wounded []*lockReq
	remaining := l.holders[:0]
	for _, h := range l.holders {
		if ts < h.ts {
			wounded = append(wounded, h)
		} else {
			remaining = append(remaining, h)
		}
	}
	l.holders = remaining
	return wounded
}

// enqueue must be called with l.mu held. It appends a new waiter, wiring
// an optional abort timer.
func (l *ALock) enqueue(ts TxnTS, write bool, grant GrantFunc, fail FailFunc, timeout time.Duration) *lockReq {
	req := &lockReq{ts: ts, write: write, grant: grant, fail: fail}
	if timeout > 0 {
		req.timer = time.AfterFunc(timeout, func() { l.timeoutWaiter(req) })
	}
	l.waiters = append(l.waiters, req)
	return req
}

func (l *ALock) timeoutWaiter(req *lockReq) {
	l.mu.Lock()
	removed := l.removeWaiter(req)
	l.mu.Unlock()
	if removed {
		req.fail(ErrLockTimeout)
	}
}

func (l *ALock) removeWaiter(req *lockReq) bool {
	for i, w := range l.waiters {
		if w == req {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// AbortLockReq cancels a pending (not yet granted) request. It is a no-op
// if the request has already been granted or has already failed.
func (l *ALock) AbortLockReq(ts TxnTS, write bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w.ts == ts && w.write == write {
			if w.timer != nil {
				w.timer.Stop()
			}
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}

// UnlockBy releases ts's hold (of either mode) and promotes waiters that
// can now proceed. Grants are delivered after l.mu is released.
func (l *ALock) UnlockBy(ts TxnTS) {
	l.mu.Lock()

	remaining := l.holders[:0]
	found := false
	for _, h := range l.holders {
		if h.ts == ts {
			found = true
			continue
		}
		remaining = append(remaining, h)
	}
	l.holders = remaining
	if !found {
		l.mu.Unlock()
		return
	}

	var toGrant []*lockReq
	for len(l.waiters) > 0 {
		next := l.waiters[0]
		if l.conflicts(next.write) {
			break
		}
		l.waiters = l.waiters[1:]
		if next.timer != nil {
			next.timer.Stop()
		}
		next.granted = true
		l.holders = append(l.holders, next)
		toGrant = append(toGrant, next)
		if next.write {
			// a granted writer blocks everything behind it
			break
		}
	}
	l.mu.Unlock()

	for _, req := range toGrant {
		req.grant()
	}
}

// HolderCount reports the number of current holders, for tests and
// diagnostics.
func (l *ALock) HolderCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holders)
}
