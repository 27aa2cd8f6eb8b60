package mdb

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/ngaut/log"
)

// Verify reports a ProtocolViolation: a program-invariant violation
// treated as fatal rather than recoverable (unregistered handler lookups,
// readonly updates, kind mismatches, schema errors).
// Grounded on original_source/memdb/row.h and dtxn.h's pervasive
// verify(...) macro — Go has no abort-macro idiom, so this logs fatally,
// matching how the corpus (kv/tikv/raftstore) treats invariant violations.
func Verify(cond bool, format string, args ...interface{}) {
	if !cond {
		log.Fatalf("mdb: protocol violation: "+format, args...)
	}
}

// ErrProtocolViolation wraps a non-fatal-at-the-call-site but still
// protocol-level error, used where the caller (rather than mdb itself)
// should decide whether to escalate to a fatal abort. FineLockedRow.Copy
// returns this rather than calling Verify, since copying a fine-locked
// row is a caller mistake the original port intentionally refuses to
// paper over.
type ErrProtocolViolation struct {
	Reason string
}

func (e *ErrProtocolViolation) Error() string {
	return fmt.Sprintf("mdb: protocol violation: %s", e.Reason)
}

func newProtocolViolation(format string, args ...interface{}) error {
	return errors.Trace(&ErrProtocolViolation{Reason: fmt.Sprintf(format, args...)})
}

// ErrStaleVersion is returned by MultiVersionedRow.GetColumnByVersion when
// the requested version has been garbage collected.
var ErrStaleVersion = errors.New("mdb: requested version has been garbage collected")
