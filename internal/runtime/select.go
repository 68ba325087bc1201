// ============================================================================
// Bulu Runtime Select - Multi-Channel Readiness Scan
// ============================================================================
//
// Package: internal/runtime
// File: select.go
// Purpose: spec.md §4.4 "Select": scan a set of send/receive cases for one
// that can complete immediately, commit at most one, and otherwise sleep
// briefly and retry until a deadline.
//
// Channels are generic, but a select statement mixes cases over different
// element types, so SelectCase type-erases each case behind a closure built
// by SendCase/ReceiveCase. This is the idiomatic Go answer to the donor
// language's single monomorphic "Case" enum — generics at the construction
// site, an interface-free closure at the scan site.
//
// ============================================================================

package runtime

import (
	"errors"
	"time"
)

// ErrNoCaseReady is returned by SelectTry and by Select once its deadline
// elapses with no case able to complete.
var ErrNoCaseReady = errors.New("runtime: no select case ready")

// SelectCase is one arm of a select. Construct with SendCase or
// ReceiveCase; try reports whether the arm completed and, for a receive,
// the value it produced.
type SelectCase struct {
	label string
	try   func() (value any, completed bool, err error)
}

// SendCase builds a select arm that attempts ch.TrySend(value).
func SendCase[T any](label string, ch *Channel[T], value T) SelectCase {
	return SelectCase{
		label: label,
		try: func() (any, bool, error) {
			err := ch.TrySend(value)
			switch err {
			case nil:
				return nil, true, nil
			case ErrWouldBlock:
				return nil, false, nil
			default:
				return nil, false, err
			}
		},
	}
}

// ReceiveCase builds a select arm that attempts ch.TryReceive.
func ReceiveCase[T any](label string, ch *Channel[T]) SelectCase {
	return SelectCase{
		label: label,
		try: func() (any, bool, error) {
			v, err := ch.TryReceive()
			switch err {
			case nil:
				return v, true, nil
			case ErrWouldBlock:
				return nil, false, nil
			default:
				return nil, false, err
			}
		},
	}
}

// selectPollInterval is the retry cadence of spec.md §4.4's select: "best
// effort — no fairness guarantee across repeated calls; a busy case may
// starve others. Implementations may scan the case list and sleep briefly
// (e.g. 1ms) between scans."
const selectPollInterval = time.Millisecond

// SelectTry scans every case once, in order, and commits the first one
// able to complete without blocking. It returns the winning case's index
// and value, or ErrNoCaseReady if none could complete.
func SelectTry(cases []SelectCase) (index int, value any, err error) {
	for i, c := range cases {
		v, ok, cerr := c.try()
		if cerr != nil {
			return i, nil, cerr
		}
		if ok {
			return i, v, nil
		}
	}
	return -1, nil, ErrNoCaseReady
}

// Select scans cases repeatedly until one completes or the deadline
// elapses (spec.md §4.4). A zero or negative timeout blocks indefinitely.
// At most one case is ever committed, matching spec.md's invariant that a
// select never partially executes more than one arm.
func Select(cases []SelectCase, timeout time.Duration) (index int, value any, err error) {
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}
	for {
		idx, v, serr := SelectTry(cases)
		if serr == nil {
			return idx, v, nil
		}
		if serr != ErrNoCaseReady {
			return idx, nil, serr
		}
		if hasDeadline && time.Now().After(deadline) {
			return -1, nil, ErrNoCaseReady
		}
		time.Sleep(selectPollInterval)
	}
}
