package model

import (
	"errors"
	"fmt"
)

// Key is a peptide sequence identifying one unit of enrichment work.
type Key string

// Reason classifies why a remote call failed.
type Reason string

const (
	ReasonTimeout    Reason = "timeout"
	ReasonTransport  Reason = "transport_error"
	ReasonUnparsable Reason = "unparsable_response"
	ReasonRejected   Reason = "remote_rejected"
)

var (
	ErrNoValue    = errors.New("no value in response")
	ErrNoSequence = errors.New("no valid sequence found")
)

// Outcome is the result of one service call for one key. Either Value is
// set, or Reason (and optionally Err) describe a classified failure. It is
// immutable once produced.
type Outcome struct {
	Value  Value
	Reason Reason
	Err    error
}

func Success(v Value) Outcome {
	return Outcome{Value: v}
}

func Failure(reason Reason, err error) Outcome {
	return Outcome{Reason: reason, Err: err}
}

func (o Outcome) OK() bool {
	return o.Reason == "" && o.Value != nil
}

// Equal compares outcomes ignoring the wrapped error, which carries
// free-form detail and is not part of the cell identity.
func (o Outcome) Equal(other Outcome) bool {
	if o.OK() != other.OK() {
		return false
	}
	if !o.OK() {
		return o.Reason == other.Reason
	}
	return columnsEqual(o.Value.Columns(), other.Value.Columns())
}

func (o Outcome) String() string {
	if o.OK() {
		return fmt.Sprintf("success(%v)", o.Value.Columns())
	}
	return fmt.Sprintf("failure(%s)", o.Reason)
}

func columnsEqual(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
