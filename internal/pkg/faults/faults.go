// Package faults carries the error taxonomy shared across the checkout
// pipeline. A Fault pairs a broad Kind (which the transport layer maps to an
// HTTP status) with a stable machine-readable Code so that callers can tell,
// for example, a provider decline apart from an inventory race lost at commit
// time.
package faults

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindInternal is the zero value: unexpected failures, surfaced generically.
	KindInternal Kind = iota
	// KindValidation covers malformed requests; never retried.
	KindValidation
	// KindNotFound covers unknown products, orders or sessions.
	KindNotFound
	// KindUnavailable covers inactive products and insufficient inventory.
	KindUnavailable
	// KindGateway covers upstream payment provider failures.
	KindGateway
	// KindConflict covers duplicate transactions and races lost at commit
	// time; terminal for the session, never retried automatically.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindGateway:
		return "gateway"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Stable codes exposed in error payloads.
const (
	CodePaymentFailed     = "PAYMENT_FAILED"
	CodeInventoryConflict = "INVENTORY_CONFLICT"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeSessionFailed     = "SESSION_FAILED"
	CodeDuplicateTxn      = "DUPLICATE_TRANSACTION"
	CodeAmountMismatch    = "AMOUNT_MISMATCH"
)

type Fault struct {
	kind Kind
	code string
	msg  string
	err  error
}

func (f *Fault) Error() string {
	if f.err != nil {
		return fmt.Sprintf("%s: %s: %v", f.kind, f.msg, f.err)
	}
	return fmt.Sprintf("%s: %s", f.kind, f.msg)
}

func (f *Fault) Unwrap() error { return f.err }

// Message returns the human-readable description without the kind prefix.
func (f *Fault) Message() string { return f.msg }

// Code returns the machine-readable code, or the kind name when none was set.
func (f *Fault) Code() string {
	if f.code != "" {
		return f.code
	}
	return f.kind.String()
}

func New(kind Kind, msg string) *Fault {
	return &Fault{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Fault {
	return &Fault{kind: kind, msg: msg, err: err}
}

// WithCode attaches a stable code to the fault and returns it.
func (f *Fault) WithCode(code string) *Fault {
	f.code = code
	return f
}

// KindOf extracts the Kind from an error chain; non-faults are internal.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.kind
	}
	return KindInternal
}

// CodeOf extracts the stable code from an error chain.
func CodeOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code()
	}
	return KindInternal.String()
}

// IsKind reports whether the error chain carries a fault of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
