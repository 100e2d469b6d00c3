// Package fault defines the error taxonomy shared across the turn pipeline.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for recovery purposes.
type Kind string

const (
	// KindValidation is a missing required domain field; the specialist
	// recovers locally with a clarifying question.
	KindValidation Kind = "VALIDATION"

	// KindBusiness is a repository write that returned no result; the
	// specialist recovers locally with an apology, state unchanged.
	KindBusiness Kind = "BUSINESS"

	// KindInfrastructure is a repository/classifier error or timeout;
	// it aborts the turn without persisting.
	KindInfrastructure Kind = "INFRASTRUCTURE"

	// KindRoutingLoop means the specialist-hop cap was exceeded.
	KindRoutingLoop Kind = "ROUTING_LOOP"

	// KindSchema means the merge policy received an unrecognized field.
	KindSchema Kind = "SCHEMA"
)

// Error carries a Kind, a short machine-readable reason and an optional cause.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("fault: %s (%s)", e.Kind, e.Reason)
	}
	return fmt.Sprintf("fault: %s (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a fault of the given kind.
func New(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Validation creates a validation fault.
func Validation(reason string) *Error {
	return New(KindValidation, reason, nil)
}

// Business creates a business fault.
func Business(reason string) *Error {
	return New(KindBusiness, reason, nil)
}

// Infrastructure creates an infrastructure fault wrapping err.
func Infrastructure(reason string, err error) *Error {
	return New(KindInfrastructure, reason, err)
}

// RoutingLoop creates a routing-loop fault.
func RoutingLoop(reason string) *Error {
	return New(KindRoutingLoop, reason, nil)
}

// Schema creates a schema fault.
func Schema(reason string) *Error {
	return New(KindSchema, reason, nil)
}

// KindOf returns the Kind of err, or KindInfrastructure for untyped errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInfrastructure
}

// IsFatal reports whether err must abort the turn instead of being
// recovered by a specialist. Routing-loop and schema faults are
// programming-error class and treated the same as infrastructure ones.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindBusiness:
		return false
	default:
		return true
	}
}
