package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so handlers can pick a reply without inspecting error text.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindInsufficientData
	KindDependency
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInsufficientData:
		return "insufficient data"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// Error carries a kind and the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation wraps err as a user input problem.
func Validation(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// InsufficientData wraps err as missing history.
func InsufficientData(op string, err error) error {
	return &Error{Kind: KindInsufficientData, Op: op, Err: err}
}

// Dependency wraps err as a failure of something outside the process or of the forecasting model.
func Dependency(op string, err error) error {
	return &Error{Kind: KindDependency, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
