package entities

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why an operation failed
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindConnect
	ErrorKindAuth
	ErrorKindTimeout
	ErrorKindInvalidAddress
	ErrorKindNoChangesRequested
	ErrorKindUnexpected
)

var errorKindNames = map[ErrorKind]string{
	ErrorKindNone:               "",
	ErrorKindConnect:            "ConnectError",
	ErrorKindAuth:               "AuthError",
	ErrorKindTimeout:            "TimeoutError",
	ErrorKindInvalidAddress:     "InvalidAddress",
	ErrorKindNoChangesRequested: "NoChangesRequested",
	ErrorKindUnexpected:         "UnexpectedError",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// MarshalText renders the kind by name in JSON output
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Sentinel errors, one per ErrorKind
var (
	ErrConnect            = errors.New("could not open channel")
	ErrAuth               = errors.New("credentials rejected")
	ErrTimeout            = errors.New("no completion signal within bound")
	ErrInvalidAddress     = errors.New("invalid server address")
	ErrNoChangesRequested = errors.New("no changes requested")
	ErrUnexpected         = errors.New("unexpected error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case ErrorKindConnect:
		return ErrConnect
	case ErrorKindAuth:
		return ErrAuth
	case ErrorKindTimeout:
		return ErrTimeout
	case ErrorKindInvalidAddress:
		return ErrInvalidAddress
	case ErrorKindNoChangesRequested:
		return ErrNoChangesRequested
	case ErrorKindUnexpected:
		return ErrUnexpected
	}
	return nil
}

// OperationError carries the failure kind together with the step that failed
type OperationError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *OperationError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel of the error's kind
func (e *OperationError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// NewError builds an OperationError of the given kind
func NewError(kind ErrorKind, op string, err error) *OperationError {
	return &OperationError{Kind: kind, Op: op, Err: err}
}

// Errorf builds an OperationError with a formatted cause
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *OperationError {
	return &OperationError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf classifies any error into the taxonomy
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	for kind := ErrorKindConnect; kind <= ErrorKindUnexpected; kind++ {
		if errors.Is(err, kind.sentinel()) {
			return kind
		}
	}
	return ErrorKindUnexpected
}
