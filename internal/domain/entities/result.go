package entities

import (
	"errors"
	"fmt"
)

// Operation names one of the high-level actions offered to callers
type Operation string

const (
	OpFetchAll       Operation = "fetch_all"
	OpApply          Operation = "apply"
	OpSaveConfig     Operation = "save_config"
	OpDownloadConfig Operation = "download_config"
	OpTFTPUpload     Operation = "tftp_upload"
)

// Operations lists the closed set of supported operations
func Operations() []Operation {
	return []Operation{OpFetchAll, OpApply, OpSaveConfig, OpDownloadConfig, OpTFTPUpload}
}

// ParseOperation validates an operation name
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations() {
		if string(op) == name {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", name)
}

// OperationResult is the uniform outcome of every high-level operation
type OperationResult struct {
	OperationID string       `json:"operation_id"`
	Operation   Operation    `json:"operation"`
	Success     bool         `json:"success"`
	Transcript  string       `json:"transcript,omitempty"`
	State       *DeviceState `json:"state,omitempty"`
	Config      string       `json:"config,omitempty"`
	Filename    string       `json:"filename,omitempty"`
	ErrorKind   ErrorKind    `json:"error_kind,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// Succeed marks the result successful with an informational message
func (r *OperationResult) Succeed(message string) {
	r.Success = true
	r.ErrorKind = ErrorKindNone
	r.Message = message
}

// Fail records err on the result. Any partial transcript already set is kept.
func (r *OperationResult) Fail(err error) {
	r.Success = false
	r.ErrorKind = KindOf(err)
	r.Message = err.Error()
}

// Err rebuilds an error from a failed result, nil when it succeeded
func (r OperationResult) Err() error {
	if r.Success {
		return nil
	}
	if r.ErrorKind == ErrorKindNone {
		return NewError(ErrorKindUnexpected, string(r.Operation), errors.New(r.Message))
	}
	return NewError(r.ErrorKind, string(r.Operation), errors.New(r.Message))
}
