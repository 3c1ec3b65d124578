package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates a missing or malformed argument, tool config or attribute map
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ArchiveUnreadable indicates a release archive or one of its entries could not be read
	ArchiveUnreadable ErrorCode = "ARCHIVE_UNREADABLE"
	// MalformedRow indicates an RF2 row with fewer fields than its file family requires
	MalformedRow ErrorCode = "MALFORMED_ROW"
	// InvariantViolation indicates the OWL rewrite broke a structural invariant
	InvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	// OutputFailure indicates an output file could not be created or written
	OutputFailure ErrorCode = "OUTPUT_FAILURE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// CheckInput suggests inspecting an input file
	CheckInput FixActionType = "check-input"
	// ReportBug suggests the failure is a defect rather than a data problem
	ReportBug FixActionType = "report-bug"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Description string        `json:"description,omitempty"`
}

// CdError represents a conversion error with code, message, and suggestions
type CdError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a CdError carrying the default fixes for its code.
func New(code ErrorCode, message string, cause error) *CdError {
	return &CdError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *CdError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *CdError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CdError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *CdError) WithDetails(details interface{}) *CdError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "cdconv config init",
			Description: "Write a default cdconv.toml to start from",
		},
		{
			Type:        CheckInput,
			Description: "The attribute map must be three tab-separated columns: old type, new type, datatype",
		},
	},
	ArchiveUnreadable: {
		{
			Type:        RunCommand,
			Command:     "unzip -t <archive>",
			Description: "Verify the archive is a complete zip file",
		},
	},
	MalformedRow: {
		{
			Type:        CheckInput,
			Description: "Check the named file is tab delimited RF2 with the expected column count",
		},
	},
	InvariantViolation: {
		{
			Type:        ReportBug,
			Description: "The rewrite engine produced unbalanced output; keep the before/after text for the report",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

// CodeOf returns the code of the first CdError in err's chain, or InternalError.
func CodeOf(err error) ErrorCode {
	var cdErr *CdError
	if stderrors.As(err, &cdErr) {
		return cdErr.Code
	}
	return InternalError
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case ConfigInvalid:
		return 2
	case ArchiveUnreadable, MalformedRow, OutputFailure:
		return 3
	case InvariantViolation:
		return 4
	default:
		return 1
	}
}
