package errors

import (
	"fmt"
)

// Kind classifies an error so callers can branch on it.
type Kind string

const (
	// KindInput indicates a malformed or missing caller-supplied value
	KindInput Kind = "INPUT"

	// KindNetwork indicates the ledger network or a collaborator could not be reached
	KindNetwork Kind = "NETWORK"

	// KindRPC indicates the ledger RPC answered with an error
	KindRPC Kind = "RPC"

	// KindInsufficientFunds indicates the treasury balance does not cover a withdrawal
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"

	// KindMissingSignature indicates an envelope lacks a signature from a required signer
	KindMissingSignature Kind = "MISSING_SIGNATURE"

	// KindUnauthorized indicates an operation was attempted without the required authorization proof
	KindUnauthorized Kind = "UNAUTHORIZED"

	// KindConfirmationTimeout indicates a broadcast transaction was not confirmed in time
	KindConfirmationTimeout Kind = "CONFIRMATION_TIMEOUT"

	// KindUpload indicates metadata storage failed
	KindUpload Kind = "UPLOAD"

	// KindConfig indicates configuration errors
	KindConfig Kind = "CONFIG"

	// KindDatabase indicates database operation errors
	KindDatabase Kind = "DATABASE"

	// KindInternal indicates internal system errors
	KindInternal Kind = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Error is the structured error returned by every issuer component.
type Error struct {
	Kind     Kind                   `json:"kind"`
	Op       string                 `json:"op,omitempty"`
	Message  string                 `json:"message"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// New creates a new Error
func New(kind Kind, op, message string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Op:       op,
		Message:  message,
		Severity: determineSeverity(kind),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable reports whether the same call may simply be attempted again.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork, KindRPC, KindUpload:
		return true
	default:
		return false
	}
}

// RequiresResubmission reports whether the only safe retry is resubmitting a
// freshly assembled transaction. The original may still land.
func (e *Error) RequiresResubmission() bool {
	return e.Kind == KindConfirmationTimeout
}

func determineSeverity(kind Kind) Severity {
	switch kind {
	case KindInternal:
		return SeverityCritical
	case KindDatabase, KindConfig:
		return SeverityHigh
	case KindNetwork, KindRPC, KindUpload, KindConfirmationTimeout:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Common error constructors

// NewInputError creates an input validation error
func NewInputError(op, message string) *Error {
	return New(KindInput, op, message, nil)
}

// NewNetworkError creates a network error
func NewNetworkError(op, message string, cause error) *Error {
	return New(KindNetwork, op, message, cause)
}

// NewRPCError creates an RPC error
func NewRPCError(op, message string, cause error) *Error {
	return New(KindRPC, op, message, cause)
}

// NewInsufficientFundsError creates an insufficient funds error carrying both figures
func NewInsufficientFundsError(op string, balance, amount uint64) *Error {
	return New(KindInsufficientFunds, op,
		fmt.Sprintf("insufficient treasury balance: %d < %d", balance, amount), nil).
		WithContext("balance", balance).
		WithContext("amount", amount)
}

// NewMissingSignatureError creates a missing signature error for signer
func NewMissingSignatureError(op, signer string) *Error {
	return New(KindMissingSignature, op,
		fmt.Sprintf("missing signature for required signer %s", signer), nil).
		WithContext("signer", signer)
}

// NewUnauthorizedError creates an authorization error
func NewUnauthorizedError(op, message string) *Error {
	return New(KindUnauthorized, op, message, nil)
}

// NewConfirmationTimeoutError creates a confirmation timeout error for signature
func NewConfirmationTimeoutError(op, signature string, cause error) *Error {
	return New(KindConfirmationTimeout, op,
		fmt.Sprintf("transaction %s was broadcast but not confirmed in time", signature), cause).
		WithContext("signature", signature)
}

// NewUploadError creates a metadata storage error
func NewUploadError(op, message string, cause error) *Error {
	return New(KindUpload, op, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(op, message string) *Error {
	return New(KindConfig, op, message, nil)
}

// NewDatabaseError creates a database error
func NewDatabaseError(op, message string, cause error) *Error {
	return New(KindDatabase, op, message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(op, message string, cause error) *Error {
	return New(KindInternal, op, message, cause)
}
