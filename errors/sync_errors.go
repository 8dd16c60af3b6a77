package errors

import (
	"fmt"
)

// SyncErrorCode represents standardized error codes for synchronizer and
// pipeline operations
type SyncErrorCode string

const (
	// General errors
	ErrCodeInternal SyncErrorCode = "internal_error"

	// Feed entry rejection
	ErrCodeMalformedPayload   SyncErrorCode = "malformed_payload"
	ErrCodeUnknownAd          SyncErrorCode = "unknown_ad"
	ErrCodeDuplicateInit      SyncErrorCode = "duplicate_init"
	ErrCodeUnknownPredicate   SyncErrorCode = "unknown_predicate"
	ErrCodeEmptyChain         SyncErrorCode = "empty_chain"
	ErrCodeChainMismatch      SyncErrorCode = "chain_mismatch"
	ErrCodePredicateViolation SyncErrorCode = "predicate_violation"
	ErrCodeProofInvalid       SyncErrorCode = "proof_invalid"
	ErrCodeStaleState         SyncErrorCode = "stale_state"

	// Query / pipeline errors
	ErrCodeNotFound         SyncErrorCode = "not_found"
	ErrCodeInvalidRequest   SyncErrorCode = "invalid_request"
	ErrCodeInvalidOperation SyncErrorCode = "invalid_operation"
	ErrCodeProverFailure    SyncErrorCode = "prover_failure"
	ErrCodeBroadcastFailure SyncErrorCode = "broadcast_failure"
)

// SyncError is a structured error carried across the synchronizer, ledger and
// rpc layers. Code decides how callers react; Message is for humans.
type SyncError struct {
	Code    SyncErrorCode `json:"code"`
	Message string        `json:"message"`
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code SyncErrorCode, format string, args ...interface{}) *SyncError {
	return &SyncError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the SyncErrorCode from err, or ErrCodeInternal when err is
// not a SyncError.
func CodeOf(err error) SyncErrorCode {
	if se, ok := err.(*SyncError); ok {
		return se.Code
	}
	return ErrCodeInternal
}

// IsRejection reports whether err classifies a feed entry as invalid (discard
// and continue) as opposed to a transient infrastructure failure (retry).
func IsRejection(err error) bool {
	switch CodeOf(err) {
	case ErrCodeMalformedPayload, ErrCodeUnknownAd, ErrCodeDuplicateInit,
		ErrCodeUnknownPredicate, ErrCodeEmptyChain, ErrCodeChainMismatch,
		ErrCodePredicateViolation, ErrCodeProofInvalid, ErrCodeStaleState:
		return true
	}
	return false
}
