package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBatch         = errors.New("empty batch: no charges to encode")
	ErrFieldOverflow      = errors.New("field overflow")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrUnknownRecordType  = errors.New("unknown record type")
	ErrTotalsMismatch     = errors.New("trailer totals do not match details")
	ErrSequenceCommit     = errors.New("sequence commit failed")
	ErrSequenceInFlight   = errors.New("a sequence number is already reserved")
	ErrManualIntervention = errors.New("sequence counter blocked: manual reconciliation required")
	ErrClientNotFound     = errors.New("client not found")
	ErrAlreadyAssigned    = errors.New("charge already assigned to a remittance")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrCharset            = errors.New("value not representable in ISO-8859-1")
	ErrNotFound           = errors.New("not found")
	ErrControlCharacter   = errors.New("control character in text field")
	ErrInvalidNSA         = errors.New("invalid NSA")
	ErrMissingBillingCode = errors.New("client has no billing code")
	// ErrChargesNotAssigned means a delivered file's charges still look
	// pending and would be sent again by the next remittance.
	ErrChargesNotAssigned = errors.New("delivered charges not assigned to their remittance")
)

// FieldOverflowError reports a numeric value that does not fit its field.
type FieldOverflowError struct {
	Record string
	Field  string
	Width  int
	Value  string
}

func (e *FieldOverflowError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("field overflow: %q has %d digits, width is %d", e.Value, len(e.Value), e.Width)
	}
	return fmt.Sprintf("field overflow: %s.%s: %q has %d digits, width is %d",
		e.Record, e.Field, e.Value, len(e.Value), e.Width)
}

func (e *FieldOverflowError) Unwrap() error { return ErrFieldOverflow }

// RecordError locates a decoding failure. Err is ErrMalformedRecord or
// ErrUnknownRecordType.
type RecordError struct {
	Line   int
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v: %s", e.Line, e.Err, e.Reason)
}

func (e *RecordError) Unwrap() error { return e.Err }

// SequenceCommitError means the remittance file was already delivered but the
// new NSA could not be persisted. The operator must record Sequence by hand
// before another file is generated.
type SequenceCommitError struct {
	Sequence FileSequence
	FileName string
	Err      error
}

func (e *SequenceCommitError) Error() string {
	return fmt.Sprintf("file %s was produced but NSA %d could not be saved: %v",
		e.FileName, e.Sequence.Number, e.Err)
}

func (e *SequenceCommitError) Unwrap() []error { return []error{ErrSequenceCommit, e.Err} }
