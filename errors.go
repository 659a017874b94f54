package strata

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Error classes. Every error produced by the engine matches exactly one of
// them with errors.Is.
var (
	// ErrValidation is matched by recoverable errors that describe a problem
	// with the submitted batch (missing entity, duplicate identifier, broken
	// cardinality, stale version). They are reported back to the caller.
	ErrValidation = errors.New("strata: validation failed")

	// ErrInternal is matched by fatal errors: the batch or the engine violated
	// a precondition and nothing may be retried.
	ErrInternal = errors.New("strata: internal consistency failure")
)

// Sentinels for the individual error kinds.
var (
	ErrEntityNotFound           = errors.New("strata: entity not found")
	ErrNotUnique                = errors.New("strata: identifying attributes not unique")
	ErrVersionConflict          = errors.New("strata: version conflict")
	ErrMandatoryReference       = errors.New("strata: mandatory reference violated")
	ErrCardinality              = errors.New("strata: reference cardinality exceeded")
	ErrDuplicateJoinRow         = errors.New("strata: join row already exists")
	ErrMissingJoinRow           = errors.New("strata: join row does not exist")
	ErrRowCount                 = errors.New("strata: unexpected affected row count")
	ErrCyclicMandatoryReference = errors.New("strata: cyclic mandatory reference")
	ErrSchemaResolution         = errors.New("strata: schema resolution failed")
)

// Code identifies the kind of a ValidationError.
type Code string

// Validation codes.
const (
	CodeEntityNotFound     Code = "ENTITY_NOT_FOUND"
	CodeNotUnique          Code = "IDENTIFIER_NOT_UNIQUE"
	CodeVersionConflict    Code = "VERSION_CONFLICT"
	CodeMandatoryReference Code = "MANDATORY_REFERENCE"
	CodeCardinality        Code = "CARDINALITY_EXCEEDED"
)

var codeErrors = map[Code]error{
	CodeEntityNotFound:     ErrEntityNotFound,
	CodeNotUnique:          ErrNotUnique,
	CodeVersionConflict:    ErrVersionConflict,
	CodeMandatoryReference: ErrMandatoryReference,
	CodeCardinality:        ErrCardinality,
}

// ValidationError is structured feedback about one offending instance.
type ValidationError struct {
	Code    Code           // Kind of the violation.
	Entity  string         // Entity type name.
	ID      any            // Offending identifier, if known.
	Details map[string]any // Contextual details (reference, attribute values, size, ...).
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "strata: %s on %s", e.Code, e.Entity)
	if e.ID != nil {
		fmt.Fprintf(&sb, " (id=%v)", e.ID)
	}
	if len(e.Details) > 0 {
		keys := slices.Sorted(maps.Keys(e.Details))
		for i, k := range keys {
			if i == 0 {
				sb.WriteString(":")
			}
			fmt.Fprintf(&sb, " %s=%v", k, e.Details[k])
		}
	}
	return sb.String()
}

// Is reports whether the target error matches the validation class or the
// sentinel of the error code.
func (e *ValidationError) Is(err error) bool {
	return err == ErrValidation || (err != nil && err == codeErrors[e.Code])
}

// NewEntityNotFoundError returns a validation error for a missing instance.
func NewEntityNotFoundError(entity string, id any) *ValidationError {
	return &ValidationError{Code: CodeEntityNotFound, Entity: entity, ID: id}
}

// NewUniquenessError returns a validation error naming the identifying
// attribute/value pairs that another row already holds.
func NewUniquenessError(entity string, id any, values map[string]any) *ValidationError {
	return &ValidationError{Code: CodeNotUnique, Entity: entity, ID: id, Details: values}
}

// NewVersionConflictError returns a validation error for an optimistic-lock
// update that matched no row.
func NewVersionConflictError(entity, table string, id any, expected int64) *ValidationError {
	return &ValidationError{
		Code:   CodeVersionConflict,
		Entity: entity,
		ID:     id,
		Details: map[string]any{
			"table":   table,
			"version": expected,
		},
	}
}

// NewMandatoryReferenceError returns a validation error for a mandatory
// single-valued reference that would be left empty or re-pointed.
func NewMandatoryReferenceError(entity string, id any, reference string) *ValidationError {
	return &ValidationError{
		Code:    CodeMandatoryReference,
		Entity:  entity,
		ID:      id,
		Details: map[string]any{"reference": reference},
	}
}

// NewCardinalityError returns a validation error for a reference whose upper
// bound would be exceeded.
func NewCardinalityError(entity string, id any, reference string, size, upper int) *ValidationError {
	return &ValidationError{
		Code:   CodeCardinality,
		Entity: entity,
		ID:     id,
		Details: map[string]any{
			"reference": reference,
			"size":      size,
			"upper":     upper,
		},
	}
}

// IsValidation returns true if the error is recoverable feedback.
func IsValidation(err error) bool {
	return err != nil && errors.Is(err, ErrValidation)
}

// IsFatal returns true if the error signals a corrupted batch or an engine
// bug.
func IsFatal(err error) bool {
	return err != nil && errors.Is(err, ErrInternal)
}

// IsCode returns true if err carries a ValidationError with the given code.
func IsCode(err error, code Code) bool {
	for _, v := range ValidationErrors(err) {
		if v.Code == code {
			return true
		}
	}
	return false
}

// ValidationErrors flattens err (possibly an AggregateError) into the
// validation errors it carries.
func ValidationErrors(err error) []*ValidationError {
	if err == nil {
		return nil
	}
	var agg *AggregateError
	if errors.As(err, &agg) {
		var out []*ValidationError
		for _, e := range agg.Errors {
			out = append(out, ValidationErrors(e)...)
		}
		return out
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return []*ValidationError{v}
	}
	return nil
}

// DuplicateJoinRowError is returned when a join-table row for the pair
// already exists.
type DuplicateJoinRowError struct {
	Table     string
	Reference string
	Near, Far any
}

// Error returns the error string.
func (e *DuplicateJoinRowError) Error() string {
	return fmt.Sprintf("strata: join row %s(%v, %v) for reference %q already exists", e.Table, e.Near, e.Far, e.Reference)
}

// Is reports whether the target error matches DuplicateJoinRowError.
func (e *DuplicateJoinRowError) Is(err error) bool {
	return err == ErrDuplicateJoinRow || err == ErrValidation
}

// IsDuplicateJoinRow returns true if the error is a DuplicateJoinRowError.
func IsDuplicateJoinRow(err error) bool {
	var e *DuplicateJoinRowError
	return errors.As(err, &e)
}

// MissingJoinRowError is returned when a join-table row to be removed does
// not exist.
type MissingJoinRowError struct {
	Table     string
	Reference string
	Near, Far any
}

// Error returns the error string.
func (e *MissingJoinRowError) Error() string {
	return fmt.Sprintf("strata: join row %s(%v, %v) for reference %q does not exist", e.Table, e.Near, e.Far, e.Reference)
}

// Is reports whether the target error matches MissingJoinRowError.
func (e *MissingJoinRowError) Is(err error) bool {
	return err == ErrMissingJoinRow || err == ErrValidation
}

// IsMissingJoinRow returns true if the error is a MissingJoinRowError.
func IsMissingJoinRow(err error) bool {
	var e *MissingJoinRowError
	return errors.As(err, &e)
}

// RowCountError is returned when a keyed write or existence check did not
// touch exactly one row.
type RowCountError struct {
	Op       string // insert, update, delete, exists, ...
	Table    string
	ID       any
	Affected int64
}

// Error returns the error string.
func (e *RowCountError) Error() string {
	return fmt.Sprintf("strata: %s %s (id=%v) affected %d rows, expected 1", e.Op, e.Table, e.ID, e.Affected)
}

// Is reports whether the target error matches RowCountError.
func (e *RowCountError) Is(err error) bool {
	return err == ErrRowCount || err == ErrInternal
}

// NewRowCountError returns a new RowCountError.
func NewRowCountError(op, table string, id any, affected int64) *RowCountError {
	return &RowCountError{Op: op, Table: table, ID: id, Affected: affected}
}

// CyclicMandatoryReferenceError is returned when mandatory references between
// the statements of a batch form a cycle, so no execution order exists.
type CyclicMandatoryReferenceError struct {
	// Nodes describes the instances on the cycle, in batch order.
	Nodes []string
}

// Error returns the error string.
func (e *CyclicMandatoryReferenceError) Error() string {
	return fmt.Sprintf("strata: cyclic mandatory references between %s", strings.Join(e.Nodes, ", "))
}

// Is reports whether the target error matches CyclicMandatoryReferenceError.
func (e *CyclicMandatoryReferenceError) Is(err error) bool {
	return err == ErrCyclicMandatoryReference || err == ErrInternal
}

// IsCyclicMandatoryReference returns true if the error is a cycle error.
func IsCyclicMandatoryReference(err error) bool {
	var e *CyclicMandatoryReferenceError
	return errors.As(err, &e)
}

// SchemaResolutionError is returned when a reference has no usable storage
// mapping.
type SchemaResolutionError struct {
	Reference string
	Reason    string
}

// Error returns the error string.
func (e *SchemaResolutionError) Error() string {
	return fmt.Sprintf("strata: cannot resolve reference %q: %s", e.Reference, e.Reason)
}

// Is reports whether the target error matches SchemaResolutionError.
func (e *SchemaResolutionError) Is(err error) bool {
	return err == ErrSchemaResolution || err == ErrInternal
}

// NewSchemaResolutionError returns a new SchemaResolutionError.
func NewSchemaResolutionError(reference, reason string) *SchemaResolutionError {
	return &SchemaResolutionError{Reference: reference, Reason: reason}
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("strata: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during a phase.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "strata: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("strata: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors so errors.Is and errors.As inspect
// every one of them.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
