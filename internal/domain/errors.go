package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation error")
	// ErrNotFound matches every *NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrPartialData matches every *PartialDataError via errors.Is.
	ErrPartialData = errors.New("partial data")
)

// ValidationError reports malformed input to a ledger mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a reference to a record that is absent or no
// longer live.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SourceFailure is one record source that could not be read.
type SourceFailure struct {
	Source string
	Err    error
}

// PartialDataError is returned instead of a report when one or more sources
// failed, so missing data is never reported as zero.
type PartialDataError struct {
	Failures []SourceFailure
}

func (e *PartialDataError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Source, f.Err))
	}
	return "partial data: " + strings.Join(parts, "; ")
}

func (e *PartialDataError) Is(target error) bool {
	return target == ErrPartialData
}

func (e *PartialDataError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Sources returns the names of the failed sources.
func (e *PartialDataError) Sources() []string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Source)
	}
	return names
}

// UnmappedMethodWarning records payment-method labels that had no row in the
// normalization table. It never aborts a report.
type UnmappedMethodWarning struct {
	Origin Origin `json:"origin"`
	Raw    string `json:"raw"`
	Count  int    `json:"count"`
	Amount Money  `json:"amount"`
}
