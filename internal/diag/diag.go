// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

// Package diag implements the error taxonomy of the plugin's request/
// response protocol: typed errors the orchestrator can distinguish from
// plain Go errors, plus a ValidationResult returned rather than thrown.
package diag

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ValidationResult is returned (not thrown) from a controller's validate
// operation.
type ValidationResult struct {
	IsValid bool
	Errors  []error
}

// NewValidationResult aggregates zero or more errors into a ValidationResult.
// A nil or empty errs yields a valid result.
func NewValidationResult(errs ...error) ValidationResult {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	return ValidationResult{IsValid: len(nonNil) == 0, Errors: nonNil}
}

// Aggregate combines multiple errors (e.g. one per schema violation) into a
// single error using go-multierror, matching the teacher's aggregation
// style for collecting many independent failures into one report.
func Aggregate(errs ...error) error {
	var result *multierror.Error
	for _, e := range errs {
		if e != nil {
			result = multierror.Append(result, e)
		}
	}
	return result.ErrorOrNil()
}

// SchemaValidationError wraps a request payload rejected by the wire
// schema validator.
type SchemaValidationError struct {
	Command string
	Cause   error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s request failed schema validation: %s", e.Command, e.Cause)
}

func (e *SchemaValidationError) Unwrap() error { return e.Cause }

// UnknownResourceTypeError is returned when a request names a controller
// type-id that isn't registered with the plugin.
type UnknownResourceTypeError struct {
	TypeID string
}

func (e *UnknownResourceTypeError) Error() string {
	return fmt.Sprintf("unknown resource type %q", e.TypeID)
}

// SpawnError is thrown from the execution channel when an unsafe spawn's
// exit code is non-zero.
type SpawnError struct {
	Cmd      string
	ExitCode int
	Data     string
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("command %q exited with code %d: %s", e.Cmd, e.ExitCode, e.Data)
}

// ResidualParameter is one row of an ApplyValidationError's pretty-printed
// residual plan.
type ResidualParameter struct {
	Name          string
	Operation     string
	CurrentValue  any
	DesiredValue  any
}

// ApplyValidationError means apply succeeded but the post-apply re-plan
// still reports a non-NoOp operation. It carries the residual plan for
// diagnosis and renders it into the error message.
type ApplyValidationError struct {
	ResourceType string
	Operation    string
	Parameters   []ResidualParameter
}

func (e *ApplyValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "apply of %s did not converge: residual operation %s with parameters: [", e.ResourceType, e.Operation)
	for i, p := range e.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "{name: %s, operation: %s, currentValue: %v, desiredValue: %v}", p.Name, p.Operation, p.CurrentValue, p.DesiredValue)
	}
	b.WriteString("]")
	return b.String()
}

// InternalInvariantError marks a programming error detected inside the
// pure core (e.g. the diff algorithm's own reconciliation invariant).
type InternalInvariantError struct {
	Msg string
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated: %s", e.Msg)
}
