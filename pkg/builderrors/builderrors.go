/*
Copyright 2023 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package builderrors

import (
	"fmt"
	"strings"

	"github.com/nuclio/errors"
)

type Kind string

const (
	KindUnknown        Kind = ""
	KindConfiguration  Kind = "ConfigurationError"
	KindStaging        Kind = "StagingError"
	KindExecution      Kind = "ExecutionError"
	KindDigestNotFound Kind = "DigestNotFound"
	KindTeardown       Kind = "TeardownError"
)

// Error is a build failure of a given kind, annotated with the phase and the
// transient resource it happened on
type Error struct {
	Kind     Kind
	Phase    string
	Resource string

	// captured executor / orchestration output, for diagnostics
	Output string

	message string
	cause   error
}

func (e *Error) Error() string {
	var builder strings.Builder

	builder.WriteString(string(e.Kind))

	if e.Phase != "" {
		fmt.Fprintf(&builder, " (phase: %s", e.Phase)
		if e.Resource != "" {
			fmt.Fprintf(&builder, ", resource: %s", e.Resource)
		}
		builder.WriteString(")")
	} else if e.Resource != "" {
		fmt.Fprintf(&builder, " (resource: %s)", e.Resource)
	}

	if e.message != "" {
		builder.WriteString(": ")
		builder.WriteString(e.message)
	}

	if e.cause != nil {
		builder.WriteString(": ")
		builder.WriteString(e.cause.Error())
	}

	return builder.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Cause() error {
	return e.cause
}

// WithOutput attaches captured output and returns the same error
func (e *Error) WithOutput(output string) *Error {
	e.Output = output
	return e
}

// WithResource attaches a resource identifier and returns the same error
func (e *Error) WithResource(resource string) *Error {
	e.Resource = resource
	return e
}

func newError(kind Kind, phase string, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Phase:   phase,
		message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

func NewConfigurationError(format string, args ...interface{}) *Error {
	return newError(KindConfiguration, "validate", nil, format, args...)
}

func NewStagingError(cause error, format string, args ...interface{}) *Error {
	return newError(KindStaging, "stage", cause, format, args...)
}

func NewExecutionError(cause error, format string, args ...interface{}) *Error {
	return newError(KindExecution, "execute", cause, format, args...)
}

func NewDigestNotFoundError(format string, args ...interface{}) *Error {
	return newError(KindDigestNotFound, "extract", nil, format, args...)
}

func NewTeardownError(cause error, format string, args ...interface{}) *Error {
	return newError(KindTeardown, "teardown", cause, format, args...)
}

// KindOf walks the error chain and returns the kind of the outermost build error found
func KindOf(err error) Kind {
	if buildError := find(err); buildError != nil {
		return buildError.Kind
	}

	return KindUnknown
}

// IsKind returns true if the error chain holds a build error of the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// OutputOf returns the captured output attached to the outermost build error, if any
func OutputOf(err error) string {
	if buildError := find(err); buildError != nil {
		return buildError.Output
	}

	return ""
}

func find(err error) *Error {
	for err != nil {
		if buildError, ok := err.(*Error); ok {
			return buildError
		}

		err = next(err)
	}

	return nil
}

// next returns the wrapped error, supporting both stdlib style wrapping and nuclio errors
func next(err error) error {
	switch typedErr := err.(type) {
	case interface{ Unwrap() error }:
		return typedErr.Unwrap()
	case interface{ Cause() error }:
		return typedErr.Cause()
	default:
		return errors.Cause(err)
	}
}
