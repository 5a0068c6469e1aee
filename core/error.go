// Copyright 2025 Aviary Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"
	"fmt"

	"github.com/aviary-ai/aviary/core/api"
)

// Error is the base error type for aviary errors. Every failure surfaced by
// the runtime carries a canonical status so callers can branch on it without
// string matching.
type Error struct {
	Status  StatusName     `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

// NewError creates a new Error with a formatted message.
func NewError(status StatusName, format string, args ...any) *Error {
	e := &Error{
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	}
	// Keep the last error argument as the cause so errors.Is/As see through.
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			e.cause = err
		}
	}
	return e
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// StatusOf returns the canonical status of err: OK for nil, the carried
// status for *Error anywhere in the chain, UNKNOWN otherwise.
func StatusOf(err error) StatusName {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return UNKNOWN
}

// ActionError tags a failure raised by a wrapped action function with the
// kind and name of the action that raised it. The cause is preserved for
// errors.Is/As.
type ActionError struct {
	Kind api.ActionKind
	Name string
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s/%s: %v", e.Kind, e.Name, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
