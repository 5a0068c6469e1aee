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
	"testing"
)

func TestNewErrorFormatsStatusAndMessage(t *testing.T) {
	err := NewError(NOT_FOUND, "action %q not found", "model/gull")
	want := `NOT_FOUND: action "model/gull" not found`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestNewErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewError(INTERNAL, "persist failed: %v", cause)
	if !errors.Is(err, cause) {
		t.Errorf("cause not reachable through %v", err)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want StatusName
	}{
		{nil, OK},
		{NewError(ABORTED, "too many turns"), ABORTED},
		{fmt.Errorf("wrapped: %w", NewError(INVALID_ARGUMENT, "bad key")), INVALID_ARGUMENT},
		{errors.New("plain"), UNKNOWN},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
