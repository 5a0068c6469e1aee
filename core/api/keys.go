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

package api

import (
	"fmt"
	"strings"
)

// NewKey creates a registry key for the given kind and name.
func NewKey(kind ActionKind, name string) string {
	return fmt.Sprintf("%s/%s", kind, name)
}

// ParseKey parses a registry key of the form "<kind>/<name>". The key must
// contain exactly one separator and both segments must be non-empty.
func ParseKey(key string) (ActionKind, string, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid action key %q: want exactly one %q between a non-empty kind and name", key, "/")
	}
	return ActionKind(parts[0]), parts[1], nil
}
