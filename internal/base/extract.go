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

package base

import (
	"encoding/json"
	"strings"
)

// ExtractJSONFromMarkdown returns the contents of the first fenced code
// block in md, or md itself if there is none. It does not check that the
// result is valid JSON.
func ExtractJSONFromMarkdown(md string) string {
	start := strings.Index(md, "```")
	if start == -1 {
		return md
	}
	// Skip the fence and an optional language tag like "json".
	rest := md[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || !strings.ContainsAny(tag, "{[") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return rest
	}
	return rest[:end]
}

// ValidJSONString reports whether s parses as JSON.
func ValidJSONString(s string) bool {
	return json.Valid([]byte(s))
}
