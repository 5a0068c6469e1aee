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

import "testing"

func TestNewKey(t *testing.T) {
	got := NewKey(KindModel, "gull-2")
	want := "model/gull-2"
	if got != want {
		t.Errorf("NewKey: got %q, want %q", got, want)
	}
}

func TestParseKey(t *testing.T) {
	kind, name, err := ParseKey("tool/thermometer")
	if err != nil {
		t.Fatal(err)
	}
	if kind != KindTool {
		t.Errorf("kind: got %q, want %q", kind, KindTool)
	}
	if name != "thermometer" {
		t.Errorf("name: got %q, want %q", name, "thermometer")
	}
}

func TestParseKeyMalformed(t *testing.T) {
	tests := []string{
		"",
		"model",
		"/",
		"/name",
		"model/",
		"model/a/b",
		"//",
	}
	for _, key := range tests {
		t.Run(key, func(t *testing.T) {
			if _, _, err := ParseKey(key); err == nil {
				t.Errorf("ParseKey(%q) succeeded, want error", key)
			}
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	kinds := []ActionKind{KindModel, KindTool, KindFlow, KindRetriever, KindEmbedder, KindEvaluator, KindUtil, KindCustom}
	for _, kind := range kinds {
		key := NewKey(kind, "x")
		gotKind, gotName, err := ParseKey(key)
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", key, err)
		}
		if gotKind != kind || gotName != "x" {
			t.Errorf("round trip of %q: got (%q, %q)", key, gotKind, gotName)
		}
	}
}
