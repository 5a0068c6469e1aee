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

package ai

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// The loop deep-copies messages through JSON, so the union encoding must
// keep each part's kind and metadata intact.
func TestPartUnionEncodingSurvivesClone(t *testing.T) {
	reqPart := NewToolRequestPart(&ToolRequest{Name: "gablorken", Ref: "r1", Input: map[string]any{"Value": 2.0}})
	reqPart.Metadata = map[string]any{"interrupt": true}

	msg := NewModelMessage(
		NewTextPart("thinking..."),
		reqPart,
		NewToolResponsePart(&ToolResponse{Name: "gablorken", Ref: "r0", Output: 8.0}),
	)

	got := clone(msg)
	if got.Content[0].Kind != PartText || got.Content[0].Text != "thinking..." {
		t.Errorf("text part did not survive: %+v", got.Content[0])
	}
	if !got.Content[1].IsToolRequest() {
		t.Fatalf("tool request part decoded as kind %d", got.Content[1].Kind)
	}
	if got.Content[1].ToolRequest.Ref != "r1" {
		t.Errorf("ref %q, want r1", got.Content[1].ToolRequest.Ref)
	}
	if got.Content[1].Metadata["interrupt"] != true {
		t.Errorf("metadata %v, want interrupt marker", got.Content[1].Metadata)
	}
	if !got.Content[2].IsToolResponse() || got.Content[2].ToolResponse.Output != 8.0 {
		t.Errorf("tool response part did not survive: %+v", got.Content[2])
	}
}

func TestPartUnmarshalPicksVariantByKey(t *testing.T) {
	var p Part
	if err := json.Unmarshal([]byte(`{"media": {"contentType": "image/png", "url": "https://example.com/x.png"}}`), &p); err != nil {
		t.Fatal(err)
	}
	if !p.IsMedia() || p.ContentType != "image/png" || p.Text != "https://example.com/x.png" {
		t.Errorf("media part decoded as %+v", p)
	}

	if err := json.Unmarshal([]byte(`{"text": "plain"}`), &p); err != nil {
		t.Fatal(err)
	}
	if !p.IsText() || p.Text != "plain" {
		t.Errorf("text part decoded as %+v", p)
	}
}

func TestMessageText(t *testing.T) {
	msg := NewModelMessage(
		NewTextPart("one "),
		NewToolRequestPart(&ToolRequest{Name: "t"}),
		NewTextPart("two"),
	)
	if diff := cmp.Diff("one two", msg.Text()); diff != "" {
		t.Errorf("text mismatch (-want, +got):\n%s", diff)
	}
}
