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
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToolRunRaw(t *testing.T) {
	out, err := gablorkenTool.RunRaw(context.Background(), map[string]any{
		"Value": 2.0,
		"Over":  3.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != 8.0 {
		t.Errorf("got %v, want 8", out)
	}
}

func TestToolRunRawSurfacesInterruptAsError(t *testing.T) {
	interrupter := DefineTool(r, "alwaysInterrupts", "always interrupts",
		func(tc *ToolContext, input struct{}) (string, error) {
			return "", tc.Interrupt(&InterruptOptions{Metadata: map[string]any{"k": "v"}})
		})

	_, err := interrupter.RunRaw(context.Background(), map[string]any{})
	if err == nil {
		t.Fatal("want error")
	}
	var interrupt *toolInterruptError
	if !errors.As(err, &interrupt) {
		t.Fatalf("error %v does not unwrap to a tool interrupt", err)
	}
	if diff := cmp.Diff(map[string]any{"k": "v"}, interrupt.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want, +got):\n%s", diff)
	}
}

func TestToolRunOutcome(t *testing.T) {
	outcome, err := gablorkenTool.RunOutcome(context.Background(), map[string]any{
		"Value": 3.0,
		"Over":  2.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Interrupted {
		t.Fatal("completed run reported as interrupted")
	}
	if outcome.Output != 9.0 {
		t.Errorf("got %v, want 9", outcome.Output)
	}
}

func TestToolRunOutcomeInterrupt(t *testing.T) {
	interrupter := DefineTool(r, "outcomeInterrupts", "always interrupts",
		func(tc *ToolContext, input struct{}) (string, error) {
			return "", tc.Interrupt(&InterruptOptions{Metadata: map[string]any{"why": "ask first"}})
		})

	outcome, err := interrupter.RunOutcome(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Interrupted {
		t.Fatal("interrupt not folded into the outcome")
	}
	if diff := cmp.Diff(map[string]any{"why": "ask first"}, outcome.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want, +got):\n%s", diff)
	}
}

func TestToolRunOutcomeKeepsRealErrors(t *testing.T) {
	failure := errors.New("backend down")
	failing := DefineTool(r, "failingTool", "always fails",
		func(tc *ToolContext, input struct{}) (string, error) {
			return "", failure
		})

	_, err := failing.RunOutcome(context.Background(), map[string]any{})
	if !errors.Is(err, failure) {
		t.Errorf("got %v, want the tool's failure", err)
	}
}

func TestToolRespondBuildsMatchingResponse(t *testing.T) {
	reqPart := NewToolRequestPart(&ToolRequest{Name: "gablorken", Ref: "r1", Input: map[string]any{}})
	reqPart.Metadata = map[string]any{"interrupt": true}

	got := gablorkenTool.Respond(reqPart, 8.0, nil)
	if !got.IsToolResponse() {
		t.Fatal("Respond did not build a tool response part")
	}
	if got.ToolResponse.Name != "gablorken" || got.ToolResponse.Ref != "r1" {
		t.Errorf("response addressed to (%s, %s), want (gablorken, r1)", got.ToolResponse.Name, got.ToolResponse.Ref)
	}
	if got.ToolResponse.Output != 8.0 {
		t.Errorf("output %v, want 8", got.ToolResponse.Output)
	}
	if got.Metadata["interruptResponse"] != true {
		t.Errorf("metadata %v, want interruptResponse marker", got.Metadata)
	}
}

func TestToolRestartReplacesInput(t *testing.T) {
	reqPart := NewToolRequestPart(&ToolRequest{Name: "gablorken", Ref: "r2", Input: map[string]any{"Value": 2.0}})
	reqPart.Metadata = map[string]any{"interrupt": map[string]any{"reason": "too big"}}

	got := gablorkenTool.Restart(reqPart, &RestartOptions{
		ReplaceInput:    map[string]any{"Value": 1.0},
		ResumedMetadata: map[string]any{"operator": "robin"},
	})
	if !got.IsToolRequest() {
		t.Fatal("Restart did not build a tool request part")
	}
	if diff := cmp.Diff(map[string]any{"Value": 1.0}, got.ToolRequest.Input); diff != "" {
		t.Errorf("input mismatch (-want, +got):\n%s", diff)
	}
	if _, ok := got.Metadata["interrupt"]; ok {
		t.Error("restarted request still marked as interrupt")
	}
	if diff := cmp.Diff(map[string]any{"operator": "robin"}, got.Metadata["resumed"]); diff != "" {
		t.Errorf("resumed metadata mismatch (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"Value": 2.0}, got.Metadata["replacedInput"]); diff != "" {
		t.Errorf("replacedInput mismatch (-want, +got):\n%s", diff)
	}
}

func TestLookupTool(t *testing.T) {
	if tool := LookupTool(r, "gablorken"); tool == nil {
		t.Fatal("registered tool not found")
	}
	if tool := LookupTool(r, "no-such-tool"); tool != nil {
		t.Fatalf("got %v for unknown tool, want nil", tool)
	}
}

func TestToolDefinition(t *testing.T) {
	def := gablorkenTool.Definition()
	if def.Name != "gablorken" {
		t.Errorf("name %q, want gablorken", def.Name)
	}
	if def.Description != "use when need to calculate a gablorken" {
		t.Errorf("unexpected description %q", def.Description)
	}
	if def.InputSchema == nil || def.OutputSchema == nil {
		t.Error("tool definition is missing schemas")
	}
}
