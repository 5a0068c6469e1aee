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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aviary-ai/aviary/core"
	"github.com/aviary-ai/aviary/core/api"
	"github.com/aviary-ai/aviary/internal/base"
)

// A ToolRef names a tool in generate options: either a resolved [Tool] or a
// bare [ToolName].
type ToolRef interface {
	Name() string
}

// A ToolName is a reference to a tool by name.
type ToolName string

// Name returns the tool's name.
func (t ToolName) Name() string { return string(t) }

// A Tool is an action the model can request to be run during generation.
type Tool interface {
	// Name returns the registered name of the tool.
	Name() string
	// Definition returns the description of the tool sent to models.
	Definition() *ToolDefinition
	// RunRaw runs the tool with the given input. An interrupt raised by the
	// tool surfaces as an error; use RunOutcome to receive it as data.
	RunRaw(ctx context.Context, input any) (any, error)
	// RunOutcome runs the tool and folds a tool-raised interrupt into the
	// returned outcome instead of the error value.
	RunOutcome(ctx context.Context, input any) (*ToolOutcome, error)
	// Respond constructs the tool response part that answers an interrupted
	// tool request part with caller-supplied output.
	Respond(toolReq *Part, output any, opts *RespondOptions) *Part
	// Restart constructs the tool request part that re-runs an interrupted
	// tool request, optionally with replaced input.
	Restart(toolReq *Part, opts *RestartOptions) *Part
	// Register registers the tool with the given registry.
	Register(r api.Registry) error
}

// A ToolOutcome is the result of one tool invocation: exactly one of the two
// arms holds. Either the tool completed and Output carries its result, or it
// interrupted and Metadata carries what the tool wants the caller to see.
type ToolOutcome struct {
	Output      any
	Interrupted bool
	Metadata    map[string]any
}

// A ToolContext is passed to tool functions. It embeds the run's context and
// carries the resume state when the tool is re-run after an interrupt.
type ToolContext struct {
	context.Context

	// Resumed is non-nil when the tool is re-run via a restart directive; it
	// holds the metadata attached to the restart.
	Resumed map[string]any
	// OriginalInput is the input of the interrupted run when the restart
	// replaced it, and nil otherwise.
	OriginalInput any
}

// InterruptOptions configure an interrupt raised by a tool.
type InterruptOptions struct {
	// Metadata is surfaced to the caller on the interrupted tool request part.
	Metadata map[string]any
}

// Interrupt stops the generation loop so the caller can intervene. The tool
// function returns the resulting error unhandled; the loop converts it to an
// interrupted [ToolOutcome] at the invocation boundary.
func (tc *ToolContext) Interrupt(opts *InterruptOptions) error {
	if opts == nil {
		opts = &InterruptOptions{}
	}
	return &toolInterruptError{Metadata: opts.Metadata}
}

type toolInterruptError struct {
	Metadata map[string]any
}

func (e *toolInterruptError) Error() string {
	return "tool interrupt occurred"
}

// RespondOptions configure a respond directive built with [Tool.Respond].
type RespondOptions struct {
	// Metadata is attached to the tool response part.
	Metadata map[string]any
}

// RestartOptions configure a restart directive built with [Tool.Restart].
type RestartOptions struct {
	// ReplaceInput runs the tool with this input instead of the original one.
	ReplaceInput any
	// ResumedMetadata is visible to the tool as ToolContext.Resumed.
	ResumedMetadata map[string]any
}

var (
	resumedCtxKey   = base.NewContextKey[map[string]any]()
	origInputCtxKey = base.NewContextKey[any]()
)

// tool wraps a registered or resolved action in the Tool surface. The action
// is kind-erased so tools defined with any input type are callable uniformly.
type tool struct {
	action api.Action
}

// DefineTool creates a tool and registers it with r. The function receives a
// [ToolContext] through which it can raise interrupts and observe resume
// state.
func DefineTool[In, Out any](r api.Registry, name, description string,
	fn func(ctx *ToolContext, input In) (Out, error)) Tool {
	metadata := map[string]any{
		"type":        "tool",
		"name":        name,
		"description": description,
	}
	def := core.DefineAction(r, name, api.KindTool, metadata, func(ctx context.Context, input In) (Out, error) {
		toolCtx := &ToolContext{
			Context:       ctx,
			Resumed:       resumedCtxKey.FromContext(ctx),
			OriginalInput: origInputCtxKey.FromContext(ctx),
		}
		return fn(toolCtx, input)
	})
	return tool{action: def}
}

// NewTool creates a tool without registering it.
func NewTool[In, Out any](name, description string,
	fn func(ctx *ToolContext, input In) (Out, error)) Tool {
	metadata := map[string]any{
		"type":        "tool",
		"name":        name,
		"description": description,
	}
	def := core.NewAction(name, api.KindTool, metadata, func(ctx context.Context, input In) (Out, error) {
		toolCtx := &ToolContext{
			Context:       ctx,
			Resumed:       resumedCtxKey.FromContext(ctx),
			OriginalInput: origInputCtxKey.FromContext(ctx),
		}
		return fn(toolCtx, input)
	})
	return tool{action: def}
}

// LookupTool returns the registered tool named name, or nil. It never
// triggers lazy resolution.
func LookupTool(r api.Registry, name string) Tool {
	a := r.LookupAction(api.NewKey(api.KindTool, name))
	if a == nil {
		return nil
	}
	return tool{action: a}
}

// resolveTool resolves the tool named name, consulting dynamic plugins if it
// is not registered yet.
func resolveTool(ctx context.Context, r api.Registry, name string) (Tool, error) {
	a, err := r.ResolveAction(ctx, api.KindTool, name)
	if err != nil {
		return nil, err
	}
	return tool{action: a}, nil
}

func (t tool) Name() string { return t.action.Name() }

func (t tool) Register(r api.Registry) error { return t.action.Register(r) }

func (t tool) Definition() *ToolDefinition {
	desc := t.action.Desc()
	return &ToolDefinition{
		Name:         desc.Name,
		Description:  desc.Description,
		InputSchema:  desc.InputSchema,
		OutputSchema: desc.OutputSchema,
	}
}

func (t tool) RunRaw(ctx context.Context, input any) (any, error) {
	mi, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("error marshalling tool input for %v: %w", t.Name(), err)
	}
	output, err := t.action.RunJSON(ctx, mi, nil)
	if err != nil {
		return nil, err
	}
	var uo any
	if err := json.Unmarshal(output, &uo); err != nil {
		return nil, fmt.Errorf("error parsing tool output for %v: %w", t.Name(), err)
	}
	return uo, nil
}

func (t tool) RunOutcome(ctx context.Context, input any) (*ToolOutcome, error) {
	output, err := t.RunRaw(ctx, input)
	if err != nil {
		var interrupt *toolInterruptError
		if errors.As(err, &interrupt) {
			return &ToolOutcome{Interrupted: true, Metadata: interrupt.Metadata}, nil
		}
		return nil, err
	}
	return &ToolOutcome{Output: output}, nil
}

func (t tool) Respond(toolReq *Part, output any, opts *RespondOptions) *Part {
	if toolReq == nil || !toolReq.IsToolRequest() {
		return nil
	}
	if opts == nil {
		opts = &RespondOptions{}
	}
	part := NewToolResponsePart(&ToolResponse{
		Name:   toolReq.ToolRequest.Name,
		Ref:    toolReq.ToolRequest.Ref,
		Output: output,
	})
	meta := map[string]any{"interruptResponse": true}
	if opts.Metadata != nil {
		meta["interruptResponse"] = opts.Metadata
	}
	part.Metadata = meta
	return part
}

func (t tool) Restart(toolReq *Part, opts *RestartOptions) *Part {
	if toolReq == nil || !toolReq.IsToolRequest() {
		return nil
	}
	if opts == nil {
		opts = &RestartOptions{}
	}
	input := toolReq.ToolRequest.Input
	var originalInput any
	if opts.ReplaceInput != nil {
		originalInput = input
		input = opts.ReplaceInput
	}

	meta := map[string]any{}
	for k, v := range toolReq.Metadata {
		meta[k] = v
	}
	// The restarted request is no longer an interrupt.
	delete(meta, "interrupt")
	if opts.ResumedMetadata != nil {
		meta["resumed"] = opts.ResumedMetadata
	} else {
		meta["resumed"] = true
	}
	if originalInput != nil {
		meta["replacedInput"] = originalInput
	}

	part := NewToolRequestPart(&ToolRequest{
		Name:  toolReq.ToolRequest.Name,
		Ref:   toolReq.ToolRequest.Ref,
		Input: input,
	})
	part.Metadata = meta
	return part
}
