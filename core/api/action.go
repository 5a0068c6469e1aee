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

// Package api defines the contracts shared by the aviary runtime: the
// uniform action interface, action kinds and descriptors, the registry
// interface, and the plugin hooks.
package api

import (
	"context"
	"encoding/json"
)

// Action is the interface that all aviary primitives (models, tools, flows,
// retrievers, evaluators) have in common: a named, kinded, uniformly
// invocable unit.
type Action interface {
	Registerable
	// Name returns the name of the action, unique per kind.
	Name() string
	// Kind returns the kind of the action.
	Kind() ActionKind
	// RunJSON runs the action with the given JSON input and optional
	// streaming callback and returns the output as JSON.
	RunJSON(ctx context.Context, input json.RawMessage, cb StreamCallback[json.RawMessage]) (json.RawMessage, error)
	// Desc returns a descriptor of the action.
	Desc() ActionDesc
}

// Registerable allows a primitive to be registered with a registry.
type Registerable interface {
	Register(r Registry) error
}

// StreamCallback receives one incremental chunk of a streaming invocation.
// A nil callback means the caller did not request streaming.
type StreamCallback[Stream any] = func(context.Context, Stream) error

// An ActionKind is the kind of an action.
type ActionKind string

const (
	KindModel     ActionKind = "model"
	KindTool      ActionKind = "tool"
	KindFlow      ActionKind = "flow"
	KindRetriever ActionKind = "retriever"
	KindEmbedder  ActionKind = "embedder"
	KindEvaluator ActionKind = "evaluator"
	KindUtil      ActionKind = "util"
	KindCustom    ActionKind = "custom"
)

// ActionDesc is a descriptor of an action. Plugins may advertise descriptors
// for actions they have not materialized yet.
type ActionDesc struct {
	Kind         ActionKind     `json:"kind"`         // Kind of the action.
	Key          string         `json:"key"`          // Key of the action in "<kind>/<name>" form.
	Name         string         `json:"name"`         // Name of the action.
	Description  string         `json:"description"`  // Description of the action.
	InputSchema  map[string]any `json:"inputSchema"`  // JSON schema to validate against the action's input.
	OutputSchema map[string]any `json:"outputSchema"` // JSON schema to validate against the action's output.
	Metadata     map[string]any `json:"metadata"`     // Metadata for the action.
}
