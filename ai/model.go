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
	"strings"

	"github.com/aviary-ai/aviary/core"
	"github.com/aviary-ai/aviary/core/api"
)

// A Model is an action that generates a response to a multimodal request,
// optionally streaming chunks as it goes.
type Model interface {
	// Name returns the registered name of the model.
	Name() string
	// Generate runs the model with the request.
	Generate(ctx context.Context, req *ModelRequest, cb ModelStreamCallback) (*ModelResponse, error)
}

// ModelStreamCallback is invoked with each streamed chunk of a response.
type ModelStreamCallback = func(context.Context, *ModelResponseChunk) error

// ModelFunc is the signature a model implementation provides.
type ModelFunc = core.StreamingFunc[*ModelRequest, *ModelResponse, *ModelResponseChunk]

// ModelMiddleware wraps a ModelFunc with additional behavior.
type ModelMiddleware = core.Middleware[*ModelRequest, *ModelResponse, *ModelResponseChunk]

// A ModelArg names a model in generate options: either a resolved [Model]
// or a [ModelRef] carrying a name and default config.
type ModelArg interface {
	Name() string
}

// A ModelRef is a reference to a model by name together with an optional
// provider config applied when no per-request config is given.
type ModelRef struct {
	name   string
	config any
}

// NewModelRef creates a ModelRef.
func NewModelRef(name string, config any) ModelRef {
	return ModelRef{name: name, config: config}
}

// Name returns the referenced model name.
func (m ModelRef) Name() string { return m.name }

// Config returns the reference's default config, or nil.
func (m ModelRef) Config() any { return m.config }

// ModelOptions describes a model's capabilities to the runtime and to
// callers listing the registry.
type ModelOptions struct {
	// Label is a human-readable name, e.g. "Example Labs - Gull 2".
	Label    string
	Supports *ModelSupports
	Versions []string
}

// ModelSupports declares which request features the model understands.
type ModelSupports struct {
	Multiturn   bool
	Media       bool
	Tools       bool
	SystemRole  bool
	ToolChoice  bool
	Constrained bool
	Output      []string
}

type model struct {
	*core.ActionDef[*ModelRequest, *ModelResponse, *ModelResponseChunk]
}

// Generate runs the model.
func (m model) Generate(ctx context.Context, req *ModelRequest, cb ModelStreamCallback) (*ModelResponse, error) {
	return m.Run(ctx, req, cb)
}

// NewModel creates a model action without registering it; plugins return
// models from Init this way.
func NewModel(name string, opts *ModelOptions, fn ModelFunc) Model {
	if opts == nil {
		opts = &ModelOptions{}
	}
	meta := modelMetadata(name, opts)
	fn = core.ChainMiddleware(validateSupport(name, opts.Supports))(fn)
	return model{core.NewStreamingAction(name, api.KindModel, meta, nil, fn)}
}

// DefineModel creates a model action and registers it with r.
func DefineModel(r api.Registry, name string, opts *ModelOptions, fn ModelFunc) Model {
	if opts == nil {
		opts = &ModelOptions{}
	}
	meta := modelMetadata(name, opts)
	fn = core.ChainMiddleware(validateSupport(name, opts.Supports))(fn)
	return model{core.DefineStreamingAction(r, name, api.KindModel, meta, nil, fn)}
}

// LookupModel returns the registered model named name, or nil. It never
// triggers lazy resolution.
func LookupModel(r api.Registry, name string) Model {
	def := core.LookupActionFor[*ModelRequest, *ModelResponse, *ModelResponseChunk](r, api.KindModel, name)
	if def == nil {
		return nil
	}
	return model{def}
}

// ResolveModel resolves the model named name, consulting dynamic plugins
// if it is not registered yet.
func ResolveModel(ctx context.Context, r api.Registry, name string) (Model, error) {
	def, err := core.ResolveActionFor[*ModelRequest, *ModelResponse, *ModelResponseChunk](ctx, r, api.KindModel, name)
	if err != nil {
		return nil, err
	}
	return model{def}, nil
}

func modelMetadata(name string, opts *ModelOptions) map[string]any {
	supports := map[string]any{}
	constrained := false
	if s := opts.Supports; s != nil {
		supports["multiturn"] = s.Multiturn
		supports["media"] = s.Media
		supports["tools"] = s.Tools
		supports["systemRole"] = s.SystemRole
		supports["toolChoice"] = s.ToolChoice
		supports["constrained"] = s.Constrained
		constrained = s.Constrained
	}
	label := opts.Label
	if label == "" {
		label = name
	}
	return map[string]any{
		"type": "model",
		"model": map[string]any{
			"label":       label,
			"supports":    supports,
			"versions":    opts.Versions,
			"constrained": constrained,
		},
	}
}

// validateSupport rejects requests that use features the model declared it
// does not understand. A nil supports declares nothing and allows anything.
func validateSupport(name string, supports *ModelSupports) ModelMiddleware {
	return func(next ModelFunc) ModelFunc {
		return func(ctx context.Context, req *ModelRequest, cb ModelStreamCallback) (*ModelResponse, error) {
			if supports == nil {
				return next(ctx, req, cb)
			}
			if !supports.Media {
				for _, msg := range req.Messages {
					for _, part := range msg.Content {
						if part.IsMedia() {
							return nil, core.NewError(core.INVALID_ARGUMENT, "model %q does not support media, but media was provided", name)
						}
					}
				}
			}
			if !supports.Tools && len(req.Tools) > 0 {
				return nil, core.NewError(core.INVALID_ARGUMENT, "model %q does not support tool use, but tools were provided", name)
			}
			if !supports.Multiturn && len(req.Messages) > 1 {
				return nil, core.NewError(core.INVALID_ARGUMENT, "model %q does not support multiple messages, but %d were provided", name, len(req.Messages))
			}
			if !supports.ToolChoice && req.ToolChoice != "" && req.ToolChoice != ToolChoiceAuto {
				return nil, core.NewError(core.INVALID_ARGUMENT, "model %q does not support tool choice, but toolChoice was provided", name)
			}
			if !supports.SystemRole {
				for _, msg := range req.Messages {
					if msg.Role == RoleSystem {
						return nil, core.NewError(core.INVALID_ARGUMENT, "model %q does not support system role, but system messages were provided", name)
					}
				}
			}
			return next(ctx, req, cb)
		}
	}
}

// supportsConstrained reports whether the resolved model declared support
// for provider-enforced constrained output, based on its descriptor.
func supportsConstrained(desc api.ActionDesc) bool {
	meta, ok := desc.Metadata["model"].(map[string]any)
	if !ok {
		return false
	}
	c, ok := meta["constrained"].(bool)
	return ok && c
}

// supportsSystemRole reports whether the resolved model accepts system
// messages, based on its descriptor. A model that declared no capabilities
// is assumed to accept them.
func supportsSystemRole(desc api.ActionDesc) bool {
	meta, ok := desc.Metadata["model"].(map[string]any)
	if !ok {
		return true
	}
	supports, ok := meta["supports"].(map[string]any)
	if !ok || len(supports) == 0 {
		return true
	}
	s, ok := supports["systemRole"].(bool)
	return !ok || s
}

// simulateSystemPrompt moves system messages into the first user message for
// models that do not accept a system role.
func simulateSystemPrompt(preface string) ModelMiddleware {
	if preface == "" {
		preface = "SYSTEM INSTRUCTIONS:\n"
	}
	return func(next ModelFunc) ModelFunc {
		return func(ctx context.Context, req *ModelRequest, cb ModelStreamCallback) (*ModelResponse, error) {
			var system []string
			var rest []*Message
			for _, msg := range req.Messages {
				if msg.Role == RoleSystem {
					system = append(system, msg.Text())
					continue
				}
				rest = append(rest, msg)
			}
			if len(system) == 0 {
				return next(ctx, req, cb)
			}
			merged := NewUserTextMessage(preface + strings.Join(system, "\n"))
			modified := *req
			modified.Messages = append([]*Message{merged}, rest...)
			return next(ctx, &modified, cb)
		}
	}
}
