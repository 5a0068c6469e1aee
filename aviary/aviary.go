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

// Package aviary is the entry point to the action runtime: it assembles the
// registry, built-in formats, and plugins, and re-exports the definition and
// generation surface.
package aviary

import (
	"context"
	"fmt"
	"iter"

	"github.com/aviary-ai/aviary/ai"
	"github.com/aviary-ai/aviary/core"
	"github.com/aviary-ai/aviary/core/api"
	"github.com/aviary-ai/aviary/internal/registry"
)

// Aviary encapsulates a runtime instance: one registry plus the actions and
// plugins configured at Init.
type Aviary struct {
	reg *registry.Registry
}

type initOptions struct {
	plugins      []api.Plugin
	defaultModel string
}

// An Option configures Init.
type Option func(*initOptions) error

// WithPlugins sets the plugins to register and initialize during Init.
func WithPlugins(plugins ...api.Plugin) Option {
	return func(o *initOptions) error {
		if o.plugins != nil {
			return fmt.Errorf("aviary.WithPlugins: plugins already set")
		}
		o.plugins = plugins
		return nil
	}
}

// WithDefaultModel sets the model used by Generate calls that name none.
func WithDefaultModel(name string) Option {
	return func(o *initOptions) error {
		if o.defaultModel != "" {
			return fmt.Errorf("aviary.WithDefaultModel: default model already set")
		}
		o.defaultModel = name
		return nil
	}
}

// Init creates a runtime instance: a fresh registry with the built-in output
// formats and the generate action, then each plugin registered and
// initialized in order. Actions a plugin returns from Init are registered on
// its behalf.
func Init(ctx context.Context, opts ...Option) (*Aviary, error) {
	iOpts := &initOptions{}
	for _, opt := range opts {
		if err := opt(iOpts); err != nil {
			return nil, err
		}
	}

	r := registry.New()
	if err := ai.ConfigureFormats(r); err != nil {
		return nil, err
	}
	ai.DefineGenerateAction(ctx, r)

	if iOpts.defaultModel != "" {
		if err := r.RegisterValue(api.DefaultModelKey, iOpts.defaultModel); err != nil {
			return nil, err
		}
	}

	for _, p := range iOpts.plugins {
		if err := r.RegisterPlugin(p.Name(), p); err != nil {
			return nil, err
		}
		actions, err := p.Init(ctx)
		if err != nil {
			return nil, fmt.Errorf("plugin %s initialization failed: %w", p.Name(), err)
		}
		for _, a := range actions {
			if err := a.Register(r); err != nil {
				return nil, err
			}
		}
	}

	return &Aviary{reg: r}, nil
}

// Registry returns the runtime's registry.
func (a *Aviary) Registry() api.Registry { return a.reg }

// ListActions returns descriptors for every known action, registered or
// advertised by a dynamic plugin.
func (a *Aviary) ListActions(ctx context.Context) ([]api.ActionDesc, error) {
	return a.reg.ListActions(ctx)
}

// DefineModel defines a model and registers it.
func DefineModel(a *Aviary, name string, opts *ai.ModelOptions, fn ai.ModelFunc) ai.Model {
	return ai.DefineModel(a.reg, name, opts, fn)
}

// LookupModel returns the registered model named name, or nil.
func LookupModel(a *Aviary, name string) ai.Model {
	return ai.LookupModel(a.reg, name)
}

// DefineTool defines a tool and registers it.
func DefineTool[In, Out any](a *Aviary, name, description string,
	fn func(ctx *ai.ToolContext, input In) (Out, error)) ai.Tool {
	return ai.DefineTool(a.reg, name, description, fn)
}

// LookupTool returns the registered tool named name, or nil.
func LookupTool(a *Aviary, name string) ai.Tool {
	return ai.LookupTool(a.reg, name)
}

// DefineFormat registers a custom output format.
func DefineFormat(a *Aviary, name string, formatter ai.Formatter) error {
	return ai.DefineFormat(a.reg, name, formatter)
}

// DefineFlow defines a non-streaming flow action and registers it.
func DefineFlow[In, Out any](a *Aviary, name string, fn core.Func[In, Out]) *core.ActionDef[In, Out, struct{}] {
	return core.DefineAction(a.reg, name, api.KindFlow, nil, fn)
}

// DefineStreamingFlow defines a streaming flow action and registers it.
func DefineStreamingFlow[In, Out, Stream any](a *Aviary, name string, fn core.StreamingFunc[In, Out, Stream]) *core.ActionDef[In, Out, Stream] {
	return core.DefineStreamingAction(a.reg, name, api.KindFlow, nil, nil, fn)
}

// Generate generates a model response from the provided options.
func Generate(ctx context.Context, a *Aviary, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	return ai.Generate(ctx, a.reg, opts...)
}

// GenerateText runs a generate request and returns the generated text only.
func GenerateText(ctx context.Context, a *Aviary, opts ...ai.GenerateOption) (string, error) {
	return ai.GenerateText(ctx, a.reg, opts...)
}

// GenerateData runs a generate request and returns strongly-typed output.
func GenerateData[Out any](ctx context.Context, a *Aviary, opts ...ai.GenerateOption) (*Out, *ai.ModelResponse, error) {
	return ai.GenerateData[Out](ctx, a.reg, opts...)
}

// GenerateStream generates a model response and streams it.
func GenerateStream(ctx context.Context, a *Aviary, opts ...ai.GenerateOption) iter.Seq2[*ai.ModelStreamValue, error] {
	return ai.GenerateStream(ctx, a.reg, opts...)
}
