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

// Package core implements the action runtime: the uniform invocation
// surface over heterogeneous callables, the streaming primitive, and the
// error and context plumbing shared by all action kinds.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/aviary-ai/aviary/core/api"
	"github.com/aviary-ai/aviary/core/logger"
	"github.com/aviary-ai/aviary/core/tracing"
	"github.com/aviary-ai/aviary/internal/base"
	"github.com/invopop/jsonschema"
)

// A StreamingFunc is the type of function that actions execute. It takes an
// input of type In and returns an output of type Out, optionally streaming
// values of type Stream incrementally by invoking the callback. A nil
// callback means the caller did not request streaming; the function should
// then just return its result.
type StreamingFunc[In, Out, Stream any] = func(context.Context, In, api.StreamCallback[Stream]) (Out, error)

// A Func is a non-streaming action function.
type Func[In, Out any] = func(context.Context, In) (Out, error)

type noStream = api.StreamCallback[struct{}]

// Middleware wraps a StreamingFunc with additional behavior.
type Middleware[In, Out, Stream any] = func(StreamingFunc[In, Out, Stream]) StreamingFunc[In, Out, Stream]

// ChainMiddleware composes middlewares so the first one listed runs
// outermost.
func ChainMiddleware[In, Out, Stream any](mws ...Middleware[In, Out, Stream]) Middleware[In, Out, Stream] {
	return func(fn StreamingFunc[In, Out, Stream]) StreamingFunc[In, Out, Stream] {
		for i := len(mws) - 1; i >= 0; i-- {
			fn = mws[i](fn)
		}
		return fn
	}
}

// An ActionDef is a named, kinded, observable operation wrapping a user- or
// plugin-supplied function. It is immutable once registered; each Run
// produces a new trace span.
type ActionDef[In, Out, Stream any] struct {
	name         string
	kind         api.ActionKind
	fn           StreamingFunc[In, Out, Stream]
	description  string
	metadata     map[string]any
	inputSchema  *jsonschema.Schema
	outputSchema *jsonschema.Schema
	tstate       *tracing.State
}

var (
	defaultTStateOnce sync.Once
	defaultTState     *tracing.State
)

// defaultTracingState serves actions that are run without ever being
// registered, e.g. in tests.
func defaultTracingState() *tracing.State {
	defaultTStateOnce.Do(func() {
		defaultTState = tracing.NewState()
	})
	return defaultTState
}

// NewAction creates a non-streaming action without registering it.
func NewAction[In, Out any](
	name string,
	kind api.ActionKind,
	metadata map[string]any,
	fn Func[In, Out],
) *ActionDef[In, Out, struct{}] {
	return NewStreamingAction(name, kind, metadata, nil,
		func(ctx context.Context, in In, _ noStream) (Out, error) {
			return fn(ctx, in)
		})
}

// NewStreamingAction creates a streaming action without registering it.
// If inputSchema is nil, it is inferred from In.
func NewStreamingAction[In, Out, Stream any](
	name string,
	kind api.ActionKind,
	metadata map[string]any,
	inputSchema map[string]any,
	fn StreamingFunc[In, Out, Stream],
) *ActionDef[In, Out, Stream] {
	var in In
	var out Out
	var inSchema *jsonschema.Schema
	if inputSchema != nil {
		inSchema = mapToSchema(inputSchema)
	} else {
		inSchema = InferJSONSchema(in)
	}
	description, _ := metadata["description"].(string)
	return &ActionDef[In, Out, Stream]{
		name:         name,
		kind:         kind,
		fn:           fn,
		description:  description,
		metadata:     metadata,
		inputSchema:  inSchema,
		outputSchema: InferJSONSchema(out),
	}
}

// DefineAction creates a non-streaming action and registers it with r.
// It panics on a duplicate key; action definition is a startup-time
// operation and a duplicate is a programmer error.
func DefineAction[In, Out any](
	r api.Registry,
	name string,
	kind api.ActionKind,
	metadata map[string]any,
	fn Func[In, Out],
) *ActionDef[In, Out, struct{}] {
	a := NewAction(name, kind, metadata, fn)
	mustRegister(r, a)
	return a
}

// DefineStreamingAction creates a streaming action and registers it with r.
// It panics on a duplicate key.
func DefineStreamingAction[In, Out, Stream any](
	r api.Registry,
	name string,
	kind api.ActionKind,
	metadata map[string]any,
	inputSchema map[string]any,
	fn StreamingFunc[In, Out, Stream],
) *ActionDef[In, Out, Stream] {
	a := NewStreamingAction(name, kind, metadata, inputSchema, fn)
	mustRegister(r, a)
	return a
}

func mustRegister(r api.Registry, a api.Action) {
	if err := a.Register(r); err != nil {
		panic(err)
	}
}

// Name returns the action's name.
func (a *ActionDef[In, Out, Stream]) Name() string { return a.name }

// Kind returns the action's kind.
func (a *ActionDef[In, Out, Stream]) Kind() api.ActionKind { return a.kind }

// Register registers the action with r under its "<kind>/<name>" key.
func (a *ActionDef[In, Out, Stream]) Register(r api.Registry) error {
	return r.RegisterAction(api.NewKey(a.kind, a.name), a)
}

// SetTracingState attaches the tracer the action's spans are created with.
// Called by the registry at registration time.
func (a *ActionDef[In, Out, Stream]) SetTracingState(tstate *tracing.State) {
	a.tstate = tstate
}

// Run executes the action's function in a new trace span. Input and output
// are validated against the action's schemas. Any failure from the wrapped
// function is returned as an [ActionError] tagged with the action's kind
// and name; the original error remains reachable with errors.As.
func (a *ActionDef[In, Out, Stream]) Run(ctx context.Context, input In, cb api.StreamCallback[Stream]) (output Out, err error) {
	log := logger.FromContext(ctx)
	log.Debug("Action.Run", "key", api.NewKey(a.kind, a.name))
	defer func() {
		log.Debug("Action.Run done", "key", api.NewKey(a.kind, a.name), "err", err)
	}()

	tstate := a.tstate
	if tstate == nil {
		// The action was run without being registered.
		tstate = defaultTracingState()
	}

	spanMeta := &tracing.SpanMetadata{
		Name:    a.name,
		Type:    "action",
		Subtype: string(a.kind),
	}
	return tracing.RunInNewSpan(ctx, tstate, spanMeta, input,
		func(ctx context.Context, input In) (Out, error) {
			start := time.Now()
			if err := base.ValidateValue(input, a.inputSchema); err != nil {
				return base.Zero[Out](), NewError(INVALID_ARGUMENT, "invalid input to %s/%s: %v", a.kind, a.name, err)
			}
			output, err := a.fn(ctx, input, cb)
			if err != nil {
				return base.Zero[Out](), &ActionError{Kind: a.kind, Name: a.name, Err: err}
			}
			if err := base.ValidateValue(output, a.outputSchema); err != nil {
				return base.Zero[Out](), NewError(INTERNAL, "invalid output from %s/%s: %v", a.kind, a.name, err)
			}
			log.Debug("Action.Run latency", "key", api.NewKey(a.kind, a.name), "latency", time.Since(start))
			return output, nil
		})
}

// RunJSON runs the action with a JSON input and returns a JSON result,
// adapting the chunk callback through JSON marshalling.
func (a *ActionDef[In, Out, Stream]) RunJSON(ctx context.Context, input json.RawMessage, cb api.StreamCallback[json.RawMessage]) (json.RawMessage, error) {
	// Validate the raw input first: unknown fields would be silently
	// discarded by unmarshalling.
	if err := base.ValidateJSON(input, a.inputSchema); err != nil {
		return nil, NewError(INVALID_ARGUMENT, "invalid input to %s/%s: %v", a.kind, a.name, err)
	}
	var in In
	if input != nil {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, err
		}
	}
	var callback api.StreamCallback[Stream]
	if cb != nil {
		callback = func(ctx context.Context, s Stream) error {
			bytes, err := json.Marshal(s)
			if err != nil {
				return err
			}
			return cb(ctx, json.RawMessage(bytes))
		}
	}
	out, err := a.Run(ctx, in, callback)
	if err != nil {
		return nil, err
	}
	bytes, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(bytes), nil
}

// Stream runs the action and returns two handles immediately: a single-pass
// sequence of streamed chunks in send order, and a thunk that blocks until
// the run finishes and returns the final result. The chunks flow through a
// fresh [Channel] wired into the action's callback; cancelling ctx closes
// the channel with the cancellation error instead of leaving the consumer
// waiting.
func (a *ActionDef[In, Out, Stream]) Stream(ctx context.Context, input In) (iter.Seq2[Stream, error], func() (Out, error)) {
	ch := NewChannel[Stream]()
	var (
		out    Out
		runErr error
	)
	done := make(chan struct{})

	go func() {
		defer close(done)
		out, runErr = a.Run(ctx, input, func(ctx context.Context, s Stream) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ch.Send(s)
			return nil
		})
		ch.Close(runErr)
	}()

	wait := func() (Out, error) {
		<-done
		return out, runErr
	}
	return ch.Seq(ctx), wait
}

// Desc returns a descriptor of the action.
func (a *ActionDef[In, Out, Stream]) Desc() api.ActionDesc {
	return api.ActionDesc{
		Kind:         a.kind,
		Key:          api.NewKey(a.kind, a.name),
		Name:         a.name,
		Description:  a.description,
		InputSchema:  base.SchemaAsMap(a.inputSchema),
		OutputSchema: base.SchemaAsMap(a.outputSchema),
		Metadata:     a.metadata,
	}
}

// ResolveActionFor resolves (kind, name) in r, triggering lazy plugin
// resolution if needed, and returns it as a typed ActionDef. It panics if
// the registered action has a different concrete type.
func ResolveActionFor[In, Out, Stream any](ctx context.Context, r api.Registry, kind api.ActionKind, name string) (*ActionDef[In, Out, Stream], error) {
	a, err := r.ResolveAction(ctx, kind, name)
	if err != nil {
		return nil, err
	}
	def, ok := a.(*ActionDef[In, Out, Stream])
	if !ok {
		panic(fmt.Sprintf("action %s has type %T, not the requested type", api.NewKey(kind, name), a))
	}
	return def, nil
}

// LookupActionFor returns the registered typed action for (kind, name), or
// nil if there is none. It never triggers lazy resolution.
func LookupActionFor[In, Out, Stream any](r api.Registry, kind api.ActionKind, name string) *ActionDef[In, Out, Stream] {
	a := r.LookupAction(api.NewKey(kind, name))
	if a == nil {
		return nil
	}
	return a.(*ActionDef[In, Out, Stream])
}

func mapToSchema(m map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	return &s
}
