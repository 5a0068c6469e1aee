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

// Package tracing provides execution-trace spans around action invocations.
package tracing

import (
	"context"
	"encoding/json"

	"github.com/aviary-ai/aviary/core/logger"
	"github.com/aviary-ai/aviary/internal/base"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const attrPrefix = "aviary"

// State holds OpenTelemetry values for creating traces.
type State struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewState returns a State backed by a fresh tracer provider.
func NewState() *State {
	tp := sdktrace.NewTracerProvider()
	return &State{
		tp:     tp,
		tracer: tp.Tracer("aviary-tracer", trace.WithInstrumentationVersion("v1")),
	}
}

// RegisterSpanProcessor adds an exporter-backed processor to the provider.
func (ts *State) RegisterSpanProcessor(sp sdktrace.SpanProcessor) {
	ts.tp.RegisterSpanProcessor(sp)
}

// Shutdown flushes and stops the underlying tracer provider.
func (ts *State) Shutdown(ctx context.Context) error {
	return ts.tp.Shutdown(ctx)
}

// SpanMetadata configures the span created by RunInNewSpan.
type SpanMetadata struct {
	// Name is the span name.
	Name string
	// IsRoot indicates if this is a root span.
	IsRoot bool
	// Type is the broad kind of span ("action", "util").
	Type string
	// Subtype categorizes further (e.g. "model", "tool").
	Subtype string
	// Attributes are arbitrary key-value pairs set directly as span attributes.
	Attributes map[string]string
}

// spanPathKey carries the slash-separated path of enclosing spans.
var spanPathKey = base.NewContextKey[string]()

// SpanPath returns the path of the innermost span in ctx, or "".
func SpanPath(ctx context.Context) string {
	return spanPathKey.FromContext(ctx)
}

// RunInNewSpan runs f on input in a new span with the provided metadata.
// The input is recorded on the span at start, the output or error at end.
func RunInNewSpan[I, O any](
	ctx context.Context,
	tstate *State,
	metadata *SpanMetadata,
	input I,
	f func(context.Context, I) (O, error),
) (O, error) {
	if metadata == nil {
		metadata = &SpanMetadata{}
	}

	log := logger.FromContext(ctx)
	log.Debug("span start", "name", metadata.Name)
	defer log.Debug("span end", "name", metadata.Name)

	path := metadata.Name
	if parent := spanPathKey.FromContext(ctx); parent != "" && !metadata.IsRoot {
		path = parent + "/" + metadata.Name
	}
	ctx = spanPathKey.NewContext(ctx, path)

	opts := []trace.SpanStartOption{
		trace.WithAttributes(
			attribute.String(attrPrefix+":type", metadata.Type),
			attribute.String(attrPrefix+":path", path),
		),
	}
	if metadata.Subtype != "" {
		opts = append(opts, trace.WithAttributes(attribute.String(attrPrefix+":metadata:subtype", metadata.Subtype)))
	}
	for k, v := range metadata.Attributes {
		opts = append(opts, trace.WithAttributes(attribute.String(k, v)))
	}

	ctx, span := tstate.tracer.Start(ctx, metadata.Name, opts...)
	defer span.End()

	span.SetAttributes(attribute.String(attrPrefix+":input", jsonString(input)))

	output, err := f(ctx, input)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return base.Zero[O](), err
	}

	span.SetAttributes(
		attribute.String(attrPrefix+":output", jsonString(output)),
		attribute.String(attrPrefix+":state", "success"),
	)
	return output, nil
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
