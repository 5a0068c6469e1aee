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

package core

import (
	"context"

	"github.com/aviary-ai/aviary/internal/base"
)

// ActionContext is the read-only side-channel data for an action invocation,
// e.g. auth or session claims. It travels on the context, so nested
// invocations (a tool run inside a model turn) see the same map without any
// global state.
type ActionContext = map[string]any

var actionCtxKey = base.NewContextKey[ActionContext]()

// WithActionContext returns a new Context with the action context value set.
func WithActionContext(ctx context.Context, actionCtx ActionContext) context.Context {
	return actionCtxKey.NewContext(ctx, actionCtx)
}

// FromContext returns the action context in ctx, or nil if there is none.
func FromContext(ctx context.Context) ActionContext {
	return actionCtxKey.FromContext(ctx)
}
