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

import "context"

// Plugin is the interface implemented by types that extend aviary's
// functionality, typically integrations with external model providers.
// Plugins are registered and initialized once at startup.
type Plugin interface {
	// Name returns the unique identifier for the plugin.
	Name() string
	// Init initializes the plugin and returns the actions it registers
	// eagerly. It is called once during startup.
	Init(ctx context.Context) ([]Action, error)
}

// DynamicPlugin is a [Plugin] that can produce actions lazily, on first
// lookup, instead of at Init time.
type DynamicPlugin interface {
	Plugin
	// ListActions returns descriptors for the actions the plugin is capable
	// of resolving, whether or not they have been materialized yet.
	ListActions(ctx context.Context) ([]ActionDesc, error)
	// ResolveAction materializes the action for (kind, name). It returns
	// (nil, nil) if the plugin does not provide that action. The registry
	// guarantees at most one in-flight call per key.
	ResolveAction(ctx context.Context, kind ActionKind, name string) (Action, error)
}
