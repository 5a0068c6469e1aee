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

// DefaultModelKey is the registry value key under which the default model
// name is stored.
const DefaultModelKey = "defaultModel"

// Registry is the store of actions and plugins. Registration is eager and
// synchronous; lookup by ResolveAction may additionally consult plugins
// lazily, at most once per key at a time.
type Registry interface {
	// RegisterAction records the action under the given key. It returns an
	// ALREADY_EXISTS error if the key is taken; there is no silent overwrite.
	RegisterAction(key string, action Action) error
	// LookupAction returns the registered action for the key, or nil. It
	// never triggers lazy resolution.
	LookupAction(key string) Action
	// ResolveAction returns the action for (kind, name), consulting dynamic
	// plugins if it is not registered yet. Concurrent callers for the same
	// unresolved key share a single resolution attempt. A successful
	// resolution is cached forever; a failed attempt is not.
	ResolveAction(ctx context.Context, kind ActionKind, name string) (Action, error)
	// ResolveActionByKey is ResolveAction on a parsed "<kind>/<name>" key.
	ResolveActionByKey(ctx context.Context, key string) (Action, error)
	// ListActions returns descriptors for all registered actions merged with
	// the descriptors every dynamic plugin advertises, de-duplicated by key.
	ListActions(ctx context.Context) ([]ActionDesc, error)

	// RegisterPlugin records the plugin under its name. It returns an
	// ALREADY_EXISTS error if the name is taken.
	RegisterPlugin(name string, p Plugin) error
	// LookupPlugin returns the plugin for the name, or nil.
	LookupPlugin(name string) Plugin
	// ListPlugins returns all registered plugins.
	ListPlugins() []Plugin

	// RegisterValue records an arbitrary named value (formats, defaults).
	RegisterValue(name string, value any) error
	// LookupValue returns the value for the name, or nil.
	LookupValue(name string) any
}
