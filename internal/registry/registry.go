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

// Package registry implements the store of actions, plugins, and values.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aviary-ai/aviary/core"
	"github.com/aviary-ai/aviary/core/api"
	"github.com/aviary-ai/aviary/core/logger"
	"github.com/aviary-ai/aviary/core/tracing"
)

// Registry holds all registered actions, plugins, and values, and performs
// lazy, at-most-once-in-flight resolution of actions provided by dynamic
// plugins.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]api.Action
	plugins map[string]api.Plugin
	// pluginNames preserves registration order so resolution and listing
	// are deterministic.
	pluginNames []string
	values      map[string]any

	slotMu sync.Mutex
	slots  map[string]*resolveSlot

	tstate *tracing.State
}

// A resolveSlot is the shared state of one in-flight resolution attempt for
// one key. Its fields are written exactly once, before done is closed.
type resolveSlot struct {
	done   chan struct{}
	action api.Action
	err    error
}

var _ api.Registry = (*Registry)(nil)

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		actions: map[string]api.Action{},
		plugins: map[string]api.Plugin{},
		values:  map[string]any{},
		slots:   map[string]*resolveSlot{},
		tstate:  tracing.NewState(),
	}
}

// TracingState returns the tracer state actions registered here span with.
func (r *Registry) TracingState() *tracing.State { return r.tstate }

// RegisterAction records the action under key. Duplicate keys are an
// ALREADY_EXISTS error; there is no silent overwrite.
func (r *Registry) RegisterAction(key string, action api.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[key]; ok {
		return core.NewError(core.ALREADY_EXISTS, "action %q is already registered", key)
	}
	if ts, ok := action.(interface{ SetTracingState(*tracing.State) }); ok {
		ts.SetTracingState(r.tstate)
	}
	r.actions[key] = action
	slog.Debug("RegisterAction", "key", key)
	return nil
}

// LookupAction returns the registered action for key, or nil.
func (r *Registry) LookupAction(key string) api.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actions[key]
}

// RegisterPlugin records the plugin under name. Duplicate names are an
// ALREADY_EXISTS error.
func (r *Registry) RegisterPlugin(name string, p api.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[name]; ok {
		return core.NewError(core.ALREADY_EXISTS, "plugin %q is already registered", name)
	}
	r.plugins[name] = p
	r.pluginNames = append(r.pluginNames, name)
	slog.Debug("RegisterPlugin", "name", name)
	return nil
}

// LookupPlugin returns the plugin for name, or nil.
func (r *Registry) LookupPlugin(name string) api.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins[name]
}

// ListPlugins returns all registered plugins in registration order.
func (r *Registry) ListPlugins() []api.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plugins := make([]api.Plugin, 0, len(r.pluginNames))
	for _, name := range r.pluginNames {
		plugins = append(plugins, r.plugins[name])
	}
	return plugins
}

// RegisterValue records an arbitrary named value.
func (r *Registry) RegisterValue(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.values[name]; ok {
		return core.NewError(core.ALREADY_EXISTS, "value %q is already registered", name)
	}
	r.values[name] = value
	return nil
}

// LookupValue returns the value for name, or nil.
func (r *Registry) LookupValue(name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[name]
}

// ResolveActionByKey parses a "<kind>/<name>" key and resolves it.
func (r *Registry) ResolveActionByKey(ctx context.Context, key string) (api.Action, error) {
	kind, name, err := api.ParseKey(key)
	if err != nil {
		return nil, core.NewError(core.INVALID_ARGUMENT, "%v", err)
	}
	return r.ResolveAction(ctx, kind, name)
}

// ResolveAction returns the action for (kind, name). If it is not
// registered, the dynamic plugins are consulted, with at most one attempt in
// flight per key: concurrent callers for the same unresolved key share the
// outcome of the single outstanding attempt. A resolved action is cached
// forever via registration; a failed attempt is not cached, so a later call
// retries from scratch.
func (r *Registry) ResolveAction(ctx context.Context, kind api.ActionKind, name string) (api.Action, error) {
	key := api.NewKey(kind, name)
	if a := r.LookupAction(key); a != nil {
		return a, nil
	}

	r.slotMu.Lock()
	// Re-check under the slot lock: the action may have been registered by
	// an attempt that completed between the lookup above and here.
	if a := r.LookupAction(key); a != nil {
		r.slotMu.Unlock()
		return a, nil
	}
	if slot, ok := r.slots[key]; ok {
		r.slotMu.Unlock()
		select {
		case <-slot.done:
			return slot.action, slot.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	slot := &resolveSlot{done: make(chan struct{})}
	r.slots[key] = slot
	r.slotMu.Unlock()

	// Run the plugin hooks outside any lock; they may perform I/O.
	action, err := r.resolveFromPlugins(ctx, kind, name)
	if err == nil && action != nil {
		if regErr := r.RegisterAction(key, action); regErr != nil {
			// Lost a race with an eager registration; use the winner.
			action = r.LookupAction(key)
		}
	}
	if err == nil && action == nil {
		err = core.NewError(core.NOT_FOUND, "action %q not found", key)
	}
	slot.action, slot.err = action, err

	r.slotMu.Lock()
	delete(r.slots, key)
	r.slotMu.Unlock()
	close(slot.done)

	return action, err
}

// resolveFromPlugins asks each dynamic plugin in registration order for the
// action; the first plugin to produce one wins.
func (r *Registry) resolveFromPlugins(ctx context.Context, kind api.ActionKind, name string) (api.Action, error) {
	for _, p := range r.ListPlugins() {
		dp, ok := p.(api.DynamicPlugin)
		if !ok {
			continue
		}
		action, err := dp.ResolveAction(ctx, kind, name)
		if err != nil {
			return nil, core.NewError(core.INTERNAL, "plugin %q failed to resolve action %q: %v", dp.Name(), api.NewKey(kind, name), err)
		}
		if action != nil {
			return action, nil
		}
	}
	return nil, nil
}

// ListActions returns descriptors for all registered actions merged with
// the descriptors advertised by every dynamic plugin, de-duplicated by key
// with registered actions taking precedence. A plugin that fails to list is
// skipped with a warning; if every source fails and nothing was produced,
// the last error is returned.
func (r *Registry) ListActions(ctx context.Context) ([]api.ActionDesc, error) {
	var descs []api.ActionDesc
	seen := map[string]bool{}

	r.mu.RLock()
	for key, a := range r.actions {
		descs = append(descs, a.Desc())
		seen[key] = true
	}
	r.mu.RUnlock()

	var lastErr error
	sources, failures := 0, 0
	for _, p := range r.ListPlugins() {
		dp, ok := p.(api.DynamicPlugin)
		if !ok {
			continue
		}
		sources++
		advertised, err := dp.ListActions(ctx)
		if err != nil {
			failures++
			lastErr = err
			logger.FromContext(ctx).Warn("ListActions: skipping plugin", "plugin", dp.Name(), "err", err)
			continue
		}
		for _, desc := range advertised {
			if desc.Key == "" {
				desc.Key = api.NewKey(desc.Kind, desc.Name)
			}
			if seen[desc.Key] {
				continue
			}
			seen[desc.Key] = true
			descs = append(descs, desc)
		}
	}

	if sources > 0 && failures == sources && len(descs) == 0 {
		return nil, fmt.Errorf("listing actions failed for all plugins: %w", lastErr)
	}
	return descs, nil
}
