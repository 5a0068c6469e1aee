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

package aviary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aviary-ai/aviary/core/api"
)

// A pluginManifest is the on-disk description of a declared plugin: a name
// plus the actions it advertises. Declared plugins contribute to action
// listings without executable backing; resolving one of their actions
// reports not found until a real implementation registers it.
type pluginManifest struct {
	Name    string           `json:"name"`
	Actions []manifestAction `json:"actions"`
}

type manifestAction struct {
	Kind        api.ActionKind `json:"kind"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
}

// A DeclaredPlugin is a plugin loaded from a manifest file. It advertises
// action descriptors but cannot materialize the actions themselves.
type DeclaredPlugin struct {
	name    string
	actions []api.ActionDesc
}

var _ api.DynamicPlugin = (*DeclaredPlugin)(nil)

// Name returns the manifest's plugin name.
func (p *DeclaredPlugin) Name() string { return p.name }

// Init implements [api.Plugin]; declared plugins register nothing eagerly.
func (p *DeclaredPlugin) Init(ctx context.Context) ([]api.Action, error) {
	return nil, nil
}

// ListActions advertises the manifest's action descriptors.
func (p *DeclaredPlugin) ListActions(ctx context.Context) ([]api.ActionDesc, error) {
	return p.actions, nil
}

// ResolveAction reports that the plugin cannot provide the action; a
// manifest carries no implementation.
func (p *DeclaredPlugin) ResolveAction(ctx context.Context, kind api.ActionKind, name string) (api.Action, error) {
	return nil, nil
}

// ScanPlugins reads every *.plugin.json manifest in dir and returns the
// declared plugins, ready to pass to [WithPlugins]. A missing directory is
// not an error; a malformed manifest is.
func ScanPlugins(dir string) ([]api.Plugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("aviary.ScanPlugins: %w", err)
	}

	var plugins []api.Plugin
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".plugin.json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("aviary.ScanPlugins: %w", err)
		}
		var manifest pluginManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("aviary.ScanPlugins: invalid manifest %s: %w", path, err)
		}
		if manifest.Name == "" {
			return nil, fmt.Errorf("aviary.ScanPlugins: manifest %s has no plugin name", path)
		}

		descs := make([]api.ActionDesc, 0, len(manifest.Actions))
		for _, a := range manifest.Actions {
			if a.Kind == "" || a.Name == "" {
				return nil, fmt.Errorf("aviary.ScanPlugins: manifest %s declares an action without kind or name", path)
			}
			descs = append(descs, api.ActionDesc{
				Kind:        a.Kind,
				Key:         api.NewKey(a.Kind, a.Name),
				Name:        a.Name,
				Description: a.Description,
			})
		}
		plugins = append(plugins, &DeclaredPlugin{name: manifest.Name, actions: descs})
	}
	return plugins, nil
}
