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
	"os"
	"path/filepath"
	"testing"

	"github.com/aviary-ai/aviary/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestScanPlugins(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "weather.plugin.json", `{
		"name": "weather",
		"actions": [
			{"kind": "tool", "name": "currentTemp", "description": "reads the current temperature"},
			{"kind": "model", "name": "forecaster"}
		]
	}`)
	writeManifest(t, dir, "notes.txt", "not a manifest")

	plugins, err := ScanPlugins(dir)
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "weather", plugins[0].Name())

	ctx := context.Background()
	a, err := Init(ctx, WithPlugins(plugins...))
	require.NoError(t, err)

	descs, err := a.ListActions(ctx)
	require.NoError(t, err)
	keys := make(map[string]string, len(descs))
	for _, d := range descs {
		keys[d.Key] = d.Description
	}
	assert.Contains(t, keys, "tool/currentTemp")
	assert.Contains(t, keys, "model/forecaster")
	assert.Equal(t, "reads the current temperature", keys["tool/currentTemp"])

	// Declared actions have no implementation behind them.
	_, err = a.Registry().ResolveActionByKey(ctx, "tool/currentTemp")
	require.Error(t, err)
	assert.Equal(t, core.NOT_FOUND, core.StatusOf(err))
}

func TestScanPluginsMissingDir(t *testing.T) {
	plugins, err := ScanPlugins(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, plugins)
}

func TestScanPluginsRejectsMalformedManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "broken.plugin.json", `{"name": "`)
	_, err := ScanPlugins(dir)
	require.Error(t, err)
}

func TestScanPluginsRequiresName(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "anon.plugin.json", `{"actions": []}`)
	_, err := ScanPlugins(dir)
	require.Error(t, err)
}
