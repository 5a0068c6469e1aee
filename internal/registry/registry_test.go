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

package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aviary-ai/aviary/core"
	"github.com/aviary-ai/aviary/core/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAction(name string) api.Action {
	return core.NewAction(name, api.KindCustom, nil, func(_ context.Context, x int) (int, error) {
		return x, nil
	})
}

// dynamicPlugin is a test plugin whose resolution behavior is scripted.
type dynamicPlugin struct {
	name        string
	resolve     func(kind api.ActionKind, name string) (api.Action, error)
	list        func() ([]api.ActionDesc, error)
	resolveGate chan struct{}
	calls       atomic.Int32
}

func (p *dynamicPlugin) Name() string { return p.name }

func (p *dynamicPlugin) Init(context.Context) ([]api.Action, error) { return nil, nil }

func (p *dynamicPlugin) ListActions(context.Context) ([]api.ActionDesc, error) {
	if p.list == nil {
		return nil, nil
	}
	return p.list()
}

func (p *dynamicPlugin) ResolveAction(_ context.Context, kind api.ActionKind, name string) (api.Action, error) {
	p.calls.Add(1)
	if p.resolveGate != nil {
		<-p.resolveGate
	}
	if p.resolve == nil {
		return nil, nil
	}
	return p.resolve(kind, name)
}

func TestRegisterAndLookupAction(t *testing.T) {
	r := New()
	a := newTestAction("inc")
	require.NoError(t, r.RegisterAction("custom/inc", a))
	assert.Equal(t, a, r.LookupAction("custom/inc"))
	assert.Nil(t, r.LookupAction("custom/other"))
}

func TestRegisterActionDuplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAction("custom/inc", newTestAction("inc")))
	err := r.RegisterAction("custom/inc", newTestAction("inc"))
	require.Error(t, err)
	assert.Equal(t, core.ALREADY_EXISTS, core.StatusOf(err))
}

func TestResolveActionReturnsRegistered(t *testing.T) {
	r := New()
	a := newTestAction("inc")
	require.NoError(t, r.RegisterAction(api.NewKey(api.KindCustom, "inc"), a))

	got, err := r.ResolveAction(context.Background(), api.KindCustom, "inc")
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestResolveActionNotFound(t *testing.T) {
	r := New()
	_, err := r.ResolveAction(context.Background(), api.KindModel, "missing")
	require.Error(t, err)
	assert.Equal(t, core.NOT_FOUND, core.StatusOf(err))
}

func TestResolveActionByKeyMalformed(t *testing.T) {
	r := New()
	for _, key := range []string{"", "model", "model/a/b", "/x", "model/"} {
		_, err := r.ResolveActionByKey(context.Background(), key)
		require.Error(t, err, "key %q", key)
		assert.Equal(t, core.INVALID_ARGUMENT, core.StatusOf(err), "key %q", key)
	}
}

func TestResolveActionSharesSingleAttempt(t *testing.T) {
	r := New()
	gate := make(chan struct{})
	p := &dynamicPlugin{
		name:        "scripted",
		resolveGate: gate,
		resolve: func(kind api.ActionKind, name string) (api.Action, error) {
			return newTestAction(name), nil
		},
	}
	require.NoError(t, r.RegisterPlugin(p.Name(), p))

	const callers = 16
	var wg sync.WaitGroup
	actions := make([]api.Action, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actions[i], errs[i] = r.ResolveAction(context.Background(), api.KindTool, "thermometer")
		}(i)
	}

	// Let the callers pile up on the in-flight attempt, then release it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, actions[0], actions[i])
	}
	assert.Equal(t, int32(1), p.calls.Load(), "resolution ran more than once")
}

func TestResolveActionSuccessIsCached(t *testing.T) {
	r := New()
	p := &dynamicPlugin{
		name: "scripted",
		resolve: func(kind api.ActionKind, name string) (api.Action, error) {
			return newTestAction(name), nil
		},
	}
	require.NoError(t, r.RegisterPlugin(p.Name(), p))

	first, err := r.ResolveAction(context.Background(), api.KindTool, "thermometer")
	require.NoError(t, err)
	second, err := r.ResolveAction(context.Background(), api.KindTool, "thermometer")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestResolveActionFailureIsNotCached(t *testing.T) {
	r := New()
	var attempt atomic.Int32
	p := &dynamicPlugin{
		name: "flaky",
		resolve: func(kind api.ActionKind, name string) (api.Action, error) {
			if attempt.Add(1) == 1 {
				return nil, errors.New("upstream hiccup")
			}
			return newTestAction(name), nil
		},
	}
	require.NoError(t, r.RegisterPlugin(p.Name(), p))

	_, err := r.ResolveAction(context.Background(), api.KindModel, "gull")
	require.Error(t, err)
	assert.Equal(t, core.INTERNAL, core.StatusOf(err))

	// The failure must not stick: a later call retries from scratch.
	got, err := r.ResolveAction(context.Background(), api.KindModel, "gull")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestRegisterPluginDuplicate(t *testing.T) {
	r := New()
	p := &dynamicPlugin{name: "dup"}
	require.NoError(t, r.RegisterPlugin(p.Name(), p))
	err := r.RegisterPlugin(p.Name(), p)
	require.Error(t, err)
	assert.Equal(t, core.ALREADY_EXISTS, core.StatusOf(err))
}

func TestListActionsMergesAndDeduplicates(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAction(api.NewKey(api.KindCustom, "inc"), newTestAction("inc")))

	p := &dynamicPlugin{
		name: "advertiser",
		list: func() ([]api.ActionDesc, error) {
			return []api.ActionDesc{
				{Kind: api.KindCustom, Name: "inc"},                   // duplicate of the registered one
				{Kind: api.KindModel, Name: "gull", Key: "model/gull"},
			}, nil
		},
	}
	require.NoError(t, r.RegisterPlugin(p.Name(), p))

	descs, err := r.ListActions(context.Background())
	require.NoError(t, err)

	keys := make([]string, len(descs))
	for i, d := range descs {
		keys[i] = d.Key
	}
	assert.ElementsMatch(t, []string{"custom/inc", "model/gull"}, keys)
}

func TestListActionsSkipsFailingPlugin(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAction(api.NewKey(api.KindCustom, "inc"), newTestAction("inc")))

	broken := &dynamicPlugin{
		name: "broken",
		list: func() ([]api.ActionDesc, error) { return nil, errors.New("unreachable") },
	}
	require.NoError(t, r.RegisterPlugin(broken.Name(), broken))

	descs, err := r.ListActions(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "custom/inc", descs[0].Key)
}

func TestListActionsFailsWhenAllSourcesFail(t *testing.T) {
	r := New()
	broken := &dynamicPlugin{
		name: "broken",
		list: func() ([]api.ActionDesc, error) { return nil, errors.New("unreachable") },
	}
	require.NoError(t, r.RegisterPlugin(broken.Name(), broken))

	_, err := r.ListActions(context.Background())
	require.Error(t, err)
}

func TestRegisterAndLookupValue(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterValue("defaultModel", "gull-2"))
	assert.Equal(t, "gull-2", r.LookupValue("defaultModel"))
	assert.Nil(t, r.LookupValue("missing"))

	err := r.RegisterValue("defaultModel", "other")
	require.Error(t, err)
	assert.Equal(t, core.ALREADY_EXISTS, core.StatusOf(err))
}
