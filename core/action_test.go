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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/aviary-ai/aviary/core/api"
	"github.com/google/go-cmp/cmp"
)

func inc(_ context.Context, x int) (int, error) {
	return x + 1, nil
}

func TestActionRun(t *testing.T) {
	a := NewAction("inc", api.KindCustom, nil, inc)
	got, err := a.Run(context.Background(), 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := 4; got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestActionRunJSON(t *testing.T) {
	a := NewAction("inc", api.KindCustom, nil, inc)
	input := []byte("3")
	want := []byte("4")
	got, err := a.RunJSON(context.Background(), input, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func count(ctx context.Context, n int, cb api.StreamCallback[int]) (int, error) {
	if cb != nil {
		for i := range n {
			if err := cb(ctx, i); err != nil {
				return 0, err
			}
		}
	}
	return n, nil
}

func TestActionStreaming(t *testing.T) {
	ctx := context.Background()
	a := NewStreamingAction("count", api.KindCustom, nil, nil, count)
	const n = 3

	// Non-streaming.
	got, err := a.Run(ctx, n, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != n {
		t.Errorf("got %d, want %d", got, n)
	}

	// Streaming.
	var gotStreamed []int
	got, err = a.Run(ctx, n, func(_ context.Context, i int) error {
		gotStreamed = append(gotStreamed, i)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	wantStreamed := []int{0, 1, 2}
	if !slices.Equal(gotStreamed, wantStreamed) {
		t.Errorf("got %v, want %v", gotStreamed, wantStreamed)
	}
	if got != n {
		t.Errorf("got %d, want %d", got, n)
	}
}

func TestActionStreamHandles(t *testing.T) {
	ctx := context.Background()
	a := NewStreamingAction("count", api.KindCustom, nil, nil, count)

	seq, wait := a.Stream(ctx, 4)
	var streamed []int
	for v, err := range seq {
		if err != nil {
			t.Fatal(err)
		}
		streamed = append(streamed, v)
	}
	out, err := wait()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(streamed, []int{0, 1, 2, 3}) {
		t.Errorf("streamed %v, want [0 1 2 3]", streamed)
	}
	if out != 4 {
		t.Errorf("final result %d, want 4", out)
	}
}

func TestActionStreamPropagatesError(t *testing.T) {
	ctx := context.Background()
	failure := errors.New("producer failed")
	a := NewStreamingAction("fail", api.KindCustom, nil, nil,
		func(ctx context.Context, _ int, cb api.StreamCallback[int]) (int, error) {
			if cb != nil {
				if err := cb(ctx, 1); err != nil {
					return 0, err
				}
			}
			return 0, failure
		})

	seq, wait := a.Stream(ctx, 0)
	var streamed []int
	var seqErr error
	for v, err := range seq {
		if err != nil {
			seqErr = err
			continue
		}
		streamed = append(streamed, v)
	}
	if !slices.Equal(streamed, []int{1}) {
		t.Errorf("streamed %v, want [1]", streamed)
	}
	if !errors.Is(seqErr, failure) {
		t.Errorf("sequence error %v, want the producer failure", seqErr)
	}
	if _, err := wait(); !errors.Is(err, failure) {
		t.Errorf("wait error %v, want the producer failure", err)
	}
}

func TestActionErrorWrapsCause(t *testing.T) {
	cause := errors.New("flaky backend")
	a := NewAction("flaky", api.KindTool, nil, func(context.Context, struct{}) (struct{}, error) {
		return struct{}{}, cause
	})
	_, err := a.Run(context.Background(), struct{}{}, nil)
	if err == nil {
		t.Fatal("want error")
	}
	var actionErr *ActionError
	if !errors.As(err, &actionErr) {
		t.Fatalf("error %v is not an ActionError", err)
	}
	if actionErr.Kind != api.KindTool || actionErr.Name != "flaky" {
		t.Errorf("ActionError tagged (%s, %s), want (tool, flaky)", actionErr.Kind, actionErr.Name)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not reachable through %v", err)
	}
}

func TestActionRunJSONRejectsInvalidInput(t *testing.T) {
	a := NewAction("inc", api.KindCustom, nil, inc)
	_, err := a.RunJSON(context.Background(), []byte(`"not a number"`), nil)
	if err == nil {
		t.Fatal("want validation error")
	}
	if StatusOf(err) != INVALID_ARGUMENT {
		t.Errorf("status %s, want INVALID_ARGUMENT", StatusOf(err))
	}
}

func TestActionDesc(t *testing.T) {
	a := NewAction("inc", api.KindCustom, map[string]any{"description": "adds one"}, inc)
	got := a.Desc()
	if got.Key != "custom/inc" {
		t.Errorf("key %q, want custom/inc", got.Key)
	}
	if got.Name != "inc" || got.Kind != api.KindCustom {
		t.Errorf("desc (%s, %s), want (inc, custom)", got.Name, got.Kind)
	}
	if got.Description != "adds one" {
		t.Errorf("description %q, want %q", got.Description, "adds one")
	}
	if diff := cmp.Diff(map[string]any{"description": "adds one"}, got.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want, +got):\n%s", diff)
	}
}

func TestActionRunJSONStreamsMarshalledChunks(t *testing.T) {
	ctx := context.Background()
	a := NewStreamingAction("count", api.KindCustom, nil, nil, count)

	var chunks []string
	_, err := a.RunJSON(ctx, []byte("2"), func(_ context.Context, raw json.RawMessage) error {
		chunks = append(chunks, string(raw))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(chunks, []string{"0", "1"}) {
		t.Errorf("chunks %v, want [0 1]", chunks)
	}
}
