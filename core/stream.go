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
	"iter"
	"sync"

	"github.com/aviary-ai/aviary/internal/base"
)

// A Channel is an unbounded, single-producer single-consumer FIFO queue
// with a terminal close signal. It turns a function that invokes a callback
// many times into a sequence a consumer can iterate.
//
// Send never blocks, so an action streaming chunks mid-generation is never
// stalled by a slow consumer. Values are delivered in send order; after
// Close, buffered values drain first, then the terminal state is signalled
// exactly once per consumer loop.
type Channel[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	buf      []T
	closed   bool
	terminal error
}

// NewChannel returns an open, empty channel.
func NewChannel[T any]() *Channel[T] {
	c := &Channel[T]{}
	c.nonEmpty = sync.NewCond(&c.mu)
	return c
}

// Send appends v to the queue. It must not be called after Close; doing so
// is a producer bug and panics.
func (c *Channel[T]) Send(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		panic("core.Channel: Send after Close")
	}
	c.buf = append(c.buf, v)
	c.nonEmpty.Broadcast()
}

// Close marks the channel closed with an optional terminal error and wakes
// all pending consumers. Closing an already-closed channel is a no-op; the
// first terminal state wins.
func (c *Channel[T]) Close(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.terminal = err
	c.nonEmpty.Broadcast()
}

// Recv returns the next value in send order. It blocks until a value is
// available, the channel is closed and drained, or ctx is done. When the
// stream has ended, ok is false and err holds the terminal error (nil for a
// clean close, ctx.Err() for cancellation).
func (c *Channel[T]) Recv(ctx context.Context) (v T, ok bool, err error) {
	// Wake the cond wait when the caller's context fires.
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.nonEmpty.Broadcast()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if len(c.buf) > 0 {
			v = c.buf[0]
			c.buf = c.buf[1:]
			return v, true, nil
		}
		if c.closed {
			return base.Zero[T](), false, c.terminal
		}
		if ctx.Err() != nil {
			return base.Zero[T](), false, ctx.Err()
		}
		c.nonEmpty.Wait()
	}
}

// Seq adapts the channel to a blocking, single-pass iterator. A terminal
// error (including cancellation) is yielded once with the zero value; a
// clean close simply ends the sequence. Re-iterating an exhausted sequence
// yields nothing further.
func (c *Channel[T]) Seq(ctx context.Context) iter.Seq2[T, error] {
	exhausted := false
	return func(yield func(T, error) bool) {
		if exhausted {
			return
		}
		for {
			v, ok, err := c.Recv(ctx)
			if !ok {
				exhausted = true
				if err != nil {
					yield(base.Zero[T](), err)
				}
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
