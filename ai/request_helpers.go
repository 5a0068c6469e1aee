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

package ai

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/aviary-ai/aviary/core"
	"github.com/aviary-ai/aviary/internal/base"
)

// NewMessage creates a message with the provided parts and metadata.
func NewMessage(role Role, metadata map[string]any, parts ...*Part) *Message {
	return &Message{Role: role, Content: parts, Metadata: metadata}
}

// NewTextMessage creates a message with a single text part.
func NewTextMessage(role Role, text string) *Message {
	return &Message{Role: role, Content: []*Part{NewTextPart(text)}}
}

// NewUserMessage creates a user message with the provided parts.
func NewUserMessage(parts ...*Part) *Message {
	return NewMessage(RoleUser, nil, parts...)
}

// NewUserTextMessage creates a user message with a single text part.
func NewUserTextMessage(text string) *Message {
	return NewTextMessage(RoleUser, text)
}

// NewModelMessage creates a model message with the provided parts.
func NewModelMessage(parts ...*Part) *Message {
	return NewMessage(RoleModel, nil, parts...)
}

// NewModelTextMessage creates a model message with a single text part.
func NewModelTextMessage(text string) *Message {
	return NewTextMessage(RoleModel, text)
}

// NewSystemTextMessage creates a system message with a single text part.
func NewSystemTextMessage(text string) *Message {
	return NewTextMessage(RoleSystem, text)
}

// Text concatenates the text of all of the message's text parts.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range m.Content {
		if p.IsText() {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Text returns the text of the response message.
func (r *ModelResponse) Text() string {
	if r == nil {
		return ""
	}
	return r.Message.Text()
}

// History returns the original request messages followed by the response
// message, i.e. the conversation to date. The returned slice does not share
// its backing array with the request.
func (r *ModelResponse) History() []*Message {
	if r.Message == nil {
		return slices.Clone(r.Request.Messages)
	}
	msgs := make([]*Message, 0, len(r.Request.Messages)+1)
	msgs = append(msgs, r.Request.Messages...)
	return append(msgs, r.Message)
}

// ToolRequests returns the tool request parts of the response message.
func (r *ModelResponse) ToolRequests() []*ToolRequest {
	if r == nil || r.Message == nil {
		return nil
	}
	var reqs []*ToolRequest
	for _, p := range r.Message.Content {
		if p.IsToolRequest() {
			reqs = append(reqs, p.ToolRequest)
		}
	}
	return reqs
}

// Interrupts returns the tool request parts the run stopped on: the parts
// the caller must answer (via tool Respond or Restart) to resume.
func (r *ModelResponse) Interrupts() []*Part {
	if r == nil || r.Message == nil {
		return nil
	}
	var parts []*Part
	for _, p := range r.Message.Content {
		if p.IsInterrupt() {
			parts = append(parts, p)
		}
	}
	return parts
}

// Output parses the response text according to the response's output format
// and unmarshals it into v.
func (r *ModelResponse) Output(v any) error {
	if r.formatHandler != nil {
		parsed, err := r.formatHandler.ParseMessage(r.Message)
		if err != nil {
			return core.NewError(core.FAILED_PRECONDITION, "model did not produce parseable output: %v", err)
		}
		return json.Unmarshal([]byte(parsed.Text()), v)
	}
	text := base.ExtractJSONFromMarkdown(r.Text())
	if !base.ValidJSONString(text) {
		return core.NewError(core.FAILED_PRECONDITION, "model did not produce valid JSON: %q", text)
	}
	return json.Unmarshal([]byte(text), v)
}

// Text concatenates the text parts of the chunk.
func (c *ModelResponseChunk) Text() string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content {
		if p.IsText() {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// NewResponseForToolRequest builds the tool response part answering the
// given tool request part, carrying the request's name and ref so the model
// can match them up.
func NewResponseForToolRequest(req *Part, output any) (*Part, error) {
	if req == nil || !req.IsToolRequest() {
		return nil, fmt.Errorf("part is not a tool request")
	}
	return NewToolResponsePart(&ToolResponse{
		Name:   req.ToolRequest.Name,
		Ref:    req.ToolRequest.Ref,
		Output: output,
	}), nil
}
