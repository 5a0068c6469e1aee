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

// Package ai provides the generation data model, the model and tool
// surfaces, output formats, and the tool-calling generation loop.
package ai

// Role indicates which party a message is from.
type Role string

const (
	// RoleSystem indicates this message provides instructions to the model.
	RoleSystem Role = "system"
	// RoleUser indicates this message was generated by the client.
	RoleUser Role = "user"
	// RoleModel indicates this message was generated by the model.
	RoleModel Role = "model"
	// RoleTool indicates this message contains tool responses.
	RoleTool Role = "tool"
)

// Message is one message of a conversation: an ordered list of typed parts
// from one role.
type Message struct {
	Role     Role           `json:"role,omitempty"`
	Content  []*Part        `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// A ToolRequest is a message part the model emits to ask that a tool be run.
// Ref disambiguates multiple calls to the same tool within one message.
type ToolRequest struct {
	Ref   string `json:"ref,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
}

// A ToolResponse is a message part carrying the output of one tool run,
// matched to its request by name and ref.
type ToolResponse struct {
	Ref    string `json:"ref,omitempty"`
	Name   string `json:"name,omitempty"`
	Output any    `json:"output,omitempty"`
}

// A ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name         string         `json:"name,omitempty"`
	Description  string         `json:"description,omitempty"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
}

// ToolChoice constrains whether the model is obligated to call tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// ModelOutputConfig describes the output format a request asks for.
type ModelOutputConfig struct {
	Format      string         `json:"format,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	Constrained bool           `json:"constrained,omitempty"`
}

// ModelRequest is what a model action receives.
type ModelRequest struct {
	Messages   []*Message         `json:"messages,omitempty"`
	Config     any                `json:"config,omitempty"`
	Tools      []*ToolDefinition  `json:"tools,omitempty"`
	ToolChoice ToolChoice         `json:"toolChoice,omitempty"`
	Output     *ModelOutputConfig `json:"output,omitempty"`
}

// FinishReason indicates why a model stopped generating.
type FinishReason string

const (
	FinishReasonStop        FinishReason = "stop"
	FinishReasonLength      FinishReason = "length"
	FinishReasonBlocked     FinishReason = "blocked"
	FinishReasonInterrupted FinishReason = "interrupted"
	FinishReasonOther       FinishReason = "other"
	FinishReasonUnknown     FinishReason = "unknown"
)

// GenerationUsage accumulates token and character counters, across rounds
// when the generation loop makes multiple model calls.
type GenerationUsage struct {
	InputCharacters  int `json:"inputCharacters,omitempty"`
	OutputCharacters int `json:"outputCharacters,omitempty"`
	InputTokens      int `json:"inputTokens,omitempty"`
	OutputTokens     int `json:"outputTokens,omitempty"`
	TotalTokens      int `json:"totalTokens,omitempty"`
}

func (u *GenerationUsage) add(other *GenerationUsage) {
	if other == nil {
		return
	}
	u.InputCharacters += other.InputCharacters
	u.OutputCharacters += other.OutputCharacters
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// ModelResponse is what a model action returns.
type ModelResponse struct {
	Message       *Message         `json:"message,omitempty"`
	FinishReason  FinishReason     `json:"finishReason,omitempty"`
	FinishMessage string           `json:"finishMessage,omitempty"`
	LatencyMs     float64          `json:"latencyMs,omitempty"`
	Usage         *GenerationUsage `json:"usage,omitempty"`
	Custom        any              `json:"custom,omitempty"`
	Request       *ModelRequest    `json:"request,omitempty"`

	formatHandler FormatHandler
}

// ModelResponseChunk is one incremental piece of a streamed model response.
type ModelResponseChunk struct {
	Role       Role    `json:"role,omitempty"`
	Index      int     `json:"index,omitempty"`
	Content    []*Part `json:"content,omitempty"`
	Aggregated bool    `json:"aggregated,omitempty"`
}

// GenerateActionOptions is the full request of one generation turn.
type GenerateActionOptions struct {
	Model              string                      `json:"model,omitempty"`
	Messages           []*Message                  `json:"messages,omitempty"`
	Tools              []string                    `json:"tools,omitempty"`
	MaxTurns           int                         `json:"maxTurns,omitempty"`
	Config             any                         `json:"config,omitempty"`
	ToolChoice         ToolChoice                  `json:"toolChoice,omitempty"`
	ReturnToolRequests bool                        `json:"returnToolRequests,omitempty"`
	Output             *GenerateActionOutputConfig `json:"output,omitempty"`
	Resume             *GenerateActionResume       `json:"resume,omitempty"`
}

// GenerateActionOutputConfig configures the output format of a generation.
type GenerateActionOutputConfig struct {
	Format       string         `json:"format,omitempty"`
	JsonSchema   map[string]any `json:"jsonSchema,omitempty"`
	Instructions *string        `json:"instructions,omitempty"`
	Constrained  bool           `json:"constrained,omitempty"`
}

// GenerateActionResume carries the caller-supplied directives that resolve
// the outstanding interrupts of a previous turn.
type GenerateActionResume struct {
	Respond  []*Part        `json:"respond,omitempty"`
	Restart  []*Part        `json:"restart,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
