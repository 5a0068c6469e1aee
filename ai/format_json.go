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
	"errors"
	"fmt"

	"github.com/aviary-ai/aviary/internal/base"
)

type jsonFormatter struct{}

func (jsonFormatter) Name() string { return OutputFormatJSON }

func (jsonFormatter) Handler(schema map[string]any) (FormatHandler, error) {
	var instructions string
	var schemaBytes json.RawMessage
	if schema != nil {
		jsonBytes, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("error marshalling schema to JSON: %w", err)
		}
		schemaBytes = jsonBytes
		instructions = fmt.Sprintf("Output should be in JSON format and conform to the following schema:\n\n```%s```", string(jsonBytes))
	}
	return jsonHandler{schema: schema, schemaBytes: schemaBytes, instructions: instructions}, nil
}

type jsonHandler struct {
	schema       map[string]any
	schemaBytes  json.RawMessage
	instructions string
}

func (h jsonHandler) Instructions() string { return h.instructions }

func (h jsonHandler) Config() ModelOutputConfig {
	return ModelOutputConfig{
		Format:      OutputFormatJSON,
		Schema:      h.schema,
		ContentType: "application/json",
		Constrained: true,
	}
}

// ParseMessage extracts JSON from the message's text parts, tolerating
// surrounding prose and markdown fences, and validates it against the
// schema.
func (h jsonHandler) ParseMessage(m *Message) (*Message, error) {
	if m == nil {
		return nil, errors.New("message is empty")
	}
	parsed := *m
	parsed.Content = make([]*Part, len(m.Content))
	for i, part := range m.Content {
		if !part.IsText() {
			parsed.Content[i] = part
			continue
		}
		text := base.ExtractJSONFromMarkdown(part.Text)
		if h.schemaBytes != nil {
			if err := base.ValidateRaw([]byte(text), h.schemaBytes); err != nil {
				return nil, err
			}
		} else if !base.ValidJSONString(text) {
			return nil, fmt.Errorf("message text is not valid JSON: %q", text)
		}
		parsed.Content[i] = NewJSONPart(text)
	}
	return &parsed, nil
}
