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
	"github.com/aviary-ai/aviary/core"
	"github.com/aviary-ai/aviary/core/api"
)

const (
	// OutputFormatText parses the response as plain text.
	OutputFormatText = "text"
	// OutputFormatJSON parses the response as schema-validated JSON.
	OutputFormatJSON = "json"
)

// A Formatter shapes and parses model output for one named format.
type Formatter interface {
	// Name returns the format's registered name.
	Name() string
	// Handler instantiates the format for one request's output schema.
	Handler(schema map[string]any) (FormatHandler, error)
}

// A FormatHandler is a Formatter bound to a request's output schema.
type FormatHandler interface {
	// ParseMessage validates and normalizes a model message's output parts.
	ParseMessage(m *Message) (*Message, error)
	// Instructions returns prompt text asking the model for this format, or
	// "" when no instruction is needed.
	Instructions() string
	// Config returns the output config sent to the model.
	Config() ModelOutputConfig
}

// DefineFormat registers a custom output format under name.
func DefineFormat(r api.Registry, name string, formatter Formatter) error {
	return r.RegisterValue("format/"+name, formatter)
}

// ConfigureFormats registers the built-in output formats.
func ConfigureFormats(r api.Registry) error {
	if err := DefineFormat(r, OutputFormatText, textFormatter{}); err != nil {
		return err
	}
	return DefineFormat(r, OutputFormatJSON, jsonFormatter{})
}

// resolveFormat picks the format for a request: the named one if given,
// otherwise json when a schema was provided and text when not.
func resolveFormat(r api.Registry, schema map[string]any, format string) (Formatter, error) {
	if format == "" {
		if schema != nil {
			format = OutputFormatJSON
		} else {
			format = OutputFormatText
		}
	}
	f, ok := r.LookupValue("format/" + format).(Formatter)
	if !ok {
		return nil, core.NewError(core.INVALID_ARGUMENT, "output format %q not found", format)
	}
	return f, nil
}

// injectInstructions appends the format's instruction text to the last user
// message. Messages that already carry an output-purpose part are left
// alone, so re-sent histories do not accumulate instructions.
func injectInstructions(messages []*Message, instructions string) []*Message {
	if instructions == "" {
		return messages
	}
	for _, m := range messages {
		for _, p := range m.Content {
			if p.Metadata != nil && p.Metadata["purpose"] == "output" {
				return messages
			}
		}
	}

	part := NewTextPart(instructions)
	part.Metadata = map[string]any{"purpose": "output"}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			modified := *messages[i]
			modified.Content = append(modified.Content, part)
			out := make([]*Message, len(messages))
			copy(out, messages)
			out[i] = &modified
			return out
		}
	}
	return messages
}
