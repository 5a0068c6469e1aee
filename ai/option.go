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
	"errors"

	"github.com/aviary-ai/aviary/core"
)

// A GenerateOption configures a [Generate] call.
type GenerateOption func(*generateOptions) error

type generateOptions struct {
	model              ModelArg
	modelName          string
	system             string
	prompt             string
	messages           []*Message
	tools              []ToolRef
	toolChoice         ToolChoice
	maxTurns           int
	config             any
	middleware         []ModelMiddleware
	stream             ModelStreamCallback
	returnToolRequests bool
	outputFormat       string
	outputSchema       map[string]any
	outputInstructions *string
	respondParts       []*Part
	restartParts       []*Part
}

func applyOptions(opts ...GenerateOption) (*generateOptions, error) {
	genOpts := &generateOptions{}
	for _, opt := range opts {
		if err := opt(genOpts); err != nil {
			return nil, core.NewError(core.INVALID_ARGUMENT, "ai.Generate: %v", err)
		}
	}
	return genOpts, nil
}

// WithModel sets the model to call.
func WithModel(m ModelArg) GenerateOption {
	return func(o *generateOptions) error {
		if o.model != nil || o.modelName != "" {
			return errors.New("model already set")
		}
		o.model = m
		return nil
	}
}

// WithModelName sets the model to call by name; it is resolved lazily, so
// plugin-provided models need not be registered yet.
func WithModelName(name string) GenerateOption {
	return func(o *generateOptions) error {
		if o.model != nil || o.modelName != "" {
			return errors.New("model already set")
		}
		o.modelName = name
		return nil
	}
}

// WithSystem prepends a system message with the given text.
func WithSystem(text string) GenerateOption {
	return func(o *generateOptions) error {
		if o.system != "" {
			return errors.New("system message already set")
		}
		o.system = text
		return nil
	}
}

// WithPrompt appends a user message with the given text.
func WithPrompt(text string) GenerateOption {
	return func(o *generateOptions) error {
		if o.prompt != "" {
			return errors.New("prompt already set")
		}
		o.prompt = text
		return nil
	}
}

// WithMessages sets the conversation history.
func WithMessages(messages ...*Message) GenerateOption {
	return func(o *generateOptions) error {
		if o.messages != nil {
			return errors.New("messages already set")
		}
		o.messages = messages
		return nil
	}
}

// WithTools sets the tools offered to the model.
func WithTools(tools ...ToolRef) GenerateOption {
	return func(o *generateOptions) error {
		if o.tools != nil {
			return errors.New("tools already set")
		}
		o.tools = tools
		return nil
	}
}

// WithToolChoice sets whether the model must call tools.
func WithToolChoice(choice ToolChoice) GenerateOption {
	return func(o *generateOptions) error {
		if o.toolChoice != "" {
			return errors.New("tool choice already set")
		}
		o.toolChoice = choice
		return nil
	}
}

// WithMaxTurns limits the number of model rounds the tool loop may take;
// exceeding it aborts the generation. The default is 5.
func WithMaxTurns(n int) GenerateOption {
	return func(o *generateOptions) error {
		if n <= 0 {
			return errors.New("max turns must be greater than 0")
		}
		if o.maxTurns != 0 {
			return errors.New("max turns already set")
		}
		o.maxTurns = n
		return nil
	}
}

// WithConfig sets provider-specific model configuration.
func WithConfig(config any) GenerateOption {
	return func(o *generateOptions) error {
		if o.config != nil {
			return errors.New("config already set")
		}
		o.config = config
		return nil
	}
}

// WithMiddleware adds middleware around the model call.
func WithMiddleware(mw ...ModelMiddleware) GenerateOption {
	return func(o *generateOptions) error {
		if o.middleware != nil {
			return errors.New("middleware already set")
		}
		o.middleware = mw
		return nil
	}
}

// WithStreaming invokes cb with each chunk the model streams.
func WithStreaming(cb ModelStreamCallback) GenerateOption {
	return func(o *generateOptions) error {
		if o.stream != nil {
			return errors.New("streaming callback already set")
		}
		o.stream = cb
		return nil
	}
}

// WithReturnToolRequests makes the call return the model's tool requests to
// the caller instead of running them.
func WithReturnToolRequests(ret bool) GenerateOption {
	return func(o *generateOptions) error {
		o.returnToolRequests = ret
		return nil
	}
}

// WithOutputType constrains the output to JSON matching the schema inferred
// from the type of v.
func WithOutputType(v any) GenerateOption {
	return func(o *generateOptions) error {
		if o.outputSchema != nil {
			return errors.New("output schema already set")
		}
		o.outputSchema = core.InferSchemaMap(v)
		o.outputFormat = OutputFormatJSON
		return nil
	}
}

// WithOutputFormat names the output format to use.
func WithOutputFormat(format string) GenerateOption {
	return func(o *generateOptions) error {
		o.outputFormat = format
		return nil
	}
}

// WithOutputInstructions overrides the instruction text the format would
// otherwise inject into the prompt. An empty string suppresses it.
func WithOutputInstructions(instructions string) GenerateOption {
	return func(o *generateOptions) error {
		if o.outputInstructions != nil {
			return errors.New("output instructions already set")
		}
		o.outputInstructions = &instructions
		return nil
	}
}

// WithToolResponses resumes an interrupted generation by answering
// interrupted tool requests with the given tool response parts, built with
// [Tool.Respond].
func WithToolResponses(parts ...*Part) GenerateOption {
	return func(o *generateOptions) error {
		if o.respondParts != nil {
			return errors.New("tool responses already set")
		}
		o.respondParts = parts
		return nil
	}
}

// WithToolRestarts resumes an interrupted generation by re-running
// interrupted tool requests, given as parts built with [Tool.Restart].
func WithToolRestarts(parts ...*Part) GenerateOption {
	return func(o *generateOptions) error {
		if o.restartParts != nil {
			return errors.New("tool restarts already set")
		}
		o.restartParts = parts
		return nil
	}
}
