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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/aviary-ai/aviary/core"
	"github.com/aviary-ai/aviary/core/api"
	"github.com/aviary-ai/aviary/core/logger"
	"github.com/aviary-ai/aviary/core/tracing"
	"github.com/aviary-ai/aviary/internal/base"
	"github.com/google/uuid"
)

// DefineGenerateAction registers the generation loop itself as a util
// action, so it is invokable and traced like any other action.
func DefineGenerateAction(ctx context.Context, r api.Registry) *core.ActionDef[*GenerateActionOptions, *ModelResponse, *ModelResponseChunk] {
	return core.DefineStreamingAction(r, "generate", api.KindUtil, nil, nil,
		func(ctx context.Context, opts *GenerateActionOptions, cb api.StreamCallback[*ModelResponseChunk]) (resp *ModelResponse, err error) {
			logger.FromContext(ctx).Debug("GenerateAction",
				"input", fmt.Sprintf("%#v", opts))
			defer func() {
				logger.FromContext(ctx).Debug("GenerateAction done", "err", err)
			}()
			return GenerateWithRequest(ctx, r, opts, nil, cb)
		})
}

// GenerateWithRequest is the central generation implementation: it runs the
// model, executes requested tools, and loops until the model stops asking
// for tools, a tool interrupts, or the turn limit is hit.
func GenerateWithRequest(ctx context.Context, r api.Registry, opts *GenerateActionOptions, mw []ModelMiddleware, cb ModelStreamCallback) (*ModelResponse, error) {
	if opts.Model == "" {
		if defaultModel, ok := r.LookupValue(api.DefaultModelKey).(string); ok && defaultModel != "" {
			opts.Model = defaultModel
		}
		if opts.Model == "" {
			return nil, core.NewError(core.INVALID_ARGUMENT, "ai.GenerateWithRequest: model is required")
		}
	}

	mdef, err := core.ResolveActionFor[*ModelRequest, *ModelResponse, *ModelResponseChunk](ctx, r, api.KindModel, opts.Model)
	if err != nil {
		return nil, err
	}
	m := model{mdef}

	resumeOutput, err := handleResumeOption(ctx, r, opts)
	if err != nil {
		return nil, err
	}
	if resumeOutput.interruptedResponse != nil {
		return resumeOutput.interruptedResponse, nil
	}
	opts = resumeOutput.revisedRequest

	if resumeOutput.toolMessage != nil && cb != nil {
		if err := cb(ctx, &ModelResponseChunk{
			Content: resumeOutput.toolMessage.Content,
			Role:    RoleTool,
			Index:   0,
		}); err != nil {
			return nil, fmt.Errorf("streaming callback failed for resumed tool message: %w", err)
		}
	}

	toolDefs := make([]*ToolDefinition, 0, len(opts.Tools))
	seenTools := map[string]bool{}
	for _, name := range opts.Tools {
		if seenTools[name] {
			return nil, core.NewError(core.INVALID_ARGUMENT, "ai.GenerateWithRequest: duplicate tool %q", name)
		}
		seenTools[name] = true
		tool, err := resolveTool(ctx, r, name)
		if err != nil {
			return nil, err
		}
		toolDefs = append(toolDefs, tool.Definition())
	}

	maxTurns := opts.MaxTurns
	if maxTurns < 0 {
		return nil, core.NewError(core.INVALID_ARGUMENT, "ai.GenerateWithRequest: max turns must be greater than 0, got %d", maxTurns)
	}
	if maxTurns == 0 {
		maxTurns = 5 // Default max turns.
	}

	var outputCfg ModelOutputConfig
	var formatHandler FormatHandler
	if opts.Output != nil {
		formatter, err := resolveFormat(r, opts.Output.JsonSchema, opts.Output.Format)
		if err != nil {
			return nil, err
		}
		formatHandler, err = formatter.Handler(opts.Output.JsonSchema)
		if err != nil {
			return nil, err
		}
		outputCfg = formatHandler.Config()

		// Provider-enforced constrained output needs a schema, an opted-in
		// caller, and a model that declared support; otherwise fall back to
		// prompt instructions.
		outputCfg.Constrained = opts.Output.JsonSchema != nil &&
			opts.Output.Constrained && outputCfg.Constrained &&
			supportsConstrained(mdef.Desc())

		if !outputCfg.Constrained {
			instructions := formatHandler.Instructions()
			if opts.Output.Instructions != nil {
				instructions = *opts.Output.Instructions
			}
			if instructions != "" {
				opts.Messages = injectInstructions(opts.Messages, instructions)
			}
			outputCfg.Schema = nil
		}
	}

	req := &ModelRequest{
		Messages:   opts.Messages,
		Config:     opts.Config,
		ToolChoice: opts.ToolChoice,
		Tools:      toolDefs,
		Output:     &outputCfg,
	}

	// Models without a system role still get system instructions, folded
	// into the first user message before the request reaches them.
	if !supportsSystemRole(mdef.Desc()) {
		mw = append(mw, simulateSystemPrompt(""))
	}

	fn := core.ChainMiddleware(mw...)(m.Generate)
	totalUsage := &GenerationUsage{}

	var generate func(ctx context.Context, req *ModelRequest, currentTurn, messageIndex int) (*ModelResponse, error)
	generate = func(ctx context.Context, req *ModelRequest, currentTurn, messageIndex int) (*ModelResponse, error) {
		spanMetadata := &tracing.SpanMetadata{
			Name:    "generate",
			Type:    "util",
			Subtype: "util",
		}
		return runInGenerateSpan(ctx, r, spanMetadata, req, func(ctx context.Context, req *ModelRequest) (*ModelResponse, error) {
			var wrappedCb ModelStreamCallback
			if cb != nil {
				currentRole := RoleModel
				currentIndex := messageIndex
				wrappedCb = func(ctx context.Context, chunk *ModelResponseChunk) error {
					if chunk.Role != currentRole && chunk.Role != "" {
						currentIndex++
						currentRole = chunk.Role
					}
					chunk.Index = currentIndex
					if chunk.Role == "" {
						chunk.Role = RoleModel
					}
					return cb(ctx, chunk)
				}
			}

			resp, err := fn(ctx, req, wrappedCb)
			if err != nil {
				return nil, err
			}
			totalUsage.add(resp.Usage)
			resp.Usage = totalUsage
			resp.Request = req
			resp.formatHandler = formatHandler

			// Unique refs let resume directives address individual requests
			// when the same tool is called more than once.
			ensureToolRequestRefs(resp.Message)

			if len(resp.ToolRequests()) == 0 || opts.ReturnToolRequests {
				if formatHandler != nil && len(resp.ToolRequests()) == 0 {
					resp.Message, err = formatHandler.ParseMessage(resp.Message)
					if err != nil {
						logger.FromContext(ctx).Debug("model output failed to parse", "err", err)
						return nil, core.NewError(core.FAILED_PRECONDITION, "model did not generate output matching the requested format: %v", err)
					}
				}
				return resp, nil
			}

			if currentTurn+1 > maxTurns {
				return nil, core.NewError(core.ABORTED, "exceeded maximum tool call iterations (%d)", maxTurns)
			}

			newReq, interruptMsg, err := handleToolRequests(ctx, r, req, resp, wrappedCb, messageIndex)
			if err != nil {
				return nil, err
			}
			if interruptMsg != nil {
				resp.FinishReason = FinishReasonInterrupted
				resp.FinishMessage = "One or more tool calls resulted in interrupts."
				resp.Message = interruptMsg
				return resp, nil
			}
			if newReq == nil {
				return resp, nil
			}
			return generate(ctx, newReq, currentTurn+1, messageIndex+2)
		})
	}

	return generate(ctx, req, 0, 0)
}

// runInGenerateSpan opens a trace span around one round when the registry
// carries a tracing state, and runs f directly when it does not.
func runInGenerateSpan(ctx context.Context, r api.Registry, md *tracing.SpanMetadata, req *ModelRequest, f func(context.Context, *ModelRequest) (*ModelResponse, error)) (*ModelResponse, error) {
	if ts, ok := r.(interface{ TracingState() *tracing.State }); ok {
		return tracing.RunInNewSpan(ctx, ts.TracingState(), md, req, f)
	}
	return f(ctx, req)
}

// Generate generates a model response from the provided options.
func Generate(ctx context.Context, r api.Registry, opts ...GenerateOption) (*ModelResponse, error) {
	genOpts, err := applyOptions(opts...)
	if err != nil {
		return nil, err
	}

	modelName := genOpts.modelName
	var config any = genOpts.config
	if genOpts.model != nil {
		modelName = genOpts.model.Name()
		if ref, ok := genOpts.model.(ModelRef); ok && config == nil {
			config = ref.Config()
		}
	}

	var toolNames []string
	for _, t := range genOpts.tools {
		if slices.Contains(toolNames, t.Name()) {
			return nil, core.NewError(core.INVALID_ARGUMENT, "ai.Generate: duplicate tool %q", t.Name())
		}
		// A tool value that is not registered yet (e.g. built with NewTool)
		// is registered on first use so the loop can find it.
		if tool, ok := t.(Tool); ok && LookupTool(r, t.Name()) == nil {
			if err := tool.Register(r); err != nil {
				return nil, err
			}
		}
		toolNames = append(toolNames, t.Name())
	}

	var messages []*Message
	if genOpts.system != "" {
		messages = append(messages, NewSystemTextMessage(genOpts.system))
	}
	messages = append(messages, genOpts.messages...)
	if genOpts.prompt != "" {
		messages = append(messages, NewUserTextMessage(genOpts.prompt))
	}

	for _, part := range genOpts.respondParts {
		if !part.IsToolResponse() {
			return nil, core.NewError(core.INVALID_ARGUMENT, "ai.Generate: respond part is not a tool response")
		}
	}
	for _, part := range genOpts.restartParts {
		if !part.IsToolRequest() {
			return nil, core.NewError(core.INVALID_ARGUMENT, "ai.Generate: restart part is not a tool request")
		}
	}

	actionOpts := &GenerateActionOptions{
		Model:              modelName,
		Messages:           messages,
		Tools:              toolNames,
		MaxTurns:           genOpts.maxTurns,
		Config:             config,
		ToolChoice:         genOpts.toolChoice,
		ReturnToolRequests: genOpts.returnToolRequests,
		Output: &GenerateActionOutputConfig{
			JsonSchema:   genOpts.outputSchema,
			Format:       genOpts.outputFormat,
			Instructions: genOpts.outputInstructions,
			Constrained:  true,
		},
	}
	if len(genOpts.respondParts) > 0 || len(genOpts.restartParts) > 0 {
		actionOpts.Resume = &GenerateActionResume{
			Respond: genOpts.respondParts,
			Restart: genOpts.restartParts,
		}
	}

	return GenerateWithRequest(ctx, r, actionOpts, genOpts.middleware, genOpts.stream)
}

// GenerateText runs a generate request and returns the generated text only.
func GenerateText(ctx context.Context, r api.Registry, opts ...GenerateOption) (string, error) {
	res, err := Generate(ctx, r, opts...)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// GenerateData runs a generate request and returns strongly-typed output.
// If the response carries no text (e.g. it ended on tool requests or
// interrupts), the output is nil with no error; check resp.Interrupts() or
// resp.ToolRequests().
func GenerateData[Out any](ctx context.Context, r api.Registry, opts ...GenerateOption) (*Out, *ModelResponse, error) {
	var value Out
	opts = append(opts, WithOutputType(value))

	resp, err := Generate(ctx, r, opts...)
	if err != nil {
		return nil, nil, err
	}
	if resp.Text() == "" {
		return nil, resp, nil
	}
	if err := resp.Output(&value); err != nil {
		return nil, resp, err
	}
	return &value, resp, nil
}

// StreamValue is either a streamed chunk or the final response of a
// generate request.
type StreamValue[Out, Stream any] struct {
	Done     bool
	Chunk    Stream         // valid if Done is false
	Output   Out            // valid if Done is true
	Response *ModelResponse // valid if Done is true
}

// ModelStreamValue is a stream value for a model response. Out is never set
// because the output is already available in the Response field.
type ModelStreamValue = StreamValue[struct{}, *ModelResponseChunk]

// errGenerateStop signals early termination of streaming by the consumer.
var errGenerateStop = errors.New("stop")

// GenerateStream generates a model response and streams it. It returns an
// iterator over [ModelStreamValue]: chunks while generation is in flight,
// then exactly one value with Done == true carrying the final response, or
// a non-nil error; either way the yield function is not called again.
func GenerateStream(ctx context.Context, r api.Registry, opts ...GenerateOption) iter.Seq2[*ModelStreamValue, error] {
	return func(yield func(*ModelStreamValue, error) bool) {
		cb := func(ctx context.Context, chunk *ModelResponseChunk) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !yield(&ModelStreamValue{Chunk: chunk}, nil) {
				return errGenerateStop
			}
			return nil
		}

		allOpts := append(slices.Clone(opts), WithStreaming(cb))
		resp, err := Generate(ctx, r, allOpts...)
		if err != nil {
			yield(nil, err)
		} else {
			yield(&ModelStreamValue{Done: true, Response: resp}, nil)
		}
	}
}

// ensureToolRequestRefs assigns a unique ref to every tool request part
// that lacks one, so multiple calls to the same tool can be matched
// individually when resuming.
func ensureToolRequestRefs(msg *Message) {
	if msg == nil {
		return
	}
	for _, part := range msg.Content {
		if part.IsToolRequest() && part.ToolRequest.Ref == "" {
			part.ToolRequest.Ref = uuid.New().String()
		}
	}
}

// clone deep-copies obj through its JSON encoding.
func clone[T any](obj *T) *T {
	if obj == nil {
		return nil
	}
	bytes, err := json.Marshal(obj)
	if err != nil {
		panic(fmt.Sprintf("clone: failed to marshal object: %v", err))
	}
	var newObj T
	if err := json.Unmarshal(bytes, &newObj); err != nil {
		panic(fmt.Sprintf("clone: failed to unmarshal object: %v", err))
	}
	return &newObj
}

type result[T any] struct {
	index int
	value T
	err   error
}

// handleToolRequests runs the tool requests in resp concurrently. It
// returns either a new request continuing the conversation, or, when any
// tool interrupted, a revised model message in which interrupted requests
// are marked and completed siblings keep their output as pendingOutput
// metadata so resuming does not re-run them.
func handleToolRequests(ctx context.Context, r api.Registry, req *ModelRequest, resp *ModelResponse, cb ModelStreamCallback, messageIndex int) (*ModelRequest, *Message, error) {
	toolCount := len(resp.ToolRequests())
	if toolCount == 0 {
		return nil, nil, nil
	}

	// Buffered so in-flight tools can finish their sends even when the
	// collection loop below returns early on the first error.
	resultChan := make(chan result[*ToolOutcome], toolCount)
	revisedMsg := clone(resp.Message)

	for i, part := range revisedMsg.Content {
		if !part.IsToolRequest() {
			continue
		}
		go func(idx int, p *Part) {
			toolReq := p.ToolRequest
			tool, err := resolveTool(ctx, r, toolReq.Name)
			if err != nil {
				resultChan <- result[*ToolOutcome]{index: idx, err: err}
				return
			}
			outcome, err := tool.RunOutcome(ctx, toolReq.Input)
			if err != nil {
				resultChan <- result[*ToolOutcome]{index: idx, err: core.NewError(core.INTERNAL, "tool %q failed: %v", toolReq.Name, err)}
				return
			}
			resultChan <- result[*ToolOutcome]{index: idx, value: outcome}
		}(i, part)
	}

	outcomes := make([]*ToolOutcome, len(revisedMsg.Content))
	hasInterrupts := false
	for range toolCount {
		res := <-resultChan
		if res.err != nil {
			return nil, nil, res.err
		}
		outcomes[res.index] = res.value

		p := revisedMsg.Content[res.index]
		newPart := clone(p)
		if newPart.Metadata == nil {
			newPart.Metadata = make(map[string]any)
		}
		if res.value.Interrupted {
			hasInterrupts = true
			logger.FromContext(ctx).Debug("tool triggered an interrupt",
				"tool", p.ToolRequest.Name, "metadata", res.value.Metadata)
			if res.value.Metadata != nil {
				newPart.Metadata["interrupt"] = res.value.Metadata
			} else {
				newPart.Metadata["interrupt"] = true
			}
		} else {
			newPart.Metadata["pendingOutput"] = res.value.Output
		}
		revisedMsg.Content[res.index] = newPart
	}

	if hasInterrupts {
		return nil, revisedMsg, nil
	}

	// Responses are assembled in request order, not completion order.
	var toolResps []*Part
	for idx, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		toolReq := revisedMsg.Content[idx].ToolRequest
		toolResps = append(toolResps, NewToolResponsePart(&ToolResponse{
			Name:   toolReq.Name,
			Ref:    toolReq.Ref,
			Output: outcome.Output,
		}))
	}

	toolMsg := &Message{Role: RoleTool, Content: toolResps}
	if cb != nil {
		if err := cb(ctx, &ModelResponseChunk{
			Content: toolMsg.Content,
			Role:    RoleTool,
			Index:   messageIndex + 1,
		}); err != nil {
			return nil, nil, fmt.Errorf("streaming callback failed: %w", err)
		}
	}

	newReq := &ModelRequest{
		Messages:   append(slices.Clone(req.Messages), resp.Message, toolMsg),
		Config:     req.Config,
		Tools:      req.Tools,
		ToolChoice: req.ToolChoice,
		Output:     req.Output,
	}
	return newReq, nil, nil
}

type resumedToolRequestOutput struct {
	toolRequest  *Part
	toolResponse *Part
	interrupt    *Part
}

type resumeOptionOutput struct {
	revisedRequest      *GenerateActionOptions
	interruptedResponse *ModelResponse
	toolMessage         *Message
}

// handleResumedToolRequest resolves one tool request part of an interrupted
// model turn when generation resumes: from pending output parked on the
// part, or from an explicit respond or restart directive.
func handleResumedToolRequest(ctx context.Context, r api.Registry, genOpts *GenerateActionOptions, p *Part) (*resumedToolRequestOutput, error) {
	if p == nil || !p.IsToolRequest() {
		return nil, core.NewError(core.INVALID_ARGUMENT, "handleResumedToolRequest: part is not a tool request")
	}

	if pendingOutput, ok := p.Metadata["pendingOutput"]; ok {
		newReqPart := clone(p)
		delete(newReqPart.Metadata, "pendingOutput")

		newRespPart, err := NewResponseForToolRequest(p, pendingOutput)
		if err != nil {
			return nil, err
		}
		newRespPart.Metadata = map[string]any{"source": "pending"}

		return &resumedToolRequestOutput{toolRequest: newReqPart, toolResponse: newRespPart}, nil
	}

	if genOpts.Resume != nil {
		toolReq := p.ToolRequest

		for _, respondPart := range genOpts.Resume.Respond {
			if respondPart.ToolResponse == nil ||
				respondPart.ToolResponse.Name != toolReq.Name ||
				respondPart.ToolResponse.Ref != toolReq.Ref {
				continue
			}
			tool, err := resolveTool(ctx, r, toolReq.Name)
			if err != nil {
				return nil, err
			}
			if outSchema := tool.Definition().OutputSchema; len(outSchema) > 0 {
				outputBytes, err := json.Marshal(respondPart.ToolResponse.Output)
				if err != nil {
					return nil, core.NewError(core.INVALID_ARGUMENT, "handleResumedToolRequest: failed to marshal tool output for validation: %v", err)
				}
				if err := validateAgainstSchema(outputBytes, outSchema); err != nil {
					return nil, core.NewError(core.INVALID_ARGUMENT, "handleResumedToolRequest: tool %q output validation failed: %v", toolReq.Name, err)
				}
			}

			newToolReq := resolveInterruptMetadata(p)
			newToolResp := NewToolResponsePart(respondPart.ToolResponse)
			newToolResp.Metadata = respondPart.Metadata

			return &resumedToolRequestOutput{toolRequest: newToolReq, toolResponse: newToolResp}, nil
		}

		for _, restartPart := range genOpts.Resume.Restart {
			if restartPart.ToolRequest == nil ||
				restartPart.ToolRequest.Name != toolReq.Name ||
				restartPart.ToolRequest.Ref != toolReq.Ref {
				continue
			}
			tool, err := resolveTool(ctx, r, toolReq.Name)
			if err != nil {
				return nil, err
			}

			resumedCtx := ctx
			switch resumed := restartPart.Metadata["resumed"].(type) {
			case map[string]any:
				resumedCtx = resumedCtxKey.NewContext(resumedCtx, resumed)
			case bool:
				if resumed {
					resumedCtx = resumedCtxKey.NewContext(resumedCtx, map[string]any{})
				}
			}
			if originalInput, ok := restartPart.Metadata["replacedInput"]; ok {
				resumedCtx = origInputCtxKey.NewContext(resumedCtx, originalInput)
			}

			outcome, err := tool.RunOutcome(resumedCtx, restartPart.ToolRequest.Input)
			if err != nil {
				return nil, core.NewError(core.INTERNAL, "tool %q failed: %v", restartPart.ToolRequest.Name, err)
			}
			if outcome.Interrupted {
				logger.FromContext(ctx).Debug("tool triggered an interrupt on restart",
					"tool", restartPart.ToolRequest.Name, "metadata", outcome.Metadata)
				interruptPart := clone(p)
				if interruptPart.Metadata == nil {
					interruptPart.Metadata = make(map[string]any)
				}
				if outcome.Metadata != nil {
					interruptPart.Metadata["interrupt"] = outcome.Metadata
				} else {
					interruptPart.Metadata["interrupt"] = true
				}
				return &resumedToolRequestOutput{interrupt: interruptPart}, nil
			}

			newToolReq := resolveInterruptMetadata(p)
			newToolResp := NewToolResponsePart(&ToolResponse{
				Name:   restartPart.ToolRequest.Name,
				Ref:    restartPart.ToolRequest.Ref,
				Output: outcome.Output,
			})
			return &resumedToolRequestOutput{toolRequest: newToolReq, toolResponse: newToolResp}, nil
		}
	}

	ref := p.ToolRequest.Name
	if p.ToolRequest.Ref != "" {
		ref += "#" + p.ToolRequest.Ref
	}
	return nil, core.NewError(core.INVALID_ARGUMENT, "unresolved tool request %q was not handled by the Resume argument; supply Respond or Restart directives, or ensure there is pending output from a previous tool call", ref)
}

// resolveInterruptMetadata clones a tool request part, moving its interrupt
// marker to resolvedInterrupt.
func resolveInterruptMetadata(p *Part) *Part {
	newPart := clone(p)
	if interrupt, ok := newPart.Metadata["interrupt"]; ok {
		delete(newPart.Metadata, "interrupt")
		newPart.Metadata["resolvedInterrupt"] = interrupt
	}
	return newPart
}

func validateAgainstSchema(dataBytes json.RawMessage, schema map[string]any) error {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	return base.ValidateRaw(dataBytes, schemaBytes)
}

// handleResumeOption amends the message history according to the request's
// resume directives. Every tool request of the last model message must be
// settled, whether by pending output, a respond directive, or a restart; if
// a restarted tool interrupts again, a new interrupted response is returned
// without calling the model.
func handleResumeOption(ctx context.Context, r api.Registry, genOpts *GenerateActionOptions) (*resumeOptionOutput, error) {
	if genOpts.Resume == nil || (len(genOpts.Resume.Respond) == 0 && len(genOpts.Resume.Restart) == 0) {
		return &resumeOptionOutput{revisedRequest: genOpts}, nil
	}

	messages := genOpts.Messages
	if len(messages) == 0 {
		return nil, core.NewError(core.FAILED_PRECONDITION, "handleResumeOption: cannot resume generation with no messages")
	}
	lastMessage := messages[len(messages)-1]
	if lastMessage.Role != RoleModel || !slices.ContainsFunc(lastMessage.Content, func(p *Part) bool { return p.IsToolRequest() }) {
		return nil, core.NewError(core.FAILED_PRECONDITION, "handleResumeOption: cannot resume generation unless the last message is by a model with at least one tool request")
	}

	// Buffered so in-flight resolutions can finish their sends even when
	// the collection loop below returns early on the first error.
	resultChan := make(chan result[*resumedToolRequestOutput], len(lastMessage.Content))
	newContent := make([]*Part, len(lastMessage.Content))
	toolReqCount := 0
	for i, part := range lastMessage.Content {
		if !part.IsToolRequest() {
			newContent[i] = part
			continue
		}
		toolReqCount++
		go func(idx int, p *Part) {
			output, err := handleResumedToolRequest(ctx, r, genOpts, p)
			resultChan <- result[*resumedToolRequestOutput]{index: idx, value: output, err: err}
		}(i, part)
	}

	respsByIndex := make([]*Part, len(lastMessage.Content))
	interrupted := false
	for range toolReqCount {
		res := <-resultChan
		if res.err != nil {
			return nil, fmt.Errorf("handleResumeOption: failed to resolve resumed tool request: %w", res.err)
		}
		if res.value.interrupt != nil {
			interrupted = true
			newContent[res.index] = res.value.interrupt
			continue
		}
		newContent[res.index] = res.value.toolRequest
		respsByIndex[res.index] = res.value.toolResponse
	}

	revisedLast := &Message{Role: lastMessage.Role, Content: newContent, Metadata: lastMessage.Metadata}

	if interrupted {
		return &resumeOptionOutput{
			interruptedResponse: &ModelResponse{
				Message:       revisedLast,
				FinishReason:  FinishReasonInterrupted,
				FinishMessage: "One or more tools triggered interrupts while resuming generation. The model was not called.",
			},
		}, nil
	}

	var toolResps []*Part
	for _, p := range respsByIndex {
		if p != nil {
			toolResps = append(toolResps, p)
		}
	}
	if len(toolResps) != toolReqCount {
		return nil, core.NewError(core.FAILED_PRECONDITION, "handleResumeOption: expected %d tool responses but resolved %d", toolReqCount, len(toolResps))
	}

	toolMessage := &Message{
		Role:     RoleTool,
		Content:  toolResps,
		Metadata: map[string]any{"resumed": true},
	}
	if genOpts.Resume.Metadata != nil {
		toolMessage.Metadata["resumed"] = genOpts.Resume.Metadata
	}

	revisedMessages := append(slices.Clone(messages[:len(messages)-1]), revisedLast, toolMessage)
	return &resumeOptionOutput{
		revisedRequest: &GenerateActionOptions{
			Model:              genOpts.Model,
			Messages:           revisedMessages,
			Tools:              genOpts.Tools,
			MaxTurns:           genOpts.MaxTurns,
			Config:             genOpts.Config,
			ToolChoice:         genOpts.ToolChoice,
			ReturnToolRequests: genOpts.ReturnToolRequests,
			Output:             genOpts.Output,
		},
		toolMessage: toolMessage,
	}, nil
}
