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
)

// A Part is one piece of the content of a [Message]. It is a tagged union:
// exactly one of the payload fields is meaningful, selected by Kind.
type Part struct {
	Kind         PartKind       `json:"kind,omitempty"`
	ContentType  string         `json:"contentType,omitempty"`
	Text         string         `json:"text,omitempty"`
	ToolRequest  *ToolRequest   `json:"toolRequest,omitempty"`
	ToolResponse *ToolResponse  `json:"toolResponse,omitempty"`
	Custom       map[string]any `json:"custom,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// PartKind selects which payload field of a [Part] is meaningful.
type PartKind int8

const (
	PartText PartKind = iota
	PartMedia
	PartToolRequest
	PartToolResponse
	PartCustom
)

// NewTextPart returns a Part containing raw text.
func NewTextPart(text string) *Part {
	return &Part{Kind: PartText, ContentType: "plain/text", Text: text}
}

// NewJSONPart returns a Part containing JSON text.
func NewJSONPart(text string) *Part {
	return &Part{Kind: PartText, ContentType: "application/json", Text: text}
}

// NewMediaPart returns a Part containing a reference to media of the given
// content type; text holds the URL or a data URI.
func NewMediaPart(contentType, text string) *Part {
	return &Part{Kind: PartMedia, ContentType: contentType, Text: text}
}

// NewToolRequestPart returns a Part containing a request to run a tool.
func NewToolRequestPart(r *ToolRequest) *Part {
	return &Part{Kind: PartToolRequest, ToolRequest: r}
}

// NewToolResponsePart returns a Part containing the output of a tool run.
func NewToolResponsePart(r *ToolResponse) *Part {
	return &Part{Kind: PartToolResponse, ToolResponse: r}
}

// NewCustomPart returns a Part with model-specific content.
func NewCustomPart(custom map[string]any) *Part {
	return &Part{Kind: PartCustom, Custom: custom}
}

// IsText reports whether the Part contains plain text.
func (p *Part) IsText() bool { return p.Kind == PartText }

// IsMedia reports whether the Part contains media.
func (p *Part) IsMedia() bool { return p.Kind == PartMedia }

// IsToolRequest reports whether the Part contains a tool request.
func (p *Part) IsToolRequest() bool { return p.Kind == PartToolRequest }

// IsToolResponse reports whether the Part contains a tool response.
func (p *Part) IsToolResponse() bool { return p.Kind == PartToolResponse }

// IsCustom reports whether the Part contains custom content.
func (p *Part) IsCustom() bool { return p.Kind == PartCustom }

// IsInterrupt reports whether the Part is a tool request the tool declined
// to complete, asking the caller to intervene.
func (p *Part) IsInterrupt() bool {
	if !p.IsToolRequest() || p.Metadata == nil {
		return false
	}
	_, ok := p.Metadata["interrupt"]
	return ok
}

// IsPendingResponse reports whether the Part is a tool request whose output
// was already computed in an earlier turn and parked in metadata.
func (p *Part) IsPendingResponse() bool {
	if !p.IsToolRequest() || p.Metadata == nil {
		return false
	}
	_, ok := p.Metadata["pendingOutput"]
	return ok
}

// WithMetadata returns a shallow copy of the Part with metadata merged in.
func (p *Part) WithMetadata(meta map[string]any) *Part {
	clone := *p
	clone.Metadata = map[string]any{}
	for k, v := range p.Metadata {
		clone.Metadata[k] = v
	}
	for k, v := range meta {
		clone.Metadata[k] = v
	}
	return &clone
}

// The wire encoding of a Part is a union object keyed by the payload field,
// not the in-memory struct. These shapes are what models and persisted
// conversations exchange.

type textPart struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type mediaPart struct {
	Media    *mediaPartMedia `json:"media"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

type mediaPartMedia struct {
	ContentType string `json:"contentType,omitempty"`
	Url         string `json:"url"`
}

type toolRequestPart struct {
	ToolRequest *ToolRequest   `json:"toolRequest"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type toolResponsePart struct {
	ToolResponse *ToolResponse  `json:"toolResponse"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type customPart struct {
	Custom   map[string]any `json:"custom"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON marshals the Part as a union object keyed by payload.
func (p *Part) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PartText:
		return json.Marshal(textPart{Text: p.Text, Metadata: p.Metadata})
	case PartMedia:
		return json.Marshal(mediaPart{
			Media:    &mediaPartMedia{ContentType: p.ContentType, Url: p.Text},
			Metadata: p.Metadata,
		})
	case PartToolRequest:
		return json.Marshal(toolRequestPart{ToolRequest: p.ToolRequest, Metadata: p.Metadata})
	case PartToolResponse:
		return json.Marshal(toolResponsePart{ToolResponse: p.ToolResponse, Metadata: p.Metadata})
	case PartCustom:
		return json.Marshal(customPart{Custom: p.Custom, Metadata: p.Metadata})
	default:
		return nil, fmt.Errorf("invalid part kind %d", p.Kind)
	}
}

// UnmarshalJSON identifies the union variant by which payload key is present.
func (p *Part) UnmarshalJSON(b []byte) error {
	var probe struct {
		Text         json.RawMessage `json:"text"`
		Media        json.RawMessage `json:"media"`
		ToolRequest  json.RawMessage `json:"toolRequest"`
		ToolResponse json.RawMessage `json:"toolResponse"`
		Custom       json.RawMessage `json:"custom"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	switch {
	case probe.Media != nil:
		var mp mediaPart
		if err := json.Unmarshal(b, &mp); err != nil {
			return err
		}
		if mp.Media == nil {
			return errors.New("part has null media")
		}
		p.Kind = PartMedia
		p.ContentType = mp.Media.ContentType
		p.Text = mp.Media.Url
		p.Metadata = mp.Metadata
	case probe.ToolRequest != nil:
		var tp toolRequestPart
		if err := json.Unmarshal(b, &tp); err != nil {
			return err
		}
		p.Kind = PartToolRequest
		p.ToolRequest = tp.ToolRequest
		p.Metadata = tp.Metadata
	case probe.ToolResponse != nil:
		var tp toolResponsePart
		if err := json.Unmarshal(b, &tp); err != nil {
			return err
		}
		p.Kind = PartToolResponse
		p.ToolResponse = tp.ToolResponse
		p.Metadata = tp.Metadata
	case probe.Custom != nil:
		var cp customPart
		if err := json.Unmarshal(b, &cp); err != nil {
			return err
		}
		p.Kind = PartCustom
		p.Custom = cp.Custom
		p.Metadata = cp.Metadata
	default:
		var tp textPart
		if err := json.Unmarshal(b, &tp); err != nil {
			return err
		}
		p.Kind = PartText
		p.Text = tp.Text
		p.Metadata = tp.Metadata
	}
	return nil
}
