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

import "errors"

type textFormatter struct{}

func (textFormatter) Name() string { return OutputFormatText }

func (textFormatter) Handler(schema map[string]any) (FormatHandler, error) {
	if schema != nil {
		return nil, errors.New("text format does not support schemas")
	}
	return textHandler{}, nil
}

type textHandler struct{}

func (textHandler) Instructions() string { return "" }

func (textHandler) Config() ModelOutputConfig {
	return ModelOutputConfig{ContentType: "text/plain"}
}

func (textHandler) ParseMessage(m *Message) (*Message, error) {
	if m == nil {
		return nil, errors.New("message is empty")
	}
	return m, nil
}
