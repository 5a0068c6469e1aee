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

import "testing"

type namedInput struct {
	Query string
	Limit int
}

func TestInferJSONSchemaNamedStruct(t *testing.T) {
	m := InferSchemaMap(namedInput{})
	props, ok := m["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", m)
	}
	for _, field := range []string{"Query", "Limit"} {
		if _, ok := props[field]; !ok {
			t.Errorf("schema is missing field %q: %v", field, props)
		}
	}
}

func TestInferJSONSchemaAnonymousStruct(t *testing.T) {
	// Anonymous struct types are common as inline tool inputs and must not
	// panic during reflection.
	m := InferSchemaMap(struct {
		Value float64
		Over  float64
	}{})
	props, ok := m["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", m)
	}
	for _, field := range []string{"Value", "Over"} {
		if _, ok := props[field]; !ok {
			t.Errorf("schema is missing field %q: %v", field, props)
		}
	}
}

func TestInferJSONSchemaUntyped(t *testing.T) {
	if s := InferJSONSchema(nil); s != nil {
		t.Errorf("got %v for nil, want nil schema", s)
	}
}

func TestInferJSONSchemaPointer(t *testing.T) {
	m := InferSchemaMap(&namedInput{})
	if _, ok := m["properties"]; !ok {
		t.Errorf("pointer input was not dereferenced: %v", m)
	}
}
