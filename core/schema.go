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
	"reflect"

	"github.com/aviary-ai/aviary/internal/base"
	"github.com/invopop/jsonschema"
)

// InferJSONSchema infers a JSON schema from the type of x. It returns nil
// for untyped values (nil interfaces), which validate as anything.
func InferJSONSchema(x any) *jsonschema.Schema {
	t := reflect.TypeOf(x)
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r := jsonschema.Reflector{
		DoNotReference: true,
		// Inline struct fields at the top level instead of a $defs ref.
		// Anonymous structs have no definition name to expand from, so
		// expanding them dereferences a missing definition.
		ExpandedStruct: t.Kind() == reflect.Struct && t.Name() != "",
	}
	return r.ReflectFromType(t)
}

// InferSchemaMap infers a JSON schema from x as a plain map.
func InferSchemaMap(x any) map[string]any {
	return base.SchemaAsMap(InferJSONSchema(x))
}
