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

// StatusName defines the set of canonical status names, following the
// gRPC status taxonomy.
type StatusName string

// Constants for canonical status names.
const (
	OK                  StatusName = "OK"
	CANCELLED           StatusName = "CANCELLED"
	UNKNOWN             StatusName = "UNKNOWN"
	INVALID_ARGUMENT    StatusName = "INVALID_ARGUMENT"
	DEADLINE_EXCEEDED   StatusName = "DEADLINE_EXCEEDED"
	NOT_FOUND           StatusName = "NOT_FOUND"
	ALREADY_EXISTS      StatusName = "ALREADY_EXISTS"
	PERMISSION_DENIED   StatusName = "PERMISSION_DENIED"
	UNAUTHENTICATED     StatusName = "UNAUTHENTICATED"
	RESOURCE_EXHAUSTED  StatusName = "RESOURCE_EXHAUSTED"
	FAILED_PRECONDITION StatusName = "FAILED_PRECONDITION"
	ABORTED             StatusName = "ABORTED"
	OUT_OF_RANGE        StatusName = "OUT_OF_RANGE"
	UNIMPLEMENTED       StatusName = "UNIMPLEMENTED"
	INTERNAL            StatusName = "INTERNAL"
	UNAVAILABLE         StatusName = "UNAVAILABLE"
	DATA_LOSS           StatusName = "DATA_LOSS"
)

// StatusNameToCode maps status names to their canonical integer codes.
var StatusNameToCode = map[StatusName]int{
	OK:                  0,
	CANCELLED:           1,
	UNKNOWN:             2,
	INVALID_ARGUMENT:    3,
	DEADLINE_EXCEEDED:   4,
	NOT_FOUND:           5,
	ALREADY_EXISTS:      6,
	PERMISSION_DENIED:   7,
	RESOURCE_EXHAUSTED:  8,
	FAILED_PRECONDITION: 9,
	ABORTED:             10,
	OUT_OF_RANGE:        11,
	UNIMPLEMENTED:       12,
	INTERNAL:            13,
	UNAVAILABLE:         14,
	DATA_LOSS:           15,
	UNAUTHENTICATED:     16,
}
