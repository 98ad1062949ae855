/*
 * Copyright 2018-2023, CS Systemes d'Information, http://csgroup.eu
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package taskstate

import (
	"strings"

	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Enum represents the state of a task flag stored in runtime properties
type Enum int

const (
	// Absent means the flag is not set
	Absent Enum = iota
	// Pending means the side effect has been requested
	Pending
	// RebuildStatus means a rebuild finished spawning and the server is being started
	RebuildStatus
	// Done means the side effect is complete
	Done
)

var (
	stringMap = map[string]Enum{
		"":               Absent,
		"PENDING":        Pending,
		"REBUILD_STATUS": RebuildStatus,
		"DONE":           Done,
	}

	enumMap = map[Enum]string{
		Absent:        "",
		Pending:       "PENDING",
		RebuildStatus: "REBUILD_STATUS",
		Done:          "DONE",
	}
)

// Parse returns an Enum corresponding to the string parameter
// If the string doesn't correspond to any Enum, returns an error (nil otherwise)
// This function is intended to be used to parse user input.
func Parse(v string) (Enum, fail.Error) {
	var (
		e  Enum
		ok bool
	)
	if e, ok = stringMap[strings.ToUpper(v)]; !ok {
		return e, fail.NotFoundError("failed to find a task state matching with '%s'", v)
	}
	return e, nil
}

// Of returns the state of the flag stored as 'v' in runtime properties
// Unknown values are considered Absent.
func Of(v interface{}) Enum {
	s, ok := v.(string)
	if !ok {
		return Absent
	}
	e, xerr := Parse(s)
	if xerr != nil {
		return Absent
	}
	return e
}

// String returns a string representation of an Enum
func (e Enum) String() string {
	if str, found := enumMap[e]; found {
		return str
	}
	panic("invalid task state")
}
