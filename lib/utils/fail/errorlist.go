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

package fail

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/CS-SI/osplugin/lib/utils/data"
)

// ErrorList ...
type ErrorList struct {
	*errorCore
	errors []error
}

// NewErrorList creates a ErrorList
func NewErrorList(errors []error) Error {
	if len(errors) == 0 {
		return nil
	}

	return &ErrorList{
		errorCore: newError(nil, nil, ""),
		errors:    errors,
	}
}

// IsNull tells if the instance is null
func (e *ErrorList) IsNull() bool {
	return e == nil || e.errorCore == nil || len(e.errors) == 0
}

// AddConsequence ...
func (e *ErrorList) AddConsequence(err error) Error {
	if e.IsNull() {
		logrus.Errorf("invalid call of ErrorList.AddConsequence() from null instance")
		return e
	}
	_ = e.errorCore.AddConsequence(err)
	return e
}

// Annotate ...
// satisfies interface data.Annotatable
func (e *ErrorList) Annotate(key string, value data.Annotation) data.Annotatable {
	if e.IsNull() {
		logrus.Errorf("invalid call of ErrorList.Annotate() from null instance")
		return e
	}
	_ = e.errorCore.Annotate(key, value)
	return e
}

// Error returns a string containing all the errors
func (e *ErrorList) Error() string {
	if e.IsNull() {
		return ""
	}
	lines := make([]string, 0, len(e.errors))
	for _, v := range e.errors {
		lines = append(lines, v.Error())
	}
	return strings.Join(lines, "\n")
}

// UnformattedError returns the same thing than Error()
func (e *ErrorList) UnformattedError() string {
	return e.Error()
}

// ToErrorSlice transforms ErrorList to []error
func (e *ErrorList) ToErrorSlice() []error {
	if e.IsNull() {
		return []error{}
	}
	return e.errors
}
