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

// Package json wraps json-iterator in its standard library compatible configuration
package json

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal is a wrapper around json Marshal
func Marshal(in interface{}) ([]byte, error) {
	res, err := api.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshaling error: %w", err)
	}
	return res, nil
}

// Unmarshal is a wrapper around json Unmarshal
func Unmarshal(jsoned []byte, out interface{}) error {
	if err := api.Unmarshal(jsoned, out); err != nil {
		return fmt.Errorf("unmarshaling error: %w", err)
	}
	return nil
}

// UnmarshalNumbers unmarshals keeping numbers as json.Number, so integers are not turned into floats
func UnmarshalNumbers(jsoned []byte, out interface{}) error {
	decoder := api.NewDecoder(bytes.NewReader(jsoned))
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("unmarshaling error: %w", err)
	}
	return nil
}

// MarshalIndent is a wrapper around json MarshalIndent
func MarshalIndent(in interface{}, prefix, indent string) ([]byte, error) {
	res, err := api.MarshalIndent(in, prefix, indent)
	if err != nil {
		return nil, fmt.Errorf("marshaling with indentation error: %w", err)
	}
	return res, nil
}
