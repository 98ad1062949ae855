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

package data

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mitchellh/copystructure"
)

// Bag is an open-ended property map, as exchanged with the workflow host
type Bag map[string]interface{}

// ToBag converts v to a Bag if v is a map keyed by strings (or by anything printable, as produced by some decoders)
func ToBag(v interface{}) (Bag, bool) {
	switch casted := v.(type) {
	case Bag:
		return casted, true
	case map[string]interface{}:
		return casted, true
	case map[interface{}]interface{}:
		out := make(Bag, len(casted))
		for k, v := range casted {
			out[fmt.Sprintf("%v", k)] = v
		}
		return out, true
	case map[string]string:
		out := make(Bag, len(casted))
		for k, v := range casted {
			out[k] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// Has tells if key is present in the Bag, whatever its value
func (b Bag) Has(key string) bool {
	_, ok := b[key]
	return ok
}

// IsSet tells if key is present with a value that is neither nil nor an empty string
func (b Bag) IsSet(key string) bool {
	v, ok := b[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// Get returns the raw value stored under key
func (b Bag) Get(key string) (interface{}, bool) {
	v, ok := b[key]
	return v, ok
}

// String returns value of key as a string; scalars are formatted, anything else gives ""
func (b Bag) String(key string) string {
	v, ok := b[key]
	if !ok || v == nil {
		return ""
	}
	switch casted := v.(type) {
	case string:
		return casted
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64, json.Number:
		return fmt.Sprintf("%v", casted)
	default:
		return ""
	}
}

// Bool returns value of key as a boolean; "true" (any case) counts as true
func (b Bag) Bool(key string) bool {
	v, ok := b[key]
	if !ok || v == nil {
		return false
	}
	switch casted := v.(type) {
	case bool:
		return casted
	case string:
		r, err := strconv.ParseBool(casted)
		return err == nil && r
	default:
		return false
	}
}

// Int returns value of key as an int
func (b Bag) Int(key string) (int, bool) {
	v, ok := b[key]
	if !ok || v == nil {
		return 0, false
	}
	return ToInt(v)
}

// ToInt converts numeric values (as produced by json or yaml decoders) to int
func ToInt(v interface{}) (int, bool) {
	switch casted := v.(type) {
	case int:
		return casted, true
	case int32:
		return int(casted), true
	case int64:
		return int(casted), true
	case uint:
		return int(casted), true
	case uint32:
		return int(casted), true
	case uint64:
		return int(casted), true
	case float32:
		return int(casted), true
	case float64:
		return int(casted), true
	case json.Number:
		i, err := casted.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(casted)
		return i, err == nil
	default:
		return 0, false
	}
}

// Bag returns value of key as a Bag, nil if absent or not a map
func (b Bag) Bag(key string) Bag {
	v, ok := b[key]
	if !ok {
		return nil
	}
	out, _ := ToBag(v)
	return out
}

// EnsureBag returns value of key as a Bag, creating (or replacing a non-map value with) an empty one if needed
func (b Bag) EnsureBag(key string) Bag {
	if sub := b.Bag(key); sub != nil {
		b[key] = sub
		return sub
	}
	sub := Bag{}
	b[key] = sub
	return sub
}

// Slice returns value of key as a slice, nil if absent or not a slice
func (b Bag) Slice(key string) []interface{} {
	v, ok := b[key]
	if !ok || v == nil {
		return nil
	}
	switch casted := v.(type) {
	case []interface{}:
		return casted
	case []string:
		out := make([]interface{}, 0, len(casted))
		for _, s := range casted {
			out = append(out, s)
		}
		return out
	case []Bag:
		out := make([]interface{}, 0, len(casted))
		for _, s := range casted {
			out = append(out, s)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, 0, len(casted))
		for _, s := range casted {
			out = append(out, Bag(s))
		}
		return out
	default:
		return nil
	}
}

// Bags returns value of key as a slice of Bag; items that are not maps are skipped
func (b Bag) Bags(key string) []Bag {
	items := b.Slice(key)
	if items == nil {
		return nil
	}
	out := make([]Bag, 0, len(items))
	for _, v := range items {
		if item, ok := ToBag(v); ok {
			out = append(out, item)
		}
	}
	return out
}

// Strings returns value of key as a slice of strings; non string items are skipped
func (b Bag) Strings(key string) []string {
	items := b.Slice(key)
	if items == nil {
		if s := b.String(key); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, v := range items {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Delete removes keys from the Bag
func (b Bag) Delete(keys ...string) {
	for _, k := range keys {
		delete(b, k)
	}
}

// Rename moves the value of 'from' to 'to' if 'from' is present
func (b Bag) Rename(from, to string) {
	if v, ok := b[from]; ok {
		delete(b, from)
		b[to] = v
	}
}

// Pop returns the value of key and removes it from the Bag
func (b Bag) Pop(key string) (interface{}, bool) {
	v, ok := b[key]
	if ok {
		delete(b, key)
	}
	return v, ok
}

// Merge adds to b the keys of src that b does not have
func (b Bag) Merge(src Bag) Bag {
	for k, v := range src {
		if _, ok := b[k]; !ok {
			b[k] = v
		}
	}
	return b
}

// ForceMerge copies all keys of src into b, overwriting existing ones
func (b Bag) ForceMerge(src Bag) Bag {
	for k, v := range src {
		b[k] = v
	}
	return b
}

// Clone makes a deep copy of the Bag
func (b Bag) Clone() (Bag, error) {
	if b == nil {
		return nil, nil
	}
	c, err := copystructure.Copy(b)
	if err != nil {
		return nil, err
	}
	out, ok := c.(Bag)
	if !ok {
		return nil, fmt.Errorf("unexpected type '%T' for copy of Bag", c)
	}
	return out, nil
}

// Keys returns the keys of the Bag
func (b Bag) Keys() []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	return out
}
