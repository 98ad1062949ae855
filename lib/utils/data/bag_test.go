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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBag_Accessors(t *testing.T) {
	b := Bag{
		"name":    "srv",
		"count":   float64(3),
		"enabled": "true",
		"sub":     map[string]interface{}{"a": 1},
		"list":    []interface{}{"x", 2, "y"},
		"empty":   "",
		"number":  json.Number("12"),
	}

	assert.Equal(t, "srv", b.String("name"))
	assert.Equal(t, "3", b.String("count"))
	assert.Equal(t, "", b.String("missing"))
	assert.True(t, b.Bool("enabled"))
	assert.False(t, b.Bool("name"))

	n, ok := b.Int("count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	n, ok = b.Int("number")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	sub := b.Bag("sub")
	require.NotNil(t, sub)
	sub["b"] = 2
	assert.Equal(t, 2, b.Bag("sub")["b"])

	assert.Equal(t, []string{"x", "y"}, b.Strings("list"))
	assert.Equal(t, []string{"srv"}, b.Strings("name"))
	assert.False(t, b.IsSet("empty"))
	assert.True(t, b.Has("empty"))
}

func TestBag_EnsureBag(t *testing.T) {
	b := Bag{"kwargs": "oops"}
	kw := b.EnsureBag("kwargs")
	kw["x"] = 1
	assert.Equal(t, 1, b.Bag("kwargs")["x"])

	other := b.EnsureBag("new")
	assert.NotNil(t, other)
	assert.True(t, b.Has("new"))
}

func TestBag_RenamePopDelete(t *testing.T) {
	b := Bag{"a": 1, "b": 2, "c": 3}
	b.Rename("a", "z")
	assert.False(t, b.Has("a"))
	assert.Equal(t, 1, b["z"])

	v, ok := b.Pop("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.False(t, b.Has("b"))

	b.Delete("c", "unknown")
	assert.Equal(t, 1, len(b))
}

func TestBag_Clone(t *testing.T) {
	b := Bag{"sub": map[string]interface{}{"list": []interface{}{"a"}}}
	c, err := b.Clone()
	require.NoError(t, err)
	c.Bag("sub")["added"] = true
	assert.False(t, b.Bag("sub").Has("added"))
}

func TestBag_Merge(t *testing.T) {
	b := Bag{"a": 1}
	b.Merge(Bag{"a": 2, "b": 3})
	assert.Equal(t, 1, b["a"])
	assert.Equal(t, 3, b["b"])
	b.ForceMerge(Bag{"a": 4})
	assert.Equal(t, 4, b["a"])
}

func TestToBag(t *testing.T) {
	out, ok := ToBag(map[interface{}]interface{}{"k": "v", 1: 2})
	require.True(t, ok)
	assert.Equal(t, "v", out["k"])
	assert.Equal(t, 2, out["1"])

	_, ok = ToBag("not a map")
	assert.False(t, ok)
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Unique([]string{"a", "b", "a", "c", "b"}))
	assert.Equal(t, []int{}, Unique([]int{}))
}
