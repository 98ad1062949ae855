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

package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, xerr := Render("userdata", "#cloud-config\nhostname: {{ .name | lower }}\n{{ if hasField . \"fqdn\" }}fqdn: {{ .fqdn }}{{ end }}", map[string]interface{}{"name": "WEB01"})
	require.Nil(t, xerr)
	assert.Equal(t, "#cloud-config\nhostname: web01\n", out)
}

func TestRenderErrors(t *testing.T) {
	_, xerr := Render("", "x", nil)
	assert.NotNil(t, xerr)

	_, xerr = Render("broken", "{{ .name ", nil)
	assert.NotNil(t, xerr)

	_, xerr = Render("missing", "{{ .name }}", map[string]interface{}{})
	assert.NotNil(t, xerr)
}

func TestMergeFuncs(t *testing.T) {
	custom := func() string { return "mine" }
	funcs := MergeFuncs(map[string]interface{}{"lower": custom, "custom": custom}, false)
	assert.Contains(t, funcs, "hasField")
	assert.Contains(t, funcs, "custom")

	assert.True(t, hasField(map[string]interface{}{"a": 1}, "a"))
	assert.False(t, hasField(map[int]int{1: 1}, "a"))
	assert.True(t, hasField(&struct{ A int }{}, "A"))
}
