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
	"bytes"
	txttmpl "text/template"

	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Parse returns a text template with default funcs declared
func Parse(title, content string, funcMap map[string]interface{}) (*txttmpl.Template, fail.Error) {
	if title == "" {
		return nil, fail.InvalidParameterCannotBeEmptyStringError("title")
	}
	if content == "" {
		return nil, fail.InvalidParameterCannotBeEmptyStringError("content")
	}
	tmpl, err := txttmpl.New(title).Funcs(MergeFuncs(funcMap, false)).Parse(content)
	if err != nil {
		return nil, fail.SyntaxError("failed to parse template '%s': %v", title, err)
	}
	return tmpl, nil
}

// Render parses 'content' and executes it with 'vars'
func Render(title, content string, vars interface{}) (string, fail.Error) {
	tmpl, xerr := Parse(title, content, nil)
	if xerr != nil {
		return "", xerr
	}
	var buf bytes.Buffer
	if err := tmpl.Option("missingkey=error").Execute(&buf, vars); err != nil {
		return "", fail.ExecutionError(err, "failed to render template '%s'", title)
	}
	return buf.String(), nil
}
