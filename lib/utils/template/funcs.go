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
	"reflect"
	txttmpl "text/template"

	"github.com/Masterminds/sprig/v3"
)

var internalFuncMap = txttmpl.FuncMap{
	"hasField": hasField,
}

// hasField tells if value 'v' has a field named 'name"
// Works with v as struct or map
func hasField(v interface{}, name string) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return rv.FieldByName(name).IsValid()
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return false
		}
		found := rv.MapIndex(reflect.ValueOf(name))
		return found.IsValid()
	default:
		return false
	}
}

// MergeFuncs returns the sprig functions, the internal ones and 'funcMap'
// If 'overwrite' is false, entries of 'funcMap' do not replace existing functions.
func MergeFuncs(funcMap map[string]interface{}, overwrite bool) txttmpl.FuncMap {
	out := sprig.TxtFuncMap()
	for k, v := range internalFuncMap {
		out[k] = v
	}
	for k, v := range funcMap {
		if _, ok := out[k]; ok && !overwrite {
			continue
		}
		out[k] = v
	}
	return out
}
