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

package strprocess

import (
	"fmt"
	"strings"
)

// Plural returns 's' if value > 1, "" otherwise
func Plural(value uint) string {
	if value > 1 {
		return "s"
	}
	return ""
}

// FormatStrings formats the strings passed as parameters, using first one as format specifier for fmt.Sprintf if
// there are more than 1 string.
func FormatStrings(msg ...interface{}) string {
	if len(msg) == 0 || msg[0] == nil {
		return ""
	}

	format, ok := msg[0].(string)
	if !ok {
		return fmt.Sprintf("%v", msg[0])
	}
	if len(msg) > 1 {
		return fmt.Sprintf(format, msg[1:]...)
	}
	return format
}

// Quote surrounds value with single quotes, unless already quoted
func Quote(value string) string {
	if strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'") && len(value) > 1 {
		return value
	}
	return "'" + value + "'"
}
