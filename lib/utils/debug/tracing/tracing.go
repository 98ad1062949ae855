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

package tracing

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/CS-SI/osplugin/lib/utils/data/json"
)

// EnvVar is the environment variable used to enable traces without settings file
const EnvVar = "OSPLUGIN_TRACE"

var (
	settings     map[string]map[string]bool
	settingsLock sync.RWMutex
)

// RegisterTraceSettings keeps track of what has to be traced
// jsonSettings is a JSON object like {"stack": {"openstack": true}, "server": {}}; an empty sub-object enables the key as a whole.
func RegisterTraceSettings(jsonSettings string) error {
	newSettings := map[string]map[string]bool{}
	if strings.TrimSpace(jsonSettings) != "" {
		err := json.Unmarshal([]byte(jsonSettings), &newSettings)
		if err != nil {
			return fmt.Errorf("no trace are enabled, an error occurred loading trace settings: %w", err)
		}
	}

	// Check with env variable if key or key.subkey is inside
	if env := os.Getenv(EnvVar); env != "" {
		for _, part := range strings.Split(env, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			keys := strings.Split(part, ".")
			key := strings.TrimSpace(keys[0])
			reverse := false
			if key != "" && key[0] == '!' {
				key = key[1:]
				reverse = true
			}
			if key == "" {
				continue
			}

			if reverse && len(keys) == 1 {
				delete(newSettings, key)
				continue
			}
			if _, ok := newSettings[key]; !ok || len(keys) == 1 {
				newSettings[key] = map[string]bool{}
			}
			if len(keys) > 1 {
				newSettings[key][strings.TrimSpace(keys[1])] = !reverse
			}
		}
	}

	settingsLock.Lock()
	defer settingsLock.Unlock()
	settings = newSettings
	return nil
}

// ShouldTrace tells if a specific trace is asked for
func ShouldTrace(key string) bool {
	if key = strings.TrimSpace(key); key == "" {
		return false
	}

	settingsLock.RLock()
	defer settingsLock.RUnlock()

	parts := strings.Split(key, ".")
	// If key.subkey is defined, return its value
	if len(parts) >= 2 {
		if setting, ok := settings[parts[0]][parts[1]]; ok {
			return setting
		}
	}
	// If key is defined and there is no subkey, return true (key enabled as a whole)
	if sub, ok := settings[parts[0]]; ok && len(sub) == 0 {
		return true
	}
	return false
}
