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

package temporal

import (
	"time"
)

const (
	// DefaultRetryInterval is the delay hint given to the workflow host when a polled transition is not complete
	DefaultRetryInterval = 30 * time.Second

	// DefaultRemoteCallTimeout is the maximum time spent retrying a single remote call on transient failures
	DefaultRemoteCallTimeout = 3 * time.Minute

	// DefaultRemoteCallMinDelay is the initial delay between two attempts of a remote call
	DefaultRemoteCallMinDelay = 500 * time.Millisecond
)

var (
	retryInterval     = DefaultRetryInterval
	remoteCallTimeout = DefaultRemoteCallTimeout
)

// SetRetryInterval overrides the default retry interval; values <= 0 are ignored
func SetRetryInterval(d time.Duration) {
	if d > 0 {
		retryInterval = d
	}
}

// RetryInterval returns the delay hint used by status poll loops
func RetryInterval() time.Duration {
	return retryInterval
}

// SetRemoteCallTimeout overrides the default remote call timeout; values <= 0 are ignored
func SetRemoteCallTimeout(d time.Duration) {
	if d > 0 {
		remoteCallTimeout = d
	}
}

// RemoteCallTimeout returns the maximum time spent retrying one remote call
func RemoteCallTimeout() time.Duration {
	return remoteCallTimeout
}
