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

package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/temporal"
)

// ErrOperationRetry asks the host to invoke the operation again after a delay
type ErrOperationRetry struct {
	*fail.ErrNotAvailable
	retryAfter time.Duration
}

// RetryError creates an ErrOperationRetry; a zero 'after' means temporal.RetryInterval()
func RetryError(after time.Duration, msg ...interface{}) *ErrOperationRetry {
	if after <= 0 {
		after = temporal.RetryInterval()
	}
	return &ErrOperationRetry{
		ErrNotAvailable: fail.NotAvailableError(msg...),
		retryAfter:      after,
	}
}

// RetryAfter returns the delay hint of the retry
func (e *ErrOperationRetry) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	return e.retryAfter
}

// IsNull tells if the instance is null
func (e *ErrOperationRetry) IsNull() bool {
	return e == nil || e.ErrNotAvailable.IsNull()
}

// ErrNonRecoverable tells the host the operation failed and must not be retried
type ErrNonRecoverable struct {
	*fail.ErrAborted
}

// NonRecoverableError creates an ErrNonRecoverable, keeping 'cause' as the cause
func NonRecoverableError(cause error, msg ...interface{}) *ErrNonRecoverable {
	if len(msg) == 0 {
		if cause != nil {
			msg = []interface{}{cause.Error()}
			if casted, ok := cause.(fail.Error); ok {
				msg = []interface{}{casted.UnformattedError()}
			}
		} else {
			msg = []interface{}{"operation failed"}
		}
	}
	return &ErrNonRecoverable{ErrAborted: fail.AbortedError(cause, msg...)}
}

// IsNull tells if the instance is null
func (e *ErrNonRecoverable) IsNull() bool {
	return e == nil || e.ErrAborted.IsNull()
}

// IsRetry tells if 'err' is a retry signal, returning it
func IsRetry(err error) (*ErrOperationRetry, bool) {
	var casted *ErrOperationRetry
	if errors.As(err, &casted) {
		return casted, true
	}
	return nil, false
}

// RetryStatus builds the message of a retry waiting for a status
func RetryStatus(what, current, target string) *ErrOperationRetry {
	return RetryError(0, fmt.Sprintf("waiting for %s to reach status '%s' (current status is '%s')", what, target, current))
}
