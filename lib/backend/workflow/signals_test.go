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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-SI/osplugin/lib/utils/fail"
)

func TestRetryError(t *testing.T) {
	xerr := RetryError(5*time.Second, "server is %s", "BUILD")
	assert.Equal(t, 5*time.Second, xerr.RetryAfter())
	assert.Equal(t, "server is BUILD", xerr.UnformattedError())

	var asFail fail.Error = xerr
	retry, ok := IsRetry(asFail)
	require.True(t, ok)
	assert.Equal(t, xerr, retry)

	_, ok = IsRetry(fail.NotFoundError("nope"))
	assert.False(t, ok)
}

func TestRetryErrorDefaultDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second, RetryError(0, "again").RetryAfter())
}

func TestRetryStatus(t *testing.T) {
	xerr := RetryStatus("server 'web'", "BUILD", "ACTIVE")
	assert.Contains(t, xerr.Error(), "'ACTIVE'")
	assert.Contains(t, xerr.Error(), "'BUILD'")
}

func TestNonRecoverableError(t *testing.T) {
	cause := fail.NotFoundError("flavor 'm1' not found")
	xerr := NonRecoverableError(cause)
	assert.Equal(t, "flavor 'm1' not found", xerr.UnformattedError())
	assert.True(t, fail.Is[*fail.ErrNotFound](xerr))
	assert.True(t, fail.Is[*ErrNonRecoverable](xerr))

	xerr = NonRecoverableError(nil)
	assert.Equal(t, "operation failed", xerr.UnformattedError())
}

func TestHasType(t *testing.T) {
	h := []string{"cloudify.nodes.Root", "cloudify.nodes.openstack.Server"}
	assert.True(t, HasType(h, "cloudify.nodes.openstack.Server"))
	assert.False(t, HasType(h, "cloudify.nodes.openstack.Port"))
	assert.Equal(t, "relationship-instance", RelationshipContext.String())
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "create", ShortName("cloudify.interfaces.lifecycle.create"))
	assert.Equal(t, "list", ShortName("list"))
}
