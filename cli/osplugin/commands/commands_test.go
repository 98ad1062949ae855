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


package commands

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-SI/osplugin/cli/osplugin/internal/descriptor"
	"github.com/CS-SI/osplugin/lib/backend/handlers"
	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/openstack/ostest"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

const volumeNode = `
node:
  id: data
  type: cloudify.nodes.openstack.Volume
  properties:
    client_config:
      auth_url: https://keystone.example.com/v3
      username: admin
      password: secret
      project_name: demo
      user_domain_name: Default
      project_domain_name: Default
    resource_config:
      name: data
      size: 10
instance:
  id: data_1
`

func newRunner(t *testing.T, cloud *ostest.Cloud) runner {
	d, xerr := descriptor.Parse([]byte(volumeNode))
	require.Nil(t, xerr)
	dispatcher, xerr := handlers.NewDispatcher(func(context.Context, openstack.ClientConfig) (openstack.Cloud, fail.Error) {
		return cloud, nil
	}, nil)
	require.Nil(t, xerr)
	return runner{dispatcher: dispatcher, descriptor: d}
}

func TestExecuteRetriesUntilDone(t *testing.T) {
	cloud := ostest.New("prj-1")
	r := newRunner(t, cloud)
	r.untilDone = true
	var waits []time.Duration
	r.wait = func(_ context.Context, delay time.Duration) fail.Error {
		waits = append(waits, delay)
		if len(waits) == 2 {
			volumes := cloud.Items(openstack.KindVolume)
			require.Len(t, volumes, 1)
			cloud.Set(openstack.KindVolume, volumes[0].String("id"), "status", "available")
		}
		return nil
	}

	wctx, xerr := r.descriptor.Context(context.Background(), nil, "create", "", 0)
	require.Nil(t, xerr)
	require.Nil(t, r.execute(context.Background(), wctx))

	assert.Len(t, waits, 2)
	assert.Equal(t, 2, wctx.Operation().RetryNumber())
	props := wctx.Instance().RuntimeProperties()
	assert.NotEmpty(t, props.String(runtimekey.ID))
	assert.Equal(t, "available", props.Bag(runtimekey.Payload("volume")).String("status"))
}

func TestExecuteWithoutRetry(t *testing.T) {
	r := newRunner(t, ostest.New("prj-1"))
	r.wait = func(context.Context, time.Duration) fail.Error {
		t.Fatal("no wait expected")
		return nil
	}

	wctx, xerr := r.descriptor.Context(context.Background(), nil, "create", "", 0)
	require.Nil(t, xerr)
	xerr = r.execute(context.Background(), wctx)
	_, ok := workflow.IsRetry(xerr)
	assert.True(t, ok)
	assert.Equal(t, ExitPending, exitCode(xerr))
}

func TestExecuteGivesUp(t *testing.T) {
	r := newRunner(t, ostest.New("prj-1"))
	r.untilDone = true
	r.maxRetries = 3
	r.wait = func(context.Context, time.Duration) fail.Error { return nil }

	wctx, xerr := r.descriptor.Context(context.Background(), nil, "create", "", 0)
	require.Nil(t, xerr)
	xerr = r.execute(context.Background(), wctx)
	require.NotNil(t, xerr)
	assert.True(t, fail.Is[*fail.ErrTimeout](xerr))
	assert.Equal(t, 3, wctx.Operation().RetryNumber())
}

func TestExecuteIsInterrupted(t *testing.T) {
	r := newRunner(t, ostest.New("prj-1"))
	r.untilDone = true
	r.wait = waitFor

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wctx, xerr := r.descriptor.Context(ctx, nil, "create", "", 0)
	require.Nil(t, xerr)
	xerr = r.execute(ctx, wctx)
	require.NotNil(t, xerr)
	assert.True(t, fail.Is[*fail.ErrAborted](xerr))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitInvalidInput, exitCode(fail.InvalidRequestError("bad")))
	assert.Equal(t, ExitNotFound, exitCode(fail.NotFoundError("missing")))
	assert.Equal(t, ExitFatal, exitCode(workflow.NonRecoverableError(fail.NewError("boom"), "failed")))
	assert.Equal(t, ExitPending, exitCode(workflow.RetryError(time.Second, "later")))
	assert.Equal(t, ExitError, exitCode(fail.NewError("boom")))
	assert.Nil(t, ExitOnError(nil))
}

func TestDisplayMasksSecrets(t *testing.T) {
	var out bytes.Buffer
	previous := Output
	Output = &out
	defer func() { Output = previous }()

	b := data.Bag{
		"client_config": data.Bag{"username": "admin", "password": "secret"},
		"keys":          []interface{}{map[string]interface{}{"private_key": "PEM"}},
		"password":      "",
	}
	require.Nil(t, display("yaml", masked(b)))
	assert.NotContains(t, out.String(), "secret")
	assert.NotContains(t, out.String(), "PEM")
	assert.Contains(t, out.String(), "username: admin")
	assert.Equal(t, "secret", b.Bag("client_config").String("password"))

	out.Reset()
	require.Nil(t, display("json", data.Bag{"id": "x"}))
	assert.Contains(t, out.String(), `"id": "x"`)

	assert.NotNil(t, display("xml", b))
}
