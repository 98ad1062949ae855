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

package handlers

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-SI/osplugin/lib/backend/metrics"
	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/openstack/ostest"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/serverstate"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/backend/workflow/local"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

var (
	credentials = data.Bag{
		"auth_url":            "https://keystone.example.com/v3",
		"username":            "admin",
		"password":            "secret",
		"project_name":        "demo",
		"user_domain_name":    "Default",
		"project_domain_name": "Default",
	}
	connectedTo = []string{"cloudify.relationships.connected_to"}
)

type fixture struct {
	cloud      *ostest.Cloud
	dispatcher *Dispatcher
	configs    []openstack.ClientConfig
}

func newFixture(t *testing.T, defaults data.Bag) *fixture {
	f := &fixture{cloud: ostest.New("prj-1")}
	d, xerr := NewDispatcher(func(_ context.Context, cfg openstack.ClientConfig) (openstack.Cloud, fail.Error) {
		f.configs = append(f.configs, cfg)
		return f.cloud, nil
	}, defaults)
	require.Nil(t, xerr)
	f.dispatcher = d
	return f
}

// endpoint creates an instance of a node of type 'nodeType' whose runtime properties are 'runtime'
func endpoint(t *testing.T, nodeType, nodeID string, props, runtime data.Bag) local.Endpoint {
	inst, xerr := local.NewInstance(context.Background(), nodeID+"_1", nil)
	require.Nil(t, xerr)
	inst.RuntimeProperties().ForceMerge(runtime)
	return local.Endpoint{N: &local.Node{NodeID: nodeID, NodeType: nodeType, Props: props}, I: inst}
}

func canonical(t *testing.T, tag, nodeID string, props, runtime data.Bag) local.Endpoint {
	return endpoint(t, relationships.CanonicalTypePrefix+tag, nodeID, props, runtime)
}

func relate(source, target local.Endpoint) {
	source.I.(*local.Instance).Relate(connectedTo, target)
}

func (f *fixture) run(ep local.Endpoint, op string, retry int, kwargs data.Bag) fail.Error {
	wctx := local.NewNodeContext(ep.N, ep.I, &local.Operation{OpName: "cloudify.interfaces.lifecycle." + op, Retry: retry})
	return f.dispatcher.Run(context.Background(), wctx, kwargs)
}

func (f *fixture) runRelationship(source, target local.Endpoint, op string, kwargs data.Bag) fail.Error {
	wctx := local.NewRelationshipContext(source, target, &local.Operation{OpName: "cloudify.interfaces.relationship_lifecycle." + op})
	return f.dispatcher.Run(context.Background(), wctx, kwargs)
}

func requireRetry(t *testing.T, xerr fail.Error) {
	t.Helper()
	require.NotNil(t, xerr)
	_, ok := workflow.IsRetry(xerr)
	require.True(t, ok, "expected a retry signal, got %v", xerr)
}

func requireFatal[T error](t *testing.T, xerr fail.Error) {
	t.Helper()
	require.NotNil(t, xerr)
	_, ok := workflow.IsRetry(xerr)
	require.False(t, ok, "expected a fatal error, got a retry signal: %v", xerr)
	require.True(t, fail.Is[*workflow.ErrNonRecoverable](xerr), "expected a non recoverable error, got %T", xerr)
	require.True(t, fail.Is[T](xerr), "unexpected error kind: %v", xerr)
}

func TestNewDispatcherRequiresConnector(t *testing.T) {
	_, xerr := NewDispatcher(nil, nil)
	require.NotNil(t, xerr)

	var d *Dispatcher
	assert.NotNil(t, d.Run(context.Background(), nil, nil))
}

func TestRunUnknownNodeType(t *testing.T) {
	f := newFixture(t, credentials)
	ep := endpoint(t, "cloudify.nodes.Compute", "host", nil, nil)
	xerr := f.run(ep, "create", 0, nil)
	requireFatal[*fail.ErrInvalidRequest](t, xerr)
	assert.Empty(t, f.configs)
}

func TestClientConfigMerge(t *testing.T) {
	f := newFixture(t, credentials)
	f.cloud.Add(openstack.KindNetwork, data.Bag{"id": "net-1", "name": "private"})
	ep := canonical(t, "Network", "private_net", data.Bag{
		"client_config": data.Bag{"region_name": "RegionOne", "password": "node"},
	}, nil)

	require.Nil(t, f.run(ep, "list", 0, data.Bag{"client_config": data.Bag{"password": "input"}}))
	require.Len(t, f.configs, 1)
	assert.Equal(t, "RegionOne", f.configs[0].RegionName)
	assert.Equal(t, "input", f.configs[0].Password)
	assert.Equal(t, "admin", f.configs[0].Username)
	assert.Len(t, ep.I.RuntimeProperties().Slice(runtimekey.List("network")), 1)
}

func TestLegacyClientConfig(t *testing.T) {
	f := newFixture(t, nil)
	cfg := data.Bag{"region": "RegionTwo", "nova_url": "https://nova.example.com"}
	cfg.ForceMerge(credentials)
	ep := endpoint(t, relationships.LegacyTypePrefix+"Network", "net", data.Bag{
		"resource_id":      "private",
		"openstack_config": cfg,
	}, nil)

	kwargs := data.Bag{}
	require.Nil(t, f.run(ep, "create", 0, kwargs))
	require.Len(t, f.configs, 1)
	assert.Equal(t, "RegionTwo", f.configs[0].RegionName)
	assert.False(t, kwargs.Bag("client_config").Has("nova_url"))
	assert.Equal(t, "private", kwargs.Bag("resource_config").String("name"))

	networks := f.cloud.Items(openstack.KindNetwork)
	require.Len(t, networks, 1)
	assert.Equal(t, "private", networks[0].String("name"))
}

func TestInvalidDomain(t *testing.T) {
	f := newFixture(t, data.Bag{
		"auth_url":     "https://keystone.example.com/v3",
		"username":     "admin",
		"password":     "secret",
		"project_name": "demo",
	})
	ep := canonical(t, "Network", "net", nil, nil)
	xerr := f.run(ep, "create", 0, nil)
	requireFatal[*openstack.ErrInvalidDomain](t, xerr)
	assert.Empty(t, f.configs)
}

func TestServerOperationsUseEngine(t *testing.T) {
	f := newFixture(t, credentials)
	f.cloud.Add(openstack.KindFlavor, data.Bag{"id": "flv-1", "name": "m1.small"})
	f.cloud.Add(openstack.KindImage, data.Bag{"id": "img-1", "name": "ubuntu", "status": "active"})
	ep := canonical(t, "Server", "vm", data.Bag{
		"resource_config": data.Bag{"name": "vm", "flavor": "m1.small", "image": "ubuntu"},
	}, nil)

	require.Nil(t, f.run(ep, "create", 0, nil))
	servers := f.cloud.Items(openstack.KindServer)
	require.Len(t, servers, 1)
	assert.Equal(t, "flv-1", servers[0].String("flavorRef"))
	assert.Equal(t, servers[0].String("id"), ep.I.RuntimeProperties().String(runtimekey.ID))

	requireRetry(t, f.run(ep, "configure", 0, nil))

	// nothing to do on servers for these
	require.Nil(t, f.run(ep, "poststart", 0, nil))
	requireFatal[*fail.ErrNotImplemented](t, f.run(ep, "heal", 0, nil))
}

func TestLegacyServerIsTranslated(t *testing.T) {
	f := newFixture(t, nil)
	f.cloud.Add(openstack.KindFlavor, data.Bag{"id": "flv-1", "name": "m1.small"})
	f.cloud.Add(openstack.KindImage, data.Bag{"id": "img-1", "name": "ubuntu", "status": "active"})
	ep := endpoint(t, relationships.LegacyTypePrefix+"WindowsServer", "win", data.Bag{
		"resource_id":      "win-1",
		"server":           data.Bag{"flavor": "m1.small", "image": "ubuntu"},
		"openstack_config": credentials,
	}, nil)

	kwargs := data.Bag{}
	require.Nil(t, f.run(ep, "create", 0, kwargs))
	assert.True(t, kwargs.Has("client_config"))
	servers := f.cloud.Items(openstack.KindServer)
	require.Len(t, servers, 1)
	assert.Equal(t, "win-1", servers[0].String("name"))
	assert.Equal(t, "img-1", servers[0].String("imageRef"))
}

func TestFatalErrorsAreAnnotated(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "Server", "vm", nil, nil)

	xerr := f.run(ep, "configure", 0, nil)
	requireFatal[*fail.ErrInconsistent](t, xerr)
	kind, ok := xerr.Annotation("kind")
	require.True(t, ok)
	assert.Equal(t, "server", kind)
	id, _ := xerr.Annotation("id")
	assert.Equal(t, "vm_1", id)
	op, _ := xerr.Annotation("operation")
	assert.Equal(t, "configure", op)
	reason, _ := xerr.Annotation("reason")
	assert.NotEmpty(t, reason)
}

func TestAttachmentOperationsUseEngine(t *testing.T) {
	f := newFixture(t, credentials)
	srv := canonical(t, "Server", "vm", nil, data.Bag{runtimekey.ID: "srv-1"})
	f.cloud.Add(openstack.KindServer, data.Bag{"id": "srv-1", "status": serverstate.Active})
	sg := canonical(t, "SecurityGroup", "web", nil, data.Bag{runtimekey.ID: "sg-1"})

	require.Nil(t, f.runRelationship(sg, srv, "connect_security_group", nil))
	calls := f.cloud.Calls("AddSecurityGroup")
	require.Len(t, calls, 1)
	assert.Equal(t, "srv-1", calls[0].Args[0])
}

func TestSignalsAreCounted(t *testing.T) {
	f := newFixture(t, credentials)
	nodeType := "acme.nodes.CountedNetwork"
	ep := endpoint(t, nodeType, "net", nil, nil)
	ep.N.(*local.Node).Hierarchy = []string{relationships.CanonicalTypePrefix + "Network", nodeType}

	require.Nil(t, f.run(ep, "create", 0, nil))
	requireFatal[*fail.ErrNotImplemented](t, f.run(ep, "reboot", 0, nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Signals.WithLabelValues(nodeType, "create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Signals.WithLabelValues(nodeType, "reboot", "error")))
}

func TestTranslate(t *testing.T) {
	f := newFixture(t, credentials)
	f.cloud.Add(openstack.KindFlavor, data.Bag{"id": "flv-1", "name": "m1.small"})

	legacy := endpoint(t, relationships.LegacyTypePrefix+"Server", "vm", data.Bag{
		"resource_id":      "web",
		"server":           data.Bag{"flavor": "m1.small"},
		"openstack_config": credentials,
	}, nil)
	wctx := local.NewNodeContext(legacy.N, legacy.I, &local.Operation{OpName: "cloudify.interfaces.lifecycle.create"})
	kwargs := data.Bag{}
	require.Nil(t, f.dispatcher.Translate(context.Background(), wctx, kwargs))
	assert.Equal(t, "flv-1", kwargs.Bag("resource_config").String("flavor_id"))
	assert.Empty(t, f.cloud.Items(openstack.KindServer))

	ep := canonical(t, "Network", "net", data.Bag{"resource_config": data.Bag{"name": "private"}}, nil)
	wctx = local.NewNodeContext(ep.N, ep.I, &local.Operation{OpName: "cloudify.interfaces.lifecycle.create"})
	kwargs = data.Bag{"resource_config": data.Bag{"admin_state_up": true}}
	require.Nil(t, f.dispatcher.Translate(context.Background(), wctx, kwargs))
	assert.Equal(t, data.Bag{"name": "private", "admin_state_up": true}, kwargs.Bag("resource_config"))
	assert.Equal(t, "admin", kwargs.Bag("client_config").String("username"))
	assert.Empty(t, f.cloud.Items(openstack.KindNetwork))
}
