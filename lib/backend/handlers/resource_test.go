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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

func TestCreateDeleteNetwork(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "Network", "net", data.Bag{
		"resource_config": data.Bag{"name": "private", "kwargs": data.Bag{"mtu": 1450}},
	}, nil)
	props := ep.I.RuntimeProperties()

	require.Nil(t, f.run(ep, "create", 0, nil))
	networks := f.cloud.Items(openstack.KindNetwork)
	require.Len(t, networks, 1)
	assert.Equal(t, "private", networks[0].String("name"))
	assert.Equal(t, 1450, networks[0]["mtu"])
	id := networks[0].String("id")
	assert.Equal(t, id, props.String(runtimekey.ID))
	assert.Equal(t, id, props.String(runtimekey.ExternalID))
	assert.NotNil(t, props.Bag(runtimekey.Payload("network")))

	// created already
	require.Nil(t, f.run(ep, "create", 1, nil))
	assert.Len(t, f.cloud.Items(openstack.KindNetwork), 1)

	require.Nil(t, f.run(ep, "delete", 0, nil))
	calls := f.cloud.Calls("Delete")
	require.Len(t, calls, 1)
	assert.Equal(t, []interface{}{openstack.KindNetwork, id}, calls[0].Args)
	assert.Empty(t, props)

	// deleting twice does nothing
	require.Nil(t, f.run(ep, "delete", 0, nil))
	assert.Len(t, f.cloud.Calls("Delete"), 1)
}

func TestCreateUsesRelationships(t *testing.T) {
	f := newFixture(t, credentials)
	network := canonical(t, "Network", "net", nil, data.Bag{runtimekey.ID: "net-1"})
	group := canonical(t, "SecurityGroup", "web", nil, data.Bag{runtimekey.ID: "sg-1"})

	port := canonical(t, "Port", "port", nil, nil)
	relate(port, network)
	relate(port, group)
	require.Nil(t, f.run(port, "create", 0, nil))
	ports := f.cloud.Items(openstack.KindPort)
	require.Len(t, ports, 1)
	assert.Equal(t, "net-1", ports[0].String("network_id"))
	assert.Equal(t, []interface{}{"sg-1"}, ports[0]["security_groups"])
	assert.Equal(t, "port_1", ports[0].String("name"))

	fip := canonical(t, "FloatingIP", "fip", nil, nil)
	relate(fip, network)
	require.Nil(t, f.run(fip, "create", 0, nil))
	ips := f.cloud.Items(openstack.KindFloatingIP)
	require.Len(t, ips, 1)
	assert.Equal(t, "net-1", ips[0].String("floating_network_id"))
	assert.False(t, ips[0].Has("name"))
}

func TestAdoptExternalResource(t *testing.T) {
	f := newFixture(t, credentials)
	f.cloud.Add(openstack.KindNetwork, data.Bag{"id": "net-1", "name": "private"})
	ep := canonical(t, "Network", "net", data.Bag{"use_external_resource": true, "resource_id": "private"}, nil)
	props := ep.I.RuntimeProperties()

	require.Nil(t, f.run(ep, "creation_validation", 0, nil))
	require.Nil(t, f.run(ep, "create", 0, nil))
	assert.Equal(t, "net-1", props.String(runtimekey.ID))
	assert.True(t, props.Bool(runtimekey.ExternalResource))
	assert.Len(t, f.cloud.Items(openstack.KindNetwork), 1)

	require.Nil(t, f.run(ep, "delete", 0, nil))
	assert.Empty(t, f.cloud.Calls("Delete"))
	assert.Empty(t, props)
	assert.Len(t, f.cloud.Items(openstack.KindNetwork), 1)
}

func TestAdoptMissingResource(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "Network", "net", data.Bag{"use_external_resource": true, "resource_id": "ghost"}, nil)
	requireFatal[*fail.ErrNotFound](t, f.run(ep, "create", 0, nil))
	requireFatal[*fail.ErrNotFound](t, f.run(ep, "creation_validation", 0, nil))

	ep = canonical(t, "Network", "net", data.Bag{"use_external_resource": true}, nil)
	requireFatal[*fail.ErrInvalidRequest](t, f.run(ep, "create", 0, nil))
}

func TestCreationValidationQuota(t *testing.T) {
	f := newFixture(t, credentials)
	f.cloud.Add(openstack.KindNetwork, data.Bag{"id": "net-1"})
	ep := canonical(t, "Network", "net", nil, nil)

	require.Nil(t, f.run(ep, "creation_validation", 0, nil))
	f.cloud.Quotas["network/network"] = 1
	requireFatal[*fail.ErrOverload](t, f.run(ep, "creation_validation", 0, nil))
	f.cloud.Quotas["network/network"] = 2
	require.Nil(t, f.run(ep, "creation_validation", 0, nil))
}

func TestUpdateListGet(t *testing.T) {
	f := newFixture(t, credentials)
	f.cloud.Add(openstack.KindNetwork, data.Bag{"id": "net-1", "name": "private"})
	f.cloud.Add(openstack.KindNetwork, data.Bag{"id": "net-2", "name": "public"})
	ep := canonical(t, "Network", "net", nil, data.Bag{runtimekey.ID: "net-1"})
	props := ep.I.RuntimeProperties()

	require.Nil(t, f.run(ep, "update", 0, data.Bag{"args": data.Bag{"admin_state_up": false}}))
	assert.Equal(t, false, f.cloud.Item(openstack.KindNetwork, "net-1")["admin_state_up"])
	assert.Equal(t, false, props.Bag(runtimekey.Payload("network"))["admin_state_up"])

	// nothing to update
	require.Nil(t, f.run(ep, "update", 0, nil))

	require.Nil(t, f.run(ep, "list", 0, data.Bag{"query": data.Bag{"name": "public"}}))
	listed := props.Slice(runtimekey.List("network"))
	require.Len(t, listed, 1)

	f.cloud.Set(openstack.KindNetwork, "net-1", "status", "ACTIVE")
	require.Nil(t, f.run(ep, "get", 0, nil))
	assert.Equal(t, "ACTIVE", props.Bag(runtimekey.Payload("network")).String("status"))
}

func TestPassiveOperations(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "Network", "net", nil, data.Bag{runtimekey.ID: "net-1"})
	for _, op := range []string{"configure", "start", "stop"} {
		require.Nil(t, f.run(ep, op, 0, nil))
	}
	assert.Empty(t, f.cloud.Calls("Delete"))
	requireFatal[*fail.ErrNotImplemented](t, f.run(ep, "snapshot_create", 0, nil))
}

func TestCreateKeyPair(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "KeyPair", "key", data.Bag{"resource_config": data.Bag{"name": "deploy"}}, nil)
	props := ep.I.RuntimeProperties()

	require.Nil(t, f.run(ep, "create", 0, nil))
	assert.Equal(t, "deploy", props.String(runtimekey.ID))
	assert.Contains(t, props.String(runtimekey.PrivateKey), "PRIVATE KEY")
	assert.NotEmpty(t, props.String(runtimekey.PublicKey))
	assert.False(t, props.Bag(runtimekey.Payload("key_pair")).Has("private_key"))
}

func TestSecurityGroupRules(t *testing.T) {
	f := newFixture(t, credentials)
	// security_group-1 is the id the cloud gives to the first group created
	f.cloud.Add(openstack.KindSecurityGroupRule, data.Bag{"id": "egress-1", "security_group_id": "security_group-1", "direction": "egress"})
	f.cloud.Add(openstack.KindSecurityGroupRule, data.Bag{"id": "egress-2", "security_group_id": "other", "direction": "egress"})
	ep := canonical(t, "SecurityGroup", "web", data.Bag{
		"disable_default_egress_rules": true,
		"security_group_rules": []interface{}{
			data.Bag{"direction": "ingress", "protocol": "tcp", "port_range_min": 80, "port_range_max": 80},
			data.Bag{"direction": "ingress", "protocol": "tcp", "port_range_min": 443, "port_range_max": 443},
		},
	}, nil)
	props := ep.I.RuntimeProperties()

	require.Nil(t, f.run(ep, "create", 0, nil))
	require.Equal(t, "security_group-1", props.String(runtimekey.ID))
	assert.Len(t, props.Slice(runtimekey.SecurityGroupRules), 2)

	rules := f.cloud.Items(openstack.KindSecurityGroupRule)
	require.Len(t, rules, 3)
	assert.Equal(t, "egress-2", rules[0].String("id"))
	for _, r := range rules[1:] {
		assert.Equal(t, "security_group-1", r.String("security_group_id"))
	}

	// rules are not created twice
	require.Nil(t, f.run(ep, "create", 1, nil))
	assert.Len(t, f.cloud.Items(openstack.KindSecurityGroupRule), 3)
}

func TestSecurityGroupRulesResume(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "SecurityGroup", "web", data.Bag{
		"security_group_rules": []interface{}{
			data.Bag{"direction": "ingress", "port_range_min": 22, "port_range_max": 22},
			data.Bag{"direction": "ingress", "port_range_min": 80, "port_range_max": 80},
		},
	}, nil)
	props := ep.I.RuntimeProperties()

	f.cloud.FailNext("Create", nil)
	f.cloud.FailNext("Create", nil)
	f.cloud.FailNext("Create", fail.ForbiddenError("quota of rules exceeded"))
	requireFatal[*fail.ErrForbidden](t, f.run(ep, "create", 0, nil))
	assert.Len(t, props.Slice(runtimekey.SecurityGroupRules), 1)

	require.Nil(t, f.run(ep, "create", 1, nil))
	assert.Len(t, props.Slice(runtimekey.SecurityGroupRules), 2)
	assert.Len(t, f.cloud.Items(openstack.KindSecurityGroupRule), 2)
}

func TestFlavorExtraSpecs(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "Flavor", "flavor", data.Bag{
		"resource_config": data.Bag{"name": "m1.dedicated", "ram": 2048, "vcpus": 2, "disk": 20},
		"extra_specs":     data.Bag{"hw:cpu_policy": "dedicated"},
	}, nil)

	require.Nil(t, f.run(ep, "create", 0, nil))
	calls := f.cloud.Calls("SetFlavorExtraSpecs")
	require.Len(t, calls, 1)
	assert.Equal(t, ep.I.RuntimeProperties().String(runtimekey.ID), calls[0].Args[0])
	assert.Equal(t, map[string]string{"hw:cpu_policy": "dedicated"}, calls[0].Args[1])
}

func TestAggregateHosts(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "HostAggregate", "agg", data.Bag{
		"resource_config": data.Bag{"name": "fast"},
		"hosts":           []interface{}{"compute-1", "compute-2"},
	}, nil)
	props := ep.I.RuntimeProperties()

	require.Nil(t, f.run(ep, "create", 0, nil))
	assert.Equal(t, 2, f.cloud.CallCount("AddHostToAggregate"))
	assert.Equal(t, []string{"compute-1", "compute-2"}, props.Strings(runtimekey.Hosts))

	require.Nil(t, f.run(ep, "create", 1, nil))
	assert.Equal(t, 2, f.cloud.CallCount("AddHostToAggregate"))

	id := props.String(runtimekey.ID)
	require.Nil(t, f.run(ep, "delete", 0, nil))
	removed := f.cloud.Calls("RemoveHostFromAggregate")
	require.Len(t, removed, 2)
	assert.Equal(t, []interface{}{id, "compute-1"}, removed[0].Args)
	assert.Len(t, f.cloud.Calls("Delete"), 1)
}

func TestProjectRoles(t *testing.T) {
	f := newFixture(t, credentials)
	f.cloud.Add(openstack.KindUser, data.Bag{"id": "usr-1", "name": "alice"})
	f.cloud.Add(openstack.KindRole, data.Bag{"id": "role-1", "name": "member"})
	f.cloud.Add(openstack.KindRole, data.Bag{"id": "role-2", "name": "reader"})
	ep := canonical(t, "Project", "prj", data.Bag{
		"resource_config": data.Bag{"name": "team"},
		"users":           []interface{}{data.Bag{"name": "alice", "roles": []interface{}{"member", "reader"}}},
	}, nil)
	props := ep.I.RuntimeProperties()

	require.Nil(t, f.run(ep, "create", 0, nil))
	id := props.String(runtimekey.ID)
	calls := f.cloud.Calls("AssignRole")
	require.Len(t, calls, 2)
	assert.Equal(t, []interface{}{"role-1", openstack.RoleAssignment{UserID: "usr-1", ProjectID: id}}, calls[0].Args)
	assert.Equal(t, []string{"usr-1/role-1", "usr-1/role-2"}, props.Strings(runtimekey.RoleAssignments))

	require.Nil(t, f.run(ep, "create", 1, nil))
	assert.Len(t, f.cloud.Calls("AssignRole"), 2)

	require.Nil(t, f.run(ep, "delete", 0, nil))
	assert.Len(t, f.cloud.Calls("UnassignRole"), 2)
	assert.Empty(t, props)
}

func TestProjectUnknownUser(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "Project", "prj", data.Bag{
		"users": []interface{}{data.Bag{"name": "bob", "roles": []interface{}{"member"}}},
	}, nil)
	requireFatal[*fail.ErrNotFound](t, f.run(ep, "create", 0, nil))
	assert.Empty(t, f.cloud.Calls("AssignRole"))
}

func TestVolumeLifecycle(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "Volume", "data", data.Bag{"resource_config": data.Bag{"name": "data", "size": 10}}, nil)
	props := ep.I.RuntimeProperties()

	requireRetry(t, f.run(ep, "create", 0, nil))
	id := props.String(runtimekey.ID)
	require.NotEmpty(t, id)

	f.cloud.Set(openstack.KindVolume, id, "status", "available")
	require.Nil(t, f.run(ep, "create", 1, nil))
	assert.Len(t, f.cloud.Items(openstack.KindVolume), 1)
	assert.Equal(t, "available", props.Bag(runtimekey.Payload("volume")).String("status"))

	require.Nil(t, f.run(ep, "delete", 0, nil))
	assert.Len(t, f.cloud.Calls("Delete"), 1)
	assert.Empty(t, props)
}

func TestVolumeDeletionIsWaited(t *testing.T) {
	f := newFixture(t, credentials)
	f.cloud.Add(openstack.KindVolume, data.Bag{"id": "vol-1", "status": "deleting"})
	ep := canonical(t, "Volume", "data", nil, data.Bag{runtimekey.ID: "vol-1", runtimekey.DeleteTask: "PENDING"})
	props := ep.I.RuntimeProperties()

	requireRetry(t, f.run(ep, "delete", 0, nil))
	assert.Empty(t, f.cloud.Calls("Delete"))

	f.cloud.Set(openstack.KindVolume, "vol-1", "status", "error_deleting")
	requireFatal[*fail.ErrNotAvailable](t, f.run(ep, "delete", 1, nil))

	f.cloud.Remove(openstack.KindVolume, "vol-1")
	require.Nil(t, f.run(ep, "delete", 2, nil))
	assert.Empty(t, props)
}

func TestVolumeErrorIsFatal(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "Volume", "data", nil, nil)
	requireRetry(t, f.run(ep, "create", 0, nil))
	f.cloud.Set(openstack.KindVolume, ep.I.RuntimeProperties().String(runtimekey.ID), "status", "error")

	xerr := f.run(ep, "create", 1, nil)
	requireFatal[*fail.ErrNotAvailable](t, xerr)
	kind, _ := xerr.Annotation("kind")
	assert.Equal(t, "volume", kind)
}

func TestRoutes(t *testing.T) {
	f := newFixture(t, credentials)
	existing := data.Bag{"destination": "10.0.0.0/24", "nexthop": "192.168.0.1"}
	f.cloud.Add(openstack.KindRouter, data.Bag{"id": "rtr-1", "name": "gw", "routes": []interface{}{existing}})
	router := canonical(t, "Router", "gw", nil, data.Bag{runtimekey.ID: "rtr-1"})
	route := data.Bag{"destination": "10.1.0.0/24", "nexthop": "192.168.0.2"}
	ep := canonical(t, "Routes", "routes", data.Bag{
		"resource_config": data.Bag{"routes": []interface{}{route, route}},
	}, nil)
	relate(ep, router)
	props := ep.I.RuntimeProperties()

	require.Nil(t, f.run(ep, "create", 0, nil))
	assert.Equal(t, "rtr-1", props.String(runtimekey.ID))
	assert.Len(t, props.Slice(runtimekey.Routes), 1)
	assert.Len(t, f.cloud.Item(openstack.KindRouter, "rtr-1").Slice("routes"), 2)

	// applying again keeps routes unique
	require.Nil(t, f.run(ep, "create", 1, nil))
	assert.Len(t, f.cloud.Item(openstack.KindRouter, "rtr-1").Slice("routes"), 2)

	require.Nil(t, f.run(ep, "delete", 0, nil))
	routes := f.cloud.Item(openstack.KindRouter, "rtr-1").Bags("routes")
	require.Len(t, routes, 1)
	assert.Equal(t, "10.0.0.0/24", routes[0].String("destination"))
	assert.Empty(t, props)
	assert.Empty(t, f.cloud.Calls("Delete"))
}

func TestRoutesWithoutRouter(t *testing.T) {
	f := newFixture(t, credentials)
	ep := canonical(t, "Routes", "routes", nil, nil)
	xerr := f.run(ep, "create", 0, nil)
	requireFatal[*fail.ErrInvalidRequest](t, xerr)
	assert.Contains(t, xerr.Error(), "router id is missing")
}

func TestRouterInterface(t *testing.T) {
	f := newFixture(t, credentials)
	subnet := canonical(t, "Subnet", "sub", nil, data.Bag{runtimekey.ID: "sub-1"})
	port := canonical(t, "Port", "port", nil, data.Bag{runtimekey.ID: "port-1"})
	router := canonical(t, "Router", "gw", nil, data.Bag{runtimekey.ID: "rtr-1"})

	require.Nil(t, f.runRelationship(subnet, router, "add_interface_to_router", nil))
	require.Nil(t, f.runRelationship(router, port, "add_interface_to_router", nil))
	calls := f.cloud.Calls("AddRouterInterface")
	require.Len(t, calls, 2)
	assert.Equal(t, []interface{}{"rtr-1", "sub-1", ""}, calls[0].Args)
	assert.Equal(t, []interface{}{"rtr-1", "", "port-1"}, calls[1].Args)

	f.cloud.FailNext("RemoveRouterInterface", fail.NotFoundError("no such interface"))
	require.Nil(t, f.runRelationship(subnet, router, "remove_interface_from_router", nil))

	network := canonical(t, "Network", "net", nil, data.Bag{runtimekey.ID: "net-1"})
	requireFatal[*fail.ErrInvalidRequest](t, f.runRelationship(network, router, "add_interface_to_router", nil))
	requireFatal[*fail.ErrInvalidRequest](t, f.run(subnet, "add_interface_to_router", 0, nil))
}
