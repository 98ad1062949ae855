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

package compat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/openstack/ostest"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resolver"
	"github.com/CS-SI/osplugin/lib/backend/workflow/local"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

type fixture struct {
	cloud    *ostest.Cloud
	instance *local.Instance
	node     *local.Node
	op       *local.Operation
}

func newFixture(t *testing.T, tag Tag, props data.Bag, operation string) *fixture {
	instance, xerr := local.NewInstance(context.Background(), string(tag)+"_1", nil)
	require.Nil(t, xerr)
	return &fixture{
		cloud:    ostest.New("proj"),
		instance: instance,
		node:     &local.Node{NodeID: "n", NodeType: relationships.LegacyTypePrefix + string(tag), Props: props},
		op:       &local.Operation{OpName: "cloudify.interfaces.lifecycle." + operation},
	}
}

func (f *fixture) relateTo(t *testing.T, tag, nodeID string, runtime data.Bag) {
	target, xerr := local.NewInstance(context.Background(), nodeID+"_1", nil)
	require.Nil(t, xerr)
	target.RuntimeProperties().ForceMerge(runtime)
	node := &local.Node{NodeID: nodeID, NodeType: relationships.CanonicalTypePrefix + tag}
	f.instance.Relate([]string{"cloudify.relationships.connected_to"}, local.Endpoint{N: node, I: target})
}

func (f *fixture) translate(tag Tag, kwargs data.Bag) fail.Error {
	wctx := local.NewNodeContext(f.node, f.instance, f.op)
	return Translate(context.Background(), wctx, resolver.New(f.cloud), tag, kwargs)
}

func TestTranslateFlavorCreate(t *testing.T) {
	f := newFixture(t, Flavor, data.Bag{
		"resource_id": "flv",
		"flavor":      data.Bag{"vcpus": 4, "ram": 4096, "disk": 40},
	}, "create")
	kwargs := data.Bag{"args": data.Bag{"swap": 0, "ephemeral": 0, "is_public": true}}

	require.Nil(t, f.translate(Flavor, kwargs))
	assert.Equal(t, data.Bag{
		"name":   "flv",
		"vcpus":  4,
		"ram":    4096,
		"disk":   40,
		"kwargs": data.Bag{"swap": 0, "ephemeral": 0, "is_public": true},
	}, kwargs.Bag("resource_config"))
	assert.NotNil(t, kwargs.Bag("client_config"))
}

func TestTranslateServerCreateResolvesImageAndFlavor(t *testing.T) {
	f := newFixture(t, Server, data.Bag{
		"resource_id": "vm",
		"server": data.Bag{
			"image":    "ubuntu",
			"flavor":   "m1",
			"userdata": "#cloud-config",
			"networks": []interface{}{data.Bag{"net-id": "net-id"}},
		},
	}, "create")
	f.cloud.Add(openstack.KindImage, data.Bag{"id": "X", "name": "ubuntu"})
	f.cloud.Add(openstack.KindFlavor, data.Bag{"id": "Y", "name": "m1"})
	kwargs := data.Bag{}

	require.Nil(t, f.translate(Server, kwargs))
	cfg := kwargs.Bag("resource_config")
	assert.Equal(t, "X", cfg.String("image_id"))
	assert.Equal(t, "Y", cfg.String("flavor_id"))
	assert.Equal(t, "vm", cfg.String("name"))
	assert.Equal(t, "#cloud-config", cfg.String("user_data"))
	assert.False(t, cfg.Has("image"))
	assert.False(t, cfg.Has("flavor"))
	assert.False(t, cfg.Bag("kwargs").Has("image"))
	assert.Equal(t, []data.Bag{{"uuid": "net-id"}}, cfg.Bags("networks"))
}

func TestTranslateCreateIsIdempotent(t *testing.T) {
	f := newFixture(t, Server, data.Bag{
		"resource_id": "vm",
		"server":      data.Bag{"image": "ubuntu", "flavor": "m1", "meta": data.Bag{"k": "v"}},
	}, "create")
	f.cloud.Add(openstack.KindImage, data.Bag{"id": "X", "name": "ubuntu"})
	f.cloud.Add(openstack.KindFlavor, data.Bag{"id": "Y", "name": "m1"})
	kwargs := data.Bag{"args": data.Bag{"availability_zone": "nova"}}

	require.Nil(t, f.translate(Server, kwargs))
	first, err := kwargs.Clone()
	require.NoError(t, err)
	require.Nil(t, f.translate(Server, kwargs))
	assert.Equal(t, first, kwargs)
	assert.Equal(t, "ubuntu", f.node.Properties().Bag("server").String("image"))
}

func TestTranslateSecurityGroupRules(t *testing.T) {
	f := newFixture(t, SecurityGroup, data.Bag{
		"resource_id": "web",
		"description": "web servers",
		"rules": []interface{}{
			data.Bag{"port": 80, "remote_group_name": "sg1"},
			data.Bag{"port_range_min": 22, "port_range_max": 22, "remote_ip_prefix": "10.0.0.0/8"},
			data.Bag{"remote_group_node": "other"},
		},
	}, "create")
	f.cloud.Add(openstack.KindSecurityGroup, data.Bag{"id": "R", "name": "sg1"})
	f.relateTo(t, "SecurityGroup", "other", data.Bag{"external_id": "sg-other"})
	kwargs := data.Bag{}

	require.Nil(t, f.translate(SecurityGroup, kwargs))
	rules := kwargs.Bags("security_group_rules")
	require.Len(t, rules, 3)
	assert.Equal(t, data.Bag{
		"direction":        "ingress",
		"ethertype":        "IPv4",
		"port_range_min":   80,
		"port_range_max":   80,
		"protocol":         "tcp",
		"remote_group_id":  "R",
		"remote_ip_prefix": nil,
	}, rules[0])
	assert.Equal(t, "10.0.0.0/8", rules[1].String("remote_ip_prefix"))
	assert.Nil(t, rules[1]["remote_group_id"])
	assert.Equal(t, 22, rules[1]["port_range_min"])
	assert.Equal(t, "sg-other", rules[2].String("remote_group_id"))
	assert.Nil(t, rules[2]["remote_ip_prefix"])
	assert.False(t, rules[2].Has("remote_group_node"))

	cfg := kwargs.Bag("resource_config")
	assert.Equal(t, "web", cfg.String("name"))
	assert.Equal(t, "web servers", cfg.String("description"))
}

func TestTranslateSecurityGroupRuleConflict(t *testing.T) {
	f := newFixture(t, SecurityGroup, data.Bag{
		"rules": []interface{}{data.Bag{"remote_group_id": "a", "remote_group_name": "b"}},
	}, "create")
	xerr := f.translate(SecurityGroup, data.Bag{})
	require.NotNil(t, xerr)
	assert.IsType(t, &fail.ErrInvalidRequest{}, xerr)
}

func TestTranslateExternalResolvesID(t *testing.T) {
	f := newFixture(t, Image, data.Bag{"use_external_resource": true, "resource_id": "ubuntu"}, "create")
	f.cloud.Add(openstack.KindImage, data.Bag{"id": "img-1", "name": "ubuntu"})
	kwargs := data.Bag{}

	require.Nil(t, f.translate(Image, kwargs))
	cfg := kwargs.Bag("resource_config")
	assert.Equal(t, "img-1", cfg.String("id"))
	assert.False(t, cfg.Has("name"))
}

func TestTranslateExternalUnknown(t *testing.T) {
	f := newFixture(t, Image, data.Bag{"use_external_resource": true, "resource_id": "ghost"}, "create")
	xerr := f.translate(Image, data.Bag{})
	require.NotNil(t, xerr)
	assert.IsType(t, &fail.ErrNotFound{}, xerr)
}

func TestTranslateClientConfig(t *testing.T) {
	f := newFixture(t, Network, data.Bag{
		"openstack_config": data.Bag{"username": "u", "region": "RegionOne", "nova_url": "http://nova", "logging": data.Bag{}},
	}, "create")
	kwargs := data.Bag{"openstack_config": data.Bag{"password": "p"}}

	require.Nil(t, f.translate(Network, kwargs))
	assert.Equal(t, data.Bag{"username": "u", "password": "p", "region_name": "RegionOne"}, kwargs.Bag("client_config"))
	assert.False(t, f.node.Properties().Bag("openstack_config").Has("password"))
}

func TestTranslateStrictKindsDropUnknownKeys(t *testing.T) {
	f := newFixture(t, Volume, data.Bag{"resource_id": "data", "volume": data.Bag{"size": 10, "boot": true}}, "create")
	kwargs := data.Bag{}

	require.Nil(t, f.translate(Volume, kwargs))
	assert.Equal(t, data.Bag{"name": "data", "size": 10, "kwargs": data.Bag{}}, kwargs.Bag("resource_config"))
}

func TestTranslateServerGroupPolicy(t *testing.T) {
	f := newFixture(t, ServerGroup, data.Bag{"server_group": data.Bag{"policy": "anti-affinity"}}, "create")
	kwargs := data.Bag{}

	require.Nil(t, f.translate(ServerGroup, kwargs))
	assert.Equal(t, []interface{}{"anti-affinity"}, kwargs.Bag("resource_config").Slice("policies"))
}

func TestTranslatePortAndSubnetNetworkFromRelationship(t *testing.T) {
	f := newFixture(t, Port, data.Bag{"port": data.Bag{"fixed_ip": "10.0.0.5"}}, "create")
	f.relateTo(t, "Network", "net", data.Bag{"id": "net-1"})
	kwargs := data.Bag{}

	require.Nil(t, f.translate(Port, kwargs))
	cfg := kwargs.Bag("resource_config")
	assert.Equal(t, "net-1", cfg.String("network_id"))
	assert.Equal(t, []data.Bag{{"ip_address": "10.0.0.5"}}, cfg.Bags("fixed_ips"))

	f = newFixture(t, Subnet, data.Bag{"subnet": data.Bag{"cidr": "10.0.0.0/24", "ip_version": 4}}, "create")
	f.relateTo(t, "Network", "net", data.Bag{"external_id": "net-2"})
	kwargs = data.Bag{}
	require.Nil(t, f.translate(Subnet, kwargs))
	assert.Equal(t, "net-2", kwargs.Bag("resource_config").String("network_id"))
}

func TestTranslateFloatingIPNetworkName(t *testing.T) {
	f := newFixture(t, FloatingIP, data.Bag{"floatingip": data.Bag{"floating_network_name": "public"}}, "create")
	f.cloud.Add(openstack.KindNetwork, data.Bag{"id": "ext-net", "name": "public"})
	kwargs := data.Bag{}

	require.Nil(t, f.translate(FloatingIP, kwargs))
	cfg := kwargs.Bag("resource_config")
	assert.Equal(t, "ext-net", cfg.String("floating_network_id"))
	assert.False(t, cfg.Has("floating_network_name"))
}

func TestTranslateRouterExternalNetwork(t *testing.T) {
	f := newFixture(t, Router, data.Bag{"resource_id": "r1", "external_network": "public"}, "create")
	f.cloud.Add(openstack.KindNetwork, data.Bag{"id": "ext-net", "name": "public"})
	kwargs := data.Bag{}

	require.Nil(t, f.translate(Router, kwargs))
	kw := kwargs.Bag("resource_config").Bag("kwargs")
	assert.Equal(t, "ext-net", kw.Bag("external_gateway_info").String("network_id"))
}

func TestTranslateRoutes(t *testing.T) {
	route := data.Bag{"destination": "10.10.0.0/16", "nexthop": "10.0.0.1"}
	f := newFixture(t, Routes, data.Bag{"routes": []interface{}{route, route.Merge(data.Bag{})}}, "create")
	f.relateTo(t, "Router", "router", data.Bag{"external_id": "rtr-1"})
	kwargs := data.Bag{}

	require.Nil(t, f.translate(Routes, kwargs))
	cfg := kwargs.Bag("resource_config")
	assert.Equal(t, "rtr-1", cfg.String("id"))
	assert.Len(t, cfg.Slice("routes"), 1)
	assert.Equal(t, "rtr-1", f.instance.RuntimeProperties().String("external_id"))
}

func TestTranslateRoutesMissingRouter(t *testing.T) {
	f := newFixture(t, Routes, data.Bag{"routes": []interface{}{}}, "create")
	xerr := f.translate(Routes, data.Bag{})
	require.NotNil(t, xerr)
	assert.IsType(t, &fail.ErrInvalidRequest{}, xerr)
	assert.Contains(t, xerr.Error(), "router id is missing")
}

func TestTranslateList(t *testing.T) {
	tests := []struct {
		name   string
		tag    Tag
		args   data.Bag
		expect data.Bag
	}{
		{
			name:   "image allow-list and renames",
			tag:    Image,
			args:   data.Bag{"search_opts": data.Bag{"name": "ubuntu"}, "offset": "m", "limit": 5, "bogus": 1},
			expect: data.Bag{"name": "ubuntu", "marker": "m", "limit": 5},
		},
		{
			name:   "server details",
			tag:    Server,
			args:   data.Bag{"detailed": true, "filters": data.Bag{"status": "ACTIVE"}},
			expect: data.Bag{"details": true, "status": "ACTIVE"},
		},
		{
			name:   "network family denies paging keys",
			tag:    Network,
			args:   data.Bag{"retrieve_all": true, "page_reverse": false, "name": "private", "shared": true},
			expect: data.Bag{"name": "private", "shared": true},
		},
		{
			name:   "keypair",
			tag:    KeyPair,
			args:   data.Bag{"user_id": "u", "marker": "m", "limit": 3},
			expect: data.Bag{},
		},
		{
			name:   "no args",
			tag:    Flavor,
			args:   nil,
			expect: data.Bag{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.tag, data.Bag{}, "list")
			kwargs := data.Bag{}
			if tt.args != nil {
				kwargs["args"] = tt.args
			}
			require.Nil(t, f.translate(tt.tag, kwargs))
			assert.False(t, kwargs.Has("args"))
			require.True(t, kwargs.Has("query"))
			assert.Equal(t, tt.expect, kwargs.Bag("query"))
		})
	}
}

func TestTranslateListIdentityDomain(t *testing.T) {
	f := newFixture(t, User, data.Bag{}, "list")
	f.cloud.Add(openstack.KindDomain, data.Bag{"id": "dom-1", "name": "Default"})
	kwargs := data.Bag{"args": data.Bag{"domain": "Default", "enabled": true}}

	require.Nil(t, f.translate(User, kwargs))
	assert.Equal(t, data.Bag{"domain_id": "dom-1", "enabled": true}, kwargs.Bag("query"))
}

func TestTranslateUpdate(t *testing.T) {
	t.Run("identity domain cannot change", func(t *testing.T) {
		f := newFixture(t, User, data.Bag{}, "update")
		xerr := f.translate(User, data.Bag{"args": data.Bag{"domain": "other"}})
		require.NotNil(t, xerr)
		assert.IsType(t, &fail.ErrInvalidRequest{}, xerr)
	})
	t.Run("project update allow-list", func(t *testing.T) {
		f := newFixture(t, Project, data.Bag{"resource_id": "p"}, "update")
		f.cloud.Add(openstack.KindProject, data.Bag{"id": "parent-1", "name": "parent"})
		kwargs := data.Bag{"args": data.Bag{"name": "renamed", "parent": "parent", "color": "blue"}}
		require.Nil(t, f.translate(Project, kwargs))
		assert.Equal(t, data.Bag{"name": "renamed"}, kwargs.Bag("args"))
		assert.False(t, kwargs.Bag("resource_config").Has("name"))
	})
	t.Run("image", func(t *testing.T) {
		f := newFixture(t, Image, data.Bag{}, "update")
		kwargs := data.Bag{"image_id": "img-1", "remove_props": []interface{}{"a"}, "args": data.Bag{"remove_props": []interface{}{"b"}, "min_ram": 512}}
		require.Nil(t, f.translate(Image, kwargs))
		assert.Equal(t, "img-1", kwargs.String("image"))
		assert.False(t, kwargs.Has("remove_props"))
		assert.Equal(t, data.Bag{"min_ram": 512}, kwargs.Bag("args"))
	})
	t.Run("aggregate", func(t *testing.T) {
		f := newFixture(t, HostAggregate, data.Bag{}, "update")
		kwargs := data.Bag{"args": data.Bag{"aggregate": data.Bag{"name": "agg", "availability_zone": "az1"}}}
		require.Nil(t, f.translate(HostAggregate, kwargs))
		assert.Equal(t, data.Bag{"name": "agg", "availability_zone": "az1"}, kwargs.Bag("args"))
	})
}

func TestTranslateUnknownTag(t *testing.T) {
	f := newFixture(t, Flavor, data.Bag{}, "create")
	xerr := f.translate(Tag("Unknown"), data.Bag{})
	require.NotNil(t, xerr)
	assert.IsType(t, &fail.ErrInvalidParameter{}, xerr)
}

func TestParseTagAliases(t *testing.T) {
	tag, ok := ParseTag("WindowsServer")
	require.True(t, ok)
	assert.Equal(t, Server, tag)
	assert.Equal(t, openstack.KindRouter, Routes.Kind())
	_, ok = ParseTag("Share")
	assert.False(t, ok)
	assert.Len(t, Tags(), 17)
}
