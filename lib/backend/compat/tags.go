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
	"github.com/CS-SI/osplugin/lib/backend/openstack"
)

// Tag identifies a legacy node type
type Tag string

// Recognized legacy node types
const (
	Flavor        Tag = "Flavor"
	HostAggregate Tag = "HostAggregate"
	Image         Tag = "Image"
	KeyPair       Tag = "KeyPair"
	ServerGroup   Tag = "ServerGroup"
	User          Tag = "User"
	Project       Tag = "Project"
	Volume        Tag = "Volume"
	Server        Tag = "Server"
	Network       Tag = "Network"
	Subnet        Tag = "Subnet"
	Port          Tag = "Port"
	FloatingIP    Tag = "FloatingIP"
	Router        Tag = "Router"
	Routes        Tag = "Routes"
	SecurityGroup Tag = "SecurityGroup"
	RBACPolicy    Tag = "RBACPolicy"
)

// legacyKind tells where a legacy node keeps its resource bag and what kind of resource it manages
type legacyKind struct {
	property string
	kind     openstack.Kind
}

var legacyKinds = map[Tag]legacyKind{
	Flavor:        {property: "flavor", kind: openstack.KindFlavor},
	HostAggregate: {property: "aggregate", kind: openstack.KindAggregate},
	Image:         {property: "image", kind: openstack.KindImage},
	KeyPair:       {property: "keypair", kind: openstack.KindKeyPair},
	ServerGroup:   {property: "server_group", kind: openstack.KindServerGroup},
	User:          {property: "user", kind: openstack.KindUser},
	Project:       {property: "project", kind: openstack.KindProject},
	Volume:        {property: "volume", kind: openstack.KindVolume},
	Server:        {property: "server", kind: openstack.KindServer},
	Network:       {property: "network", kind: openstack.KindNetwork},
	Subnet:        {property: "subnet", kind: openstack.KindSubnet},
	Port:          {property: "port", kind: openstack.KindPort},
	FloatingIP:    {property: "floatingip", kind: openstack.KindFloatingIP},
	Router:        {property: "router", kind: openstack.KindRouter},
	Routes:        {property: "routes", kind: openstack.KindRouter},
	SecurityGroup: {property: "security_group", kind: openstack.KindSecurityGroup},
	RBACPolicy:    {property: "rbac_policy", kind: openstack.KindRBACPolicy},
}

// aliases are legacy node types handled like another one
var aliases = map[string]Tag{
	"WindowsServer": Server,
}

// ParseTag returns the Tag of a legacy node type name (without prefix)
func ParseTag(name string) (Tag, bool) {
	if alias, ok := aliases[name]; ok {
		return alias, true
	}
	tag := Tag(name)
	_, ok := legacyKinds[tag]
	return tag, ok
}

// Kind returns the resource kind managed by nodes of the tag
func (t Tag) Kind() openstack.Kind {
	return legacyKinds[t].kind
}

// Tags returns all the recognized tags
func Tags() []Tag {
	return []Tag{
		Flavor, HostAggregate, Image, KeyPair, ServerGroup, User, Project, Volume, Server, Network, Subnet, Port,
		FloatingIP, Router, Routes, SecurityGroup, RBACPolicy,
	}
}
