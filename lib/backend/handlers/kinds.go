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
	mapset "github.com/deckarep/golang-set"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
)

// kindsByTag maps the resource tag of a node type to the kind of resource it manages
var kindsByTag = map[string]openstack.Kind{
	"Server":            openstack.KindServer,
	"WindowsServer":     openstack.KindServer,
	"HostAggregate":     openstack.KindAggregate,
	"ServerGroup":       openstack.KindServerGroup,
	"KeyPair":           openstack.KindKeyPair,
	"Flavor":            openstack.KindFlavor,
	"Image":             openstack.KindImage,
	"Network":           openstack.KindNetwork,
	"Subnet":            openstack.KindSubnet,
	"Port":              openstack.KindPort,
	"Router":            openstack.KindRouter,
	"Routes":            openstack.KindRouter,
	"FloatingIP":        openstack.KindFloatingIP,
	"SecurityGroup":     openstack.KindSecurityGroup,
	"SecurityGroupRule": openstack.KindSecurityGroupRule,
	"RBACPolicy":        openstack.KindRBACPolicy,
	"Volume":            openstack.KindVolume,
	"VolumeType":        openstack.KindVolumeType,
	"VolumeBackup":      openstack.KindBackup,
	"VolumeSnapshot":    openstack.KindSnapshot,
	"User":              openstack.KindUser,
	"Role":              openstack.KindRole,
	"Project":           openstack.KindProject,
	"Domain":            openstack.KindDomain,
	"Zone":              openstack.KindZone,
	"RecordSet":         openstack.KindRecordSet,
	"Share":             openstack.KindShare,
}

// nameless are the kinds whose resources carry no name; no default name is given to them
var nameless = mapset.NewSet(
	openstack.KindFloatingIP, openstack.KindSecurityGroupRule, openstack.KindRBACPolicy,
)

// quotaRef tells which quota limits the number of resources of a kind
type quotaRef struct {
	service   openstack.Service
	quotaType string
}

var quotas = map[openstack.Kind]quotaRef{
	openstack.KindServer:            {openstack.ComputeService, "instances"},
	openstack.KindKeyPair:           {openstack.ComputeService, "key_pairs"},
	openstack.KindServerGroup:       {openstack.ComputeService, "server_groups"},
	openstack.KindNetwork:           {openstack.NetworkService, "network"},
	openstack.KindSubnet:            {openstack.NetworkService, "subnet"},
	openstack.KindPort:              {openstack.NetworkService, "port"},
	openstack.KindRouter:            {openstack.NetworkService, "router"},
	openstack.KindFloatingIP:        {openstack.NetworkService, "floatingip"},
	openstack.KindSecurityGroup:     {openstack.NetworkService, "security_group"},
	openstack.KindSecurityGroupRule: {openstack.NetworkService, "security_group_rule"},
	openstack.KindRBACPolicy:        {openstack.NetworkService, "rbac_policy"},
	openstack.KindVolume:            {openstack.BlockStorageService, "volumes"},
	openstack.KindSnapshot:          {openstack.BlockStorageService, "snapshots"},
	openstack.KindBackup:            {openstack.BlockStorageService, "backups"},
}

// passiveOperations are lifecycle operations with nothing to do for resources other than servers
var passiveOperations = mapset.NewSet(
	"precreate", "configure", "start", "poststart", "prestop", "stop", "poststop",
)
