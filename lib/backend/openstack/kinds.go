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

package openstack

import (
	"net/http"

	mapset "github.com/deckarep/golang-set"

	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Service identifies an OpenStack service endpoint
type Service string

const (
	ComputeService          Service = "compute"
	NetworkService          Service = "network"
	ImageService            Service = "image"
	BlockStorageService     Service = "block_storage"
	IdentityService         Service = "identity"
	DNSService              Service = "dns"
	SharedFileSystemService Service = "shared_file_system"
)

// Kind identifies a resource type managed through the generic CRUD operations
type Kind string

const (
	KindServer            Kind = "server"
	KindAggregate         Kind = "aggregate"
	KindServerGroup       Kind = "server_group"
	KindKeyPair           Kind = "key_pair"
	KindFlavor            Kind = "flavor"
	KindVolumeAttachment  Kind = "volume_attachment"
	KindServerInterface   Kind = "server_interface"
	KindImage             Kind = "image"
	KindNetwork           Kind = "network"
	KindSubnet            Kind = "subnet"
	KindPort              Kind = "port"
	KindRouter            Kind = "router"
	KindFloatingIP        Kind = "floatingip"
	KindSecurityGroup     Kind = "security_group"
	KindSecurityGroupRule Kind = "security_group_rule"
	KindRBACPolicy        Kind = "rbac_policy"
	KindVolume            Kind = "volume"
	KindVolumeType        Kind = "type"
	KindBackup            Kind = "backup"
	KindSnapshot          Kind = "snapshot"
	KindUser              Kind = "user"
	KindRole              Kind = "role"
	KindProject           Kind = "project"
	KindDomain            Kind = "domain"
	KindZone              Kind = "zone"
	KindRecordSet         Kind = "recordset"
	KindShare             Kind = "share"
)

// descriptor tells how a Kind maps onto the REST vocabulary of its service
type descriptor struct {
	service Service
	path    string
	// listPath is used instead of path when listing (ie "servers/detail")
	listPath string
	// singular and plural are the JSON envelopes; an empty singular means the object is not enveloped
	singular string
	plural   string
	// itemWrapped is set when each list item is itself enveloped in singular (keypairs)
	itemWrapped bool
	// idField is the attribute used as identifier, "id" when empty
	idField string
	// updateMethod is PUT or PATCH, empty when the kind cannot be updated
	updateMethod string
	// parentKey tells the resource lives under a parent collection (parentPath/{parent}/path)
	parentKey  string
	parentPath string
	// allProjectsParam is the query parameter implementing all_projects (empty: not forwarded)
	allProjectsParam string
	// parentField is the attribute of a returned item holding the id of its parent
	parentField string
}

var networkFamily = mapset.NewSet(
	KindNetwork, KindSubnet, KindPort, KindRouter, KindFloatingIP,
	KindSecurityGroup, KindSecurityGroupRule, KindRBACPolicy,
)

var allProjectsCapable = mapset.NewSet(
	ComputeService, ImageService, BlockStorageService,
)

var registry = map[Kind]descriptor{
	KindServer:           {service: ComputeService, path: "servers", listPath: "servers/detail", singular: "server", plural: "servers", updateMethod: http.MethodPut, allProjectsParam: "all_tenants"},
	KindAggregate:        {service: ComputeService, path: "os-aggregates", singular: "aggregate", plural: "aggregates", updateMethod: http.MethodPut},
	KindServerGroup:      {service: ComputeService, path: "os-server-groups", singular: "server_group", plural: "server_groups", allProjectsParam: "all_projects"},
	KindKeyPair:          {service: ComputeService, path: "os-keypairs", singular: "keypair", plural: "keypairs", itemWrapped: true, idField: "name"},
	KindFlavor:           {service: ComputeService, path: "flavors", listPath: "flavors/detail", singular: "flavor", plural: "flavors", updateMethod: http.MethodPut},
	KindVolumeAttachment: {service: ComputeService, path: "os-volume_attachments", singular: "volumeAttachment", plural: "volumeAttachments", parentKey: "server_id", parentPath: "servers", parentField: "serverId"},
	KindServerInterface:  {service: ComputeService, path: "os-interface", singular: "interfaceAttachment", plural: "interfaceAttachments", idField: "port_id", parentKey: "server_id", parentPath: "servers"},

	KindImage: {service: ImageService, path: "images", plural: "images", updateMethod: http.MethodPatch},

	KindNetwork:           {service: NetworkService, path: "networks", singular: "network", plural: "networks", updateMethod: http.MethodPut},
	KindSubnet:            {service: NetworkService, path: "subnets", singular: "subnet", plural: "subnets", updateMethod: http.MethodPut},
	KindPort:              {service: NetworkService, path: "ports", singular: "port", plural: "ports", updateMethod: http.MethodPut},
	KindRouter:            {service: NetworkService, path: "routers", singular: "router", plural: "routers", updateMethod: http.MethodPut},
	KindFloatingIP:        {service: NetworkService, path: "floatingips", singular: "floatingip", plural: "floatingips", updateMethod: http.MethodPut},
	KindSecurityGroup:     {service: NetworkService, path: "security-groups", singular: "security_group", plural: "security_groups", updateMethod: http.MethodPut},
	KindSecurityGroupRule: {service: NetworkService, path: "security-group-rules", singular: "security_group_rule", plural: "security_group_rules"},
	KindRBACPolicy:        {service: NetworkService, path: "rbac-policies", singular: "rbac_policy", plural: "rbac_policies", updateMethod: http.MethodPut},

	KindVolume:     {service: BlockStorageService, path: "volumes", listPath: "volumes/detail", singular: "volume", plural: "volumes", updateMethod: http.MethodPut, allProjectsParam: "all_tenants"},
	KindVolumeType: {service: BlockStorageService, path: "types", singular: "volume_type", plural: "volume_types", updateMethod: http.MethodPut},
	KindBackup:     {service: BlockStorageService, path: "backups", listPath: "backups/detail", singular: "backup", plural: "backups", updateMethod: http.MethodPut, allProjectsParam: "all_tenants"},
	KindSnapshot:   {service: BlockStorageService, path: "snapshots", listPath: "snapshots/detail", singular: "snapshot", plural: "snapshots", updateMethod: http.MethodPut, allProjectsParam: "all_tenants"},

	KindUser:    {service: IdentityService, path: "users", singular: "user", plural: "users", updateMethod: http.MethodPatch},
	KindRole:    {service: IdentityService, path: "roles", singular: "role", plural: "roles", updateMethod: http.MethodPatch},
	KindProject: {service: IdentityService, path: "projects", singular: "project", plural: "projects", updateMethod: http.MethodPatch},
	KindDomain:  {service: IdentityService, path: "domains", singular: "domain", plural: "domains", updateMethod: http.MethodPatch},

	KindZone:      {service: DNSService, path: "zones", plural: "zones", updateMethod: http.MethodPatch},
	KindRecordSet: {service: DNSService, path: "recordsets", plural: "recordsets", updateMethod: http.MethodPut, parentKey: "zone_id", parentPath: "zones", parentField: "zone_id"},

	KindShare: {service: SharedFileSystemService, path: "shares", listPath: "shares/detail", singular: "share", plural: "shares", updateMethod: http.MethodPut, allProjectsParam: "all_tenants"},
}

// ServiceOf returns the service hosting the kind
func ServiceOf(kind Kind) (Service, fail.Error) {
	d, xerr := lookup(kind)
	if xerr != nil {
		return "", xerr
	}
	return d.service, nil
}

// IsNetworkFamily tells if lists of kind are implicitly scoped to the current project
func IsNetworkFamily(kind Kind) bool {
	return networkFamily.Contains(kind)
}

// Kinds returns all the registered kinds
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

func lookup(kind Kind) (descriptor, fail.Error) {
	d, ok := registry[kind]
	if !ok {
		return descriptor{}, fail.InvalidParameterError("kind", "unknown resource kind '%s'", kind)
	}
	return d, nil
}

func (d descriptor) id() string {
	if d.idField != "" {
		return d.idField
	}
	return "id"
}
