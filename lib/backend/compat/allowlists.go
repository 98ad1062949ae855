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
	mapset "github.com/deckarep/golang-set"
)

func setOf(keys ...string) mapset.Set {
	s := mapset.NewThreadUnsafeSet()
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// deprecatedConfigKeys are dropped from openstack_config
var deprecatedConfigKeys = setOf(
	"nova_url", "neutron_url", "custom_configuration", "logging", "start_retry_interval",
	"private_key_path", "status_attempts", "status_timeout",
)

// createAllowLists are the keys of the legacy per-kind bags kept at the top level of resource_config,
// any other key going to resource_config.kwargs
var createAllowLists = map[Tag]mapset.Set{
	Flavor:        setOf("name", "ram", "disk", "vcpus"),
	HostAggregate: setOf("name", "availability_zone"),
	Image:         setOf("name", "container_format", "disk_format", "tags"),
	KeyPair:       setOf("name", "public_key"),
	ServerGroup:   setOf("name", "policies"),
	Server: setOf(
		"name", "description", "image_id", "flavor_id", "availability_zone", "user_data", "metadata",
		"security_groups", "networks", "key_name",
	),
	User:    setOf("domain_id", "default_project_id", "enabled", "name", "description", "email", "password"),
	Project: setOf("parent_id", "name", "is_domain", "description", "domain_id", "enabled", "tags"),
	Volume: setOf(
		"name", "description", "size", "imageRef", "project_id", "multiattach", "availability_zone", "source_volid",
		"consistencygroup_id", "volume_type", "snapshot_id", "metadata", "scheduler_hints",
	),
	Network: setOf("name", "admin_state_up"),
	Subnet: setOf(
		"name", "enable_dhcp", "network_id", "dns_nameservers", "allocation_pools", "host_routes", "ip_version",
		"gateway_ip", "cidr", "prefixlen", "ipv6_address_mode", "ipv6_ra_mode",
	),
	Port: setOf("name", "allowed_address_pairs", "device_id", "device_owner", "fixed_ips", "network_id", "security_groups"),
	FloatingIP: setOf(
		"description", "floating_network_id", "floating_network_name", "fixed_ip_address", "floating_ip_address",
		"port_id", "subnet_id", "dns_domain", "dns_name",
	),
	Router:        setOf("name"),
	Routes:        setOf("name", "routes"),
	SecurityGroup: setOf("name", "description"),
	RBACPolicy:    setOf("target_tenant", "object_type", "object_id", "action"),
}

// updateAllowLists restrict update arguments of identity kinds
var updateAllowLists = map[Tag]mapset.Set{
	User:    setOf("default_project_id", "enabled", "name", "description", "email", "password"),
	Project: setOf("name", "is_domain", "description", "domain_id", "enabled", "tags"),
}

// strictCreate lists the kinds whose keys out of the allow-list are dropped instead of passed through kwargs
var strictCreate = setOf(string(User), string(Project), string(Volume))

// listAllowLists are the query keys accepted by list operations of the kinds having an explicit list
var listAllowLists = map[Tag]mapset.Set{
	Flavor:      setOf("details", "is_public", "min_disk", "min_ram", "sort_key", "sort_dir", "limit", "marker"),
	ServerGroup: setOf("all_projects", "limit", "marker"),
	Image: setOf(
		"name", "visibility", "member_status", "owner", "status", "size_min", "size_max", "protected", "is_hidden",
		"sort_key", "sort_dir", "sort", "tag", "created_at", "updated_at", "limit", "marker",
	),
	Server: setOf(
		"details", "all_projects", "name", "status", "flavor", "image", "host", "changes_since", "ip", "ip6",
		"limit", "marker", "sort_key", "sort_dir", "availability_zone", "tags", "project_id", "user_id", "reservation_id",
	),
	User:    setOf("domain_id", "enabled", "name", "password_expires_at", "limit", "marker"),
	Project: setOf("domain_id", "is_domain", "name", "parent_id", "enabled", "tags", "limit", "marker"),
	Volume:  setOf("details", "all_projects", "name", "status", "project_id", "limit", "marker", "sort_key", "sort_dir"),
}

// listRenames maps legacy query keys to current ones
var listRenames = map[string]string{
	"detailed": "details",
	"offset":   "marker",
}

// listFilterBags are the legacy names of the bags holding list filters
var listFilterBags = []string{"search_opts", "filters", "query"}

var (
	networkListDenied = setOf("retrieve_all", "page_reverse")
	keypairListDenied = setOf("user_id", "marker", "limit")
)
