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
	"fmt"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

var serverNetworkRenames = map[string]string{
	"net-id":      "uuid",
	"port-id":     "port",
	"v4-fixed-ip": "fixed_ip",
	"v6-fixed-ip": "fixed_ip",
}

type identityRef struct {
	from, to string
	kind     openstack.Kind
}

var identityRefs = []identityRef{
	{from: "user", to: "user", kind: openstack.KindUser},
	{from: "project", to: "project", kind: openstack.KindProject},
	{from: "parent", to: "parent_id", kind: openstack.KindProject},
	{from: "default_project", to: "default_project_id", kind: openstack.KindProject},
	{from: "domain", to: "domain_id", kind: openstack.KindDomain},
}

// rewrite applies the per-kind rewrites to the legacy bag, before it is split
func (t *translation) rewrite(resource data.Bag) fail.Error {
	switch t.tag {
	case Server:
		return t.rewriteServer(resource)
	case ServerGroup:
		if resource.IsSet("policy") && !resource.IsSet("policies") {
			resource["policies"] = []interface{}{resource["policy"]}
		}
		delete(resource, "policy")
	case User, Project:
		if t.operation == "create" {
			return t.resolveIdentity(resource)
		}
	case SecurityGroup:
		if !resource.IsSet("description") && t.props.IsSet("description") {
			resource["description"] = t.props["description"]
		}
	case Port:
		return t.rewritePort(resource)
	case Subnet:
		t.networkFromRelationship(resource, "network_id")
	case FloatingIP:
		return t.rewriteFloatingIP(resource)
	case Router:
		return t.rewriteRouter(resource)
	}
	return nil
}

func (t *translation) rewriteServer(resource data.Bag) fail.Error {
	resource.Rename("userdata", "user_data")
	resource.Rename("meta", "metadata")

	if networks := resource.Bags("networks"); networks != nil {
		out := make([]interface{}, 0, len(networks))
		for _, nic := range networks {
			entry := data.Bag{}
			for k, v := range nic {
				if renamed, ok := serverNetworkRenames[k]; ok {
					k = renamed
				}
				entry[k] = v
			}
			out = append(out, entry)
		}
		resource["networks"] = out
	}

	if xerr := t.resolveInto(resource, "flavor", "flavor_id", openstack.KindFlavor); xerr != nil {
		return xerr
	}
	return t.resolveInto(resource, "image", "image_id", openstack.KindImage)
}

// resolveIdentity replaces the name-or-id references of identity resources with ids
func (t *translation) resolveIdentity(bag data.Bag) fail.Error {
	for _, ref := range identityRefs {
		if xerr := t.resolveInto(bag, ref.from, ref.to, ref.kind); xerr != nil {
			return xerr
		}
	}
	return nil
}

// networkFromRelationship sets 'field' to the id of the network the node is contained in, when not already set
func (t *translation) networkFromRelationship(resource data.Bag, field string) {
	if resource.IsSet(field) {
		return
	}
	if rels := relationships.ToTag(t.wctx.Instance(), "Network"); len(rels) > 0 {
		if id := relationships.TargetID(rels[0]); id != "" {
			resource[field] = id
		}
	}
}

func (t *translation) rewritePort(resource data.Bag) fail.Error {
	if resource.IsSet("fixed_ip") {
		fixed := resource.Slice("fixed_ips")
		resource["fixed_ips"] = append(fixed, data.Bag{"ip_address": resource["fixed_ip"]})
	}
	delete(resource, "fixed_ip")
	t.networkFromRelationship(resource, "network_id")
	if groups := relationships.TargetIDs(relationships.ToTag(t.wctx.Instance(), "SecurityGroup")); len(groups) > 0 && !resource.IsSet("security_groups") {
		values := make([]interface{}, 0, len(groups))
		for _, v := range groups {
			values = append(values, v)
		}
		resource["security_groups"] = values
	}
	return nil
}

func (t *translation) rewriteFloatingIP(resource data.Bag) fail.Error {
	if !resource.IsSet("floating_network_name") && t.props.IsSet("floating_network_name") {
		resource["floating_network_name"] = t.props["floating_network_name"]
	}
	if resource.IsSet("floating_network_name") && !resource.IsSet("floating_network_id") {
		if xerr := t.resolveInto(resource, "floating_network_name", "floating_network_id", openstack.KindNetwork); xerr != nil {
			return xerr
		}
	}
	delete(resource, "floating_network_name")
	t.networkFromRelationship(resource, "floating_network_id")
	return nil
}

func (t *translation) rewriteRouter(resource data.Bag) fail.Error {
	external := t.props.String("external_network")
	if external == "" {
		if rels := relationships.ToTag(t.wctx.Instance(), "Network"); len(rels) > 0 {
			external = relationships.TargetID(rels[0])
		}
	}
	if external == "" || resource.IsSet("external_gateway_info") {
		return nil
	}
	id, xerr := t.resolver.Resolve(t.ctx, openstack.KindNetwork, external)
	if xerr != nil {
		xerr.Annotate("field", "external_network")
		return xerr
	}
	resource["external_gateway_info"] = data.Bag{"network_id": id}
	return nil
}

// complete applies the rewrites needing the split resource_config
func (t *translation) complete(cfg data.Bag) fail.Error {
	switch t.tag {
	case SecurityGroup:
		rules := t.props.Bags("rules")
		out := make([]interface{}, 0, len(rules))
		for i, rule := range rules {
			converted, xerr := t.convertRule(rule)
			if xerr != nil {
				xerr.Annotate("rule", i)
				return xerr
			}
			out = append(out, converted)
		}
		t.kwargs["security_group_rules"] = out
	case Routes:
		return t.completeRoutes(cfg)
	}
	return nil
}

// convertRule merges a legacy rule over the default ingress rule
func (t *translation) convertRule(rule data.Bag) (data.Bag, fail.Error) {
	out := data.Bag{
		"direction":        "ingress",
		"ethertype":        "IPv4",
		"port_range_min":   1,
		"port_range_max":   65535,
		"protocol":         "tcp",
		"remote_group_id":  nil,
		"remote_ip_prefix": "0.0.0.0/0",
	}
	out.ForceMerge(rule)

	if port, ok := out.Get("port"); ok && port != nil {
		out["port_range_min"] = port
		out["port_range_max"] = port
	}
	delete(out, "port")

	count := 0
	for _, k := range []string{"remote_group_id", "remote_group_node", "remote_group_name"} {
		if out.IsSet(k) {
			count++
		}
	}
	if count > 1 {
		xerr := fail.InvalidRequestError("only one of 'remote_group_id', 'remote_group_node' and 'remote_group_name' may be set in a rule")
		xerr.Annotate("field", "rules")
		return nil, xerr
	}

	switch {
	case out.IsSet("remote_group_node"):
		nodeID := out.String("remote_group_node")
		target, ok := relationships.TargetByNodeID(t.wctx.Instance(), nodeID)
		id := ""
		if ok {
			id = target.Instance().RuntimeProperties().String(runtimekey.ExternalID)
		}
		if id == "" {
			xerr := fail.NotFoundError("failed to find the security group of node '%s' among the relationships", nodeID)
			xerr.Annotate("field", "remote_group_node")
			return nil, xerr
		}
		out["remote_group_id"] = id
	case out.IsSet("remote_group_name"):
		id, xerr := t.resolver.Resolve(t.ctx, openstack.KindSecurityGroup, out.String("remote_group_name"))
		if xerr != nil {
			xerr.Annotate("field", "remote_group_name")
			return nil, xerr
		}
		out["remote_group_id"] = id
	}
	if count == 1 {
		out["remote_ip_prefix"] = nil
	}
	delete(out, "remote_group_node")
	delete(out, "remote_group_name")
	return out, nil
}

// completeRoutes finds the router the routes apply to, records it as the resource of the instance and dedupes routes
func (t *translation) completeRoutes(cfg data.Bag) fail.Error {
	var routerID string
	if rels := relationships.ToTag(t.wctx.Instance(), "Router"); len(rels) > 0 {
		routerID = relationships.TargetID(rels[0])
	}
	if routerID == "" {
		ref := t.props.String("resource_id")
		if ref == "" {
			ref = cfg.String("name")
		}
		if ref != "" {
			id, xerr := t.resolver.Resolve(t.ctx, openstack.KindRouter, ref)
			if xerr != nil {
				return xerr
			}
			routerID = id
		}
	}
	if routerID == "" {
		xerr := fail.InvalidRequestError("router id is missing: routes need a relationship to a router or a resource_id")
		xerr.Annotate("field", "router")
		return xerr
	}

	runtime := t.wctx.Instance().RuntimeProperties()
	if runtime.String(runtimekey.ID) != routerID || runtime.String(runtimekey.ExternalID) != routerID {
		runtime[runtimekey.ID] = routerID
		runtime[runtimekey.ExternalID] = routerID
		if xerr := t.wctx.Instance().Update(t.ctx); xerr != nil {
			return xerr
		}
	}
	cfg["id"] = routerID
	cfg["routes"] = DedupeRoutes(cfg.Bags("routes"))
	return nil
}

// DedupeRoutes removes the routes already present, by destination and nexthop
func DedupeRoutes(routes []data.Bag) []interface{} {
	out := make([]interface{}, 0, len(routes))
	seen := map[string]struct{}{}
	for _, r := range routes {
		key := fmt.Sprintf("%s|%s", r.String("destination"), r.String("nexthop"))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, data.Bag{"destination": r.String("destination"), "nexthop": r.String("nexthop")})
	}
	return out
}
