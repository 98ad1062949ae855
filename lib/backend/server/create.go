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

package server

import (
	"context"
	"encoding/base64"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/template"
)

// Create creates the server, or adopts it when the node declares an external resource
func (e *Engine) Create(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if xerr := e.check(req); xerr != nil {
		return xerr
	}
	node, inst := req.Context.Node(), req.Context.Instance()

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server"), "(%s)", inst.ID()).WithStopwatch().Entering()
	defer tracer.Exiting()

	if relationships.IsExternal(node) {
		return e.connectExternal(ctx, req)
	}

	props := inst.RuntimeProperties()
	if props.IsSet(runtimekey.ID) {
		req.Context.Logger().Debugf("server '%s' already created", props.String(runtimekey.ID))
		return nil
	}

	body, names, xerr := e.buildConfig(ctx, req)
	if xerr != nil {
		return xerr
	}

	props[runtimekey.Networks] = toInterfaces(names)
	if xerr = inst.Update(ctx); xerr != nil {
		return xerr
	}

	created, xerr := e.cloud.Create(ctx, openstack.KindServer, body)
	if xerr != nil {
		return xerr
	}
	id := created.String("id")
	if id == "" {
		return fail.InconsistentError("server created without id")
	}
	props[runtimekey.ID] = id
	props[runtimekey.ExternalID] = id
	props[runtimekey.Payload(string(openstack.KindServer))] = created
	if pwd := created.String("adminPass"); pwd != "" && !node.Properties().Bool("use_password") {
		props[runtimekey.AdminPassword] = pwd
	}
	req.Context.Logger().Infof("server '%s' created with id '%s'", body.String("name"), id)
	return inst.Update(ctx)
}

// buildConfig merges the server configuration of the node with relationships and operation args into the body
// of the server creation request; it also returns the ordered names of the networks of the server
func (e *Engine) buildConfig(ctx context.Context, req *Request) (data.Bag, []string, fail.Error) {
	node, inst := req.Context.Node(), req.Context.Instance()
	allowMultiple := node.Properties().Bool("allow_multiple")

	cfg, err := req.Config.Clone()
	if err != nil {
		return nil, nil, fail.Wrap(err, "failed to copy resource_config")
	}
	body := data.Bag{}
	if extras := cfg.Bag("kwargs"); extras != nil {
		body.ForceMerge(extras)
	}
	delete(cfg, "kwargs")
	body.ForceMerge(cfg)
	args, err := req.Args().Clone()
	if err != nil {
		return nil, nil, fail.Wrap(err, "failed to copy operation args")
	}
	body.ForceMerge(args)
	if !body.IsSet("name") {
		body["name"] = inst.ID()
	}

	if xerr := userData(body, req); xerr != nil {
		return nil, nil, xerr
	}

	nics, xerr := relationships.MergeNics(body.Bags("networks"), relationships.NicsFromRelationships(inst), allowMultiple, e.portNetwork(ctx))
	if xerr != nil {
		return nil, nil, xerr
	}
	names, xerr := e.networkNames(ctx, nics)
	if xerr != nil {
		return nil, nil, xerr
	}
	delete(body, "networks")
	if len(nics) > 0 {
		body["networks"] = toSlice(nics)
	}

	mappings, xerr := relationships.MergeBlockDevices(body.Bags("block_device_mapping_v2"), relationships.BootVolumeMappings(inst), allowMultiple)
	if xerr != nil {
		return nil, nil, xerr
	}

	if xerr = e.keyName(body, req, allowMultiple); xerr != nil {
		return nil, nil, xerr
	}
	if xerr = e.serverGroup(ctx, body, inst, allowMultiple); xerr != nil {
		return nil, nil, xerr
	}

	declared := groupNames(body)
	delete(body, "security_groups")
	if groups := relationships.MergeSecurityGroups(declared, inst); len(groups) > 0 {
		list := make([]interface{}, 0, len(groups))
		for _, v := range groups {
			list = append(list, data.Bag{"name": v})
		}
		body["security_groups"] = list
	}

	if xerr = e.flavorAndImage(ctx, body, mappings); xerr != nil {
		return nil, nil, xerr
	}
	return body, names, nil
}

// groupNames returns the security groups of the body, given as names or as {name: ...} entries
func groupNames(body data.Bag) []string {
	var out []string
	for _, v := range body.Slice("security_groups") {
		if s, ok := v.(string); ok {
			out = append(out, s)
			continue
		}
		if entry, ok := data.ToBag(v); ok && entry.String("name") != "" {
			out = append(out, entry.String("name"))
		}
	}
	return out
}

// userData renders user_data when it is given as a template and encodes it, unless 'user_data_encoded' tells
// the content is base64 already
func userData(body data.Bag, req *Request) fail.Error {
	encoded := body.Bool("user_data_encoded")
	delete(body, "user_data_encoded")
	raw, ok := body.Get("user_data")
	if !ok || raw == nil {
		delete(body, "user_data")
		return nil
	}
	var content string
	if tmpl, ok := data.ToBag(raw); ok {
		rendered, xerr := template.Render("user_data", tmpl.String("template"), map[string]interface{}(templateVars(tmpl, req)))
		if xerr != nil {
			xerr.Annotate("field", "user_data")
			return xerr
		}
		content = rendered
	} else {
		content = body.String("user_data")
	}
	if content == "" {
		delete(body, "user_data")
		return nil
	}
	if !encoded {
		content = base64.StdEncoding.EncodeToString([]byte(content))
	} else if _, err := base64.StdEncoding.DecodeString(content); err != nil {
		xerr := fail.InvalidRequestError("user_data is declared encoded but is not valid base64: %v", err)
		xerr.Annotate("field", "user_data")
		return xerr
	}
	body["user_data"] = content
	return nil
}

// templateVars are the variables available to a user_data template: its own 'vars', the node properties and the instance id
func templateVars(tmpl data.Bag, req *Request) data.Bag {
	vars := data.Bag{
		"instance_id": req.Context.Instance().ID(),
		"node":        map[string]interface{}(req.Context.Node().Properties()),
	}
	if own := tmpl.Bag("vars"); own != nil {
		vars.ForceMerge(own)
	}
	return vars
}

// portNetwork returns the network of a port, through the resolver
func (e *Engine) portNetwork(ctx context.Context) relationships.PortNetworkFunc {
	return func(portID string) (string, fail.Error) {
		port, xerr := e.resolver.Find(ctx, openstack.KindPort, portID)
		if xerr != nil {
			return "", xerr
		}
		return port.String("network_id"), nil
	}
}

// networkNames returns the names of the networks of 'nics', in order
func (e *Engine) networkNames(ctx context.Context, nics []data.Bag) ([]string, fail.Error) {
	names := make([]string, 0, len(nics))
	seen := map[string]struct{}{}
	for _, nic := range nics {
		netID := nic.String("uuid")
		if netID == "" && nic.IsSet("port") {
			var xerr fail.Error
			netID, xerr = e.portNetwork(ctx)(nic.String("port"))
			if xerr != nil {
				return nil, xerr
			}
		}
		if netID == "" {
			continue
		}
		network, xerr := e.resolver.Find(ctx, openstack.KindNetwork, netID)
		if xerr != nil {
			return nil, xerr
		}
		name := network.String("name")
		if name == "" {
			name = netID
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// keyName sets key_name from the node or from the relationship to a keypair
func (e *Engine) keyName(body data.Bag, req *Request, allowMultiple bool) fail.Error {
	rel, xerr := relationships.Single(req.Context.Instance(), "KeyPair")
	if xerr != nil {
		return xerr
	}
	fromRel := ""
	if rel != nil {
		if xerr = checkKeyPairOrigin(req.Context.Node(), rel); xerr != nil {
			return xerr
		}
		fromRel = relationships.TargetID(rel)
	}
	name, xerr := relationships.SingleSource("key_name", body.String("key_name"), fromRel, allowMultiple)
	if xerr != nil {
		return xerr
	}
	delete(body, "key_name")
	if name != "" {
		body["key_name"] = name
	}
	return nil
}

// checkKeyPairOrigin requires the keypair to be external exactly when the server is
func checkKeyPairOrigin(server workflow.Node, rel workflow.Relationship) fail.Error {
	serverExternal := relationships.IsExternal(server)
	keyExternal := relationships.IsExternal(rel.Target().Node())
	if serverExternal == keyExternal {
		return nil
	}
	xerr := fail.InvalidRequestError("keypair '%s' must use an external resource exactly when the server does", rel.Target().Node().ID())
	xerr.Annotate("field", "use_external_resource")
	return xerr
}

// serverGroup sets the scheduler hint 'group' from the node or from the relationship to a server group
func (e *Engine) serverGroup(ctx context.Context, body data.Bag, inst workflow.Instance, allowMultiple bool) fail.Error {
	hints := data.Bag{}
	if v := body.Bag("scheduler_hints"); v != nil {
		hints.ForceMerge(v)
	}
	delete(body, "scheduler_hints")

	rel, xerr := relationships.Single(inst, "ServerGroup")
	if xerr != nil {
		return xerr
	}
	group, xerr := relationships.SingleSource("scheduler_hints.group", hints.String("group"), relationships.TargetID(rel), allowMultiple)
	if xerr != nil {
		return xerr
	}
	if group != "" {
		id, xerr := e.resolver.Resolve(ctx, openstack.KindServerGroup, group)
		if xerr != nil {
			xerr.Annotate("field", "scheduler_hints.group")
			return xerr
		}
		hints["group"] = id
	}
	if len(hints) > 0 {
		body["os:scheduler_hints"] = hints
	}
	return nil
}

// flavorAndImage resolves flavor and image, then sets flavorRef, imageRef and block_device_mapping_v2
func (e *Engine) flavorAndImage(ctx context.Context, body data.Bag, mappings []data.Bag) fail.Error {
	flavor := body.String("flavor_id")
	if flavor == "" {
		flavor = body.String("flavor")
	}
	delete(body, "flavor_id")
	delete(body, "flavor")
	if flavor == "" {
		xerr := fail.InvalidRequestError("a flavor is required to create a server")
		xerr.Annotate("field", "flavor_id")
		return xerr
	}
	flavorID, xerr := e.resolver.Resolve(ctx, openstack.KindFlavor, flavor)
	if xerr != nil {
		xerr.Annotate("field", "flavor")
		return xerr
	}
	body["flavorRef"] = flavorID

	image := body.String("image_id")
	if image == "" {
		image = body.String("image")
	}
	delete(body, "image_id")
	delete(body, "image")
	delete(body, "block_device_mapping_v2")

	if relationships.HasBootVolume(mappings) {
		body["block_device_mapping_v2"] = toSlice(mappings)
		return nil
	}
	if image == "" {
		xerr := fail.InvalidRequestError("an image or a bootable volume is required to create a server")
		xerr.Annotate("field", "image_id")
		return xerr
	}
	imageID, xerr := e.resolver.Resolve(ctx, openstack.KindImage, image)
	if xerr != nil {
		xerr.Annotate("field", "image")
		return xerr
	}
	body["imageRef"] = imageID
	if len(mappings) > 0 {
		all := append([]data.Bag{relationships.ImageMapping(imageID)}, mappings...)
		body["block_device_mapping_v2"] = toSlice(all)
	}
	return nil
}

// CreationValidation checks an external server exists, or that the compute quota allows one more server
func (e *Engine) CreationValidation(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if xerr := e.check(req); xerr != nil {
		return xerr
	}
	node := req.Context.Node()
	if relationships.IsExternal(node) {
		ref := req.Config.String("id")
		if ref == "" {
			ref = node.Properties().String("resource_id")
		}
		if ref == "" {
			xerr := fail.InvalidRequestError("an external server requires a resource_id")
			xerr.Annotate("field", "resource_id")
			return xerr
		}
		_, xerr := e.resolver.Find(ctx, openstack.KindServer, ref)
		return xerr
	}

	quota, xerr := e.cloud.GetQuota(ctx, openstack.ComputeService, e.cloud.ProjectID(), "instances")
	if xerr != nil {
		return xerr
	}
	if quota >= openstack.InfiniteQuota {
		return nil
	}
	servers, xerr := e.cloud.List(ctx, openstack.KindServer, data.Bag{})
	if xerr != nil {
		return xerr
	}
	if len(servers) >= quota {
		xerr := fail.OverloadError("the quota of %d servers is reached", quota)
		xerr.Annotate("kind", string(openstack.KindServer))
		return xerr
	}
	return nil
}
