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

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// connectExternal adopts an existing server: it records its id, attaches the networks and ports declared by
// relationships that the server does not have yet, then records its addresses
func (e *Engine) connectExternal(ctx context.Context, req *Request) fail.Error {
	node, inst := req.Context.Node(), req.Context.Instance()
	props := inst.RuntimeProperties()

	id := props.String(runtimekey.ID)
	if id == "" {
		ref := req.Config.String("id")
		if ref == "" {
			ref = node.Properties().String("resource_id")
		}
		if ref == "" {
			xerr := fail.InvalidRequestError("an external server requires a resource_id")
			xerr.Annotate("field", "resource_id")
			return xerr
		}
		var xerr fail.Error
		if id, xerr = e.resolver.Resolve(ctx, openstack.KindServer, ref); xerr != nil {
			return xerr
		}
	}

	if rel, xerr := relationships.Single(inst, "KeyPair"); xerr != nil {
		return xerr
	} else if rel != nil {
		if xerr = checkKeyPairOrigin(node, rel); xerr != nil {
			return xerr
		}
	}

	props[runtimekey.ID] = id
	props[runtimekey.ExternalID] = id
	props[runtimekey.ExternalResource] = true
	if xerr := inst.Update(ctx); xerr != nil {
		return xerr
	}

	added := props.Strings(runtimekey.ServerInterfaceIDs)
	ours := map[string]struct{}{}
	for _, v := range added {
		ours[v] = struct{}{}
	}

	existing, xerr := e.cloud.ListServerInterfaces(ctx, id)
	if xerr != nil {
		return xerr
	}
	ports, networks := map[string]struct{}{}, map[string]struct{}{}
	for _, v := range existing {
		if _, ok := ours[v.String("port_id")]; ok {
			continue
		}
		ports[v.String("port_id")] = struct{}{}
		networks[v.String("net_id")] = struct{}{}
	}

	declared := relationships.NicsFromRelationships(inst)
	for _, nic := range declared {
		port, network := nic.String("port"), nic.String("uuid")
		_, portUsed := ports[port]
		_, netUsed := networks[network]
		if (port != "" && portUsed) || (network != "" && netUsed) {
			xerr := fail.InvalidRequestError("network '%s' or port '%s' is already connected to external server '%s'", network, port, id)
			xerr.Annotate("field", "relationships")
			return xerr
		}
	}

	for _, nic := range declared {
		port, network := nic.String("port"), nic.String("uuid")
		if _, ok := ours[port]; ok && port != "" {
			continue
		}
		if network != "" && e.attachedTo(existing, ours, network) {
			continue
		}
		created, xerr := e.cloud.CreateServerInterface(ctx, id, network, port)
		if xerr != nil {
			return xerr
		}
		portID := created.String("port_id")
		added = append(added, portID)
		ours[portID] = struct{}{}
		props[runtimekey.ServerInterfaceIDs] = toInterfaces(added)
		if xerr = inst.Update(ctx); xerr != nil {
			return xerr
		}
	}

	server, xerr := e.getServer(ctx, id)
	if xerr != nil {
		return xerr
	}
	names, xerr := e.networkNames(ctx, append(nicsOf(existing), declared...))
	if xerr != nil {
		return xerr
	}
	props[runtimekey.Networks] = toInterfaces(names)
	props[runtimekey.Payload(string(openstack.KindServer))] = server
	populateAddresses(props, server, node.Properties())
	return inst.Update(ctx)
}

// attachedTo tells if one of the interfaces added by a previous invocation sits on 'network'
func (e *Engine) attachedTo(existing []data.Bag, ours map[string]struct{}, network string) bool {
	for _, v := range existing {
		if _, ok := ours[v.String("port_id")]; ok && v.String("net_id") == network {
			return true
		}
	}
	return false
}

// nicsOf converts server interfaces to nics
func nicsOf(interfaces []data.Bag) []data.Bag {
	out := make([]data.Bag, 0, len(interfaces))
	for _, v := range interfaces {
		if net := v.String("net_id"); net != "" {
			out = append(out, data.Bag{"uuid": net})
		}
	}
	return out
}

// disconnectExternal removes from an external server the interfaces attached by connectExternal
func (e *Engine) disconnectExternal(ctx context.Context, req *Request, id string) fail.Error {
	inst := req.Context.Instance()
	props := inst.RuntimeProperties()
	remaining := props.Strings(runtimekey.ServerInterfaceIDs)
	for len(remaining) > 0 {
		port := remaining[0]
		if xerr := e.cloud.DeleteServerInterface(ctx, id, port); xerr != nil && !isNotFound(xerr) {
			return xerr
		}
		remaining = remaining[1:]
		props[runtimekey.ServerInterfaceIDs] = toInterfaces(remaining)
		if xerr := inst.Update(ctx); xerr != nil {
			return xerr
		}
	}
	return nil
}
