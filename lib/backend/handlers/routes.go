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
	"github.com/CS-SI/osplugin/lib/backend/compat"
	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// runRoutes runs the operations of Routes nodes, which manage the static routes of an existing router
func (handler *resourceHandler) runRoutes() fail.Error {
	switch handler.op {
	case "create":
		return handler.addRoutes()
	case "delete":
		return handler.removeRoutes()
	}
	if passiveOperations.Contains(handler.op) {
		return nil
	}
	return fail.NotImplementedError("operation '%s' is not supported on routes", handler.op)
}

// routerOfRoutes returns the id of the router the routes apply to
func (handler *resourceHandler) routerOfRoutes() (string, fail.Error) {
	if id := relationships.InstanceID(handler.instance()); id != "" {
		return id, nil
	}
	if rels := relationships.ToTag(handler.instance(), "Router"); len(rels) > 0 {
		if id := relationships.TargetID(rels[0]); id != "" {
			return id, nil
		}
	}
	if ref := handler.cfg.String("id"); ref != "" {
		return handler.resolver.Resolve(handler.ctx, openstack.KindRouter, ref)
	}
	xerr := fail.InvalidRequestError("router id is missing: routes need a relationship to a router or a resource_id")
	xerr.Annotate("field", "router")
	return "", xerr
}

func routeKey(r data.Bag) string {
	return r.String("destination") + "|" + r.String("nexthop")
}

// addRoutes adds the declared routes to the ones of the router
func (handler *resourceHandler) addRoutes() fail.Error {
	id, xerr := handler.routerOfRoutes()
	if xerr != nil {
		return xerr
	}
	router, xerr := handler.cloud.Get(handler.ctx, openstack.KindRouter, id)
	if xerr != nil {
		return xerr
	}

	declared := handler.cfg.Bags("routes")
	if len(declared) == 0 {
		declared = handler.settingBags("routes")
	}
	added := compat.DedupeRoutes(declared)
	merged := compat.DedupeRoutes(append(router.Bags("routes"), bagsOf(added)...))

	inst := handler.instance()
	props := inst.RuntimeProperties()
	props[runtimekey.ID] = id
	props[runtimekey.ExternalID] = id
	props[runtimekey.Routes] = added
	if xerr = inst.Update(handler.ctx); xerr != nil {
		return xerr
	}
	updated, xerr := handler.cloud.Update(handler.ctx, openstack.KindRouter, id, data.Bag{"routes": merged})
	if xerr != nil {
		return xerr
	}
	props[runtimekey.Payload(string(openstack.KindRouter))] = updated
	handler.wctx.Logger().Infof("%d routes set on router '%s'", len(added), id)
	return inst.Update(handler.ctx)
}

// removeRoutes removes from the router the routes recorded by addRoutes
func (handler *resourceHandler) removeRoutes() fail.Error {
	inst := handler.instance()
	id := relationships.InstanceID(inst)
	if id == "" {
		return clearRuntime(handler.ctx, inst)
	}
	router, xerr := handler.cloud.Get(handler.ctx, openstack.KindRouter, id)
	if xerr != nil {
		if isNotFound(xerr) {
			return clearRuntime(handler.ctx, inst)
		}
		return xerr
	}

	ours := map[string]struct{}{}
	for _, r := range inst.RuntimeProperties().Bags(runtimekey.Routes) {
		ours[routeKey(r)] = struct{}{}
	}
	kept := make([]data.Bag, 0)
	for _, r := range router.Bags("routes") {
		if _, ok := ours[routeKey(r)]; !ok {
			kept = append(kept, r)
		}
	}
	if _, xerr = handler.cloud.Update(handler.ctx, openstack.KindRouter, id, data.Bag{"routes": compat.DedupeRoutes(kept)}); xerr != nil && !isNotFound(xerr) {
		return xerr
	}
	return clearRuntime(handler.ctx, inst)
}

func bagsOf(values []interface{}) []data.Bag {
	out := make([]data.Bag, 0, len(values))
	for _, v := range values {
		if b, ok := data.ToBag(v); ok {
			out = append(out, b)
		}
	}
	return out
}

// routerInterface adds (or removes) the subnet or the port of a relationship to (from) the router on its other side
func (handler *resourceHandler) routerInterface(add bool) fail.Error {
	if handler.wctx.Kind() != workflow.RelationshipContext {
		return fail.InvalidRequestError("'%s' must run in a relationship context", handler.op)
	}
	router, other := handler.wctx.Target(), handler.wctx.Source()
	if !relationships.IsNodeOfTag(router.Node(), "Router") {
		router, other = other, router
	}
	if !relationships.IsNodeOfTag(router.Node(), "Router") {
		return fail.InvalidRequestError("'%s' requires a router on one side of the relationship", handler.op)
	}
	routerID := relationships.InstanceID(router.Instance())
	otherID := relationships.InstanceID(other.Instance())
	if routerID == "" || otherID == "" {
		return fail.InconsistentError("router interface requires both ends to have an id recorded")
	}

	var subnetID, portID string
	switch {
	case relationships.IsNodeOfTag(other.Node(), "Subnet"):
		subnetID = otherID
	case relationships.IsNodeOfTag(other.Node(), "Port"):
		portID = otherID
	default:
		return fail.InvalidRequestError("a router interface is made of a subnet or a port")
	}

	if add {
		return handler.cloud.AddRouterInterface(handler.ctx, routerID, subnetID, portID)
	}
	if xerr := handler.cloud.RemoveRouterInterface(handler.ctx, routerID, subnetID, portID); xerr != nil && !isNotFound(xerr) {
		return xerr
	}
	return nil
}
