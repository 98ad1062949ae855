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
	"context"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resolver"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/taskstate"
	"github.com/CS-SI/osplugin/lib/backend/server"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// resourceHandler runs one operation on a resource of a kind other than server with plain CRUD calls
type resourceHandler struct {
	ctx      context.Context
	wctx     workflow.Context
	cloud    openstack.Cloud
	resolver *resolver.Resolver
	tag      string
	kind     openstack.Kind
	op       string
	cfg      data.Bag // canonical resource_config
	kwargs   data.Bag // operation inputs
}

func (handler *resourceHandler) run() fail.Error {
	if method, ok := attachmentOperations[handler.op]; ok {
		return handler.runOnServer(method)
	}
	if handler.kind == openstack.KindServer {
		if method, ok := serverOperations[handler.op]; ok {
			return handler.runOnServer(method)
		}
		if passiveOperations.Contains(handler.op) {
			return nil
		}
		return fail.NotImplementedError("operation '%s' is not supported on servers", handler.op)
	}
	if handler.tag == "Routes" {
		return handler.runRoutes()
	}

	switch handler.op {
	case "create":
		return handler.create()
	case "delete":
		return handler.delete()
	case "update":
		return handler.update()
	case "list":
		return handler.list()
	case "get":
		return handler.get()
	case "creation_validation":
		return handler.creationValidation()
	case "add_interface_to_router":
		return handler.routerInterface(true)
	case "remove_interface_from_router":
		return handler.routerInterface(false)
	}
	if passiveOperations.Contains(handler.op) {
		return nil
	}
	return fail.NotImplementedError("operation '%s' is not supported on %s", handler.op, handler.kind)
}

func (handler *resourceHandler) runOnServer(method serverMethod) fail.Error {
	engine, xerr := server.New(handler.cloud, handler.resolver)
	if xerr != nil {
		return xerr
	}
	return method(engine, handler.ctx, &server.Request{Context: handler.wctx, Config: handler.cfg, Inputs: handler.kwargs})
}

func (handler *resourceHandler) instance() workflow.Instance {
	return handler.wctx.Instance()
}

func (handler *resourceHandler) node() workflow.Node {
	return handler.wctx.Node()
}

func (handler *resourceHandler) payloadKey() string {
	return runtimekey.Payload(string(handler.kind))
}

// reference returns the name or id of the resource the node adopts
func (handler *resourceHandler) reference() (string, fail.Error) {
	ref := handler.cfg.String("id")
	if ref == "" {
		ref = handler.node().Properties().String("resource_id")
	}
	if ref == "" {
		xerr := fail.InvalidRequestError("an external %s requires a resource_id", handler.kind)
		xerr.Annotate("field", "resource_id")
		return "", xerr
	}
	return ref, nil
}

// create creates the resource, or adopts it when the node declares an external resource,
// then runs the steps specific to the kind
func (handler *resourceHandler) create() (ferr fail.Error) {
	inst := handler.instance()
	props := inst.RuntimeProperties()

	tracer := debug.NewTracer(handler.ctx, tracing.ShouldTrace("handlers.resource"), "(%s, %s)", handler.kind, inst.ID()).WithStopwatch().Entering()
	defer tracer.Exiting()

	if relationships.IsExternal(handler.node()) {
		return handler.adopt()
	}

	id := props.String(runtimekey.ID)
	var created data.Bag
	if id == "" {
		body, xerr := handler.body()
		if xerr != nil {
			return xerr
		}
		created, xerr = handler.cloud.Create(handler.ctx, handler.kind, body)
		if xerr != nil {
			return xerr
		}
		id = openstack.ResourceID(handler.kind, created)
		if id == "" {
			xerr := fail.InconsistentError("%s created without id", handler.kind)
			xerr.Annotate("kind", string(handler.kind))
			return xerr
		}
		props[runtimekey.ID] = id
		props[runtimekey.ExternalID] = id
		props[runtimekey.ExternalResource] = false
		if handler.kind == openstack.KindKeyPair {
			keepKeys(props, created)
		}
		props[handler.payloadKey()] = created
		if xerr = inst.Update(handler.ctx); xerr != nil {
			return xerr
		}
		handler.wctx.Logger().Infof("%s '%s' created with id '%s'", handler.kind, body.String("name"), id)
	}

	if h, ok := kindHooks[handler.kind]; ok && h.created != nil {
		return h.created(handler, id)
	}
	return nil
}

// adopt records the id of an existing resource
func (handler *resourceHandler) adopt() fail.Error {
	ref, xerr := handler.reference()
	if xerr != nil {
		return xerr
	}
	found, xerr := handler.resolver.Find(handler.ctx, handler.kind, ref)
	if xerr != nil {
		return xerr
	}
	id := openstack.ResourceID(handler.kind, found)
	props := handler.instance().RuntimeProperties()
	props[runtimekey.ID] = id
	props[runtimekey.ExternalID] = id
	props[runtimekey.ExternalResource] = true
	props[handler.payloadKey()] = found
	handler.wctx.Logger().Infof("using existing %s '%s'", handler.kind, id)
	return handler.instance().Update(handler.ctx)
}

// body builds the creation request from the resource configuration: extras are lifted to the top level,
// a default name is given and references held by relationships are filled in
func (handler *resourceHandler) body() (data.Bag, fail.Error) {
	body, err := handler.cfg.Clone()
	if err != nil {
		return nil, fail.Wrap(err, "failed to copy resource_config")
	}
	if extras, ok := body.Pop("kwargs"); ok {
		if inner, ok := data.ToBag(extras); ok {
			body.Merge(inner)
		}
	}
	delete(body, "id")

	if !body.IsSet("name") && !nameless.Contains(handler.kind) {
		name := handler.node().Properties().String("resource_id")
		if name == "" {
			name = handler.instance().ID()
		}
		body["name"] = name
	}

	inst := handler.instance()
	network := func(field string) {
		if body.IsSet(field) {
			return
		}
		if rels := relationships.ToTag(inst, "Network"); len(rels) > 0 {
			if id := relationships.TargetID(rels[0]); id != "" {
				body[field] = id
			}
		}
	}
	switch handler.kind {
	case openstack.KindSubnet:
		network("network_id")
	case openstack.KindPort:
		network("network_id")
		if !body.IsSet("security_groups") {
			if groups := relationships.TargetIDs(relationships.ToTag(inst, "SecurityGroup")); len(groups) > 0 {
				body["security_groups"] = toInterfaces(groups)
			}
		}
	case openstack.KindFloatingIP:
		network("floating_network_id")
	}
	return body, nil
}

// delete deletes the resource and clears the runtime properties; adopted resources are left untouched
func (handler *resourceHandler) delete() fail.Error {
	inst := handler.instance()
	props := inst.RuntimeProperties()

	tracer := debug.NewTracer(handler.ctx, tracing.ShouldTrace("handlers.resource"), "(%s, %s)", handler.kind, inst.ID()).WithStopwatch().Entering()
	defer tracer.Exiting()

	if props.Bool(runtimekey.ExternalResource) || relationships.IsExternal(handler.node()) {
		return clearRuntime(handler.ctx, inst)
	}
	id := relationships.InstanceID(inst)
	if id == "" {
		handler.wctx.Logger().Debugf("%s of instance '%s' has never been created", handler.kind, inst.ID())
		return clearRuntime(handler.ctx, inst)
	}

	if h, ok := kindHooks[handler.kind]; ok && h.deleting != nil {
		if xerr := h.deleting(handler, id); xerr != nil {
			return xerr
		}
	}

	if handler.kind == openstack.KindVolume {
		return handler.deleteVolume(id)
	}

	if xerr := handler.cloud.Delete(handler.ctx, handler.kind, id); xerr != nil && !isNotFound(xerr) {
		return xerr
	}
	handler.wctx.Logger().Infof("%s '%s' deleted", handler.kind, id)
	return clearRuntime(handler.ctx, inst)
}

// deleteVolume requests the deletion once then waits for the volume to disappear
func (handler *resourceHandler) deleteVolume(id string) fail.Error {
	inst := handler.instance()
	props := inst.RuntimeProperties()
	if taskstate.Of(props[runtimekey.DeleteTask]) == taskstate.Absent {
		props[runtimekey.DeleteTask] = taskstate.Pending.String()
		if xerr := inst.Update(handler.ctx); xerr != nil {
			return xerr
		}
		if xerr := handler.cloud.Delete(handler.ctx, openstack.KindVolume, id); xerr != nil {
			if isNotFound(xerr) {
				return clearRuntime(handler.ctx, inst)
			}
			return xerr
		}
	}

	volume, xerr := handler.cloud.Get(handler.ctx, openstack.KindVolume, id)
	if xerr != nil {
		if isNotFound(xerr) {
			return clearRuntime(handler.ctx, inst)
		}
		return xerr
	}
	if s := volume.String("status"); s == "error_deleting" {
		return volumeError(id, volume)
	}
	return workflow.RetryError(0, "waiting for volume '"+id+"' to be deleted (current status is '"+volume.String("status")+"')")
}

// update applies the 'args' operation input to the resource
func (handler *resourceHandler) update() fail.Error {
	args := handler.kwargs.Bag("args")
	if len(args) == 0 {
		return nil
	}
	id := relationships.InstanceID(handler.instance())
	if id == "" {
		return fail.InconsistentError("%s of instance '%s' has no id recorded", handler.kind, handler.instance().ID())
	}
	updated, xerr := handler.cloud.Update(handler.ctx, handler.kind, id, args)
	if xerr != nil {
		return xerr
	}
	handler.instance().RuntimeProperties()[handler.payloadKey()] = updated
	return handler.instance().Update(handler.ctx)
}

// list records the resources of the kind matching the 'query' operation input
func (handler *resourceHandler) list() fail.Error {
	query := data.Bag{}
	query.ForceMerge(handler.kwargs.Bag("query"))
	if handler.kwargs.Bool("all_projects") {
		query["all_projects"] = true
	}
	items, xerr := handler.cloud.List(handler.ctx, handler.kind, query)
	if xerr != nil {
		return xerr
	}
	handler.instance().RuntimeProperties()[runtimekey.List(string(handler.kind))] = toSlice(items)
	return handler.instance().Update(handler.ctx)
}

// get refreshes the recorded payload of the resource
func (handler *resourceHandler) get() fail.Error {
	id := relationships.InstanceID(handler.instance())
	if id == "" {
		return fail.InconsistentError("%s of instance '%s' has no id recorded", handler.kind, handler.instance().ID())
	}
	item, xerr := handler.cloud.Get(handler.ctx, handler.kind, id)
	if xerr != nil {
		return xerr
	}
	handler.instance().RuntimeProperties()[handler.payloadKey()] = item
	return handler.instance().Update(handler.ctx)
}

// creationValidation checks an adopted resource exists, or that the quota of the kind allows one more resource
func (handler *resourceHandler) creationValidation() fail.Error {
	if relationships.IsExternal(handler.node()) {
		ref, xerr := handler.reference()
		if xerr != nil {
			return xerr
		}
		_, xerr = handler.resolver.Find(handler.ctx, handler.kind, ref)
		return xerr
	}

	q, ok := quotas[handler.kind]
	if !ok {
		return nil
	}
	limit, xerr := handler.cloud.GetQuota(handler.ctx, q.service, handler.cloud.ProjectID(), q.quotaType)
	if xerr != nil {
		return xerr
	}
	if limit < 0 || limit >= openstack.InfiniteQuota {
		return nil
	}
	items, xerr := handler.cloud.List(handler.ctx, handler.kind, data.Bag{})
	if xerr != nil {
		return xerr
	}
	if len(items) >= limit {
		xerr := fail.OverloadError("the quota of %d %s is reached", limit, q.quotaType)
		xerr.Annotate("kind", string(handler.kind))
		return xerr
	}
	return nil
}

// clearRuntime removes all runtime properties of the instance
func clearRuntime(ctx context.Context, inst workflow.Instance) fail.Error {
	props := inst.RuntimeProperties()
	for k := range props {
		delete(props, k)
	}
	return inst.Update(ctx)
}

// keepKeys moves the keys of a created keypair out of its payload into runtime properties
func keepKeys(props data.Bag, created data.Bag) {
	if pub := created.String("public_key"); pub != "" {
		props[runtimekey.PublicKey] = pub
	}
	if private, ok := created.Pop("private_key"); ok && private != nil {
		props[runtimekey.PrivateKey] = private
	}
}

func isNotFound(err error) bool {
	return err != nil && fail.Is[*fail.ErrNotFound](err)
}

func toSlice(bags []data.Bag) []interface{} {
	out := make([]interface{}, 0, len(bags))
	for _, v := range bags {
		out = append(out, v)
	}
	return out
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
