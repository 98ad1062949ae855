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

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/resolver"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// translation carries the state of the translation of the arguments of one operation
type translation struct {
	ctx       context.Context
	wctx      workflow.Context
	resolver  *resolver.Resolver
	tag       Tag
	operation string
	kwargs    data.Bag
	props     data.Bag
}

// Translate rewrites in place the operation arguments 'kwargs' of a node of legacy type 'tag' to the canonical shape:
// kwargs gains 'client_config' and 'resource_config' and, depending on the operation, a rewritten 'query' or 'args'.
// Node properties are left untouched; translating twice gives the same result.
func Translate(ctx context.Context, wctx workflow.Context, res *resolver.Resolver, tag Tag, kwargs data.Bag) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if wctx == nil {
		return fail.InvalidParameterCannotBeNilError("wctx")
	}
	if res == nil {
		return fail.InvalidParameterCannotBeNilError("res")
	}
	if kwargs == nil {
		return fail.InvalidParameterCannotBeNilError("kwargs")
	}
	if _, ok := legacyKinds[tag]; !ok {
		return fail.InvalidParameterError("tag", "'%s' is not a legacy node type", tag)
	}

	operation := workflow.ShortName(wctx.Operation().Name())
	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("compat"), "(%s, %s)", tag, operation).WithStopwatch().Entering()
	defer tracer.Exiting()

	t := &translation{
		ctx:       ctx,
		wctx:      wctx,
		resolver:  res,
		tag:       tag,
		operation: operation,
		kwargs:    kwargs,
	}
	if xerr := t.mergeInputs(); xerr != nil {
		return xerr
	}
	kwargs["client_config"] = t.clientConfig()

	resource, xerr := t.resourceBag()
	if xerr != nil {
		return xerr
	}
	if xerr = t.rewrite(resource); xerr != nil {
		return xerr
	}
	cfg := t.split(resource)
	if xerr = t.identify(cfg); xerr != nil {
		return xerr
	}
	if xerr = t.complete(cfg); xerr != nil {
		return xerr
	}
	kwargs["resource_config"] = cfg

	switch operation {
	case "list":
		return t.rewriteList()
	case "update":
		return t.rewriteUpdate()
	}
	return nil
}

// mergeInputs builds the property view: node properties overridden by openstack_config and resource_id operation inputs
func (t *translation) mergeInputs() fail.Error {
	props, err := t.wctx.Node().Properties().Clone()
	if err != nil {
		return fail.Wrap(err, "failed to copy node properties")
	}
	if props == nil {
		props = data.Bag{}
	}
	if input := t.kwargs.Bag("openstack_config"); input != nil {
		props.EnsureBag("openstack_config").ForceMerge(input)
	}
	if t.kwargs.IsSet("resource_id") {
		props["resource_id"] = t.kwargs["resource_id"]
	}
	t.props = props
	return nil
}

func (t *translation) clientConfig() data.Bag {
	return ClientConfig(t.props.Bag("openstack_config"))
}

// ClientConfig converts the legacy openstack_config bag to a client_config: deprecated keys are dropped
// and 'region' becomes 'region_name'
func ClientConfig(openstackConfig data.Bag) data.Bag {
	out := data.Bag{}
	for k, v := range openstackConfig {
		if deprecatedConfigKeys.Contains(k) {
			continue
		}
		out[k] = v
	}
	if !out.IsSet("region_name") && out.IsSet("region") {
		out["region_name"] = out["region"]
	}
	delete(out, "region")
	return out
}

// resourceBag returns a copy of the legacy per-kind bag, overridden by operation args on create
func (t *translation) resourceBag() (data.Bag, fail.Error) {
	lk := legacyKinds[t.tag]
	var (
		out data.Bag
		err error
	)
	if t.tag == Routes {
		out = data.Bag{}
		if routes := t.props.Slice("routes"); routes != nil {
			out["routes"] = routes
		}
	} else {
		out, err = t.props.Bag(lk.property).Clone()
		if err != nil {
			return nil, fail.Wrap(err, "failed to copy '%s' property", lk.property)
		}
		if out == nil {
			out = data.Bag{}
		}
	}

	if t.operation == "create" {
		if args := t.kwargs.Bag("args"); args != nil {
			copied, err := args.Clone()
			if err != nil {
				return nil, fail.Wrap(err, "failed to copy operation args")
			}
			out.ForceMerge(copied)
		}
	}
	return out, nil
}

// split puts the allowed keys of 'resource' at the top level of resource_config and the others in kwargs
func (t *translation) split(resource data.Bag) data.Bag {
	allow := createAllowLists[t.tag]
	strict := strictCreate.Contains(string(t.tag))
	cfg := data.Bag{"kwargs": data.Bag{}}
	kw := cfg.Bag("kwargs")
	for k, v := range resource {
		switch {
		case k == "kwargs":
			if inner, ok := data.ToBag(v); ok {
				kw.ForceMerge(inner)
			}
		case allow != nil && allow.Contains(k):
			cfg[k] = v
		case strict:
			// dropped
		default:
			kw[k] = v
		}
	}
	return cfg
}

// identify sets resource_config.id of adopted resources, resource_config.name otherwise (except on update)
func (t *translation) identify(cfg data.Bag) fail.Error {
	resourceID := t.props.String("resource_id")
	if resourceID == "" {
		return nil
	}
	if t.props.Bool("use_external_resource") {
		id, xerr := t.resolver.Resolve(t.ctx, t.tag.Kind(), resourceID)
		if xerr != nil {
			return xerr
		}
		cfg["id"] = id
		return nil
	}
	if t.operation != "update" {
		cfg["name"] = resourceID
	}
	return nil
}

// resolveInto replaces bag[from] (name or id) with bag[to] holding the id of the resource of kind 'kind'
func (t *translation) resolveInto(bag data.Bag, from, to string, kind openstack.Kind) fail.Error {
	if !bag.IsSet(from) {
		if from != to {
			delete(bag, from)
		}
		return nil
	}
	id, xerr := t.resolver.Resolve(t.ctx, kind, bag.String(from))
	if xerr != nil {
		xerr.Annotate("field", from)
		return xerr
	}
	delete(bag, from)
	bag[to] = id
	return nil
}
