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
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Update changes the metadata and the attributes of the server given in operation args, then refreshes its payload
func (e *Engine) Update(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if xerr := e.check(req); xerr != nil {
		return xerr
	}
	inst := req.Context.Instance()
	id, xerr := serverID(inst)
	if xerr != nil {
		return xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server"), "(%s)", id).WithStopwatch().Entering()
	defer tracer.Exiting()

	args, err := req.Args().Clone()
	if err != nil {
		return fail.Wrap(err, "failed to copy operation args")
	}
	if md := args.Bag("metadata"); md != nil {
		metadata := make(map[string]string, len(md))
		for k := range md {
			metadata[k] = md.String(k)
		}
		if xerr = e.cloud.UpdateServerMetadata(ctx, id, metadata); xerr != nil {
			return xerr
		}
	}
	delete(args, "metadata")

	if len(args) > 0 {
		if _, xerr = e.cloud.Update(ctx, openstack.KindServer, id, args); xerr != nil {
			return xerr
		}
	}

	server, xerr := e.getServer(ctx, id)
	if xerr != nil {
		return xerr
	}
	inst.RuntimeProperties()[runtimekey.Payload(string(openstack.KindServer))] = server
	return inst.Update(ctx)
}

// List records in runtime properties the servers matching the operation query
func (e *Engine) List(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if xerr := e.check(req); xerr != nil {
		return xerr
	}

	query := data.Bag{}
	if v := req.Inputs.Bag("query"); v != nil {
		query.ForceMerge(v)
	}
	query.ForceMerge(req.Args())
	if v, ok := req.Input("all_projects"); ok {
		query["all_projects"] = v
	}

	servers, xerr := e.cloud.List(ctx, openstack.KindServer, query)
	if xerr != nil {
		return xerr
	}
	inst := req.Context.Instance()
	inst.RuntimeProperties()[runtimekey.List(string(openstack.KindServer))] = toSlice(servers)
	return inst.Update(ctx)
}
