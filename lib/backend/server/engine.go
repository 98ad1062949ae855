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

// Package server drives the lifecycle of compute servers as a sequence of retryable steps,
// progress being recorded in the runtime properties of the instance
package server

import (
	"context"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resolver"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/serverstate"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/taskstate"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/valid"
)

// Request is one invocation of a server operation
type Request struct {
	Context workflow.Context
	Config  data.Bag // canonical resource_config of the server
	Inputs  data.Bag // operation inputs
}

// Args returns the 'args' operation input
func (r *Request) Args() data.Bag {
	if r == nil || r.Inputs == nil {
		return data.Bag{}
	}
	if args := r.Inputs.Bag("args"); args != nil {
		return args
	}
	return data.Bag{}
}

// Input returns the value of operation input 'key', looked up in 'args' first
func (r *Request) Input(key string) (interface{}, bool) {
	if v, ok := r.Args().Get(key); ok && v != nil {
		return v, true
	}
	if r == nil || r.Inputs == nil {
		return nil, false
	}
	v, ok := r.Inputs.Get(key)
	return v, ok && v != nil
}

// InputString returns the value of operation input 'key' as a string
func (r *Request) InputString(key string) string {
	v, ok := r.Input(key)
	if !ok {
		return ""
	}
	return data.Bag{key: v}.String(key)
}

// Decode decodes the operation inputs into 'out' following its mapstructure tags, values of 'args' winning
func (r *Request) Decode(out interface{}) fail.Error {
	merged := data.Bag{}
	if r != nil {
		for k, v := range r.Inputs {
			if k != "args" && v != nil {
				merged[k] = v
			}
		}
	}
	for k, v := range r.Args() {
		if v != nil {
			merged[k] = v
		}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fail.ConvertError(err)
	}
	if err = decoder.Decode(map[string]interface{}(merged)); err != nil {
		return fail.InvalidRequestError("invalid operation inputs: %v", err)
	}
	return nil
}

// Engine runs server operations against a cloud
type Engine struct {
	cloud    openstack.Cloud
	resolver *resolver.Resolver
}

// New creates an Engine; a nil resolver is replaced by one working on 'cloud'
func New(cloud openstack.Cloud, res *resolver.Resolver) (*Engine, fail.Error) {
	if valid.IsNil(cloud) {
		return nil, fail.InvalidParameterCannotBeNilError("cloud")
	}
	if res == nil {
		res = resolver.New(cloud)
	}
	return &Engine{cloud: cloud, resolver: res}, nil
}

// IsNull tells if the instance is null
func (e *Engine) IsNull() bool {
	return e == nil || valid.IsNil(e.cloud)
}

func (e *Engine) check(req *Request) fail.Error {
	if e.IsNull() {
		return fail.InvalidInstanceError()
	}
	if req == nil {
		return fail.InvalidParameterCannotBeNilError("req")
	}
	if req.Context == nil {
		return fail.InvalidParameterCannotBeNilError("req.Context")
	}
	if req.Config == nil {
		req.Config = data.Bag{}
	}
	if req.Inputs == nil {
		req.Inputs = data.Bag{}
	}
	return nil
}

// serverEndpoint returns the endpoint of the operation being the server: the node itself,
// or the side of the relationship that is a server
func serverEndpoint(wctx workflow.Context) workflow.Endpoint {
	if wctx.Kind() == workflow.RelationshipContext {
		if src := wctx.Source(); src != nil && relationships.IsNodeOfTag(src.Node(), serverTags...) {
			return src
		}
		if dst := wctx.Target(); dst != nil && relationships.IsNodeOfTag(dst.Node(), serverTags...) {
			return dst
		}
	}
	return wctx.Source()
}

// otherEndpoint returns the side of the relationship that is not the server
func otherEndpoint(wctx workflow.Context) workflow.Endpoint {
	server := serverEndpoint(wctx)
	if server == wctx.Target() {
		return wctx.Source()
	}
	return wctx.Target()
}

var serverTags = []string{"Server", "WindowsServer"}

// serverID returns the id of the server of instance 'inst'
func serverID(inst workflow.Instance) (string, fail.Error) {
	id := relationships.InstanceID(inst)
	if id == "" {
		xerr := fail.InconsistentError("server instance '%s' has no id recorded", inst.ID())
		xerr.Annotate("kind", string(openstack.KindServer))
		return "", xerr
	}
	return id, nil
}

// getServer returns the server 'id'
func (e *Engine) getServer(ctx context.Context, id string) (data.Bag, fail.Error) {
	return e.cloud.Get(ctx, openstack.KindServer, id)
}

func status(server data.Bag) string {
	return strings.ToUpper(server.String("status"))
}

func taskState(server data.Bag) string {
	return strings.ToUpper(server.String(serverstate.TaskStateField))
}

func taskOf(inst workflow.Instance, key string) taskstate.Enum {
	v, _ := inst.RuntimeProperties().Get(key)
	return taskstate.Of(v)
}

// setTask records task flag 'key' and commits the runtime properties
func setTask(ctx context.Context, inst workflow.Instance, key string, state taskstate.Enum) fail.Error {
	props := inst.RuntimeProperties()
	if state == taskstate.Absent {
		delete(props, key)
	} else {
		props[key] = state.String()
	}
	return inst.Update(ctx)
}

// terminalError builds the error of a server in a state it cannot leave
func terminalError(id string, server data.Bag, msg string) fail.Error {
	reason := ""
	if fault := server.Bag("fault"); fault != nil {
		reason = fault.String("message")
	}
	xerr := fail.NotAvailableError("server '%s' %s (status '%s')", id, msg, status(server))
	xerr.Annotate("kind", string(openstack.KindServer))
	xerr.Annotate("id", id)
	xerr.Annotate("state", status(server))
	if reason != "" {
		xerr.Annotate("reason", reason)
	}
	return xerr
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
