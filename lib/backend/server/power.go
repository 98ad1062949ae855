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
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/serverstate"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/taskstate"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// transition describes a power transition driven by a task flag
type transition struct {
	flag     string
	opposite string // flag of the reverse transition, cleared when this one begins
	target   string
	verb     string
	call     func(ctx context.Context, id string) fail.Error
}

func (e *Engine) stopTransition() transition {
	return transition{flag: runtimekey.StopServerTask, opposite: runtimekey.StartServerTask, target: serverstate.Shutoff, verb: "stop", call: e.cloud.StopServer}
}

func (e *Engine) startTransition() transition {
	return transition{flag: runtimekey.StartServerTask, opposite: runtimekey.StopServerTask, target: serverstate.Active, verb: "start", call: e.cloud.StartServer}
}

// step is one invocation of transition 't' on server 'id': it requests the transition once, then returns a retry
// signal until the server reaches the target status
func (e *Engine) step(ctx context.Context, inst workflow.Instance, id string, t transition) fail.Error {
	switch taskOf(inst, t.flag) {
	case taskstate.Done:
		return nil
	case taskstate.Absent:
		server, xerr := e.getServer(ctx, id)
		if xerr != nil {
			return xerr
		}
		inst.RuntimeProperties().Delete(t.opposite)
		if xerr = setTask(ctx, inst, t.flag, taskstate.Pending); xerr != nil {
			return xerr
		}
		if status(server) != t.target {
			if xerr = t.call(ctx, id); xerr != nil {
				return fail.Wrap(xerr, "failed to %s server '%s'", t.verb, id)
			}
		}
	}

	server, xerr := e.getServer(ctx, id)
	if xerr != nil {
		return xerr
	}
	switch status(server) {
	case t.target:
		return setTask(ctx, inst, t.flag, taskstate.Done)
	case serverstate.Error:
		return terminalError(id, server, "failed to "+t.verb)
	default:
		return workflow.RetryStatus("server '"+id+"'", status(server), t.target)
	}
}

// Start starts the server and waits for it to be ACTIVE
func (e *Engine) Start(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if xerr := e.check(req); xerr != nil {
		return xerr
	}
	inst := req.Context.Instance()
	if relationships.IsExternal(req.Context.Node()) {
		return nil
	}
	id, xerr := serverID(inst)
	if xerr != nil {
		return xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server"), "(%s)", id).WithStopwatch().Entering()
	defer tracer.Exiting()

	return e.step(ctx, inst, id, e.startTransition())
}

// Stop detaches the interfaces of the server, stops it and waits for it to be SHUTOFF
// An external server is only disconnected from the interfaces attached to it at creation.
func (e *Engine) Stop(ctx context.Context, req *Request) (ferr fail.Error) {
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

	if relationships.IsExternal(req.Context.Node()) {
		return e.disconnectExternal(ctx, req, id)
	}
	if taskOf(inst, runtimekey.StopServerTask) == taskstate.Absent {
		if xerr = e.detachInterfaces(ctx, id); xerr != nil {
			return xerr
		}
	}
	return e.step(ctx, inst, id, e.stopTransition())
}

// detachInterfaces removes every interface of server 'id'; interfaces already gone are ignored
func (e *Engine) detachInterfaces(ctx context.Context, id string) fail.Error {
	interfaces, xerr := e.cloud.ListServerInterfaces(ctx, id)
	if xerr != nil {
		return xerr
	}
	for _, v := range interfaces {
		port := v.String("port_id")
		if port == "" {
			continue
		}
		if xerr = e.cloud.DeleteServerInterface(ctx, id, port); xerr != nil && !isNotFound(xerr) {
			return xerr
		}
	}
	return nil
}

// Delete deletes the server and waits for it to disappear
func (e *Engine) Delete(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if xerr := e.check(req); xerr != nil {
		return xerr
	}
	inst := req.Context.Instance()
	props := inst.RuntimeProperties()
	requested := taskOf(inst, runtimekey.DeleteServerTask) != taskstate.Absent

	if relationships.IsExternal(req.Context.Node()) {
		return clearRuntime(ctx, inst)
	}

	id := relationships.InstanceID(inst)
	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server"), "(%s)", id).WithStopwatch().Entering()
	defer tracer.Exiting()

	if id == "" {
		if requested {
			return clearRuntime(ctx, inst)
		}
		xerr := fail.NotFoundError("server of instance '%s' has never been created", inst.ID())
		xerr.Annotate("kind", string(openstack.KindServer))
		return xerr
	}

	server, xerr := e.getServer(ctx, id)
	if xerr != nil {
		if !isNotFound(xerr) {
			return xerr
		}
		if requested {
			return clearRuntime(ctx, inst)
		}
		return xerr
	}
	if s := status(server); s == serverstate.Deleted || s == serverstate.SoftDeleted {
		return clearRuntime(ctx, inst)
	}

	if !requested {
		props[runtimekey.DeleteServerTask] = taskstate.Pending.String()
		if xerr = inst.Update(ctx); xerr != nil {
			return xerr
		}
		if xerr = e.cloud.Delete(ctx, openstack.KindServer, id); xerr != nil && !isNotFound(xerr) {
			return xerr
		}
	}
	return workflow.RetryError(0, "waiting for server '"+id+"' to be deleted (current status is '"+status(server)+"')")
}

// clearRuntime removes all runtime properties of the deleted server
func clearRuntime(ctx context.Context, inst workflow.Instance) fail.Error {
	props := inst.RuntimeProperties()
	for k := range props {
		delete(props, k)
	}
	return inst.Update(ctx)
}

type rebootRequest struct {
	Type string `mapstructure:"reboot_type"`
}

// Reboot reboots the server ('reboot_type' input SOFT or HARD) and waits for it to be ACTIVE
func (e *Engine) Reboot(ctx context.Context, req *Request) (ferr fail.Error) {
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

	if req.Context.Operation().RetryNumber() == 0 {
		var reboot rebootRequest
		if xerr = req.Decode(&reboot); xerr != nil {
			xerr.Annotate("field", "reboot_type")
			return xerr
		}
		rebootType := strings.ToUpper(reboot.Type)
		if rebootType == "" {
			rebootType = "SOFT"
		}
		if err := validation.Validate(rebootType, validation.In("HARD", "SOFT")); err != nil {
			xerr := fail.InvalidRequestError("invalid reboot_type '%s': %v", rebootType, err)
			xerr.Annotate("field", "reboot_type")
			return xerr
		}
		if xerr = e.cloud.RebootServer(ctx, id, rebootType); xerr != nil {
			return xerr
		}
	}

	server, xerr := e.getServer(ctx, id)
	if xerr != nil {
		return xerr
	}
	switch s := status(server); {
	case serverstate.IsRebooting(s):
		return workflow.RetryStatus("server '"+id+"'", s, serverstate.Active)
	case s == serverstate.Active:
		return nil
	case s == serverstate.Error:
		return terminalError(id, server, "failed to reboot")
	default:
		return terminalError(id, server, "is in an unexpected state after reboot")
	}
}

// Suspend suspends the server and waits for it to be SUSPENDED
func (e *Engine) Suspend(ctx context.Context, req *Request) fail.Error {
	return e.simpleTransition(ctx, req, "suspend", serverstate.Suspended, e.cloud.SuspendServer)
}

// Resume resumes the server and waits for it to be ACTIVE
func (e *Engine) Resume(ctx context.Context, req *Request) fail.Error {
	return e.simpleTransition(ctx, req, "resume", serverstate.Active, e.cloud.ResumeServer)
}

// simpleTransition requests a transition on the first invocation, then polls the server until it reaches 'target'
func (e *Engine) simpleTransition(ctx context.Context, req *Request, verb, target string, call func(context.Context, string) fail.Error) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if xerr := e.check(req); xerr != nil {
		return xerr
	}
	id, xerr := serverID(req.Context.Instance())
	if xerr != nil {
		return xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server"), "(%s, %s)", id, verb).WithStopwatch().Entering()
	defer tracer.Exiting()

	server, xerr := e.getServer(ctx, id)
	if xerr != nil {
		return xerr
	}
	if req.Context.Operation().RetryNumber() == 0 && status(server) != target {
		if xerr = call(ctx, id); xerr != nil {
			return fail.Wrap(xerr, "failed to %s server '%s'", verb, id)
		}
		if server, xerr = e.getServer(ctx, id); xerr != nil {
			return xerr
		}
	}
	switch status(server) {
	case target:
		return nil
	case serverstate.Error:
		return terminalError(id, server, "failed to "+verb)
	default:
		return workflow.RetryStatus("server '"+id+"'", status(server), target)
	}
}
