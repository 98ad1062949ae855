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
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/serverstate"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/taskstate"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// peers returns the server and the other endpoint of a relationship operation, with their cloud ids
func (e *Engine) peers(req *Request) (server, other workflow.Endpoint, serverID, otherID string, xerr fail.Error) {
	if xerr = e.check(req); xerr != nil {
		return nil, nil, "", "", xerr
	}
	if req.Context.Kind() != workflow.RelationshipContext {
		return nil, nil, "", "", fail.InvalidRequestError("operation '%s' must run on a relationship", req.Context.Operation().Name())
	}
	server, other = serverEndpoint(req.Context), otherEndpoint(req.Context)
	if other == nil {
		return nil, nil, "", "", fail.InvalidRequestError("relationship has no target")
	}
	serverID = relationships.InstanceID(server.Instance())
	otherID = relationships.InstanceID(other.Instance())
	if serverID == "" {
		return nil, nil, "", "", fail.InconsistentError("server of node '%s' has no id recorded", server.Node().ID())
	}
	if otherID == "" {
		return nil, nil, "", "", fail.InconsistentError("resource of node '%s' has no id recorded", other.Node().ID())
	}
	return server, other, serverID, otherID, nil
}

// AttachVolume attaches the volume (source of the relationship) to the server (target) and waits for it to be in-use
func (e *Engine) AttachVolume(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	server, volume, srvID, volID, xerr := e.peers(req)
	if xerr != nil {
		return xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server.volume"), "(%s, %s)", srvID, volID).WithStopwatch().Entering()
	defer tracer.Exiting()

	inst := volume.Instance()
	props := inst.RuntimeProperties()
	taskKey := runtimekey.VolumeAttachmentTask(volume.Node().ID(), server.Node().ID())
	idKey := runtimekey.VolumeAttachmentID(volume.Node().ID(), server.Node().ID())

	if taskOf(inst, taskKey) == taskstate.Absent {
		if props.IsSet(idKey) {
			return nil
		}
		if xerr = setTask(ctx, inst, taskKey, taskstate.Pending); xerr != nil {
			return xerr
		}
		device := volume.Node().Properties().String("device_name")
		if device == "auto" {
			device = ""
		}
		attachment, xerr := e.cloud.CreateVolumeAttachment(ctx, srvID, volID, device)
		if xerr != nil {
			return xerr
		}
		props[idKey] = attachment.String("id")
		if xerr = inst.Update(ctx); xerr != nil {
			return xerr
		}
	}

	if xerr = e.waitVolume(ctx, volID, serverstate.VolumeInUse); xerr != nil {
		return xerr
	}
	return setTask(ctx, inst, taskKey, taskstate.Absent)
}

// DetachVolume detaches the volume from the server and waits for it to be available
func (e *Engine) DetachVolume(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	server, volume, srvID, volID, xerr := e.peers(req)
	if xerr != nil {
		return xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server.volume"), "(%s, %s)", srvID, volID).WithStopwatch().Entering()
	defer tracer.Exiting()

	inst := volume.Instance()
	props := inst.RuntimeProperties()
	taskKey := runtimekey.VolumeDetachmentTask(volume.Node().ID(), server.Node().ID())
	idKey := runtimekey.VolumeAttachmentID(volume.Node().ID(), server.Node().ID())

	if taskOf(inst, taskKey) == taskstate.Absent {
		attachmentID := props.String(idKey)
		if attachmentID == "" {
			attachmentID = volID
		}
		if xerr = setTask(ctx, inst, taskKey, taskstate.Pending); xerr != nil {
			return xerr
		}
		if xerr = e.cloud.DeleteVolumeAttachment(ctx, srvID, attachmentID); xerr != nil && !isNotFound(xerr) {
			return xerr
		}
	}

	if xerr = e.waitVolume(ctx, volID, serverstate.VolumeAvailable); xerr != nil {
		return xerr
	}
	delete(props, idKey)
	return setTask(ctx, inst, taskKey, taskstate.Absent)
}

// waitVolume returns a retry signal until volume 'id' reaches status 'target'; an error status is fatal
func (e *Engine) waitVolume(ctx context.Context, id, target string) fail.Error {
	volume, xerr := e.cloud.Get(ctx, openstack.KindVolume, id)
	if xerr != nil {
		return xerr
	}
	current := volume.String("status")
	switch {
	case current == target:
		return nil
	case serverstate.IsVolumeError(current):
		xerr := fail.NotAvailableError("volume '%s' is in error (status '%s')", id, current)
		xerr.Annotate("kind", string(openstack.KindVolume))
		xerr.Annotate("id", id)
		xerr.Annotate("state", current)
		return xerr
	default:
		return workflow.RetryStatus("volume '"+id+"'", current, target)
	}
}

// floatingAddress returns the address of the floating ip 'id'
func (e *Engine) floatingAddress(ctx context.Context, id string) (string, fail.Error) {
	fip, xerr := e.cloud.Get(ctx, openstack.KindFloatingIP, id)
	if xerr != nil {
		return "", xerr
	}
	addr := fip.String("floating_ip_address")
	if addr == "" {
		return "", fail.InconsistentError("floating ip '%s' has no address", id)
	}
	return addr, nil
}

// ConnectFloatingIP associates the floating ip (target of the relationship) to the server
func (e *Engine) ConnectFloatingIP(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	_, _, srvID, fipID, xerr := e.peers(req)
	if xerr != nil {
		return xerr
	}
	addr, xerr := e.floatingAddress(ctx, fipID)
	if xerr != nil {
		return xerr
	}
	return e.cloud.AddFloatingIP(ctx, srvID, addr, req.InputString("fixed_ip"))
}

// DisconnectFloatingIP dissociates the floating ip from the server
func (e *Engine) DisconnectFloatingIP(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	_, _, srvID, fipID, xerr := e.peers(req)
	if xerr != nil {
		return xerr
	}
	addr, xerr := e.floatingAddress(ctx, fipID)
	if xerr != nil {
		if isNotFound(xerr) {
			return nil
		}
		return xerr
	}
	if xerr = e.cloud.RemoveFloatingIP(ctx, srvID, addr); xerr != nil && !isNotFound(xerr) {
		return xerr
	}
	return nil
}

// ConnectSecurityGroup adds the security group (target of the relationship) to the server
func (e *Engine) ConnectSecurityGroup(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	_, _, srvID, sgID, xerr := e.peers(req)
	if xerr != nil {
		return xerr
	}
	return e.cloud.AddSecurityGroup(ctx, srvID, sgID)
}

// DisconnectSecurityGroup removes the security group from the server, then from each port of the server
func (e *Engine) DisconnectSecurityGroup(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	_, _, srvID, sgID, xerr := e.peers(req)
	if xerr != nil {
		return xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server"), "(%s, %s)", srvID, sgID).WithStopwatch().Entering()
	defer tracer.Exiting()

	if xerr = e.cloud.RemoveSecurityGroup(ctx, srvID, sgID); xerr != nil && !isNotFound(xerr) {
		return xerr
	}

	interfaces, xerr := e.cloud.ListServerInterfaces(ctx, srvID)
	if xerr != nil {
		return xerr
	}
	for _, nic := range interfaces {
		portID := nic.String("port_id")
		if portID == "" {
			continue
		}
		port, xerr := e.cloud.Get(ctx, openstack.KindPort, portID)
		if xerr != nil {
			if isNotFound(xerr) {
				continue
			}
			return xerr
		}
		groups := port.Strings("security_groups")
		kept := make([]string, 0, len(groups))
		for _, g := range groups {
			if g != sgID {
				kept = append(kept, g)
			}
		}
		if len(kept) == len(groups) {
			continue
		}
		if xerr = e.cloud.UpdatePortSecurityGroups(ctx, portID, kept); xerr != nil {
			return xerr
		}
	}
	return nil
}
