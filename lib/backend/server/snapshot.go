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
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/serverstate"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/taskstate"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// snapshotResetKeys are removed once a snapshot is deleted, so the next one starts fresh
var snapshotResetKeys = []string{
	runtimekey.BackupDone, runtimekey.RestoreState, runtimekey.StopServerTask, runtimekey.StartServerTask,
}

// snapshotRequest holds the snapshot inputs of an operation
type snapshotRequest struct {
	Name        string `mapstructure:"snapshot_name"`
	Type        string `mapstructure:"snapshot_type"`
	Rotation    int    `mapstructure:"snapshot_rotation"`
	Incremental bool   `mapstructure:"snapshot_incremental"`
}

func parseSnapshotRequest(req *Request) (snapshotRequest, fail.Error) {
	var out snapshotRequest
	if xerr := req.Decode(&out); xerr != nil {
		xerr.Annotate("field", "snapshot_inputs")
		return out, xerr
	}
	if out.Rotation == 0 {
		out.Rotation = 1
	}
	if out.Type == "" {
		out.Type = "daily"
	}
	err := validation.ValidateStruct(&out,
		validation.Field(&out.Name, validation.Required),
		validation.Field(&out.Rotation, validation.Min(1)),
	)
	if err != nil {
		xerr := fail.InvalidRequestError("invalid snapshot inputs: %v", err)
		xerr.Annotate("field", "snapshot_name")
		return out, xerr
	}
	return out, nil
}

// imageName is the name of the image holding the snapshot
func (s snapshotRequest) imageName() string {
	if s.Incremental {
		return fmt.Sprintf("vm-%s-increment", s.Name)
	}
	return fmt.Sprintf("vm-%s-backup", s.Name)
}

// findImage returns the image named 'name', nil if there is none
func (e *Engine) findImage(ctx context.Context, name string) (data.Bag, fail.Error) {
	images, xerr := e.cloud.List(ctx, openstack.KindImage, data.Bag{"name": name})
	if xerr != nil {
		return nil, xerr
	}
	for _, v := range images {
		if v.String("name") == name {
			return v, nil
		}
	}
	return nil, nil
}

func (e *Engine) snapshotContext(req *Request) (workflow.Instance, string, snapshotRequest, fail.Error) {
	if xerr := e.check(req); xerr != nil {
		return nil, "", snapshotRequest{}, xerr
	}
	inst := req.Context.Instance()
	id, xerr := serverID(inst)
	if xerr != nil {
		return nil, "", snapshotRequest{}, xerr
	}
	snap, xerr := parseSnapshotRequest(req)
	if xerr != nil {
		return nil, "", snapshotRequest{}, xerr
	}
	return inst, id, snap, nil
}

// SnapshotCreate saves the server as an image (incremental snapshot) or as a backup, and waits for the upload to end
func (e *Engine) SnapshotCreate(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	inst, id, snap, xerr := e.snapshotContext(req)
	if xerr != nil {
		return xerr
	}
	name := snap.imageName()

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server.snapshot"), "(%s, %s)", id, name).WithStopwatch().Entering()
	defer tracer.Exiting()

	switch taskOf(inst, runtimekey.BackupDone) {
	case taskstate.Done:
		return nil
	case taskstate.Absent:
		if req.Context.Operation().RetryNumber() == 0 {
			existing, xerr := e.findImage(ctx, name)
			if xerr != nil {
				return xerr
			}
			if existing != nil {
				xerr := fail.DuplicateError("snapshot '%s' already exists", name)
				xerr.Annotate("kind", string(openstack.KindImage))
				xerr.Annotate("id", name)
				return xerr
			}
		}
		if xerr = setTask(ctx, inst, runtimekey.BackupDone, taskstate.Pending); xerr != nil {
			return xerr
		}
		if snap.Incremental {
			_, xerr = e.cloud.CreateServerImage(ctx, id, name, nil)
		} else {
			xerr = e.cloud.BackupServer(ctx, id, name, snap.Type, snap.Rotation)
		}
		if xerr != nil {
			return xerr
		}
	}

	server, xerr := e.getServer(ctx, id)
	if xerr != nil {
		return xerr
	}
	if state := taskState(server); serverstate.IsUploading(state) {
		return workflow.RetryError(0, fmt.Sprintf("waiting for the upload of snapshot '%s' (task state is '%s')", name, state))
	}
	image, xerr := e.findImage(ctx, name)
	if xerr != nil {
		return xerr
	}
	if image != nil {
		switch strings.ToLower(image.String("status")) {
		case "queued", "saving", "uploading", "importing":
			return workflow.RetryStatus("image '"+name+"'", image.String("status"), "active")
		case "killed", "deleted":
			return fail.NotAvailableError("snapshot '%s' failed (status '%s')", name, image.String("status"))
		}
	}
	return setTask(ctx, inst, runtimekey.BackupDone, taskstate.Done)
}

// SnapshotApply restores the server from a snapshot: stop, rebuild from the image, then start
func (e *Engine) SnapshotApply(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	inst, id, snap, xerr := e.snapshotContext(req)
	if xerr != nil {
		return xerr
	}
	name := snap.imageName()

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server.snapshot"), "(%s, %s)", id, name).WithStopwatch().Entering()
	defer tracer.Exiting()

	image, xerr := e.findImage(ctx, name)
	if xerr != nil {
		return xerr
	}
	if image == nil {
		xerr := fail.NotFoundError("snapshot '%s' not found", name)
		xerr.Annotate("kind", string(openstack.KindImage))
		xerr.Annotate("id", name)
		return xerr
	}

	switch taskOf(inst, runtimekey.RestoreState) {
	case taskstate.Absent:
		if xerr = e.step(ctx, inst, id, e.stopTransition()); xerr != nil {
			return xerr
		}
		if xerr = setTask(ctx, inst, runtimekey.RestoreState, taskstate.Pending); xerr != nil {
			return xerr
		}
		if xerr = e.cloud.RebuildServer(ctx, id, image.String("id")); xerr != nil {
			return xerr
		}
		return workflow.RetryError(0, fmt.Sprintf("waiting for server '%s' to be rebuilt from '%s'", id, name))

	case taskstate.Pending:
		server, xerr := e.getServer(ctx, id)
		if xerr != nil {
			return xerr
		}
		if state := taskState(server); state == serverstate.TaskRebuildSpawning {
			return workflow.RetryError(0, fmt.Sprintf("waiting for server '%s' to be rebuilt (task state is '%s')", id, state))
		}
		if status(server) == serverstate.Error {
			return terminalError(id, server, "failed to rebuild")
		}
		props := inst.RuntimeProperties()
		props[runtimekey.RestoreState] = taskstate.RebuildStatus.String()
		delete(props, runtimekey.StartServerTask)
		if xerr = inst.Update(ctx); xerr != nil {
			return xerr
		}
		fallthrough

	case taskstate.RebuildStatus:
		if xerr = e.step(ctx, inst, id, e.startTransition()); xerr != nil {
			return xerr
		}
		return setTask(ctx, inst, runtimekey.RestoreState, taskstate.Done)
	}
	return nil
}

// SnapshotDelete deletes the image of the snapshot, then resets the snapshot task flags
func (e *Engine) SnapshotDelete(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	inst, id, snap, xerr := e.snapshotContext(req)
	if xerr != nil {
		return xerr
	}
	name := snap.imageName()

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server.snapshot"), "(%s, %s)", id, name).WithStopwatch().Entering()
	defer tracer.Exiting()

	image, xerr := e.findImage(ctx, name)
	if xerr != nil {
		return xerr
	}
	if image == nil {
		if req.Context.Operation().RetryNumber() == 0 {
			xerr := fail.NotFoundError("snapshot '%s' not found", name)
			xerr.Annotate("kind", string(openstack.KindImage))
			xerr.Annotate("id", name)
			return xerr
		}
		return resetSnapshot(ctx, inst)
	}

	if strings.ToLower(image.String("status")) == "active" {
		if xerr = e.cloud.Delete(ctx, openstack.KindImage, image.String("id")); xerr != nil && !isNotFound(xerr) {
			return xerr
		}
	}
	if image, xerr = e.findImage(ctx, name); xerr != nil {
		return xerr
	}
	if image != nil {
		return workflow.RetryError(0, fmt.Sprintf("waiting for snapshot '%s' to be deleted (current status is '%s')", name, image.String("status")))
	}
	return resetSnapshot(ctx, inst)
}

func resetSnapshot(ctx context.Context, inst workflow.Instance) fail.Error {
	props := inst.RuntimeProperties()
	for _, k := range snapshotResetKeys {
		delete(props, k)
	}
	return inst.Update(ctx)
}
