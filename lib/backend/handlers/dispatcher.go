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

// Package handlers runs the operations invoked by the workflow host: it translates legacy node shapes,
// connects to the cloud and routes each operation to the server engine or to the generic resource handler
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CS-SI/osplugin/lib/backend/compat"
	"github.com/CS-SI/osplugin/lib/backend/metrics"
	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resolver"
	"github.com/CS-SI/osplugin/lib/backend/server"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Connector opens a Cloud from a client configuration
type Connector func(ctx context.Context, cfg openstack.ClientConfig) (openstack.Cloud, fail.Error)

// DefaultConnector authenticates against OpenStack; a positive 'timeout' bounds each remote call
func DefaultConnector(timeout time.Duration) Connector {
	return func(ctx context.Context, cfg openstack.ClientConfig) (openstack.Cloud, fail.Error) {
		client, xerr := openstack.New(ctx, cfg)
		if xerr != nil {
			return nil, xerr
		}
		if timeout > 0 {
			client.SetTimeout(timeout)
		}
		return client, nil
	}
}

// Dispatcher runs operations for the workflow host
type Dispatcher struct {
	connect  Connector
	defaults data.Bag
}

// NewDispatcher creates a Dispatcher; 'defaults' is the client configuration used under the one of the nodes
func NewDispatcher(connect Connector, defaults data.Bag) (*Dispatcher, fail.Error) {
	if connect == nil {
		return nil, fail.InvalidParameterCannotBeNilError("connect")
	}
	if defaults == nil {
		defaults = data.Bag{}
	}
	return &Dispatcher{connect: connect, defaults: defaults}, nil
}

type serverMethod func(*server.Engine, context.Context, *server.Request) fail.Error

// serverOperations are the operations of server nodes run by the server engine
var serverOperations = map[string]serverMethod{
	"create":              (*server.Engine).Create,
	"configure":           (*server.Engine).Configure,
	"start":               (*server.Engine).Start,
	"stop":                (*server.Engine).Stop,
	"delete":              (*server.Engine).Delete,
	"reboot":              (*server.Engine).Reboot,
	"suspend":             (*server.Engine).Suspend,
	"resume":              (*server.Engine).Resume,
	"update":              (*server.Engine).Update,
	"list":                (*server.Engine).List,
	"creation_validation": (*server.Engine).CreationValidation,
	"snapshot_create":     (*server.Engine).SnapshotCreate,
	"snapshot_apply":      (*server.Engine).SnapshotApply,
	"snapshot_delete":     (*server.Engine).SnapshotDelete,
}

// attachmentOperations are the relationship operations run by the server engine, whatever the side being the server
var attachmentOperations = map[string]serverMethod{
	"attach_volume":             (*server.Engine).AttachVolume,
	"detach_volume":             (*server.Engine).DetachVolume,
	"connect_floating_ip":       (*server.Engine).ConnectFloatingIP,
	"disconnect_floating_ip":    (*server.Engine).DisconnectFloatingIP,
	"connect_security_group":    (*server.Engine).ConnectSecurityGroup,
	"disconnect_security_group": (*server.Engine).DisconnectSecurityGroup,
}

// Run runs the operation of 'wctx'; 'kwargs' are the operation inputs, rewritten in place for legacy nodes.
// A nil error is a success, a *workflow.ErrOperationRetry asks the host to invoke again,
// any other error is a *workflow.ErrNonRecoverable.
func (d *Dispatcher) Run(ctx context.Context, wctx workflow.Context, kwargs data.Bag) (ferr fail.Error) {
	if d == nil || d.connect == nil {
		return fail.InvalidInstanceError()
	}
	if wctx == nil {
		return fail.InvalidParameterCannotBeNilError("wctx")
	}
	if wctx.Node() == nil || wctx.Instance() == nil || wctx.Operation() == nil {
		return fail.InvalidParameterError("wctx", "must carry a node, an instance and an operation")
	}
	if kwargs == nil {
		kwargs = data.Bag{}
	}

	op := workflow.ShortName(wctx.Operation().Name())
	tag, legacy := relationships.TagOf(wctx.Node())
	kind := kindOf(tag, legacy)

	defer func() {
		ferr = conclude(wctx, kind, op, ferr)
	}()
	defer fail.OnPanic(&ferr)

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("handlers"), "(%s, %s, %s)", wctx.Node().ID(), tag, op).WithStopwatch().Entering()
	defer tracer.Exiting()

	if kind == "" {
		xerr := fail.InvalidRequestError("node type '%s' is not handled", wctx.Node().Type())
		xerr.Annotate("field", "type")
		return xerr
	}

	handler, xerr := d.prepare(ctx, wctx, tag, legacy, kind, op, kwargs)
	if xerr != nil {
		return xerr
	}
	return handler.run()
}

// Translate rewrites 'kwargs' to the canonical shape without running the operation: legacy nodes are translated,
// canonical nodes get their merged 'client_config' and 'resource_config'
func (d *Dispatcher) Translate(ctx context.Context, wctx workflow.Context, kwargs data.Bag) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if d == nil || d.connect == nil {
		return fail.InvalidInstanceError()
	}
	if wctx == nil {
		return fail.InvalidParameterCannotBeNilError("wctx")
	}
	if kwargs == nil {
		return fail.InvalidParameterCannotBeNilError("kwargs")
	}

	op := workflow.ShortName(wctx.Operation().Name())
	tag, legacy := relationships.TagOf(wctx.Node())
	kind := kindOf(tag, legacy)
	if kind == "" {
		return fail.InvalidRequestError("node type '%s' is not handled", wctx.Node().Type())
	}
	handler, xerr := d.prepare(ctx, wctx, tag, legacy, kind, op, kwargs)
	if xerr != nil {
		return xerr
	}
	if !legacy {
		kwargs["client_config"] = d.clientConfig(wctx.Node(), false, kwargs)
		kwargs["resource_config"] = handler.cfg
	}
	return nil
}

// kindOf returns the kind of the resources managed by nodes of 'tag', or "" when the tag is unknown
func kindOf(tag string, legacy bool) openstack.Kind {
	if legacy {
		if ltag, ok := compat.ParseTag(tag); ok {
			return ltag.Kind()
		}
		return ""
	}
	return kindsByTag[tag]
}

// clientConfig merges the client configuration of the dispatcher, of the node and of the operation inputs
func (d *Dispatcher) clientConfig(node workflow.Node, legacy bool, kwargs data.Bag) data.Bag {
	out := data.Bag{}
	out.ForceMerge(d.defaults)
	props := node.Properties()
	if legacy {
		legacyConfig := data.Bag{}
		legacyConfig.ForceMerge(props.Bag("openstack_config"))
		legacyConfig.ForceMerge(kwargs.Bag("openstack_config"))
		return out.ForceMerge(compat.ClientConfig(legacyConfig))
	}
	out.ForceMerge(props.Bag("client_config"))
	out.ForceMerge(kwargs.Bag("client_config"))
	return out
}

// prepare connects to the cloud and builds the canonical resource configuration of the operation
func (d *Dispatcher) prepare(
	ctx context.Context, wctx workflow.Context, tag string, legacy bool, kind openstack.Kind, op string, kwargs data.Bag,
) (*resourceHandler, fail.Error) {
	cc, xerr := openstack.DecodeClientConfig(d.clientConfig(wctx.Node(), legacy, kwargs))
	if xerr != nil {
		return nil, xerr
	}
	if xerr = cc.Validate(); xerr != nil {
		return nil, xerr
	}
	cloud, xerr := d.connect(ctx, cc)
	if xerr != nil {
		return nil, xerr
	}
	res := resolver.New(cloud)

	var cfg data.Bag
	if legacy {
		ltag, _ := compat.ParseTag(tag)
		if xerr = compat.Translate(ctx, wctx, res, ltag, kwargs); xerr != nil {
			return nil, xerr
		}
		cfg = kwargs.Bag("resource_config")
		tag = string(ltag)
	} else {
		copied, err := wctx.Node().Properties().Bag("resource_config").Clone()
		if err != nil {
			return nil, fail.Wrap(err, "failed to copy resource_config")
		}
		if copied == nil {
			copied = data.Bag{}
		}
		cfg = copied.ForceMerge(kwargs.Bag("resource_config"))
	}
	if cfg == nil {
		cfg = data.Bag{}
	}
	if wctx.Logger().Logger.IsLevelEnabled(logrus.DebugLevel) {
		wctx.Logger().Debugf("%s %s with resource_config:\n%s", op, kind, debug.Dump(cfg))
	}

	return &resourceHandler{
		ctx:      ctx,
		wctx:     wctx,
		cloud:    cloud,
		resolver: res,
		tag:      tag,
		kind:     kind,
		op:       op,
		cfg:      cfg,
		kwargs:   kwargs,
	}, nil
}

// conclude counts the signal returned to the host and turns every error other than a retry into a non recoverable one
func conclude(wctx workflow.Context, kind openstack.Kind, op string, ferr fail.Error) fail.Error {
	signal := "success"
	if ferr != nil {
		if retry, ok := workflow.IsRetry(ferr); ok {
			signal = "retry"
			wctx.Logger().Infof("%s will be retried in %s: %s", op, retry.RetryAfter(), retry.UnformattedError())
		} else {
			signal = "error"
			ferr = fatal(wctx, kind, op, ferr)
			wctx.Logger().Error(ferr.Error())
		}
	}
	metrics.Signals.WithLabelValues(wctx.Node().Type(), op, signal).Inc()
	return ferr
}

// fatal wraps 'cause' in a non recoverable error annotated with the kind, the identifier and the reason of the failure
func fatal(wctx workflow.Context, kind openstack.Kind, op string, cause fail.Error) fail.Error {
	if fail.Is[*workflow.ErrNonRecoverable](cause) {
		return cause
	}

	kindName := string(kind)
	if v, ok := cause.Annotation("kind"); ok {
		kindName = fmt.Sprint(v)
	}
	id := relationships.InstanceID(wctx.Instance())
	if v, ok := cause.Annotation("id"); ok {
		id = fmt.Sprint(v)
	}
	if id == "" {
		id = wctx.Instance().ID()
	}
	reason := cause.UnformattedError()
	if v, ok := cause.Annotation("reason"); ok {
		reason = fmt.Sprint(v)
	}

	xerr := workflow.NonRecoverableError(cause, "failed to %s %s '%s': %s", op, kindName, id, reason)
	xerr.Annotate("kind", kindName)
	xerr.Annotate("id", id)
	xerr.Annotate("reason", reason)
	xerr.Annotate("operation", op)
	return xerr
}
