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


package commands

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/CS-SI/osplugin/cli/osplugin/internal/descriptor"
	"github.com/CS-SI/osplugin/lib/backend/handlers"
	"github.com/CS-SI/osplugin/lib/backend/metrics"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/backend/workflow/local"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// RunCmd runs an operation of a described node instance
var RunCmd = cli.Command{
	Name:  "run",
	Usage: "run an operation on a node instance",
	Flags: []cli.Flag{
		descriptorFlag,
		operationFlag,
		targetFlag,
		outputFlag,
		cli.IntFlag{
			Name:  "retry",
			Usage: "retry `NUMBER` of the first invocation",
		},
		cli.BoolFlag{
			Name:  "retry-until-done, w",
			Usage: "re-invoke the operation while it asks for a retry",
		},
		cli.IntFlag{
			Name:  "max-retries",
			Value: 60,
			Usage: "stop retrying after `COUNT` retries (0 for no limit)",
		},
	},
	Action: func(c *cli.Context) error {
		logrus.Tracef("command: %s %s with args '%s'", "osplugin", c.Command.Name, c.Args())
		if c.String("node") == "" {
			_ = cli.ShowCommandHelp(c, c.Command.Name)
			return ExitOnError(fail.InvalidRequestError("missing mandatory flag --node"))
		}
		return ExitOnError(run(c))
	},
}

func run(c *cli.Context) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	d, xerr := descriptor.Load(c.String("node"))
	if xerr != nil {
		return xerr
	}
	if d.Instance.ID == "" {
		id, xerr := d.GenerateInstanceID()
		if xerr != nil {
			return xerr
		}
		logrus.Warnf("no instance id in descriptor, using '%s'", id)
	}

	store, xerr := local.NewBadgerStore(Settings.StorePath)
	if xerr != nil {
		return xerr
	}
	defer func() {
		if derr := store.Close(); derr != nil {
			logrus.Errorf("failed to close store: %v", derr)
		}
	}()

	ctx, cancel := interruptible()
	defer cancel()

	wctx, xerr := d.Context(ctx, store, c.String("operation"), c.String("target"), c.Int("retry"))
	if xerr != nil {
		return xerr
	}
	dispatcher, xerr := handlers.NewDispatcher(Connector(Settings.RemoteTimeout), Settings.OpenStack)
	if xerr != nil {
		return xerr
	}

	r := runner{
		dispatcher: dispatcher,
		descriptor: d,
		untilDone:  c.Bool("retry-until-done"),
		maxRetries: c.Int("max-retries"),
		wait:       waitFor,
	}
	xerr = r.execute(ctx, wctx)
	if Settings.MetricsFile != "" {
		if err := metrics.WriteTextfile(Settings.MetricsFile); err != nil {
			logrus.Errorf("failed to write metrics to '%s': %v", Settings.MetricsFile, err)
		}
	}
	if xerr != nil {
		return xerr
	}
	return display(c.String("output"), masked(wctx.Instance().RuntimeProperties()))
}

type runner struct {
	dispatcher *handlers.Dispatcher
	descriptor *descriptor.Descriptor
	untilDone  bool
	maxRetries int
	wait       func(context.Context, time.Duration) fail.Error
}

// execute invokes the operation, and invokes it again while it asks for a retry when untilDone is set
func (r runner) execute(ctx context.Context, wctx *local.Context) fail.Error {
	for {
		inputs, xerr := r.descriptor.OperationInputs()
		if xerr != nil {
			return xerr
		}
		xerr = r.dispatcher.Run(ctx, wctx, inputs)
		retry, ok := workflow.IsRetry(xerr)
		if !ok || !r.untilDone {
			return xerr
		}
		if r.maxRetries > 0 && wctx.Operation().RetryNumber() >= r.maxRetries {
			return fail.TimeoutError(xerr, 0, "operation '%s' still pending after %d retries", wctx.Operation().Name(), r.maxRetries)
		}

		wctx.Logger().Infof("retrying in %s: %s", retry.RetryAfter(), retry.UnformattedError())
		if xerr = r.wait(ctx, retry.RetryAfter()); xerr != nil {
			return xerr
		}
		wctx.NextRetry()
	}
}
