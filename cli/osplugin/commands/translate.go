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
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/CS-SI/osplugin/cli/osplugin/internal/descriptor"
	"github.com/CS-SI/osplugin/lib/backend/handlers"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// TranslateCmd prints the canonical inputs an operation of a described node runs with
var TranslateCmd = cli.Command{
	Name:  "translate",
	Usage: "print the canonical inputs of an operation",
	Flags: []cli.Flag{
		descriptorFlag,
		operationFlag,
		targetFlag,
		outputFlag,
	},
	Action: func(c *cli.Context) error {
		logrus.Tracef("command: %s %s with args '%s'", "osplugin", c.Command.Name, c.Args())
		if c.String("node") == "" {
			_ = cli.ShowCommandHelp(c, c.Command.Name)
			return ExitOnError(fail.InvalidRequestError("missing mandatory flag --node"))
		}
		return ExitOnError(translate(c))
	},
}

func translate(c *cli.Context) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	d, xerr := descriptor.Load(c.String("node"))
	if xerr != nil {
		return xerr
	}

	ctx, cancel := interruptible()
	defer cancel()

	// runtime properties stay in memory, nothing is recorded
	wctx, xerr := d.Context(ctx, nil, c.String("operation"), c.String("target"), 0)
	if xerr != nil {
		return xerr
	}
	dispatcher, xerr := handlers.NewDispatcher(Connector(Settings.RemoteTimeout), Settings.OpenStack)
	if xerr != nil {
		return xerr
	}
	inputs, xerr := d.OperationInputs()
	if xerr != nil {
		return xerr
	}
	if xerr = dispatcher.Translate(ctx, wctx, inputs); xerr != nil {
		return xerr
	}
	return display(c.String("output"), masked(inputs))
}
