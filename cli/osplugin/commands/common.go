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
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"github.com/CS-SI/osplugin/lib/backend/config"
	"github.com/CS-SI/osplugin/lib/backend/handlers"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/data/json"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Exit codes of the commands
const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitNotFound     = 4
	ExitPending      = 5
	ExitFatal        = 6
)

var (
	// Settings of the plugin, loaded before any command runs
	Settings config.Settings

	// Connector builds the function opening cloud clients
	Connector = handlers.DefaultConnector

	// Output receives the results of the commands
	Output io.Writer = os.Stdout

	secretKeys = mapset.NewSet("password", "token", "application_credential_secret", "private_key")

	interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
)

var (
	descriptorFlag = cli.StringFlag{
		Name:  "node, n",
		Usage: "node descriptor `FILE` (yaml)",
	}
	operationFlag = cli.StringFlag{
		Name:  "operation, o",
		Value: "create",
		Usage: "`OPERATION` to run; short names are expanded into the lifecycle interfaces",
	}
	targetFlag = cli.StringFlag{
		Name:  "target, t",
		Usage: "runs the relationship operation towards the node `ID`",
	}
	outputFlag = cli.StringFlag{
		Name:  "output",
		Value: "yaml",
		Usage: "output `FORMAT`: yaml or json",
	}
)

// LoadSettings reads the settings from 'dir' and applies them
func LoadSettings(dir string) fail.Error {
	s, xerr := config.Load(dir)
	if xerr != nil {
		return xerr
	}
	if xerr = s.Apply(); xerr != nil {
		return xerr
	}
	Settings = s
	if s.File != "" {
		logrus.Debugf("settings read from '%s'", s.File)
	}
	return nil
}

// ExitOnError converts 'xerr' into the error urfave/cli exits with
func ExitOnError(xerr fail.Error) error {
	if xerr == nil {
		return nil
	}
	return cli.NewExitError(xerr.Error(), exitCode(xerr))
}

func exitCode(xerr fail.Error) int {
	if _, ok := workflow.IsRetry(xerr); ok {
		return ExitPending
	}
	switch {
	case fail.Is[*fail.ErrInvalidRequest](xerr), fail.Is[*fail.ErrInvalidParameter](xerr):
		return ExitInvalidInput
	case fail.Is[*fail.ErrNotFound](xerr):
		return ExitNotFound
	case fail.Is[*workflow.ErrNonRecoverable](xerr):
		return ExitFatal
	default:
		return ExitError
	}
}

// masked returns a copy of 'b' where secret values are hidden
func masked(b data.Bag) data.Bag {
	out := make(data.Bag, len(b))
	for k, v := range b {
		if secretKeys.Contains(k) {
			if s, ok := v.(string); ok && s != "" {
				out[k] = "******"
				continue
			}
		}
		out[k] = maskedValue(v)
	}
	return out
}

func maskedValue(v interface{}) interface{} {
	switch casted := v.(type) {
	case data.Bag:
		return masked(casted)
	case map[string]interface{}:
		return masked(casted)
	case []interface{}:
		out := make([]interface{}, 0, len(casted))
		for _, item := range casted {
			out = append(out, maskedValue(item))
		}
		return out
	case []data.Bag:
		out := make([]interface{}, 0, len(casted))
		for _, item := range casted {
			out = append(out, masked(item))
		}
		return out
	default:
		return v
	}
}

// display writes 'b' to Output in 'format'
func display(format string, b data.Bag) fail.Error {
	var (
		content []byte
		err     error
	)
	switch format {
	case "json":
		content, err = json.MarshalIndent(b, "", "  ")
		if err == nil {
			content = append(content, '\n')
		}
	case "yaml", "":
		content, err = yaml.Marshal(b)
	default:
		return fail.InvalidParameterError("output", "must be 'yaml' or 'json'")
	}
	if err != nil {
		return fail.Wrap(err, "failed to encode result")
	}
	if _, err = Output.Write(content); err != nil {
		return fail.Wrap(err, "failed to write result")
	}
	return nil
}

func waitFor(ctx context.Context, delay time.Duration) fail.Error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fail.AbortedError(ctx.Err(), "interrupted while waiting for the next retry")
	case <-timer.C:
		return nil
	}
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), interruptSignals...)
}
