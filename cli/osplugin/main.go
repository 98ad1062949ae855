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


package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/CS-SI/osplugin/cli/osplugin/commands"
	"github.com/CS-SI/osplugin/lib/utils/commonlog"
)

// Version is set at link time
var Version = "dev"

func main() {
	logrus.SetFormatter(commonlog.GetDefaultFormatter())

	app := cli.NewApp()
	app.Writer = os.Stderr
	app.Name = "osplugin"
	app.Usage = "osplugin COMMAND"
	app.Version = Version
	app.Authors = []cli.Author{
		{
			Name:  "CS-SI",
			Email: "safescale@csgroup.eu",
		},
	}

	cli.VersionFlag = cli.BoolFlag{
		Name:  "version, V",
		Usage: "Print program version",
	}

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "look for the osplugin settings file in `DIR` first",
		},
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "Increase verbosity",
		},
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "Show debug information",
		},
	}

	app.Before = func(c *cli.Context) error {
		if xerr := commands.LoadSettings(c.GlobalString("config")); xerr != nil {
			return commands.ExitOnError(xerr)
		}
		if c.GlobalBool("verbose") {
			logrus.SetLevel(logrus.InfoLevel)
		}
		if c.GlobalBool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}

	app.Commands = append(app.Commands, commands.RunCmd, commands.TranslateCmd)
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error Running App : "+err.Error())
		os.Exit(commands.ExitError)
	}
}
