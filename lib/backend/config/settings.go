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

// Package config reads the settings of the plugin from a settings file and the environment
package config

import (
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/CS-SI/osplugin/lib/utils/commonlog"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/data/json"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/temporal"
)

const (
	// EnvPrefix prefixes the environment variables overriding settings (OSPLUGIN_LOG_LEVEL for log.level)
	EnvPrefix = "OSPLUGIN"
	// FileName is the name, without extension, of the settings file
	FileName = "osplugin"
)

// Settings of the plugin
type Settings struct {
	LogLevel      string
	Trace         string // JSON trace settings
	StorePath     string // folder of the runtime properties store
	MetricsFile   string // Prometheus textfile written after each run, none when empty
	RetryInterval time.Duration
	RemoteTimeout time.Duration
	OpenStack     data.Bag // client_config used under the one of the nodes
	File          string   // settings file read, empty when none was found
}

// Load reads the settings
// Order of read:
//  1. env var
//  2. settings file content ('dir', then $HOME/.osplugin, then /etc/osplugin)
//  3. default value
func Load(dir string) (Settings, fail.Error) {
	reader := viper.New()
	if dir != "" {
		reader.AddConfigPath(dir)
	}
	reader.AddConfigPath("$HOME/.osplugin")
	reader.AddConfigPath("/etc/osplugin")
	reader.SetConfigName(FileName)

	reader.SetEnvPrefix(EnvPrefix)
	reader.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	reader.AutomaticEnv()

	reader.SetDefault("log.level", "info")
	reader.SetDefault("store.path", "$HOME/.osplugin/store")
	reader.SetDefault("retry.interval", temporal.DefaultRetryInterval)
	reader.SetDefault("remote.timeout", temporal.DefaultRemoteCallTimeout)

	if err := reader.ReadInConfig(); err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			logrus.Debugf("no settings file found, using defaults")
		default:
			return Settings{}, fail.Wrap(err, "failed to read '%s.{yaml,json,toml}' file", FileName)
		}
	}

	trace, xerr := traceSettings(reader.Get("log.trace"))
	if xerr != nil {
		return Settings{}, xerr
	}

	openstack := data.Bag{}
	for k, v := range reader.GetStringMap("openstack") {
		openstack[k] = v
	}

	s := Settings{
		LogLevel:      strings.ToLower(reader.GetString("log.level")),
		Trace:         trace,
		StorePath:     os.ExpandEnv(reader.GetString("store.path")),
		MetricsFile:   reader.GetString("metrics.textfile"),
		RetryInterval: reader.GetDuration("retry.interval"),
		RemoteTimeout: reader.GetDuration("remote.timeout"),
		OpenStack:     openstack,
		File:          reader.ConfigFileUsed(),
	}
	if xerr := s.Validate(); xerr != nil {
		return Settings{}, xerr
	}
	return s, nil
}

// traceSettings returns the trace settings as JSON; they may be written as a JSON string or as a map
func traceSettings(v interface{}) (string, fail.Error) {
	switch casted := v.(type) {
	case nil:
		return "", nil
	case string:
		return casted, nil
	default:
		jsoned, err := json.Marshal(casted)
		if err != nil {
			return "", fail.Wrap(err, "invalid 'log.trace' setting")
		}
		return string(jsoned), nil
	}
}

// Validate checks the content of the settings
func (s Settings) Validate() fail.Error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.LogLevel, validation.In("panic", "fatal", "error", "warn", "warning", "info", "debug", "trace")),
		validation.Field(&s.RetryInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&s.RemoteTimeout, validation.Required, validation.Min(time.Second)),
	)
	if err != nil {
		return fail.InvalidRequestError("invalid settings: %s", err.Error())
	}
	return nil
}

// Apply sets the process-wide parameters: log level, trace settings and delays
func (s Settings) Apply() fail.Error {
	commonlog.SetLevel(s.LogLevel)
	if err := tracing.RegisterTraceSettings(s.Trace); err != nil {
		return fail.Wrap(err, "invalid 'log.trace' setting")
	}
	temporal.SetRetryInterval(s.RetryInterval)
	temporal.SetRemoteCallTimeout(s.RemoteTimeout)
	return nil
}
