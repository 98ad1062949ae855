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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/temporal"
)

func writeSettings(t *testing.T, content string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName+".yaml"), []byte(content), 0600))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s, xerr := Load(t.TempDir())
	require.Nil(t, xerr)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, temporal.DefaultRetryInterval, s.RetryInterval)
	assert.Equal(t, temporal.DefaultRemoteCallTimeout, s.RemoteTimeout)
	assert.Empty(t, s.File)
	assert.Empty(t, s.OpenStack)
	assert.NotContains(t, s.StorePath, "$HOME")
}

func TestLoadFile(t *testing.T) {
	dir := writeSettings(t, `
log:
  level: DEBUG
  trace:
    server: {}
    handlers:
      resource: true
store:
  path: /var/lib/osplugin
metrics:
  textfile: /var/lib/node_exporter/osplugin.prom
retry:
  interval: 10s
openstack:
  auth_url: https://keystone.example.com/v3
  region_name: RegionOne
`)
	s, xerr := Load(dir)
	require.Nil(t, xerr)
	assert.Equal(t, filepath.Join(dir, FileName+".yaml"), s.File)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "/var/lib/osplugin", s.StorePath)
	assert.Equal(t, "/var/lib/node_exporter/osplugin.prom", s.MetricsFile)
	assert.Equal(t, 10*time.Second, s.RetryInterval)
	assert.Equal(t, "RegionOne", s.OpenStack.String("region_name"))
	assert.JSONEq(t, `{"server": {}, "handlers": {"resource": true}}`, s.Trace)
}

func TestLoadEnvironment(t *testing.T) {
	dir := writeSettings(t, "retry:\n  interval: 10s\n")
	t.Setenv("OSPLUGIN_RETRY_INTERVAL", "45s")
	t.Setenv("OSPLUGIN_METRICS_TEXTFILE", "/tmp/osplugin.prom")

	s, xerr := Load(dir)
	require.Nil(t, xerr)
	assert.Equal(t, 45*time.Second, s.RetryInterval)
	assert.Equal(t, "/tmp/osplugin.prom", s.MetricsFile)
}

func TestLoadInvalid(t *testing.T) {
	_, xerr := Load(writeSettings(t, "log:\n  level: loud\n"))
	assert.NotNil(t, xerr)

	_, xerr = Load(writeSettings(t, "retry:\n  interval: 1ms\n"))
	assert.NotNil(t, xerr)

	_, xerr = Load(writeSettings(t, "log: [unterminated\n"))
	assert.NotNil(t, xerr)
}

func TestApply(t *testing.T) {
	s := Settings{LogLevel: "info", Trace: `{"server": {}}`, RetryInterval: 12 * time.Second, RemoteTimeout: time.Minute}
	require.Nil(t, s.Apply())
	defer func() {
		temporal.SetRetryInterval(temporal.DefaultRetryInterval)
		temporal.SetRemoteCallTimeout(temporal.DefaultRemoteCallTimeout)
		_ = tracing.RegisterTraceSettings("")
	}()

	assert.Equal(t, 12*time.Second, temporal.RetryInterval())
	assert.Equal(t, time.Minute, temporal.RemoteCallTimeout())
	assert.True(t, tracing.ShouldTrace("server"))

	s.Trace = "{not json"
	assert.NotNil(t, s.Apply())
}
