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


package descriptor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/backend/workflow/local"
	"github.com/CS-SI/osplugin/lib/utils/data"
)

const sample = `
node:
  id: web
  type: cloudify.nodes.openstack.Server
  properties:
    client_config:
      region_name: RegionOne
    resource_config:
      name: web
      flavor_id: flv-1
instance:
  id: web_abc
  runtime_properties:
    external_type: server
relationships:
  - type: cloudify.relationships.openstack.server_connected_to_keypair
    hierarchy: [cloudify.relationships.connected_to]
    target:
      node:
        id: key
        type: cloudify.nodes.openstack.KeyPair
      instance:
        id: key_1
        runtime_properties:
          id: kp-1
inputs:
  resource_config:
    image_id: img-1
`

func TestParse(t *testing.T) {
	d, xerr := Parse([]byte(sample))
	require.Nil(t, xerr)
	assert.Equal(t, "web", d.Node.ID)
	assert.Equal(t, "RegionOne", data.Bag(d.Node.Properties).Bag("client_config").String("region_name"))
	require.Len(t, d.Relationships, 1)
	assert.Equal(t, []string{
		"cloudify.relationships.connected_to",
		"cloudify.relationships.openstack.server_connected_to_keypair",
	}, d.Relationships[0].TypeHierarchy())

	inputs, xerr := d.OperationInputs()
	require.Nil(t, xerr)
	inputs.Bag("resource_config")["image_id"] = "changed"
	assert.Equal(t, "img-1", data.Bag(d.Inputs).Bag("resource_config").String("image_id"))
}

func TestParseRejectsIncompleteDescriptors(t *testing.T) {
	for name, content := range map[string]string{
		"no id":     "node: {type: cloudify.nodes.openstack.Network}",
		"no type":   "node: {id: net}",
		"no target": "node: {id: net, type: t}\nrelationships: [{type: r, target: {node: {id: x}}}]",
		"not yaml":  "node: [",
	} {
		_, xerr := Parse([]byte(content))
		assert.NotNil(t, xerr, name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	d, xerr := Load(path)
	require.Nil(t, xerr)
	assert.Equal(t, "web_abc", d.Instance.ID)

	_, xerr = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, xerr)
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "cloudify.interfaces.lifecycle.create", OperationName("create", false))
	assert.Equal(t, "cloudify.interfaces.relationship_lifecycle.establish", OperationName("establish", true))
	assert.Equal(t, "cloudify.interfaces.snapshot.create", OperationName("cloudify.interfaces.snapshot.create", false))
}

func TestGenerateInstanceID(t *testing.T) {
	e := Endpoint{Node: Node{ID: "net", Type: "t"}}
	id, xerr := e.GenerateInstanceID()
	require.Nil(t, xerr)
	assert.True(t, strings.HasPrefix(id, "net_"))
	assert.Len(t, id, len("net_")+6)

	again, _ := e.GenerateInstanceID()
	assert.Equal(t, id, again)
}

func TestNodeContext(t *testing.T) {
	d, xerr := Parse([]byte(sample))
	require.Nil(t, xerr)
	store := local.NewMemoryStore()
	require.Nil(t, store.Save(context.Background(), "web_abc", data.Bag{"id": "srv-1", "external_type": "stored"}))

	wctx, xerr := d.Context(context.Background(), store, "create", "", 2)
	require.Nil(t, xerr)
	assert.Equal(t, workflow.NodeInstanceContext, wctx.Kind())
	assert.Equal(t, "cloudify.interfaces.lifecycle.create", wctx.Operation().Name())
	assert.Equal(t, 2, wctx.Operation().RetryNumber())

	props := wctx.Instance().RuntimeProperties()
	assert.Equal(t, "srv-1", props.String("id"))
	assert.Equal(t, "stored", props.String("external_type"))

	rels := wctx.Instance().Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, "kp-1", rels[0].Target().Instance().RuntimeProperties().String("id"))
	assert.Equal(t, "key", rels[0].Target().Node().ID())
}

func TestRelationshipContext(t *testing.T) {
	d, xerr := Parse([]byte(sample))
	require.Nil(t, xerr)

	wctx, xerr := d.Context(context.Background(), nil, "establish", "key", 0)
	require.Nil(t, xerr)
	assert.Equal(t, workflow.RelationshipContext, wctx.Kind())
	assert.Equal(t, "key", wctx.Target().Node().ID())
	assert.Equal(t, "web", wctx.Source().Node().ID())
	assert.Equal(t, "cloudify.interfaces.relationship_lifecycle.establish", wctx.Operation().Name())

	_, xerr = d.Context(context.Background(), nil, "establish", "unknown", 0)
	assert.NotNil(t, xerr)
}
