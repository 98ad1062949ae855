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

package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
)

func testStores(t *testing.T) map[string]Store {
	bs, xerr := NewInMemoryBadgerStore()
	require.Nil(t, xerr)
	t.Cleanup(func() { _ = bs.Close() })
	return map[string]Store{"memory": NewMemoryStore(), "badger": bs}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			props, xerr := store.Load(ctx, "server_abc123")
			require.Nil(t, xerr)
			assert.Empty(t, props)

			xerr = store.Save(ctx, "server_abc123", data.Bag{"id": "srv-1", "networks": []interface{}{"private", "public"}})
			require.Nil(t, xerr)

			props, xerr = store.Load(ctx, "server_abc123")
			require.Nil(t, xerr)
			assert.Equal(t, "srv-1", props.String("id"))
			assert.Equal(t, []string{"private", "public"}, props.Strings("networks"))
		})
	}
}

func TestInstanceUpdatePersists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	inst, xerr := NewInstance(ctx, "vm_1", store)
	require.Nil(t, xerr)

	inst.RuntimeProperties()["stop_server_task"] = "PENDING"
	require.Nil(t, inst.Update(ctx))
	assert.Equal(t, 1, store.Saves("vm_1"))

	reloaded, xerr := NewInstance(ctx, "vm_1", store)
	require.Nil(t, xerr)
	assert.Equal(t, "PENDING", reloaded.RuntimeProperties().String("stop_server_task"))
}

func TestContexts(t *testing.T) {
	ctx := context.Background()
	server := &Node{NodeID: "vm", NodeType: "cloudify.nodes.openstack.Server"}
	volume := &Node{NodeID: "vol", NodeType: "cloudify.nodes.openstack.Volume"}
	serverInstance, _ := NewInstance(ctx, "vm_1", nil)
	volumeInstance, _ := NewInstance(ctx, "vol_1", nil)

	rel := volumeInstance.Relate([]string{"cloudify.relationships.connected_to", "cloudify.relationships.openstack.volume_attached_to_server"}, Endpoint{N: server, I: serverInstance})
	assert.Equal(t, "cloudify.relationships.openstack.volume_attached_to_server", rel.Type())
	require.Len(t, volumeInstance.Relationships(), 1)

	nctx := NewNodeContext(server, serverInstance, &Operation{OpName: "create"})
	assert.Equal(t, workflow.NodeInstanceContext, nctx.Kind())
	assert.Equal(t, "vm", nctx.Node().ID())
	assert.Nil(t, nctx.Target())
	nctx.NextRetry()
	assert.Equal(t, 1, nctx.Operation().RetryNumber())

	rctx := NewRelationshipContext(Endpoint{N: volume, I: volumeInstance}, Endpoint{N: server, I: serverInstance}, &Operation{OpName: "attach_volume"})
	assert.Equal(t, workflow.RelationshipContext, rctx.Kind())
	assert.Equal(t, "vol", rctx.Node().ID())
	assert.Equal(t, "vm", rctx.Target().Node().ID())
	assert.Equal(t, "vm", rctx.Logger().Data["target"])
}
