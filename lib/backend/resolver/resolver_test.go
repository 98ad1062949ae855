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

package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

type countingGetter struct {
	items map[openstack.Kind][]data.Bag
	gets  int
	lists int
}

func (g *countingGetter) Get(_ context.Context, kind openstack.Kind, id string) (data.Bag, fail.Error) {
	g.gets++
	for _, v := range g.items[kind] {
		if v.String("id") == id {
			return v, nil
		}
	}
	return nil, fail.NotFoundError("%s '%s' not found", kind, id)
}

func (g *countingGetter) List(_ context.Context, kind openstack.Kind, _ data.Bag) ([]data.Bag, fail.Error) {
	g.lists++
	return g.items[kind], nil
}

func newGetter() *countingGetter {
	return &countingGetter{items: map[openstack.Kind][]data.Bag{
		openstack.KindImage: {
			{"id": "6f3e2c9a", "name": "ubuntu"},
			{"id": "0b1c2d3e", "name": "centos"},
			{"id": "aa", "name": "dup"},
			{"id": "bb", "name": "dup"},
		},
	}}
}

func TestResolveCanonicalIDWithoutList(t *testing.T) {
	g := newGetter()
	r := New(g)
	id, xerr := r.Resolve(context.Background(), openstack.KindImage, "6f3e2c9a")
	require.Nil(t, xerr)
	assert.Equal(t, "6f3e2c9a", id)
	assert.Equal(t, 0, g.lists)
}

func TestResolveNameIsCached(t *testing.T) {
	g := newGetter()
	r := New(g)
	for i := 0; i < 3; i++ {
		id, xerr := r.Resolve(context.Background(), openstack.KindImage, "ubuntu")
		require.Nil(t, xerr)
		assert.Equal(t, "6f3e2c9a", id)
	}
	assert.Equal(t, 1, g.lists)
	assert.Equal(t, 1, g.gets)

	// the id found is cached too
	_, xerr := r.Resolve(context.Background(), openstack.KindImage, "6f3e2c9a")
	require.Nil(t, xerr)
	assert.Equal(t, 1, g.gets)

	r.Forget(openstack.KindImage, "ubuntu")
	_, xerr = r.Resolve(context.Background(), openstack.KindImage, "ubuntu")
	require.Nil(t, xerr)
	assert.Equal(t, 2, g.lists)
}

func TestResolveFailures(t *testing.T) {
	r := New(newGetter())
	_, xerr := r.Resolve(context.Background(), openstack.KindImage, "dup")
	require.NotNil(t, xerr)
	assert.True(t, fail.Is[*fail.ErrDuplicate](xerr))

	_, xerr = r.Resolve(context.Background(), openstack.KindImage, "debian")
	require.NotNil(t, xerr)
	assert.True(t, fail.Is[*fail.ErrNotFound](xerr))

	_, xerr = r.Resolve(context.Background(), openstack.KindImage, "")
	require.NotNil(t, xerr)
	assert.True(t, fail.Is[*fail.ErrInvalidParameter](xerr))

	ids, xerr := r.ResolveAll(context.Background(), openstack.KindImage, []string{"centos", "ubuntu"})
	require.Nil(t, xerr)
	assert.Equal(t, []string{"0b1c2d3e", "6f3e2c9a"}, ids)

	var nilResolver *Resolver
	_, xerr = nilResolver.Resolve(context.Background(), openstack.KindImage, "ubuntu")
	require.NotNil(t, xerr)
}
