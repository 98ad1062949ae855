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
	"sync"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/valid"
)

type cacheKey struct {
	kind  openstack.Kind
	value string
}

// Resolver reduces names or ids of resources to canonical ids
// A Resolver caches its results: it must live only for the duration of one operation invocation.
type Resolver struct {
	getter openstack.Getter
	lock   sync.Mutex
	cache  map[cacheKey]data.Bag
}

// New creates a Resolver using 'getter' to query the cloud
func New(getter openstack.Getter) *Resolver {
	return &Resolver{getter: getter, cache: map[cacheKey]data.Bag{}}
}

// IsNull tells if the instance is null
func (r *Resolver) IsNull() bool {
	return r == nil || valid.IsNil(r.getter)
}

// Find returns the resource of kind 'kind' whose id or name is 'value'
func (r *Resolver) Find(ctx context.Context, kind openstack.Kind, value string) (_ data.Bag, ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if r.IsNull() {
		return nil, fail.InvalidInstanceError()
	}
	if value == "" {
		return nil, fail.InvalidParameterCannotBeEmptyStringError("value")
	}

	key := cacheKey{kind: kind, value: value}
	r.lock.Lock()
	item, ok := r.cache[key]
	r.lock.Unlock()
	if ok {
		return item, nil
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("resolver"), "(%s, %s)", kind, value).WithStopwatch().Entering()
	defer tracer.Exiting()

	item, xerr := openstack.FindResource(ctx, r.getter, kind, value)
	if xerr != nil {
		return nil, xerr
	}

	r.lock.Lock()
	r.cache[key] = item
	if id := openstack.ResourceID(kind, item); id != "" && id != value {
		r.cache[cacheKey{kind: kind, value: id}] = item
	}
	r.lock.Unlock()
	return item, nil
}

// Resolve returns the canonical id of the resource of kind 'kind' whose id or name is 'value'
func (r *Resolver) Resolve(ctx context.Context, kind openstack.Kind, value string) (string, fail.Error) {
	item, xerr := r.Find(ctx, kind, value)
	if xerr != nil {
		return "", xerr
	}
	id := openstack.ResourceID(kind, item)
	if id == "" {
		return "", fail.InconsistentError("%s '%s' has no id", kind, value)
	}
	return id, nil
}

// ResolveAll resolves each of 'values', keeping order
func (r *Resolver) ResolveAll(ctx context.Context, kind openstack.Kind, values []string) ([]string, fail.Error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		id, xerr := r.Resolve(ctx, kind, v)
		if xerr != nil {
			return nil, xerr
		}
		out = append(out, id)
	}
	return out, nil
}

// Forget drops the cached entry of 'value', for instance after the resource has been deleted
func (r *Resolver) Forget(kind openstack.Kind, value string) {
	if r == nil {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.cache, cacheKey{kind: kind, value: value})
}
