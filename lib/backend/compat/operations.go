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

package compat

import (
	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// rewriteList flattens the legacy list arguments into kwargs.query and removes kwargs.args
func (t *translation) rewriteList() fail.Error {
	query := data.Bag{}
	args := t.kwargs.Bag("args")
	for _, src := range []data.Bag{args, t.kwargs} {
		if src == nil {
			continue
		}
		for _, name := range listFilterBags {
			if filters := src.Bag(name); filters != nil {
				query.ForceMerge(filters)
			}
		}
	}
	for k, v := range args {
		if isFilterBag(k) {
			continue
		}
		query[k] = v
	}

	for from, to := range listRenames {
		query.Rename(from, to)
	}

	if t.tag == User || t.tag == Project {
		if xerr := t.resolveInto(query, "domain", "domain_id", openstack.KindDomain); xerr != nil {
			return xerr
		}
	}

	if allow, ok := listAllowLists[t.tag]; ok {
		for k := range query {
			if !allow.Contains(k) {
				delete(query, k)
			}
		}
	}
	switch {
	case openstack.IsNetworkFamily(t.tag.Kind()):
		for k := range query {
			if networkListDenied.Contains(k) {
				delete(query, k)
			}
		}
	case t.tag == KeyPair:
		for k := range query {
			if keypairListDenied.Contains(k) {
				delete(query, k)
			}
		}
	}

	for _, name := range listFilterBags {
		if name != "query" {
			delete(t.kwargs, name)
		}
	}
	delete(t.kwargs, "args")
	t.kwargs["query"] = query
	return nil
}

func isFilterBag(key string) bool {
	for _, name := range listFilterBags {
		if key == name {
			return true
		}
	}
	return false
}

// rewriteUpdate adapts the update arguments found in kwargs and kwargs.args
func (t *translation) rewriteUpdate() fail.Error {
	args := t.kwargs.Bag("args")
	switch t.tag {
	case HostAggregate:
		if args != nil {
			if inner := args.Bag("aggregate"); inner != nil {
				delete(args, "aggregate")
				args.ForceMerge(inner)
			}
		}
	case Image:
		for _, b := range []data.Bag{t.kwargs, args} {
			if b == nil {
				continue
			}
			b.Rename("image_id", "image")
			delete(b, "remove_props")
		}
	case User, Project:
		if args == nil {
			return nil
		}
		if args.Has("domain") || args.Has("domain_id") {
			xerr := fail.InvalidRequestError("the domain of a %s cannot be updated", t.tag.Kind())
			xerr.Annotate("field", "domain")
			return xerr
		}
		if xerr := t.resolveIdentity(args); xerr != nil {
			return xerr
		}
		allow := updateAllowLists[t.tag]
		for k := range args {
			if !allow.Contains(k) {
				delete(args, k)
			}
		}
	}
	return nil
}
