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

package handlers

import (
	"fmt"
	"strings"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// hooks are the steps specific to a kind; they are run on each invocation and must be idempotent
type hooks struct {
	created  func(handler *resourceHandler, id string) fail.Error // after the resource exists
	deleting func(handler *resourceHandler, id string) fail.Error // before the resource is deleted
}

var kindHooks = map[openstack.Kind]hooks{
	openstack.KindSecurityGroup: {created: (*resourceHandler).createRules},
	openstack.KindFlavor:        {created: (*resourceHandler).setExtraSpecs},
	openstack.KindAggregate:     {created: (*resourceHandler).addHosts, deleting: (*resourceHandler).removeHosts},
	openstack.KindProject:       {created: (*resourceHandler).assignRoles, deleting: (*resourceHandler).unassignRoles},
	openstack.KindVolume:        {created: (*resourceHandler).waitVolume},
}

// setting returns the value of 'key' in the operation inputs, the resource configuration extras or the node properties
func (handler *resourceHandler) setting(key string) (interface{}, bool) {
	for _, src := range []data.Bag{handler.kwargs, handler.cfg.Bag("kwargs"), handler.cfg, handler.node().Properties()} {
		if v, ok := src.Get(key); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (handler *resourceHandler) settingBags(key string) []data.Bag {
	v, ok := handler.setting(key)
	if !ok {
		return nil
	}
	return data.Bag{key: v}.Bags(key)
}

func (handler *resourceHandler) settingStrings(key string) []string {
	v, ok := handler.setting(key)
	if !ok {
		return nil
	}
	return data.Bag{key: v}.Strings(key)
}

// createRules creates the rules of a security group one at a time, after having removed the default egress rules
// when asked to; created rules are recorded so a retry resumes after the last one
func (handler *resourceHandler) createRules(id string) fail.Error {
	inst := handler.instance()
	props := inst.RuntimeProperties()

	if !props.Has(runtimekey.SecurityGroupRules) {
		if handler.node().Properties().Bool("disable_default_egress_rules") {
			defaults, xerr := handler.cloud.List(handler.ctx, openstack.KindSecurityGroupRule, data.Bag{"security_group_id": id, "direction": "egress"})
			if xerr != nil {
				return xerr
			}
			for _, rule := range defaults {
				ruleID := rule.String("id")
				if xerr := handler.cloud.Delete(handler.ctx, openstack.KindSecurityGroupRule, ruleID); xerr != nil && !isNotFound(xerr) {
					return xerr
				}
			}
		}
		props[runtimekey.SecurityGroupRules] = []interface{}{}
		if xerr := inst.Update(handler.ctx); xerr != nil {
			return xerr
		}
	}

	rules := handler.settingBags("security_group_rules")
	done := props.Slice(runtimekey.SecurityGroupRules)
	for i := len(done); i < len(rules); i++ {
		body := data.Bag{}
		body.ForceMerge(rules[i])
		body["security_group_id"] = id
		created, xerr := handler.cloud.Create(handler.ctx, openstack.KindSecurityGroupRule, body)
		if xerr != nil {
			xerr.Annotate("rule", i)
			return xerr
		}
		done = append(done, created)
		props[runtimekey.SecurityGroupRules] = done
		if xerr = inst.Update(handler.ctx); xerr != nil {
			return xerr
		}
	}
	return nil
}

// setExtraSpecs sets the 'extra_specs' of a flavor
func (handler *resourceHandler) setExtraSpecs(id string) fail.Error {
	v, ok := handler.setting("extra_specs")
	if !ok {
		return nil
	}
	bag, ok := data.ToBag(v)
	if !ok || len(bag) == 0 {
		return nil
	}
	specs := make(map[string]string, len(bag))
	for k := range bag {
		specs[k] = bag.String(k)
	}
	return handler.cloud.SetFlavorExtraSpecs(handler.ctx, id, specs)
}

// addHosts adds the 'hosts' to an aggregate, recording each host added
func (handler *resourceHandler) addHosts(id string) fail.Error {
	inst := handler.instance()
	props := inst.RuntimeProperties()
	added := props.Strings(runtimekey.Hosts)
	known := make(map[string]struct{}, len(added))
	for _, h := range added {
		known[h] = struct{}{}
	}
	for _, host := range handler.settingStrings("hosts") {
		if _, ok := known[host]; ok {
			continue
		}
		if xerr := handler.cloud.AddHostToAggregate(handler.ctx, id, host); xerr != nil {
			return xerr
		}
		known[host] = struct{}{}
		added = append(added, host)
		props[runtimekey.Hosts] = toInterfaces(added)
		if xerr := inst.Update(handler.ctx); xerr != nil {
			return xerr
		}
	}
	return nil
}

// removeHosts removes from an aggregate the hosts recorded by addHosts
func (handler *resourceHandler) removeHosts(id string) fail.Error {
	inst := handler.instance()
	props := inst.RuntimeProperties()
	hosts := props.Strings(runtimekey.Hosts)
	for len(hosts) > 0 {
		if xerr := handler.cloud.RemoveHostFromAggregate(handler.ctx, id, hosts[0]); xerr != nil && !isNotFound(xerr) {
			return xerr
		}
		hosts = hosts[1:]
		props[runtimekey.Hosts] = toInterfaces(hosts)
		if xerr := inst.Update(handler.ctx); xerr != nil {
			return xerr
		}
	}
	return nil
}

// assignRoles grants to each entry of 'users' ({name, roles}) its roles on the project
func (handler *resourceHandler) assignRoles(id string) fail.Error {
	inst := handler.instance()
	props := inst.RuntimeProperties()
	assigned := props.Strings(runtimekey.RoleAssignments)
	known := make(map[string]struct{}, len(assigned))
	for _, v := range assigned {
		known[v] = struct{}{}
	}

	for _, user := range handler.settingBags("users") {
		name := user.String("name")
		if name == "" {
			xerr := fail.InvalidRequestError("a user of project '%s' has no name", id)
			xerr.Annotate("field", "users")
			return xerr
		}
		userID, xerr := handler.resolver.Resolve(handler.ctx, openstack.KindUser, name)
		if xerr != nil {
			xerr.Annotate("field", "users")
			return xerr
		}
		for _, role := range user.Strings("roles") {
			roleID, xerr := handler.resolver.Resolve(handler.ctx, openstack.KindRole, role)
			if xerr != nil {
				xerr.Annotate("field", "roles")
				return xerr
			}
			key := userID + "/" + roleID
			if _, ok := known[key]; ok {
				continue
			}
			if xerr = handler.cloud.AssignRole(handler.ctx, roleID, openstack.RoleAssignment{UserID: userID, ProjectID: id}); xerr != nil {
				return xerr
			}
			known[key] = struct{}{}
			assigned = append(assigned, key)
			props[runtimekey.RoleAssignments] = toInterfaces(assigned)
			if xerr = inst.Update(handler.ctx); xerr != nil {
				return xerr
			}
		}
	}
	return nil
}

// unassignRoles revokes the roles granted by assignRoles
func (handler *resourceHandler) unassignRoles(id string) fail.Error {
	inst := handler.instance()
	props := inst.RuntimeProperties()
	assigned := props.Strings(runtimekey.RoleAssignments)
	for len(assigned) > 0 {
		parts := strings.SplitN(assigned[0], "/", 2)
		if len(parts) == 2 {
			xerr := handler.cloud.UnassignRole(handler.ctx, parts[1], openstack.RoleAssignment{UserID: parts[0], ProjectID: id})
			if xerr != nil && !isNotFound(xerr) {
				return xerr
			}
		}
		assigned = assigned[1:]
		props[runtimekey.RoleAssignments] = toInterfaces(assigned)
		if xerr := inst.Update(handler.ctx); xerr != nil {
			return xerr
		}
	}
	return nil
}

// waitVolume waits for a created volume to be available
func (handler *resourceHandler) waitVolume(id string) fail.Error {
	volume, xerr := handler.cloud.Get(handler.ctx, openstack.KindVolume, id)
	if xerr != nil {
		return xerr
	}
	current := volume.String("status")
	switch {
	case current == "available" || current == "in-use":
		handler.instance().RuntimeProperties()[handler.payloadKey()] = volume
		return handler.instance().Update(handler.ctx)
	case strings.HasPrefix(current, "error"):
		return volumeError(id, volume)
	default:
		return workflow.RetryStatus(fmt.Sprintf("volume '%s'", id), current, "available")
	}
}

// volumeError builds the error of a volume in an error state
func volumeError(id string, volume data.Bag) fail.Error {
	xerr := fail.NotAvailableError("volume '%s' is in state '%s'", id, volume.String("status"))
	xerr.Annotate("kind", string(openstack.KindVolume))
	xerr.Annotate("id", id)
	xerr.Annotate("state", volume.String("status"))
	return xerr
}
