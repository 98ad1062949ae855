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

package openstack

import (
	"context"

	"github.com/gophercloud/gophercloud/openstack/identity/v3/roles"

	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/valid"
)

// RoleAssignment designates the actor and the target of a role assignment; one of UserID/GroupID and one of
// ProjectID/DomainID are expected
type RoleAssignment struct {
	UserID    string `mapstructure:"user"`
	GroupID   string `mapstructure:"group"`
	ProjectID string `mapstructure:"project"`
	DomainID  string `mapstructure:"domain"`
}

func (ra RoleAssignment) validate() fail.Error {
	if (ra.UserID == "") == (ra.GroupID == "") {
		return fail.InvalidRequestError("exactly one of user or group is required for a role assignment")
	}
	if (ra.ProjectID == "") == (ra.DomainID == "") {
		return fail.InvalidRequestError("exactly one of project or domain is required for a role assignment")
	}
	return nil
}

// AssignRole grants the role to the actor on the target of 'assignment'
func (c *Client) AssignRole(ctx context.Context, roleID string, assignment RoleAssignment) fail.Error {
	if valid.IsNil(c) {
		return fail.InvalidInstanceError()
	}
	if roleID == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("roleID")
	}
	if xerr := assignment.validate(); xerr != nil {
		return xerr
	}
	sc, xerr := c.ServiceClient(ctx, IdentityService)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, IdentityService, func() error {
		return roles.Assign(sc, roleID, roles.AssignOpts{
			UserID:    assignment.UserID,
			GroupID:   assignment.GroupID,
			ProjectID: assignment.ProjectID,
			DomainID:  assignment.DomainID,
		}).ExtractErr()
	}), KindRole, roleID)
}

// UnassignRole revokes the role from the actor on the target of 'assignment'
func (c *Client) UnassignRole(ctx context.Context, roleID string, assignment RoleAssignment) fail.Error {
	if valid.IsNil(c) {
		return fail.InvalidInstanceError()
	}
	if roleID == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("roleID")
	}
	if xerr := assignment.validate(); xerr != nil {
		return xerr
	}
	sc, xerr := c.ServiceClient(ctx, IdentityService)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, IdentityService, func() error {
		return roles.Unassign(sc, roleID, roles.UnassignOpts{
			UserID:    assignment.UserID,
			GroupID:   assignment.GroupID,
			ProjectID: assignment.ProjectID,
			DomainID:  assignment.DomainID,
		}).ExtractErr()
	}), KindRole, roleID)
}
