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

	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/layer3/routers"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/ports"

	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/valid"
)

// AddRouterInterface plugs the subnet (or the port) into the router
func (c *Client) AddRouterInterface(ctx context.Context, routerID, subnetID, portID string) fail.Error {
	if valid.IsNil(c) {
		return fail.InvalidInstanceError()
	}
	if routerID == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("routerID")
	}
	if subnetID == "" && portID == "" {
		return fail.InvalidRequestError("either a subnet id or a port id is required to add an interface to router '%s'", routerID)
	}
	sc, xerr := c.ServiceClient(ctx, NetworkService)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, NetworkService, func() error {
		_, err := routers.AddInterface(sc, routerID, routers.AddInterfaceOpts{SubnetID: subnetID, PortID: portID}).Extract()
		return err
	}), KindRouter, routerID)
}

// RemoveRouterInterface unplugs the subnet (or the port) from the router
func (c *Client) RemoveRouterInterface(ctx context.Context, routerID, subnetID, portID string) fail.Error {
	if valid.IsNil(c) {
		return fail.InvalidInstanceError()
	}
	if routerID == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("routerID")
	}
	if subnetID == "" && portID == "" {
		return fail.InvalidRequestError("either a subnet id or a port id is required to remove an interface from router '%s'", routerID)
	}
	sc, xerr := c.ServiceClient(ctx, NetworkService)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, NetworkService, func() error {
		_, err := routers.RemoveInterface(sc, routerID, routers.RemoveInterfaceOpts{SubnetID: subnetID, PortID: portID}).Extract()
		return err
	}), KindRouter, routerID)
}

// UpdatePortSecurityGroups replaces the security groups of the port
func (c *Client) UpdatePortSecurityGroups(ctx context.Context, portID string, groups []string) fail.Error {
	if valid.IsNil(c) {
		return fail.InvalidInstanceError()
	}
	if portID == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("portID")
	}
	if groups == nil {
		groups = []string{}
	}
	sc, xerr := c.ServiceClient(ctx, NetworkService)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, NetworkService, func() error {
		_, err := ports.Update(sc, portID, ports.UpdateOpts{SecurityGroups: &groups}).Extract()
		return err
	}), KindPort, portID)
}
