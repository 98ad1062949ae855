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

package ostest

import (
	"context"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/serverstate"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

func (c *Cloud) serverAction(method, serverID string, args ...interface{}) fail.Error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, item := c.find(openstack.KindServer, serverID); item == nil {
		return fail.NotFoundError("server '%s' not found", serverID)
	}
	return c.record(method, append([]interface{}{serverID}, args...)...)
}

// RebootServer ...
func (c *Cloud) RebootServer(_ context.Context, serverID string, rebootType string) fail.Error {
	return c.serverAction("RebootServer", serverID, rebootType)
}

// StartServer ...
func (c *Cloud) StartServer(_ context.Context, serverID string) fail.Error {
	return c.serverAction("StartServer", serverID)
}

// StopServer ...
func (c *Cloud) StopServer(_ context.Context, serverID string) fail.Error {
	return c.serverAction("StopServer", serverID)
}

// SuspendServer ...
func (c *Cloud) SuspendServer(_ context.Context, serverID string) fail.Error {
	return c.serverAction("SuspendServer", serverID)
}

// ResumeServer ...
func (c *Cloud) ResumeServer(_ context.Context, serverID string) fail.Error {
	return c.serverAction("ResumeServer", serverID)
}

// BackupServer adds a queued image named 'name'
func (c *Cloud) BackupServer(_ context.Context, serverID, name, backupType string, rotation int) fail.Error {
	if xerr := c.serverAction("BackupServer", serverID, name, backupType, rotation); xerr != nil {
		return xerr
	}
	c.Add(openstack.KindImage, data.Bag{"name": name, "status": "queued"})
	return nil
}

// CreateServerImage adds a queued image named 'name'
func (c *Cloud) CreateServerImage(_ context.Context, serverID, name string, metadata map[string]string) (string, fail.Error) {
	if xerr := c.serverAction("CreateServerImage", serverID, name); xerr != nil {
		return "", xerr
	}
	image := c.Add(openstack.KindImage, data.Bag{"name": name, "status": "queued"})
	return image.String("id"), nil
}

// RebuildServer moves the server to REBUILD, task state rebuild_spawning
func (c *Cloud) RebuildServer(_ context.Context, serverID, imageID string) fail.Error {
	if xerr := c.serverAction("RebuildServer", serverID, imageID); xerr != nil {
		return xerr
	}
	c.Set(openstack.KindServer, serverID, "status", serverstate.Rebuild)
	c.Set(openstack.KindServer, serverID, serverstate.TaskStateField, "rebuild_spawning")
	return nil
}

// GetServerPassword ...
func (c *Cloud) GetServerPassword(_ context.Context, serverID string) (string, fail.Error) {
	if xerr := c.serverAction("GetServerPassword", serverID); xerr != nil {
		return "", xerr
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.Passwords[serverID], nil
}

// UpdateServerMetadata ...
func (c *Cloud) UpdateServerMetadata(_ context.Context, serverID string, metadata map[string]string) fail.Error {
	if xerr := c.serverAction("UpdateServerMetadata", serverID, metadata); xerr != nil {
		return xerr
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	_, item := c.find(openstack.KindServer, serverID)
	md := item.EnsureBag("metadata")
	for k, v := range metadata {
		md[k] = v
	}
	return nil
}

// CreateVolumeAttachment adds an attachment and moves the volume to 'attaching'
func (c *Cloud) CreateVolumeAttachment(_ context.Context, serverID, volumeID, device string) (data.Bag, fail.Error) {
	if xerr := c.serverAction("CreateVolumeAttachment", serverID, volumeID, device); xerr != nil {
		return nil, xerr
	}
	c.Set(openstack.KindVolume, volumeID, "status", "attaching")
	return c.Add(openstack.KindVolumeAttachment, data.Bag{"id": volumeID, "device": device, "volumeId": volumeID, "serverId": serverID}), nil
}

// DeleteVolumeAttachment removes the attachment and moves the volume to 'detaching'
func (c *Cloud) DeleteVolumeAttachment(_ context.Context, serverID, attachmentID string) fail.Error {
	if xerr := c.serverAction("DeleteVolumeAttachment", serverID, attachmentID); xerr != nil {
		return xerr
	}
	c.Remove(openstack.KindVolumeAttachment, serverID+"/"+attachmentID)
	c.Set(openstack.KindVolume, attachmentID, "status", "detaching")
	return nil
}

// ListServerInterfaces ...
func (c *Cloud) ListServerInterfaces(_ context.Context, serverID string) ([]data.Bag, fail.Error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if xerr := c.failure("ListServerInterfaces"); xerr != nil {
		return nil, xerr
	}
	out := []data.Bag{}
	for _, v := range c.items[openstack.KindServerInterface] {
		if v.String("server_id") == serverID {
			out = append(out, v)
		}
	}
	return out, nil
}

// CreateServerInterface attaches a new interface; a port is made up when 'portID' is empty
func (c *Cloud) CreateServerInterface(_ context.Context, serverID, networkID, portID string) (data.Bag, fail.Error) {
	if xerr := c.serverAction("CreateServerInterface", serverID, networkID, portID); xerr != nil {
		return nil, xerr
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if portID == "" {
		portID = c.nextID(openstack.KindPort)
	} else if _, port := c.find(openstack.KindPort, portID); port != nil && networkID == "" {
		networkID = port.String("network_id")
	}
	return c.add(openstack.KindServerInterface, data.Bag{"port_id": portID, "net_id": networkID, "server_id": serverID, "port_state": "ACTIVE"}), nil
}

// DeleteServerInterface ...
func (c *Cloud) DeleteServerInterface(_ context.Context, serverID, portID string) fail.Error {
	if xerr := c.serverAction("DeleteServerInterface", serverID, portID); xerr != nil {
		return xerr
	}
	c.Remove(openstack.KindServerInterface, portID)
	return nil
}

// AddFloatingIP ...
func (c *Cloud) AddFloatingIP(_ context.Context, serverID, address, fixedIP string) fail.Error {
	return c.serverAction("AddFloatingIP", serverID, address, fixedIP)
}

// RemoveFloatingIP ...
func (c *Cloud) RemoveFloatingIP(_ context.Context, serverID, address string) fail.Error {
	return c.serverAction("RemoveFloatingIP", serverID, address)
}

// AddSecurityGroup ...
func (c *Cloud) AddSecurityGroup(_ context.Context, serverID, group string) fail.Error {
	return c.serverAction("AddSecurityGroup", serverID, group)
}

// RemoveSecurityGroup ...
func (c *Cloud) RemoveSecurityGroup(_ context.Context, serverID, group string) fail.Error {
	return c.serverAction("RemoveSecurityGroup", serverID, group)
}

func (c *Cloud) action(method string, args ...interface{}) fail.Error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.record(method, args...)
}

// AddRouterInterface ...
func (c *Cloud) AddRouterInterface(_ context.Context, routerID, subnetID, portID string) fail.Error {
	return c.action("AddRouterInterface", routerID, subnetID, portID)
}

// RemoveRouterInterface ...
func (c *Cloud) RemoveRouterInterface(_ context.Context, routerID, subnetID, portID string) fail.Error {
	return c.action("RemoveRouterInterface", routerID, subnetID, portID)
}

// UpdatePortSecurityGroups sets the security groups of the port
func (c *Cloud) UpdatePortSecurityGroups(_ context.Context, portID string, groups []string) fail.Error {
	if xerr := c.action("UpdatePortSecurityGroups", portID, groups); xerr != nil {
		return xerr
	}
	values := make([]interface{}, 0, len(groups))
	for _, v := range groups {
		values = append(values, v)
	}
	c.Set(openstack.KindPort, portID, "security_groups", values)
	return nil
}

// AddHostToAggregate ...
func (c *Cloud) AddHostToAggregate(_ context.Context, id, host string) fail.Error {
	return c.action("AddHostToAggregate", id, host)
}

// RemoveHostFromAggregate ...
func (c *Cloud) RemoveHostFromAggregate(_ context.Context, id, host string) fail.Error {
	return c.action("RemoveHostFromAggregate", id, host)
}

// SetFlavorExtraSpecs ...
func (c *Cloud) SetFlavorExtraSpecs(_ context.Context, flavorID string, specs map[string]string) fail.Error {
	return c.action("SetFlavorExtraSpecs", flavorID, specs)
}

// AssignRole ...
func (c *Cloud) AssignRole(_ context.Context, roleID string, assignment openstack.RoleAssignment) fail.Error {
	return c.action("AssignRole", roleID, assignment)
}

// UnassignRole ...
func (c *Cloud) UnassignRole(_ context.Context, roleID string, assignment openstack.RoleAssignment) fail.Error {
	return c.action("UnassignRole", roleID, assignment)
}

// GetQuota returns Quotas["<service>/<type>"], InfiniteQuota when missing
func (c *Cloud) GetQuota(_ context.Context, service openstack.Service, _, quotaType string) (int, fail.Error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if v, ok := c.Quotas[string(service)+"/"+quotaType]; ok {
		return v, nil
	}
	return openstack.InfiniteQuota, nil
}
