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
	"strconv"
	"strings"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/aggregates"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/attachinterfaces"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/floatingips"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/secgroups"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/startstop"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/suspendresume"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/volumeattach"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"

	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/valid"
)

// compute returns the compute service client, validating the instance and the server id
func (c *Client) compute(ctx context.Context, serverID string) (*gophercloud.ServiceClient, fail.Error) {
	if valid.IsNil(c) {
		return nil, fail.InvalidInstanceError()
	}
	if serverID == "" {
		return nil, fail.InvalidParameterCannotBeEmptyStringError("serverID")
	}
	return c.ServiceClient(ctx, ComputeService)
}

// RebootServer reboots the server, 'rebootType' being HARD or SOFT
func (c *Client) RebootServer(ctx context.Context, serverID string, rebootType string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("stack.openstack"), "(%s, %s)", serverID, rebootType).WithStopwatch().Entering()
	defer tracer.Exiting()

	method := servers.SoftReboot
	if strings.EqualFold(rebootType, string(servers.HardReboot)) {
		method = servers.HardReboot
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return servers.Reboot(sc, serverID, servers.RebootOpts{Type: method}).ExtractErr()
	}), KindServer, serverID)
}

// StartServer starts a stopped server
func (c *Client) StartServer(ctx context.Context, serverID string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return startstop.Start(sc, serverID).ExtractErr()
	}), KindServer, serverID)
}

// StopServer stops a running server
func (c *Client) StopServer(ctx context.Context, serverID string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return startstop.Stop(sc, serverID).ExtractErr()
	}), KindServer, serverID)
}

// SuspendServer suspends a server
func (c *Client) SuspendServer(ctx context.Context, serverID string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return suspendresume.Suspend(sc, serverID).ExtractErr()
	}), KindServer, serverID)
}

// ResumeServer resumes a suspended server
func (c *Client) ResumeServer(ctx context.Context, serverID string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return suspendresume.Resume(sc, serverID).ExtractErr()
	}), KindServer, serverID)
}

// BackupServer asks the compute service to create a backup image of the server, keeping 'rotation' backups
func (c *Client) BackupServer(ctx context.Context, serverID, name, backupType string, rotation int) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	if name == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("name")
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("stack.openstack"), "(%s, %s)", serverID, name).WithStopwatch().Entering()
	defer tracer.Exiting()

	body := map[string]interface{}{
		"createBackup": map[string]interface{}{
			"name":        name,
			"backup_type": backupType,
			"rotation":    rotation,
		},
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		_, err := sc.Post(sc.ServiceURL("servers", serverID, "action"), body, nil, &gophercloud.RequestOpts{OkCodes: []int{200, 202}})
		return err
	}), KindServer, serverID)
}

// CreateServerImage creates an image from the server and returns the image id
func (c *Client) CreateServerImage(ctx context.Context, serverID, name string, metadata map[string]string) (string, fail.Error) {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return "", xerr
	}
	if name == "" {
		return "", fail.InvalidParameterCannotBeEmptyStringError("name")
	}

	var imageID string
	xerr = c.call(ctx, ComputeService, func() (err error) {
		imageID, err = servers.CreateImage(sc, serverID, servers.CreateImageOpts{Name: name, Metadata: metadata}).ExtractImageID()
		return err
	})
	if xerr != nil {
		return "", annotate(xerr, KindServer, serverID)
	}
	return imageID, nil
}

// RebuildServer rebuilds the server from the image 'imageID'
func (c *Client) RebuildServer(ctx context.Context, serverID, imageID string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	if imageID == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("imageID")
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		_, err := servers.Rebuild(sc, serverID, servers.RebuildOpts{ImageRef: imageID}).Extract()
		return err
	}), KindServer, serverID)
}

// GetServerPassword returns the encrypted (base64) admin password of the server; empty if not yet available
func (c *Client) GetServerPassword(ctx context.Context, serverID string) (string, fail.Error) {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return "", xerr
	}

	var password string
	xerr = c.call(ctx, ComputeService, func() (err error) {
		password, err = servers.GetPassword(sc, serverID).ExtractPassword(nil)
		return err
	})
	if xerr != nil {
		return "", annotate(xerr, KindServer, serverID)
	}
	return password, nil
}

// UpdateServerMetadata sets metadata items on the server
func (c *Client) UpdateServerMetadata(ctx context.Context, serverID string, metadata map[string]string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		_, err := servers.UpdateMetadata(sc, serverID, servers.MetadataOpts(metadata)).Extract()
		return err
	}), KindServer, serverID)
}

// CreateVolumeAttachment attaches the volume to the server
func (c *Client) CreateVolumeAttachment(ctx context.Context, serverID, volumeID, device string) (data.Bag, fail.Error) {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return nil, xerr
	}
	if volumeID == "" {
		return nil, fail.InvalidParameterCannotBeEmptyStringError("volumeID")
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("stack.openstack"), "(%s, %s)", serverID, volumeID).WithStopwatch().Entering()
	defer tracer.Exiting()

	var attachment *volumeattach.VolumeAttachment
	xerr = c.call(ctx, ComputeService, func() (err error) {
		attachment, err = volumeattach.Create(sc, serverID, volumeattach.CreateOpts{VolumeID: volumeID, Device: device}).Extract()
		return err
	})
	if xerr != nil {
		return nil, annotate(xerr, KindVolumeAttachment, serverID+"/"+volumeID)
	}
	return data.Bag{
		"id":       attachment.ID,
		"device":   attachment.Device,
		"volumeId": attachment.VolumeID,
		"serverId": attachment.ServerID,
	}, nil
}

// DeleteVolumeAttachment detaches a volume from the server
func (c *Client) DeleteVolumeAttachment(ctx context.Context, serverID, attachmentID string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	if attachmentID == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("attachmentID")
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return volumeattach.Delete(sc, serverID, attachmentID).ExtractErr()
	}), KindVolumeAttachment, serverID+"/"+attachmentID)
}

func interfaceToBag(serverID string, iface attachinterfaces.Interface) data.Bag {
	fixedIPs := make([]interface{}, 0, len(iface.FixedIPs))
	for _, ip := range iface.FixedIPs {
		fixedIPs = append(fixedIPs, data.Bag{"subnet_id": ip.SubnetID, "ip_address": ip.IPAddress})
	}
	return data.Bag{
		"port_id":    iface.PortID,
		"net_id":     iface.NetID,
		"mac_addr":   iface.MACAddr,
		"port_state": iface.PortState,
		"fixed_ips":  fixedIPs,
		"server_id":  serverID,
	}
}

// ListServerInterfaces lists the interfaces attached to the server
func (c *Client) ListServerInterfaces(ctx context.Context, serverID string) ([]data.Bag, fail.Error) {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return nil, xerr
	}

	var list []attachinterfaces.Interface
	xerr = c.call(ctx, ComputeService, func() error {
		pages, err := attachinterfaces.List(sc, serverID).AllPages()
		if err != nil {
			return err
		}
		list, err = attachinterfaces.ExtractInterfaces(pages)
		return err
	})
	if xerr != nil {
		return nil, annotate(xerr, KindServer, serverID)
	}

	out := make([]data.Bag, 0, len(list))
	for _, v := range list {
		out = append(out, interfaceToBag(serverID, v))
	}
	return out, nil
}

// CreateServerInterface attaches a new interface to the server, on network 'networkID' or using port 'portID'
func (c *Client) CreateServerInterface(ctx context.Context, serverID, networkID, portID string) (data.Bag, fail.Error) {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return nil, xerr
	}
	if networkID == "" && portID == "" {
		return nil, fail.InvalidRequestError("either a network id or a port id is required to attach an interface to server '%s'", serverID)
	}

	var iface *attachinterfaces.Interface
	xerr = c.call(ctx, ComputeService, func() (err error) {
		iface, err = attachinterfaces.Create(sc, serverID, attachinterfaces.CreateOpts{NetworkID: networkID, PortID: portID}).Extract()
		return err
	})
	if xerr != nil {
		return nil, annotate(xerr, KindServerInterface, serverID)
	}
	return interfaceToBag(serverID, *iface), nil
}

// DeleteServerInterface detaches the interface using port 'portID' from the server
func (c *Client) DeleteServerInterface(ctx context.Context, serverID, portID string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	if portID == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("portID")
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return attachinterfaces.Delete(sc, serverID, portID).ExtractErr()
	}), KindServerInterface, serverID+"/"+portID)
}

// AddFloatingIP associates the floating ip address to the server, optionally to the fixed address 'fixedIP'
func (c *Client) AddFloatingIP(ctx context.Context, serverID, address, fixedIP string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	if address == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("address")
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return floatingips.AssociateInstance(sc, serverID, floatingips.AssociateOpts{FloatingIP: address, FixedIP: fixedIP}).ExtractErr()
	}), KindServer, serverID)
}

// RemoveFloatingIP disassociates the floating ip address from the server
func (c *Client) RemoveFloatingIP(ctx context.Context, serverID, address string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	if address == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("address")
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return floatingips.DisassociateInstance(sc, serverID, floatingips.DisassociateOpts{FloatingIP: address}).ExtractErr()
	}), KindServer, serverID)
}

// AddSecurityGroup binds the security group (name or id) to the server
func (c *Client) AddSecurityGroup(ctx context.Context, serverID, group string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	if group == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("group")
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return secgroups.AddServer(sc, serverID, group).ExtractErr()
	}), KindServer, serverID)
}

// RemoveSecurityGroup unbinds the security group (name or id) from the server
func (c *Client) RemoveSecurityGroup(ctx context.Context, serverID, group string) fail.Error {
	sc, xerr := c.compute(ctx, serverID)
	if xerr != nil {
		return xerr
	}
	if group == "" {
		return fail.InvalidParameterCannotBeEmptyStringError("group")
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		return secgroups.RemoveServer(sc, serverID, group).ExtractErr()
	}), KindServer, serverID)
}

func aggregateID(id string) (int, fail.Error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, fail.InvalidParameterError("aggregateID", "'%s' is not a numeric aggregate id", id)
	}
	return n, nil
}

// AddHostToAggregate adds the compute host to the aggregate
func (c *Client) AddHostToAggregate(ctx context.Context, id, host string) fail.Error {
	n, xerr := aggregateID(id)
	if xerr != nil {
		return xerr
	}
	sc, xerr := c.compute(ctx, id)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		_, err := aggregates.AddHost(sc, n, aggregates.AddHostOpts{Host: host}).Extract()
		return err
	}), KindAggregate, id)
}

// RemoveHostFromAggregate removes the compute host from the aggregate
func (c *Client) RemoveHostFromAggregate(ctx context.Context, id, host string) fail.Error {
	n, xerr := aggregateID(id)
	if xerr != nil {
		return xerr
	}
	sc, xerr := c.compute(ctx, id)
	if xerr != nil {
		return xerr
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		_, err := aggregates.RemoveHost(sc, n, aggregates.RemoveHostOpts{Host: host}).Extract()
		return err
	}), KindAggregate, id)
}

// SetFlavorExtraSpecs sets extra specs on the flavor
func (c *Client) SetFlavorExtraSpecs(ctx context.Context, flavorID string, specs map[string]string) fail.Error {
	sc, xerr := c.compute(ctx, flavorID)
	if xerr != nil {
		return xerr
	}
	if len(specs) == 0 {
		return nil
	}
	return annotate(c.call(ctx, ComputeService, func() error {
		_, err := flavors.CreateExtraSpecs(sc, flavorID, flavors.ExtraSpecsOpts(specs)).Extract()
		return err
	}), KindFlavor, flavorID)
}
