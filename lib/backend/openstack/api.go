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

	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Resources is the generic CRUD part of the adapter
type Resources interface {
	Getter
	Create(ctx context.Context, kind Kind, body data.Bag) (data.Bag, fail.Error)
	Update(ctx context.Context, kind Kind, id string, body data.Bag) (data.Bag, fail.Error)
	Delete(ctx context.Context, kind Kind, id string) fail.Error
	FindResource(ctx context.Context, kind Kind, nameOrID string) (data.Bag, fail.Error)
}

// ServerActions contains the compute actions applied to a server
type ServerActions interface {
	RebootServer(ctx context.Context, serverID string, rebootType string) fail.Error
	StartServer(ctx context.Context, serverID string) fail.Error
	StopServer(ctx context.Context, serverID string) fail.Error
	SuspendServer(ctx context.Context, serverID string) fail.Error
	ResumeServer(ctx context.Context, serverID string) fail.Error
	BackupServer(ctx context.Context, serverID, name, backupType string, rotation int) fail.Error
	CreateServerImage(ctx context.Context, serverID, name string, metadata map[string]string) (string, fail.Error)
	RebuildServer(ctx context.Context, serverID, imageID string) fail.Error
	GetServerPassword(ctx context.Context, serverID string) (string, fail.Error)
	UpdateServerMetadata(ctx context.Context, serverID string, metadata map[string]string) fail.Error
	CreateVolumeAttachment(ctx context.Context, serverID, volumeID, device string) (data.Bag, fail.Error)
	DeleteVolumeAttachment(ctx context.Context, serverID, attachmentID string) fail.Error
	ListServerInterfaces(ctx context.Context, serverID string) ([]data.Bag, fail.Error)
	CreateServerInterface(ctx context.Context, serverID, networkID, portID string) (data.Bag, fail.Error)
	DeleteServerInterface(ctx context.Context, serverID, portID string) fail.Error
	AddFloatingIP(ctx context.Context, serverID, address, fixedIP string) fail.Error
	RemoveFloatingIP(ctx context.Context, serverID, address string) fail.Error
	AddSecurityGroup(ctx context.Context, serverID, group string) fail.Error
	RemoveSecurityGroup(ctx context.Context, serverID, group string) fail.Error
}

// NetworkActions contains the network actions not expressed as plain CRUD
type NetworkActions interface {
	AddRouterInterface(ctx context.Context, routerID, subnetID, portID string) fail.Error
	RemoveRouterInterface(ctx context.Context, routerID, subnetID, portID string) fail.Error
	UpdatePortSecurityGroups(ctx context.Context, portID string, groups []string) fail.Error
}

// AdminActions contains the actions on aggregates, flavors, roles and quotas
type AdminActions interface {
	AddHostToAggregate(ctx context.Context, id, host string) fail.Error
	RemoveHostFromAggregate(ctx context.Context, id, host string) fail.Error
	SetFlavorExtraSpecs(ctx context.Context, flavorID string, specs map[string]string) fail.Error
	AssignRole(ctx context.Context, roleID string, assignment RoleAssignment) fail.Error
	UnassignRole(ctx context.Context, roleID string, assignment RoleAssignment) fail.Error
	GetQuota(ctx context.Context, service Service, project, quotaType string) (int, fail.Error)
}

// Cloud is the whole adapter as seen by the operation handlers
type Cloud interface {
	Resources
	ServerActions
	NetworkActions
	AdminActions
	ProjectID() string
}

var _ Cloud = (*Client)(nil)
