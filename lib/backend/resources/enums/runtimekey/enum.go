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

package runtimekey

import "fmt"

const (
	ID                 = "id"                   // canonical cloud id of the managed resource
	ExternalID         = "external_id"          // same as ID, consumed by relationships
	ExternalResource   = "external_resource"    // true when the resource pre-existed and has been adopted
	StopServerTask     = "stop_server_task"     // task flag of server stop
	StartServerTask    = "start_server_task"    // task flag of server start
	DeleteServerTask   = "delete_server_task"   // task flag of server delete
	BackupDone         = "backup_done"          // task flag of snapshot creation
	RestoreState       = "restore_state"        // task flag of snapshot apply
	ServerInterfaceIDs = "server_interface_ids" // ordered list of interfaces attached to an external server
	Networks           = "networks"             // ordered list of network names, as declared at create time
	IP                 = "ip"                   // main ip of the server
	IPv4Addresses      = "ipv4_addresses"       // all v4 addresses of the server
	IPv6Addresses      = "ipv6_addresses"       // all v6 addresses of the server
	IPv4Address        = "ipv4_address"         // first fixed v4 address
	IPv6Address        = "ipv6_address"         // first fixed v6 address
	PublicIPAddress    = "public_ip_address"    // first floating v4 address
	PublicIP6Address   = "public_ip6_address"   // first floating v6 address
	AccessIPv4         = "access_ipv4"          // accessIPv4 attribute of the server
	AccessIPv6         = "access_ipv6"          // accessIPv6 attribute of the server
	AdminPassword      = "admin_password"       // decrypted admin password of the server
	PrivateKey         = "private_key"          // private key generated with a keypair
	PublicKey          = "public_key"           // public key of a keypair
	SecurityGroupRules = "security_group_rules" // payloads of the rules created with a security group
	Routes             = "routes"               // routes added on a router by a Routes node
	Hosts              = "hosts"                // hosts added to an aggregate
	DeleteTask         = "delete_task"          // task flag of the deletion of a resource waited for
	RoleAssignments    = "role_assignments"     // roles granted to users on a project
)

// Payload returns the key storing the snapshot of a resource of type 'kind'
func Payload(kind string) string {
	return kind + "_payload"
}

// List returns the key storing the result of a list operation on 'kind'
func List(kind string) string {
	return kind + "_list"
}

// VolumeAttachmentTask returns the key of the attach task flag between volume node 'volume' and server node 'server'
func VolumeAttachmentTask(volume, server string) string {
	return fmt.Sprintf("volume_attachment_task_%s_%s", volume, server)
}

// VolumeAttachmentID returns the key of the attachment id between volume node 'volume' and server node 'server'
func VolumeAttachmentID(volume, server string) string {
	return fmt.Sprintf("volume_attachment_id_%s_%s", volume, server)
}

// VolumeDetachmentTask returns the key of the detach task flag between volume node 'volume' and server node 'server'
func VolumeDetachmentTask(volume, server string) string {
	return fmt.Sprintf("volume_detachment_task_%s_%s", volume, server)
}
