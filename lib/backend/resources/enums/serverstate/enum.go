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

package serverstate

import "strings"

// Status values reported by the compute service
const (
	Active       = "ACTIVE"
	Build        = "BUILD"
	Error        = "ERROR"
	Shutoff      = "SHUTOFF"
	Suspended    = "SUSPENDED"
	Reboot       = "REBOOT"
	HardReboot   = "HARD_REBOOT"
	Rebuild      = "REBUILD"
	Unknown      = "UNKNOWN"
	Deleted      = "DELETED"
	SoftDeleted  = "SOFT_DELETED"
	VerifyResize = "VERIFY_RESIZE"
)

// Task states reported in OS-EXT-STS:task_state, uppercased
const (
	TaskStateField         = "OS-EXT-STS:task_state"
	TaskRebuildSpawning    = "REBUILD_SPAWNING"
	TaskImageUploading     = "IMAGE_UPLOADING"
	TaskImagePendingUpload = "IMAGE_PENDING_UPLOAD"
	TaskImageSnapshot      = "IMAGE_SNAPSHOT"
	TaskImageSnapshotWait  = "IMAGE_SNAPSHOT_PENDING"
	TaskImageBackup        = "IMAGE_BACKUP"
	TaskUploading          = "UPLOADING"
	TaskUploadingPending   = "UPLOADING_PENDING"
)

// Volume status values reported by the block storage service
const (
	VolumeAvailable = "available"
	VolumeInUse     = "in-use"
)

var (
	rebootPending = map[string]struct{}{Reboot: {}, HardReboot: {}, Unknown: {}}
	uploading     = map[string]struct{}{
		TaskImageUploading: {}, TaskImagePendingUpload: {}, TaskImageSnapshot: {}, TaskImageSnapshotWait: {},
		TaskImageBackup: {}, TaskUploading: {}, TaskUploadingPending: {},
	}
	volumeErrors = map[string]struct{}{
		"error": {}, "error_deleting": {}, "error_backing-up": {}, "error_restoring": {}, "error_extending": {}, "error_managing": {},
	}
)

// IsRebooting tells if 'status' is a transient status of a reboot
func IsRebooting(status string) bool {
	_, ok := rebootPending[strings.ToUpper(status)]
	return ok
}

// IsUploading tells if the task state is one of the image upload steps
func IsUploading(taskState string) bool {
	_, ok := uploading[strings.ToUpper(taskState)]
	return ok
}

// IsVolumeError tells if the volume status is in the error set
func IsVolumeError(status string) bool {
	_, ok := volumeErrors[strings.ToLower(status)]
	return ok
}
