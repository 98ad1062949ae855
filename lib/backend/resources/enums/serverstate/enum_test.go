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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	assert.True(t, IsRebooting("HARD_REBOOT"))
	assert.True(t, IsRebooting("unknown"))
	assert.False(t, IsRebooting(Active))

	assert.True(t, IsUploading("image_uploading"))
	assert.True(t, IsUploading(TaskUploadingPending))
	assert.False(t, IsUploading(""))

	assert.True(t, IsVolumeError("error_deleting"))
	assert.False(t, IsVolumeError(VolumeInUse))
}
