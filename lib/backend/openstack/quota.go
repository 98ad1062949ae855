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

	blockquotas "github.com/gophercloud/gophercloud/openstack/blockstorage/extensions/quotasets"
	computequotas "github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/quotasets"
	networkquotas "github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/quotas"

	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/valid"
)

// InfiniteQuota is reported by services without quota, and for unlimited (-1) quotas
const InfiniteQuota = 1000000000

// GetQuota returns the value of quota 'quotaType' of 'service' for the project (name or id, current project when empty)
func (c *Client) GetQuota(ctx context.Context, service Service, project, quotaType string) (int, fail.Error) {
	if valid.IsNil(c) {
		return 0, fail.InvalidInstanceError()
	}
	if quotaType == "" {
		return 0, fail.InvalidParameterCannotBeEmptyStringError("quotaType")
	}

	switch service {
	case IdentityService, ImageService:
		return InfiniteQuota, nil
	case ComputeService, NetworkService, BlockStorageService:
	default:
		return 0, fail.NotImplementedError("quotas of service '%s' are not managed", service)
	}

	projectID, xerr := c.projectRef(ctx, project)
	if xerr != nil {
		return 0, xerr
	}
	sc, xerr := c.ServiceClient(ctx, service)
	if xerr != nil {
		return 0, xerr
	}

	var (
		raw      map[string]interface{}
		envelope string
	)
	xerr = c.call(ctx, service, func() error {
		raw = nil
		switch service {
		case ComputeService:
			envelope = "quota_set"
			return computequotas.Get(sc, projectID).ExtractInto(&raw)
		case BlockStorageService:
			envelope = "quota_set"
			return blockquotas.Get(sc, projectID).ExtractInto(&raw)
		default:
			envelope = "quota"
			return networkquotas.Get(sc, projectID).ExtractInto(&raw)
		}
	})
	if xerr != nil {
		return 0, annotate(xerr, KindProject, projectID)
	}

	quotas := data.Bag(raw).Bag(envelope)
	value, ok := quotas.Int(quotaType)
	if !ok {
		return 0, fail.NotFoundError("no quota '%s' reported by service '%s'", quotaType, service)
	}
	if value < 0 {
		return InfiniteQuota, nil
	}
	return value, nil
}

func (c *Client) projectRef(ctx context.Context, project string) (string, fail.Error) {
	if project == "" || project == c.projectID {
		if c.projectID == "" {
			return "", fail.InvalidRequestError("current project id is unknown, a project is required")
		}
		return c.projectID, nil
	}
	if project == c.config.ProjectName && c.projectID != "" {
		return c.projectID, nil
	}
	item, xerr := c.FindResource(ctx, KindProject, project)
	if xerr != nil {
		return "", xerr
	}
	return item.String("id"), nil
}
