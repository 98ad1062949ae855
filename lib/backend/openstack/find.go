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

	"github.com/sirupsen/logrus"

	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Getter is the part of the adapter able to get and list resources
type Getter interface {
	Get(ctx context.Context, kind Kind, id string) (data.Bag, fail.Error)
	List(ctx context.Context, kind Kind, query data.Bag) ([]data.Bag, fail.Error)
}

// FindResource looks for a resource of kind 'kind' by id or by name:
// a direct get is tried first; when it fails, the list of the kind is walked, matching either id or name.
// Returns *fail.ErrDuplicate if more than one resource matches, *fail.ErrNotFound if none does.
func FindResource(ctx context.Context, getter Getter, kind Kind, nameOrID string) (data.Bag, fail.Error) {
	if getter == nil {
		return nil, fail.InvalidParameterCannotBeNilError("getter")
	}
	if nameOrID == "" {
		return nil, fail.InvalidParameterCannotBeEmptyStringError("nameOrID")
	}

	item, xerr := getter.Get(ctx, kind, nameOrID)
	if xerr == nil && item != nil {
		return item, nil
	}
	if xerr != nil {
		switch xerr.(type) {
		case *fail.ErrNotFound, *fail.ErrInvalidRequest, *fail.ErrInvalidParameter:
			// a name given where an id is expected ends up here
			logrus.WithContext(ctx).Tracef("direct get of %s '%s' failed, looking through list: %v", kind, nameOrID, xerr)
		default:
			return nil, xerr
		}
	}

	list, xerr := getter.List(ctx, kind, nil)
	if xerr != nil {
		return nil, xerr
	}

	var found []data.Bag
	for _, v := range list {
		if v.String("name") == nameOrID || v.String("id") == nameOrID || ResourceID(kind, v) == nameOrID {
			found = append(found, v)
		}
	}
	switch len(found) {
	case 0:
		xerr := fail.NotFoundError("failed to find %s '%s'", kind, nameOrID)
		xerr.Annotate("kind", string(kind))
		xerr.Annotate("id", nameOrID)
		return nil, xerr
	case 1:
		return found[0], nil
	default:
		xerr := fail.DuplicateError("found %d %ss matching '%s'", len(found), kind, nameOrID)
		xerr.Annotate("kind", string(kind))
		xerr.Annotate("id", nameOrID)
		return nil, xerr
	}
}

// FindResource is the method version of FindResource
func (c *Client) FindResource(ctx context.Context, kind Kind, nameOrID string) (data.Bag, fail.Error) {
	return FindResource(ctx, c, kind, nameOrID)
}
