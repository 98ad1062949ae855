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
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gophercloud/gophercloud"

	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/valid"
)

const maxListPages = 1000

var (
	readCodes   = []int{200, 203}
	writeCodes  = []int{200, 201, 202, 204}
	deleteCodes = []int{200, 202, 204}
)

// ResourceID returns the identifier of 'item', prefixed by its parent id for kinds living under a parent collection
func ResourceID(kind Kind, item data.Bag) string {
	d, xerr := lookup(kind)
	if xerr != nil || item == nil {
		return ""
	}
	id := item.String(d.id())
	if id == "" {
		return ""
	}
	if d.parentField != "" {
		if parent := item.String(d.parentField); parent != "" {
			return parent + "/" + id
		}
	}
	return id
}

// splitRef separates parent id and resource id of kinds living under a parent collection
func splitRef(d descriptor, kind Kind, ref string) (string, string, fail.Error) {
	if ref == "" {
		return "", "", fail.InvalidParameterCannotBeEmptyStringError("id")
	}
	if d.parentKey == "" {
		return "", ref, nil
	}
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fail.InvalidParameterError("id", "%s id must be '<%s>/<id>', got '%s'", kind, d.parentKey, ref)
	}
	return parts[0], parts[1], nil
}

func (d descriptor) collectionURL(sc *gophercloud.ServiceClient, parent string, listing bool) string {
	path := d.path
	if listing && d.listPath != "" {
		path = d.listPath
	}
	if parent != "" {
		return sc.ServiceURL(d.parentPath, url.PathEscape(parent), path)
	}
	return sc.ServiceURL(path)
}

func (d descriptor) itemURL(sc *gophercloud.ServiceClient, parent, id string) string {
	if parent != "" {
		return sc.ServiceURL(d.parentPath, url.PathEscape(parent), d.path, url.PathEscape(id))
	}
	return sc.ServiceURL(d.path, url.PathEscape(id))
}

func (d descriptor) unwrap(resp map[string]interface{}) data.Bag {
	if d.singular == "" {
		return data.Bag(resp)
	}
	if inner, ok := data.ToBag(resp[d.singular]); ok {
		return inner
	}
	return data.Bag(resp)
}

// wrap puts body in the envelope of the kind; keys prefixed by "os:" (ie "os:scheduler_hints") are siblings of the envelope
func (d descriptor) wrap(body data.Bag) interface{} {
	if d.singular == "" {
		return body
	}
	inner := data.Bag{}
	out := map[string]interface{}{d.singular: inner}
	for k, v := range body {
		if strings.HasPrefix(k, "os:") {
			out[k] = v
			continue
		}
		inner[k] = v
	}
	return out
}

// Get returns the resource of kind 'kind' identified by 'id'
func (c *Client) Get(ctx context.Context, kind Kind, id string) (_ data.Bag, ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if valid.IsNil(c) {
		return nil, fail.InvalidInstanceError()
	}
	d, xerr := lookup(kind)
	if xerr != nil {
		return nil, xerr
	}
	parent, ref, xerr := splitRef(d, kind, id)
	if xerr != nil {
		return nil, xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("stack.openstack"), "(%s, %s)", kind, id).WithStopwatch().Entering()
	defer tracer.Exiting()

	sc, xerr := c.ServiceClient(ctx, d.service)
	if xerr != nil {
		return nil, xerr
	}

	var resp map[string]interface{}
	xerr = c.call(ctx, d.service, func() error {
		resp = nil
		_, err := sc.Get(d.itemURL(sc, parent, ref), &resp, &gophercloud.RequestOpts{OkCodes: readCodes})
		return err
	})
	if xerr != nil {
		return nil, annotate(xerr, kind, id)
	}
	return d.unwrap(resp), nil
}

// List returns the resources of kind 'kind' matching 'query'
// Network-family lists are scoped to the current project unless query sets project_id; compute, image and block
// storage lists honor 'all_projects'.
func (c *Client) List(ctx context.Context, kind Kind, query data.Bag) (_ []data.Bag, ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if valid.IsNil(c) {
		return nil, fail.InvalidInstanceError()
	}
	d, xerr := lookup(kind)
	if xerr != nil {
		return nil, xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("stack.openstack"), "(%s)", kind).WithStopwatch().Entering()
	defer tracer.Exiting()

	params := data.Bag{}
	params.ForceMerge(query)
	var parent string
	if d.parentKey != "" {
		if v, ok := params.Pop(d.parentKey); ok {
			parent = fmt.Sprintf("%v", v)
		} else if kind != KindRecordSet {
			return nil, fail.InvalidParameterError("query", "'%s' is required to list %s", d.parentKey, kind)
		}
	}
	c.scopeListQuery(d, kind, params)

	sc, xerr := c.ServiceClient(ctx, d.service)
	if xerr != nil {
		return nil, xerr
	}

	target := d.collectionURL(sc, parent, true) + encodeQuery(params)
	var out []data.Bag
	for page := 0; target != "" && page < maxListPages; page++ {
		var resp map[string]interface{}
		current := target
		xerr = c.call(ctx, d.service, func() error {
			resp = nil
			_, err := sc.Get(current, &resp, &gophercloud.RequestOpts{OkCodes: readCodes})
			return err
		})
		if xerr != nil {
			return nil, annotate(xerr, kind, "")
		}

		for _, v := range data.Bag(resp).Slice(d.plural) {
			item, ok := data.ToBag(v)
			if !ok {
				continue
			}
			if d.itemWrapped {
				if inner := item.Bag(d.singular); inner != nil {
					item = inner
				}
			}
			out = append(out, item)
		}

		target = nextPage(sc, resp, d.plural)
		if target == current {
			break
		}
	}
	if out == nil {
		out = []data.Bag{}
	}
	return out, nil
}

func (c *Client) scopeListQuery(d descriptor, kind Kind, params data.Bag) {
	if v, ok := params.Pop("all_projects"); ok {
		enabled := false
		switch casted := v.(type) {
		case bool:
			enabled = casted
		default:
			enabled = data.Bag{"v": v}.Bool("v")
		}
		if enabled && allProjectsCapable.Contains(d.service) && d.allProjectsParam != "" {
			params[d.allProjectsParam] = "True"
		}
	}
	if IsNetworkFamily(kind) && !params.IsSet("project_id") && !params.IsSet("tenant_id") && c.projectID != "" {
		params["project_id"] = c.projectID
	}
}

// nextPage finds the link to the next page of a list, whatever the convention of the service
func nextPage(sc *gophercloud.ServiceClient, resp data.Bag, plural string) string {
	var next string
	for _, link := range resp.Bags(plural + "_links") {
		if link.String("rel") == "next" {
			next = link.String("href")
		}
	}
	if next == "" {
		next = resp.String("next")
	}
	if next == "" {
		next = resp.Bag("links").String("next")
	}
	if next == "" {
		return ""
	}

	ref, err := url.Parse(next)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return next
	}
	base, err := url.Parse(sc.Endpoint)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func encodeQuery(params data.Bag) string {
	if len(params) == 0 {
		return ""
	}
	values := url.Values{}
	keys := params.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		v := params[k]
		if v == nil {
			continue
		}
		if items := params.Slice(k); items != nil {
			for _, item := range items {
				values.Add(k, fmt.Sprintf("%v", item))
			}
			continue
		}
		if s := params.String(k); s != "" {
			values.Add(k, s)
		}
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// Create creates a resource of kind 'kind' from 'body'; unknown keys are passed through verbatim
func (c *Client) Create(ctx context.Context, kind Kind, body data.Bag) (_ data.Bag, ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if valid.IsNil(c) {
		return nil, fail.InvalidInstanceError()
	}
	d, xerr := lookup(kind)
	if xerr != nil {
		return nil, xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("stack.openstack"), "(%s)", kind).WithStopwatch().Entering()
	defer tracer.Exiting()

	payload := data.Bag{}
	payload.ForceMerge(body)
	var parent string
	if d.parentKey != "" {
		v, ok := payload.Pop(d.parentKey)
		if !ok {
			return nil, fail.InvalidParameterError("body", "'%s' is required to create %s", d.parentKey, kind)
		}
		parent = fmt.Sprintf("%v", v)
	}

	sc, xerr := c.ServiceClient(ctx, d.service)
	if xerr != nil {
		return nil, xerr
	}

	var resp map[string]interface{}
	xerr = c.call(ctx, d.service, func() error {
		resp = nil
		_, err := sc.Post(d.collectionURL(sc, parent, false), d.wrap(payload), &resp, &gophercloud.RequestOpts{OkCodes: writeCodes})
		return err
	})
	if xerr != nil {
		return nil, annotate(xerr, kind, payload.String("name"))
	}

	out := d.unwrap(resp)
	if parent != "" && d.parentField != "" && !out.IsSet(d.parentField) {
		out[d.parentField] = parent
	}
	return out, nil
}

// Update updates the resource of kind 'kind' identified by 'id' with the content of 'body'
func (c *Client) Update(ctx context.Context, kind Kind, id string, body data.Bag) (_ data.Bag, ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if valid.IsNil(c) {
		return nil, fail.InvalidInstanceError()
	}
	d, xerr := lookup(kind)
	if xerr != nil {
		return nil, xerr
	}
	if d.updateMethod == "" {
		return nil, fail.NotImplementedError("%s cannot be updated", kind)
	}
	parent, ref, xerr := splitRef(d, kind, id)
	if xerr != nil {
		return nil, xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("stack.openstack"), "(%s, %s)", kind, id).WithStopwatch().Entering()
	defer tracer.Exiting()

	sc, xerr := c.ServiceClient(ctx, d.service)
	if xerr != nil {
		return nil, xerr
	}

	var (
		payload interface{} = d.wrap(body)
		opts                = &gophercloud.RequestOpts{OkCodes: writeCodes}
	)
	if kind == KindImage {
		payload = imagePatch(body)
		opts.MoreHeaders = map[string]string{"Content-Type": "application/openstack-images-v2.1-json-patch"}
	}

	var resp map[string]interface{}
	xerr = c.call(ctx, d.service, func() error {
		resp = nil
		var err error
		target := d.itemURL(sc, parent, ref)
		if d.updateMethod == http.MethodPatch {
			_, err = sc.Patch(target, payload, &resp, opts)
		} else {
			_, err = sc.Put(target, payload, &resp, opts)
		}
		return err
	})
	if xerr != nil {
		return nil, annotate(xerr, kind, id)
	}
	return d.unwrap(resp), nil
}

// imagePatch converts a bag of attributes to the JSON patch expected by the image service
func imagePatch(body data.Bag) []map[string]interface{} {
	keys := body.Keys()
	sort.Strings(keys)
	out := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]interface{}{"op": "replace", "path": "/" + k, "value": body[k]})
	}
	return out
}

// Delete deletes the resource of kind 'kind' identified by 'id'
func (c *Client) Delete(ctx context.Context, kind Kind, id string) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if valid.IsNil(c) {
		return fail.InvalidInstanceError()
	}
	d, xerr := lookup(kind)
	if xerr != nil {
		return xerr
	}
	parent, ref, xerr := splitRef(d, kind, id)
	if xerr != nil {
		return xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("stack.openstack"), "(%s, %s)", kind, id).WithStopwatch().Entering()
	defer tracer.Exiting()

	sc, xerr := c.ServiceClient(ctx, d.service)
	if xerr != nil {
		return xerr
	}

	xerr = c.call(ctx, d.service, func() error {
		_, err := sc.Delete(d.itemURL(sc, parent, ref), &gophercloud.RequestOpts{OkCodes: deleteCodes})
		return err
	})
	if xerr != nil {
		return annotate(xerr, kind, id)
	}
	return nil
}

// annotate adds the resource kind and identifier to an error
func annotate(xerr fail.Error, kind Kind, id string) fail.Error {
	if xerr == nil {
		return nil
	}
	xerr.Annotate("kind", string(kind))
	if id != "" {
		xerr.Annotate("id", id)
	}
	return xerr
}
