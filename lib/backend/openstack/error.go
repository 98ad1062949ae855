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
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/gophercloud/gophercloud"
	"github.com/sirupsen/logrus"

	"github.com/CS-SI/osplugin/lib/utils/data/json"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// NormalizeError translates gophercloud or openstack error to plugin error
func NormalizeError(err error) fail.Error {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case fail.Error:
		return e
	case gophercloud.ErrDefault400: // bad request
		return fail.InvalidRequestError(responseReason(e.Body))
	case *gophercloud.ErrDefault400:
		return fail.InvalidRequestError(responseReason(e.Body))
	case gophercloud.ErrDefault401: // unauthorized
		return fail.NotAuthenticatedError(responseReason(e.Body))
	case *gophercloud.ErrDefault401:
		return fail.NotAuthenticatedError(responseReason(e.Body))
	case gophercloud.ErrDefault403: // forbidden
		return fail.ForbiddenError(responseReason(e.Body))
	case *gophercloud.ErrDefault403:
		return fail.ForbiddenError(responseReason(e.Body))
	case gophercloud.ErrDefault404: // not found
		return fail.NotFoundError(responseReason(e.Body))
	case *gophercloud.ErrDefault404:
		return fail.NotFoundError(responseReason(e.Body))
	case gophercloud.ErrDefault408: // request timeout
		return fail.TimeoutError(nil, 0, responseReason(e.Body))
	case *gophercloud.ErrDefault408:
		return fail.TimeoutError(nil, 0, responseReason(e.Body))
	case gophercloud.ErrDefault409: // conflict
		return fail.InvalidRequestError(responseReason(e.Body))
	case *gophercloud.ErrDefault409:
		return fail.InvalidRequestError(responseReason(e.Body))
	case gophercloud.ErrDefault429: // too many requests
		return fail.OverloadError(responseReason(e.Body))
	case *gophercloud.ErrDefault429:
		return fail.OverloadError(responseReason(e.Body))
	case gophercloud.ErrDefault500: // internal server error
		return fail.ExecutionError(nil, responseReason(e.Body))
	case *gophercloud.ErrDefault500:
		return fail.ExecutionError(nil, responseReason(e.Body))
	case gophercloud.ErrDefault503: // service unavailable
		return fail.NotAvailableError(responseReason(e.Body))
	case *gophercloud.ErrDefault503:
		return fail.NotAvailableError(responseReason(e.Body))
	case gophercloud.ErrResourceNotFound:
		return fail.NotFoundError(e.Error())
	case *gophercloud.ErrResourceNotFound:
		return fail.NotFoundError(e.Error())
	case gophercloud.ErrMultipleResourcesFound:
		return fail.DuplicateError(e.Error())
	case *gophercloud.ErrMultipleResourcesFound:
		return fail.DuplicateError(e.Error())
	case gophercloud.ErrUnexpectedResponseCode:
		return qualifyGophercloudResponseCode(&e)
	case *gophercloud.ErrUnexpectedResponseCode:
		return qualifyGophercloudResponseCode(e)
	case *url.Error:
		return fail.NotAvailableErrorWithCause(e, "failed to reach endpoint")
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fail.NotAvailableErrorWithCause(err, "failed to reach endpoint")
		}
		logrus.Debugf("Unhandled error (%s) received from provider: %s", reflect.TypeOf(err).String(), err.Error())
		return fail.NewErrorWithCause(err, "unhandled error received from provider")
	}
}

// qualifyGophercloudResponseCode requalifies the unqualified error with appropriate error based on error code
func qualifyGophercloudResponseCode(err *gophercloud.ErrUnexpectedResponseCode) fail.Error {
	if err == nil {
		return nil
	}

	var newError error
	switch err.Actual {
	case 400:
		newError = &gophercloud.ErrDefault400{ErrUnexpectedResponseCode: *err}
	case 401:
		newError = &gophercloud.ErrDefault401{ErrUnexpectedResponseCode: *err}
	case 403:
		newError = &gophercloud.ErrDefault403{ErrUnexpectedResponseCode: *err}
	case 404:
		newError = &gophercloud.ErrDefault404{ErrUnexpectedResponseCode: *err}
	case 408:
		newError = &gophercloud.ErrDefault408{ErrUnexpectedResponseCode: *err}
	case 409:
		newError = &gophercloud.ErrDefault409{ErrUnexpectedResponseCode: *err}
	case 429:
		newError = &gophercloud.ErrDefault429{ErrUnexpectedResponseCode: *err}
	case 500:
		newError = &gophercloud.ErrDefault500{ErrUnexpectedResponseCode: *err}
	case 503:
		newError = &gophercloud.ErrDefault503{ErrUnexpectedResponseCode: *err}
	}

	if newError != nil {
		return NormalizeError(newError)
	}
	if err.Actual >= 500 {
		return fail.NotAvailableError("unexpected response code: code: %d, reason: %s", err.Actual, responseReason(err.Body))
	}
	return fail.NewError("unexpected response code: code: %d, reason: %s", err.Actual, responseReason(err.Body))
}

// responseReason extracts the message of an OpenStack error body, which is either
// {"<kind>": {"message": ...}} (nova, cinder), {"NeutronError": {"message": ...}} or {"error": {"message": ...}} (keystone)
func responseReason(body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return "no reason given"
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return raw
	}
	if msg, ok := decoded["message"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := decoded["description"].(string); ok && msg != "" {
		return msg
	}
	for _, v := range decoded {
		if inner, ok := v.(map[string]interface{}); ok {
			if msg, ok := inner["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return raw
}

// isTransient tells if a normalized error may disappear by itself on retry
func isTransient(xerr fail.Error) bool {
	switch xerr.(type) {
	case *fail.ErrNotAvailable, *fail.ErrTimeout, *fail.ErrExecution:
		return true
	default:
		return false
	}
}
