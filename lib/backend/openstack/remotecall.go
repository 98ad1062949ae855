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
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/CS-SI/osplugin/lib/backend/metrics"
	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/temporal"
)

// CallOption customizes a RetryableRemoteCall
type CallOption func(*callSettings)

type callSettings struct {
	service  Service
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	minDelay time.Duration
}

// WithService labels the call with the service it targets
func WithService(service Service) CallOption {
	return func(s *callSettings) { s.service = service }
}

// WithBreaker runs the call through the circuit breaker 'cb'
func WithBreaker(cb *gobreaker.CircuitBreaker) CallOption {
	return func(s *callSettings) { s.breaker = cb }
}

// WithTimeout overrides the maximum time spent retrying the call
func WithTimeout(d time.Duration) CallOption {
	return func(s *callSettings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// newBreaker creates the circuit breaker protecting the calls to one service
func newBreaker(service Service) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(service),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.Warnf("circuit breaker of service '%s' switched from %s to %s", name, from, to)
			metrics.BreakerTransitions.WithLabelValues(name, to.String()).Inc()
		},
	})
}

// RetryableRemoteCall calls a remote API with tolerance to communication failures
// Remote API is done inside 'callback' parameter and returns remote error if necessary that 'convertError' function converts to plugin error
func RetryableRemoteCall(ctx context.Context, callback func() error, convertError func(error) fail.Error, options ...CallOption) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if callback == nil {
		return fail.InvalidParameterCannotBeNilError("callback")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	normalizeError := convertError
	if normalizeError == nil {
		normalizeError = fail.ConvertError
	}

	settings := callSettings{
		timeout:  temporal.RemoteCallTimeout(),
		minDelay: temporal.DefaultRemoteCallMinDelay,
	}
	for _, opt := range options {
		opt(&settings)
	}

	attempt := func() error {
		var captured fail.Error
		run := func() (interface{}, error) {
			if innerErr := callback(); innerErr != nil {
				captured = normalizeError(innerErr)
				if isTransient(captured) {
					// only transport failures count against the breaker
					return nil, captured
				}
			}
			return nil, nil
		}

		var err error
		if settings.breaker != nil {
			_, err = settings.breaker.Execute(run)
		} else {
			_, err = run()
		}
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			countCall(settings.service, "rejected")
			return backoff.Permanent(fail.NotAvailableErrorWithCause(err, "service '%s' is temporarily disabled after repeated failures", settings.service))
		case captured == nil:
			countCall(settings.service, "success")
			return nil
		case isTransient(captured):
			countCall(settings.service, "transient")
			logrus.WithContext(ctx).Debugf("transient failure calling service '%s', retrying: %v", settings.service, captured)
			return captured
		default:
			countCall(settings.service, "failure")
			return backoff.Permanent(captured)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = settings.minDelay
	policy.MaxElapsedTime = settings.timeout
	err := backoff.Retry(attempt, backoff.WithContext(policy, ctx))
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		xerr := fail.ConvertError(err)
		if isTransient(xerr) {
			return fail.Wrap(xerr, "stopping retries")
		}
		return xerr
	}
	return nil
}

func countCall(service Service, outcome string) {
	name := string(service)
	if name == "" {
		name = "unknown"
	}
	metrics.RemoteCalls.WithLabelValues(name, outcome).Inc()
}
