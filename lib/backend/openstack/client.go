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
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gophercloud/gophercloud"
	gcos "github.com/gophercloud/gophercloud/openstack"
	tokens2 "github.com/gophercloud/gophercloud/openstack/identity/v2/tokens"
	tokens3 "github.com/gophercloud/gophercloud/openstack/identity/v3/tokens"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
	"github.com/CS-SI/osplugin/lib/utils/valid"
)

// Client is the facade over the OpenStack service endpoints used by the plugin
type Client struct {
	config       ClientConfig
	provider     *gophercloud.ProviderClient
	endpointOpts gophercloud.EndpointOpts
	projectID    string
	timeout      time.Duration

	lock     sync.Mutex
	services map[Service]*gophercloud.ServiceClient
	breakers map[Service]*gobreaker.CircuitBreaker
}

// New validates the configuration, authenticates and returns a *Client
func New(ctx context.Context, cfg ClientConfig) (_ *Client, ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("stack.openstack"), "(%s)", cfg.AuthURL).WithStopwatch().Entering()
	defer tracer.Exiting()

	if xerr := cfg.Validate(); xerr != nil {
		return nil, xerr
	}

	c := &Client{
		config:       cfg,
		endpointOpts: gophercloud.EndpointOpts{Region: cfg.RegionName, Availability: cfg.Availability()},
		services:     map[Service]*gophercloud.ServiceClient{},
		breakers:     map[Service]*gobreaker.CircuitBreaker{},
	}

	xerr := RetryableRemoteCall(ctx,
		func() error {
			provider, innerErr := gcos.NewClient(cfg.AuthURL)
			if innerErr != nil {
				return innerErr
			}
			if transport, innerErr := cfg.transport(); innerErr != nil {
				return innerErr
			} else if transport != nil {
				provider.HTTPClient = http.Client{Transport: transport}
			}
			provider.Context = ctx
			if innerErr = gcos.Authenticate(provider, cfg.AuthOptions()); innerErr != nil {
				return innerErr
			}
			c.provider = provider
			return nil
		},
		NormalizeError,
		WithService(IdentityService), WithBreaker(c.breaker(IdentityService)),
	)
	if xerr != nil {
		switch xerr.(type) {
		case *fail.ErrNotAuthenticated:
			return nil, fail.NotAuthenticatedError("authentication failed for user '%s' on '%s'", cfg.Username, cfg.AuthURL)
		default:
			return nil, xerr
		}
	}

	c.projectID = cfg.ProjectID
	if c.projectID == "" {
		c.projectID = projectIDFromAuthResult(c.provider.GetAuthResult())
	}
	if c.projectID == "" {
		logrus.WithContext(ctx).Warnf("failed to determine current project id, network listings will not be scoped")
	}
	return c, nil
}

// NewWithServiceClients returns a *Client using already built service clients (no authentication done)
func NewWithServiceClients(cfg ClientConfig, projectID string, clients map[Service]*gophercloud.ServiceClient) *Client {
	c := &Client{
		config:    cfg,
		projectID: projectID,
		services:  map[Service]*gophercloud.ServiceClient{},
		breakers:  map[Service]*gobreaker.CircuitBreaker{},
	}
	for k, v := range clients {
		c.services[k] = v
		if c.provider == nil && v != nil {
			c.provider = v.ProviderClient
		}
	}
	return c
}

func projectIDFromAuthResult(result gophercloud.AuthResult) string {
	switch r := result.(type) {
	case tokens3.CreateResult:
		if project, err := r.ExtractProject(); err == nil && project != nil {
			return project.ID
		}
	case tokens3.GetResult:
		if project, err := r.ExtractProject(); err == nil && project != nil {
			return project.ID
		}
	case tokens2.CreateResult:
		if token, err := r.ExtractToken(); err == nil && token != nil {
			return token.Tenant.ID
		}
	}
	return ""
}

func (c ClientConfig) transport() (http.RoundTripper, error) {
	if !c.Insecure && c.CACert == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: c.Insecure} // nolint
	if c.CACert != "" {
		pem, err := os.ReadFile(c.CACert)
		if err != nil {
			return nil, fail.InvalidParameterError("ca_cert", "failed to read '%s': %v", c.CACert, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fail.InvalidParameterError("ca_cert", "no certificate found in '%s'", c.CACert)
		}
		tlsConfig.RootCAs = pool
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return transport, nil
}

// IsNull tells if the instance is a null value
func (c *Client) IsNull() bool {
	return c == nil || c.services == nil
}

// Config returns the configuration used to build the client
func (c *Client) Config() ClientConfig {
	if valid.IsNil(c) {
		return ClientConfig{}
	}
	return c.config
}

// ProjectID returns the id of the project the client is scoped to
func (c *Client) ProjectID() string {
	if valid.IsNil(c) {
		return ""
	}
	return c.projectID
}

// SetTimeout overrides the maximum time spent retrying one remote call
func (c *Client) SetTimeout(d time.Duration) {
	if !valid.IsNil(c) {
		c.timeout = d
	}
}

func (c *Client) breaker(service Service) *gobreaker.CircuitBreaker {
	c.lock.Lock()
	defer c.lock.Unlock()
	cb, ok := c.breakers[service]
	if !ok {
		cb = newBreaker(service)
		c.breakers[service] = cb
	}
	return cb
}

// call runs 'callback' through RetryableRemoteCall with the settings of 'service'
func (c *Client) call(ctx context.Context, service Service, callback func() error) fail.Error {
	return RetryableRemoteCall(ctx, callback, NormalizeError,
		WithService(service), WithBreaker(c.breaker(service)), WithTimeout(c.timeout),
	)
}

// ServiceClient returns the gophercloud service client of 'service', creating it on first use
func (c *Client) ServiceClient(ctx context.Context, service Service) (*gophercloud.ServiceClient, fail.Error) {
	if valid.IsNil(c) {
		return nil, fail.InvalidInstanceError()
	}

	c.lock.Lock()
	sc, ok := c.services[service]
	c.lock.Unlock()
	if ok {
		return sc, nil
	}
	if c.provider == nil {
		return nil, fail.InvalidInstanceError()
	}

	var builder func(*gophercloud.ProviderClient, gophercloud.EndpointOpts) (*gophercloud.ServiceClient, error)
	switch service {
	case ComputeService:
		builder = gcos.NewComputeV2
	case NetworkService:
		builder = gcos.NewNetworkV2
	case ImageService:
		builder = gcos.NewImageServiceV2
	case BlockStorageService:
		builder = gcos.NewBlockStorageV3
	case IdentityService:
		builder = gcos.NewIdentityV3
	case DNSService:
		builder = gcos.NewDNSV2
	case SharedFileSystemService:
		builder = gcos.NewSharedFileSystemV2
	default:
		return nil, fail.NotImplementedError("unmanaged OpenStack service '%s'", service)
	}

	xerr := c.call(ctx, service, func() (innerErr error) {
		sc, innerErr = builder(c.provider, c.endpointOpts)
		return innerErr
	})
	if xerr != nil {
		return nil, fail.Wrap(xerr, "failed to find endpoint of service '%s'", service)
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.services[service] = sc
	return sc, nil
}
