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
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gophercloud/gophercloud"
	"github.com/mitchellh/mapstructure"

	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// ClientConfig contains the credentials and endpoint parameters used to reach an OpenStack cloud
type ClientConfig struct {
	AuthURL                     string `mapstructure:"auth_url" json:"auth_url"`
	Username                    string `mapstructure:"username" json:"username"`
	Password                    string `mapstructure:"password" json:"password"`
	ProjectName                 string `mapstructure:"project_name" json:"project_name"`
	TenantName                  string `mapstructure:"tenant_name" json:"tenant_name"`
	ProjectID                   string `mapstructure:"project_id" json:"project_id"`
	RegionName                  string `mapstructure:"region_name" json:"region_name"`
	UserDomainID                string `mapstructure:"user_domain_id" json:"user_domain_id"`
	UserDomainName              string `mapstructure:"user_domain_name" json:"user_domain_name"`
	ProjectDomainID             string `mapstructure:"project_domain_id" json:"project_domain_id"`
	ProjectDomainName           string `mapstructure:"project_domain_name" json:"project_domain_name"`
	Token                       string `mapstructure:"token" json:"token"`
	ApplicationCredentialID     string `mapstructure:"application_credential_id" json:"application_credential_id"`
	ApplicationCredentialSecret string `mapstructure:"application_credential_secret" json:"application_credential_secret"`
	Interface                   string `mapstructure:"interface" json:"interface"`
	Insecure                    bool   `mapstructure:"insecure" json:"insecure"`
	CACert                      string `mapstructure:"ca_cert" json:"ca_cert"`

	// Extra keeps the keys not known, passed through untouched
	Extra map[string]interface{} `mapstructure:",remain" json:"-"`
}

// ErrInvalidDomain is returned when identity v3 domain parameters do not form a recognized pair
type ErrInvalidDomain struct {
	*fail.ErrInvalidRequest
}

// InvalidDomainError creates an ErrInvalidDomain
func InvalidDomainError(present []string) *ErrInvalidDomain {
	xerr := fail.InvalidRequestError("invalid domain combination [%s] for identity v3, expected one of (user_domain_id, project_domain_id), (user_domain_name, project_domain_name), (user_domain_id, project_domain_name), (user_domain_name, project_domain_id)", strings.Join(present, ", "))
	xerr.Annotate("field", "client_config")
	return &ErrInvalidDomain{ErrInvalidRequest: xerr}
}

// IsNull tells if the instance is null
func (e *ErrInvalidDomain) IsNull() bool {
	return e == nil || e.ErrInvalidRequest.IsNull()
}

// Unwrap exposes the embedded *fail.ErrInvalidRequest to errors.As
func (e *ErrInvalidDomain) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.ErrInvalidRequest
}

var validDomainPairs = [][2]string{
	{"user_domain_id", "project_domain_id"},
	{"user_domain_name", "project_domain_name"},
	{"user_domain_id", "project_domain_name"},
	{"user_domain_name", "project_domain_id"},
}

// DecodeClientConfig decodes a bag of parameters into a ClientConfig
func DecodeClientConfig(in map[string]interface{}) (ClientConfig, fail.Error) {
	var out ClientConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return ClientConfig{}, fail.ConvertError(err)
	}
	if err = decoder.Decode(in); err != nil {
		return ClientConfig{}, fail.InvalidParameterError("client_config", err.Error())
	}
	if out.ProjectName == "" {
		out.ProjectName = out.TenantName
	}
	out.TenantName = ""
	return out, nil
}

// IsV3 tells if the auth URL targets identity v3
func (c ClientConfig) IsV3() bool {
	return strings.Contains(c.AuthURL, "v3")
}

func (c ClientConfig) usesApplicationCredential() bool {
	return c.ApplicationCredentialID != "" || c.ApplicationCredentialSecret != ""
}

func (c ClientConfig) usesPassword() bool {
	return c.Token == "" && !c.usesApplicationCredential()
}

// Validate checks the content of the configuration
func (c ClientConfig) Validate() fail.Error {
	projectName := c.ProjectName
	if projectName == "" {
		projectName = c.TenantName
	}
	err := validation.ValidateStruct(&c,
		validation.Field(&c.AuthURL, validation.Required, is.URL),
		validation.Field(&c.Username, validation.When(c.usesPassword(), validation.Required)),
		validation.Field(&c.Password, validation.When(c.usesPassword(), validation.Required)),
		validation.Field(&c.ProjectName, validation.When(c.usesPassword() && c.ProjectID == "" && projectName == "", validation.Required)),
		validation.Field(&c.ApplicationCredentialSecret, validation.When(c.ApplicationCredentialID != "", validation.Required)),
	)
	if err != nil {
		xerr := fail.InvalidRequestError("invalid client_config: %s", err.Error())
		field := "client_config"
		if errs, ok := err.(validation.Errors); ok && len(errs) > 0 {
			keys := make([]string, 0, len(errs))
			for k := range errs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			field = keys[0]
		}
		xerr.Annotate("field", field)
		return xerr
	}

	if c.IsV3() && c.usesPassword() {
		return c.validateDomains()
	}
	return nil
}

func (c ClientConfig) validateDomains() fail.Error {
	values := map[string]string{
		"user_domain_id":      c.UserDomainID,
		"user_domain_name":    c.UserDomainName,
		"project_domain_id":   c.ProjectDomainID,
		"project_domain_name": c.ProjectDomainName,
	}
	var present []string
	for k, v := range values {
		if v != "" {
			present = append(present, k)
		}
	}
	sort.Strings(present)

	if len(present) == 2 {
		for _, pair := range validDomainPairs {
			if values[pair[0]] != "" && values[pair[1]] != "" {
				return nil
			}
		}
	}
	return InvalidDomainError(present)
}

// AuthOptions converts the configuration to gophercloud authentication options
func (c ClientConfig) AuthOptions() gophercloud.AuthOptions {
	opts := gophercloud.AuthOptions{
		IdentityEndpoint:            c.AuthURL,
		Username:                    c.Username,
		Password:                    c.Password,
		TokenID:                     c.Token,
		ApplicationCredentialID:     c.ApplicationCredentialID,
		ApplicationCredentialSecret: c.ApplicationCredentialSecret,
		DomainID:                    c.UserDomainID,
		DomainName:                  c.UserDomainName,
		AllowReauth:                 c.Token == "",
	}
	projectName := c.ProjectName
	if projectName == "" {
		projectName = c.TenantName
	}
	if c.usesApplicationCredential() {
		return opts
	}

	if !c.IsV3() {
		opts.TenantID = c.ProjectID
		opts.TenantName = projectName
		return opts
	}
	if c.ProjectID != "" || projectName != "" {
		opts.Scope = &gophercloud.AuthScope{
			ProjectID:   c.ProjectID,
			ProjectName: projectName,
			DomainID:    c.ProjectDomainID,
			DomainName:  c.ProjectDomainName,
		}
		if c.ProjectID != "" {
			opts.Scope.ProjectName = ""
			opts.Scope.DomainID = ""
			opts.Scope.DomainName = ""
		}
	}
	return opts
}

// Availability returns the endpoint availability matching Interface
func (c ClientConfig) Availability() gophercloud.Availability {
	switch strings.ToLower(c.Interface) {
	case "internal", "internalurl":
		return gophercloud.AvailabilityInternal
	case "admin", "adminurl":
		return gophercloud.AvailabilityAdmin
	default:
		return gophercloud.AvailabilityPublic
	}
}
