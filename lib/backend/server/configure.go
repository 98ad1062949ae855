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

package server

import (
	"context"
	"sort"

	"github.com/CS-SI/osplugin/lib/backend/openstack"
	"github.com/CS-SI/osplugin/lib/backend/relationships"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/resources/enums/serverstate"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/crypt"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/debug"
	"github.com/CS-SI/osplugin/lib/utils/debug/tracing"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Configure waits for the server to be ACTIVE, then records its addresses and its admin password
func (e *Engine) Configure(ctx context.Context, req *Request) (ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	if xerr := e.check(req); xerr != nil {
		return xerr
	}
	node, inst := req.Context.Node(), req.Context.Instance()
	id, xerr := serverID(inst)
	if xerr != nil {
		return xerr
	}

	tracer := debug.NewTracer(ctx, tracing.ShouldTrace("server"), "(%s)", id).WithStopwatch().Entering()
	defer tracer.Exiting()

	server, xerr := e.getServer(ctx, id)
	if xerr != nil {
		return xerr
	}
	switch status(server) {
	case serverstate.Active:
	case serverstate.Error:
		return terminalError(id, server, "is in error")
	default:
		return workflow.RetryStatus("server '"+id+"'", status(server), serverstate.Active)
	}

	props := inst.RuntimeProperties()
	populateAddresses(props, server, node.Properties())
	props[runtimekey.Payload(string(openstack.KindServer))] = server

	if node.Properties().Bool("use_password") {
		password, xerr := e.adminPassword(ctx, id, inst)
		if xerr != nil {
			return xerr
		}
		props[runtimekey.AdminPassword] = password
	}
	return inst.Update(ctx)
}

// populateAddresses records the addresses of 'server' in runtime properties 'props', walking networks in the order
// recorded at creation
func populateAddresses(props data.Bag, server data.Bag, nodeProps data.Bag) {
	addresses := server.Bag("addresses")
	names := props.Strings(runtimekey.Networks)
	if len(names) == 0 {
		names = addresses.Keys()
		sort.Strings(names)
	}

	var v4, v6 []interface{}
	var fixed4, fixed6, public4, public6 string
	for _, name := range names {
		for _, entry := range addresses.Bags(name) {
			addr := entry.String("addr")
			if addr == "" {
				continue
			}
			kind := entry.String("OS-EXT-IPS:type")
			if kind == "" {
				kind = "fixed"
			}
			version, _ := entry.Int("version")
			item := data.Bag{"addr": addr, "type": kind}
			if version == 6 {
				v6 = append(v6, item)
				if kind == "floating" && public6 == "" {
					public6 = addr
				} else if kind != "floating" && fixed6 == "" {
					fixed6 = addr
				}
				continue
			}
			v4 = append(v4, item)
			if kind == "floating" && public4 == "" {
				public4 = addr
			} else if kind != "floating" && fixed4 == "" {
				fixed4 = addr
			}
		}
	}

	props[runtimekey.IPv4Addresses] = nonNil(v4)
	props[runtimekey.IPv6Addresses] = nonNil(v6)
	props[runtimekey.IPv4Address] = fixed4
	props[runtimekey.IPv6Address] = fixed6
	props[runtimekey.PublicIPAddress] = public4
	props[runtimekey.PublicIP6Address] = public6
	props[runtimekey.AccessIPv4] = server.String("accessIPv4")
	props[runtimekey.AccessIPv6] = server.String("accessIPv6")

	ip := fixed4
	if nodeProps.Bool("use_public_ip") && public4 != "" {
		ip = public4
	}
	if nodeProps.Bool("use_ipv6_ip") && fixed6 != "" {
		ip = fixed6
	}
	props[runtimekey.IP] = ip
}

func nonNil(in []interface{}) []interface{} {
	if in == nil {
		return []interface{}{}
	}
	return in
}

// adminPassword fetches and decrypts the admin password of server 'id' with the private key of the connected keypair
func (e *Engine) adminPassword(ctx context.Context, id string, inst workflow.Instance) (string, fail.Error) {
	encrypted, xerr := e.cloud.GetServerPassword(ctx, id)
	if xerr != nil {
		return "", xerr
	}
	if encrypted == "" {
		return "", workflow.RetryError(0, "waiting for the password of server '"+id+"' to be available")
	}

	rel, xerr := relationships.Single(inst, "KeyPair")
	if xerr != nil {
		return "", xerr
	}
	var key string
	if rel != nil && rel.Target().Instance() != nil {
		key = rel.Target().Instance().RuntimeProperties().String(runtimekey.PrivateKey)
	}
	if key == "" {
		return "", workflow.RetryError(0, "waiting for the private key of the keypair of server '"+id+"'")
	}
	return crypt.DecryptPassword(key, encrypted)
}
