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

package relationships

import (
	"fmt"

	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// PortNetworkFunc returns the id of the network a port sits on
type PortNetworkFunc func(portID string) (string, fail.Error)

// NicsFromRelationships builds the nics declared by relationships to networks and ports, in declaration order
func NicsFromRelationships(instance workflow.Instance) []data.Bag {
	var out []data.Bag
	if instance == nil {
		return out
	}
	for _, rel := range instance.Relationships() {
		if rel.Target() == nil {
			continue
		}
		id := TargetID(rel)
		if id == "" {
			continue
		}
		switch {
		case IsNodeOfTag(rel.Target().Node(), "Port"):
			out = append(out, data.Bag{"port": id})
		case IsNodeOfTag(rel.Target().Node(), "Network"):
			out = append(out, data.Bag{"uuid": id})
		}
	}
	return out
}

func nicKey(nic data.Bag) string {
	return fmt.Sprintf("%s|%s|%s|%s", nic.String("uuid"), nic.String("port"), nic.String("fixed_ip"), nic.String("tag"))
}

// MergeNics merges nics coming from the node and from relationships
// Node entries come first; exact duplicates are removed; a {uuid} entry and a {port} entry on the same network are
// folded into one {uuid, port} entry at the position of the first one. Both sources being set is a configuration error
// unless 'allowMultiple'.
func MergeNics(fromNode, fromRels []data.Bag, allowMultiple bool, portNetwork PortNetworkFunc) ([]data.Bag, fail.Error) {
	if len(fromNode) > 0 && len(fromRels) > 0 && !allowMultiple {
		xerr := fail.InvalidRequestError("networks are defined both in node properties and in relationships, which requires 'allow_multiple'")
		xerr.Annotate("field", "networks")
		return nil, xerr
	}

	var (
		merged []data.Bag
		seen   = map[string]struct{}{}
	)
	for _, src := range [][]data.Bag{fromNode, fromRels} {
		for _, nic := range src {
			entry := data.Bag{}
			entry.ForceMerge(nic)
			key := nicKey(entry)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, entry)
		}
	}

	// folds port entries into network entries of the same network
	networkOf := make([]string, len(merged))
	for i, nic := range merged {
		networkOf[i] = nic.String("uuid")
		if networkOf[i] == "" && nic.IsSet("port") && portNetwork != nil {
			netID, xerr := portNetwork(nic.String("port"))
			if xerr != nil {
				return nil, xerr
			}
			networkOf[i] = netID
		}
	}
	dropped := make([]bool, len(merged))
	for i, nic := range merged {
		if dropped[i] || !nic.IsSet("port") || nic.IsSet("uuid") || networkOf[i] == "" {
			continue
		}
		for j, other := range merged {
			if j == i || dropped[j] || other.IsSet("port") || other.String("uuid") != networkOf[i] {
				continue
			}
			keep, drop := j, i
			if i < j {
				keep, drop = i, j
			}
			merged[keep]["uuid"] = networkOf[i]
			merged[keep]["port"] = nic.String("port")
			for k, v := range merged[drop] {
				if _, ok := merged[keep][k]; !ok {
					merged[keep][k] = v
				}
			}
			dropped[drop] = true
			break
		}
	}

	out := make([]data.Bag, 0, len(merged))
	for i, nic := range merged {
		if !dropped[i] {
			out = append(out, nic)
		}
	}
	return out, nil
}

// BootVolumeMappings builds the block_device_mapping_v2 entries of the relationships to bootable volumes,
// boot_index being assigned in relationship order from 0
func BootVolumeMappings(instance workflow.Instance) []data.Bag {
	var (
		out   []data.Bag
		index int
	)
	for _, rel := range ToTag(instance, "Volume") {
		props := rel.Target().Node().Properties()
		cfg := TargetResourceConfig(rel, "volume")
		if !props.Bool("boot") && !cfg.Bool("boot") {
			continue
		}
		id := TargetID(rel)
		if id == "" {
			continue
		}
		entry := data.Bag{
			"boot_index":            index,
			"uuid":                  id,
			"source_type":           "volume",
			"destination_type":      "volume",
			"delete_on_termination": false,
		}
		if size, ok := cfg.Int("size"); ok {
			entry["volume_size"] = size
		}
		if device := props.String("device_name"); device != "" {
			entry["device_name"] = device
		} else if device := cfg.String("device_name"); device != "" {
			entry["device_name"] = device
		}
		out = append(out, entry)
		index++
	}
	return out
}

// MergeBlockDevices adds the mappings synthesized from relationships to the user-supplied ones
// Mappings of a volume already mapped by the user are dropped; remaining mappings from both sources
// are a configuration error unless 'allowMultiple'.
func MergeBlockDevices(fromUser, fromRels []data.Bag, allowMultiple bool) ([]data.Bag, fail.Error) {
	known := map[string]struct{}{}
	for _, v := range fromUser {
		if id := v.String("uuid"); id != "" {
			known[id] = struct{}{}
		}
	}
	var extra []data.Bag
	for _, v := range fromRels {
		if _, ok := known[v.String("uuid")]; ok {
			continue
		}
		known[v.String("uuid")] = struct{}{}
		extra = append(extra, v)
	}
	if len(fromUser) > 0 && len(extra) > 0 && !allowMultiple {
		xerr := fail.InvalidRequestError("block devices are defined both in node properties and through bootable volume relationships, which requires 'allow_multiple'")
		xerr.Annotate("field", "block_device_mapping_v2")
		return nil, xerr
	}
	out := make([]data.Bag, 0, len(fromUser)+len(extra))
	out = append(out, fromUser...)
	out = append(out, extra...)
	return out, nil
}

// ImageMapping is the mapping booting from image 'imageID', prepended when no bootable volume is mapped
func ImageMapping(imageID string) data.Bag {
	return data.Bag{
		"boot_index":            0,
		"uuid":                  imageID,
		"source_type":           "image",
		"destination_type":      "local",
		"delete_on_termination": true,
	}
}

// HasBootVolume tells if one of the mappings boots from a volume
func HasBootVolume(mappings []data.Bag) bool {
	for _, v := range mappings {
		index, ok := v.Int("boot_index")
		if ok && index == 0 && v.String("source_type") == "volume" {
			return true
		}
	}
	return false
}

// SingleSource returns the value coming either from the node or from a relationship
// Both being set is a configuration error unless 'allowMultiple', in which case the relationship wins.
func SingleSource(field, fromNode, fromRel string, allowMultiple bool) (string, fail.Error) {
	switch {
	case fromNode != "" && fromRel != "" && fromNode != fromRel && !allowMultiple:
		xerr := fail.InvalidRequestError("'%s' is defined both in node properties and through a relationship", field)
		xerr.Annotate("field", field)
		return "", xerr
	case fromRel != "":
		return fromRel, nil
	default:
		return fromNode, nil
	}
}

// MergeSecurityGroups merges the security groups of the node (names or ids) with those of relationships
func MergeSecurityGroups(fromNode []string, instance workflow.Instance) []string {
	var out []string
	for _, v := range data.Unique(append(append([]string{}, fromNode...), TargetIDs(ToTag(instance, "SecurityGroup"))...)) {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
