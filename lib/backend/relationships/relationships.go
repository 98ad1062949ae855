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
	"strings"

	"github.com/CS-SI/osplugin/lib/backend/resources/enums/runtimekey"
	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

const (
	// CanonicalTypePrefix prefixes the node types of the current shape
	CanonicalTypePrefix = "cloudify.nodes.openstack."
	// LegacyTypePrefix prefixes the node types of the legacy shape
	LegacyTypePrefix = "cloudify.openstack.nodes."
)

// NodeTypes returns the canonical and legacy node types of a resource tag (ie "Server")
func NodeTypes(tag string) []string {
	return []string{CanonicalTypePrefix + tag, LegacyTypePrefix + tag}
}

// IsNodeOfTag tells if 'node' derives from one of the node types of 'tags'
func IsNodeOfTag(node workflow.Node, tags ...string) bool {
	if node == nil {
		return false
	}
	for _, t := range node.TypeHierarchy() {
		for _, tag := range tags {
			if t == CanonicalTypePrefix+tag || t == LegacyTypePrefix+tag {
				return true
			}
		}
	}
	return false
}

// TagOf returns the resource tag of the most specific type of 'node' carrying one of the known prefixes
func TagOf(node workflow.Node) (tag string, legacy bool) {
	if node == nil {
		return "", false
	}
	hierarchy := node.TypeHierarchy()
	for i := len(hierarchy) - 1; i >= 0; i-- {
		t := hierarchy[i]
		switch {
		case strings.HasPrefix(t, LegacyTypePrefix):
			return strings.TrimPrefix(t, LegacyTypePrefix), true
		case strings.HasPrefix(t, CanonicalTypePrefix):
			return strings.TrimPrefix(t, CanonicalTypePrefix), false
		}
	}
	return "", false
}

// ToTag returns the relationships of 'instance' whose target is a node of one of 'tags', in declaration order
func ToTag(instance workflow.Instance, tags ...string) []workflow.Relationship {
	if instance == nil {
		return nil
	}
	var out []workflow.Relationship
	for _, rel := range instance.Relationships() {
		if rel.Target() != nil && IsNodeOfTag(rel.Target().Node(), tags...) {
			out = append(out, rel)
		}
	}
	return out
}

// OfType returns the relationships of 'instance' deriving from relationship type 'relType'
func OfType(instance workflow.Instance, relType string) []workflow.Relationship {
	if instance == nil {
		return nil
	}
	var out []workflow.Relationship
	for _, rel := range instance.Relationships() {
		if workflow.HasType(rel.TypeHierarchy(), relType) {
			out = append(out, rel)
		}
	}
	return out
}

// Single returns the only relationship of 'instance' to a node of 'tags', nil if none
// More than one is a configuration error.
func Single(instance workflow.Instance, tags ...string) (workflow.Relationship, fail.Error) {
	rels := ToTag(instance, tags...)
	switch len(rels) {
	case 0:
		return nil, nil
	case 1:
		return rels[0], nil
	default:
		xerr := fail.InvalidRequestError("expected at most one relationship to a %s, found %d", strings.Join(tags, " or "), len(rels))
		xerr.Annotate("field", "relationships")
		return nil, xerr
	}
}

// TargetID returns the cloud id of the target of 'rel': its runtime external_id, falling back to id
func TargetID(rel workflow.Relationship) string {
	if rel == nil || rel.Target() == nil || rel.Target().Instance() == nil {
		return ""
	}
	return InstanceID(rel.Target().Instance())
}

// InstanceID returns the cloud id recorded in the runtime properties of 'instance'
func InstanceID(instance workflow.Instance) string {
	if instance == nil {
		return ""
	}
	props := instance.RuntimeProperties()
	if id := props.String(runtimekey.ExternalID); id != "" {
		return id
	}
	return props.String(runtimekey.ID)
}

// TargetIDs returns the cloud ids of the targets of 'rels', skipping targets without id
func TargetIDs(rels []workflow.Relationship) []string {
	out := make([]string, 0, len(rels))
	for _, rel := range rels {
		if id := TargetID(rel); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// TargetByNodeID looks for the relationship of 'instance' whose target node is 'nodeID'
func TargetByNodeID(instance workflow.Instance, nodeID string) (workflow.Endpoint, bool) {
	if instance == nil {
		return nil, false
	}
	for _, rel := range instance.Relationships() {
		if rel.Target() != nil && rel.Target().Node() != nil && rel.Target().Node().ID() == nodeID {
			return rel.Target(), true
		}
	}
	return nil, false
}

// TargetResourceConfig returns the resource_config property of the target node of 'rel'
// Legacy nodes carry their configuration in a bag named after the resource ('legacyKey').
func TargetResourceConfig(rel workflow.Relationship, legacyKey string) data.Bag {
	if rel == nil || rel.Target() == nil || rel.Target().Node() == nil {
		return data.Bag{}
	}
	props := rel.Target().Node().Properties()
	if cfg := props.Bag("resource_config"); cfg != nil {
		return cfg
	}
	if cfg := props.Bag(legacyKey); cfg != nil {
		return cfg
	}
	return data.Bag{}
}

// IsExternal tells if the node declares an adopted resource
func IsExternal(node workflow.Node) bool {
	if node == nil {
		return false
	}
	return node.Properties().Bool("use_external_resource")
}
