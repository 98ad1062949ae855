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


package descriptor

import (
	"context"
	"os"
	"strings"

	"github.com/gofrs/uuid"
	"gopkg.in/yaml.v3"

	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/backend/workflow/local"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

const (
	lifecycleInterface    = "cloudify.interfaces.lifecycle."
	relationshipInterface = "cloudify.interfaces.relationship_lifecycle."
)

// Node describes a blueprint node
type Node struct {
	ID         string                 `yaml:"id"`
	Type       string                 `yaml:"type"`
	Hierarchy  []string               `yaml:"hierarchy,omitempty"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
}

// Instance describes a node instance; RuntimeProperties seeds the store for keys it does not hold yet
type Instance struct {
	ID                string                 `yaml:"id,omitempty"`
	RuntimeProperties map[string]interface{} `yaml:"runtime_properties,omitempty"`
}

// Endpoint is a node and one of its instances
type Endpoint struct {
	Node     Node     `yaml:"node"`
	Instance Instance `yaml:"instance,omitempty"`
}

// Relationship links the described node to a target endpoint
type Relationship struct {
	Type      string   `yaml:"type"`
	Hierarchy []string `yaml:"hierarchy,omitempty"`
	Target    Endpoint `yaml:"target"`
}

// TypeHierarchy returns the hierarchy of the relationship, ending with its type
func (r *Relationship) TypeHierarchy() []string {
	hierarchy := append([]string{}, r.Hierarchy...)
	if r.Type != "" && (len(hierarchy) == 0 || hierarchy[len(hierarchy)-1] != r.Type) {
		hierarchy = append(hierarchy, r.Type)
	}
	return hierarchy
}

// Descriptor is the content of a node descriptor file
type Descriptor struct {
	Endpoint      `yaml:",inline"`
	Relationships []Relationship         `yaml:"relationships,omitempty"`
	Inputs        map[string]interface{} `yaml:"inputs,omitempty"`
}

// Load reads the descriptor file at 'path'
func Load(path string) (*Descriptor, fail.Error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fail.Wrap(err, "failed to read node descriptor '%s'", path)
	}
	return Parse(content)
}

// Parse decodes a yaml descriptor
func Parse(content []byte) (_ *Descriptor, ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	var d Descriptor
	if err := yaml.Unmarshal(content, &d); err != nil {
		return nil, fail.Wrap(err, "invalid node descriptor")
	}
	if xerr := d.check(); xerr != nil {
		return nil, xerr
	}
	return &d, nil
}

func (d *Descriptor) check() fail.Error {
	if d.Node.ID == "" {
		return fail.InvalidRequestError("node descriptor: node.id is missing")
	}
	if d.Node.Type == "" {
		return fail.InvalidRequestError("node descriptor: node.type is missing")
	}
	for i, r := range d.Relationships {
		if r.Type == "" && len(r.Hierarchy) == 0 {
			return fail.InvalidRequestError("node descriptor: relationship #%d has no type", i)
		}
		if r.Target.Node.ID == "" || r.Target.Node.Type == "" {
			return fail.InvalidRequestError("node descriptor: relationship #%d has an incomplete target", i)
		}
	}
	return nil
}

// GenerateInstanceID sets an instance id derived from the node id when none is set, and returns it
func (e *Endpoint) GenerateInstanceID() (string, fail.Error) {
	if e.Instance.ID == "" {
		u, err := uuid.NewV4()
		if err != nil {
			return "", fail.Wrap(err, "failed to generate instance id")
		}
		e.Instance.ID = e.Node.ID + "_" + strings.ReplaceAll(u.String(), "-", "")[:6]
	}
	return e.Instance.ID, nil
}

// OperationInputs returns a copy of the operation inputs
func (d *Descriptor) OperationInputs() (data.Bag, fail.Error) {
	inputs, err := data.Bag(d.Inputs).Clone()
	if err != nil {
		return nil, fail.Wrap(err, "failed to copy inputs")
	}
	if inputs == nil {
		inputs = data.Bag{}
	}
	return inputs, nil
}

// OperationName expands short operation names into their interface; names holding a dot are kept as is
func OperationName(op string, relationship bool) string {
	if strings.Contains(op, ".") {
		return op
	}
	if relationship {
		return relationshipInterface + op
	}
	return lifecycleInterface + op
}

func (e *Endpoint) build(ctx context.Context, store local.Store) (local.Endpoint, fail.Error) {
	id, xerr := e.GenerateInstanceID()
	if xerr != nil {
		return local.Endpoint{}, xerr
	}
	inst, xerr := local.NewInstance(ctx, id, store)
	if xerr != nil {
		return local.Endpoint{}, xerr
	}
	inst.RuntimeProperties().Merge(e.Instance.RuntimeProperties)
	node := &local.Node{
		NodeID:    e.Node.ID,
		NodeType:  e.Node.Type,
		Hierarchy: e.Node.Hierarchy,
		Props:     e.Node.Properties,
	}
	return local.Endpoint{N: node, I: inst}, nil
}

// Context builds the context of operation 'op' with instances backed by 'store'. When 'target' is set, the context
// is the one of the relationship whose target node id is 'target'
func (d *Descriptor) Context(ctx context.Context, store local.Store, op, target string, retry int) (_ *local.Context, ferr fail.Error) {
	defer fail.OnPanic(&ferr)

	source, xerr := d.Endpoint.build(ctx, store)
	if xerr != nil {
		return nil, xerr
	}
	inst := source.I.(*local.Instance)

	var related workflow.Endpoint
	for i := range d.Relationships {
		r := &d.Relationships[i]
		ep, xerr := r.Target.build(ctx, store)
		if xerr != nil {
			return nil, xerr
		}
		inst.Relate(r.TypeHierarchy(), ep)
		if target != "" && r.Target.Node.ID == target {
			related = ep
		}
	}

	operation := &local.Operation{OpName: OperationName(op, target != ""), Retry: retry}
	if target == "" {
		return local.NewNodeContext(source.N, source.I, operation), nil
	}
	if related == nil {
		return nil, fail.NotFoundError("node '%s' has no relationship to '%s'", d.Node.ID, target)
	}
	return local.NewRelationshipContext(source, related, operation), nil
}
