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

package local

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/CS-SI/osplugin/lib/backend/workflow"
	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Node is a design-time node declaration
type Node struct {
	NodeID    string
	NodeType  string
	Hierarchy []string
	Props     data.Bag
}

// ID ...
func (n *Node) ID() string { return n.NodeID }

// Type ...
func (n *Node) Type() string { return n.NodeType }

// TypeHierarchy returns the hierarchy, defaulting to the type itself
func (n *Node) TypeHierarchy() []string {
	if len(n.Hierarchy) == 0 {
		return []string{n.NodeType}
	}
	return n.Hierarchy
}

// Properties ...
func (n *Node) Properties() data.Bag {
	if n.Props == nil {
		n.Props = data.Bag{}
	}
	return n.Props
}

// Instance is a node instance whose runtime properties are kept in a Store
type Instance struct {
	lock          sync.Mutex
	id            string
	runtime       data.Bag
	relationships []workflow.Relationship
	store         Store
}

// NewInstance creates an instance, loading its runtime properties from 'store'
func NewInstance(ctx context.Context, id string, store Store) (*Instance, fail.Error) {
	if id == "" {
		return nil, fail.InvalidParameterCannotBeEmptyStringError("id")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	props, xerr := store.Load(ctx, id)
	if xerr != nil {
		return nil, xerr
	}
	return &Instance{id: id, runtime: props, store: store}, nil
}

// ID ...
func (i *Instance) ID() string { return i.id }

// RuntimeProperties ...
func (i *Instance) RuntimeProperties() data.Bag {
	i.lock.Lock()
	defer i.lock.Unlock()
	if i.runtime == nil {
		i.runtime = data.Bag{}
	}
	return i.runtime
}

// Relationships ...
func (i *Instance) Relationships() []workflow.Relationship {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.relationships
}

// Relate adds a relationship typed by 'hierarchy' from the instance to 'target'
func (i *Instance) Relate(hierarchy []string, target workflow.Endpoint) *Relationship {
	rel := &Relationship{Hierarchy: hierarchy, TargetEndpoint: target}
	i.lock.Lock()
	defer i.lock.Unlock()
	i.relationships = append(i.relationships, rel)
	return rel
}

// Update commits the runtime properties to the store
func (i *Instance) Update(ctx context.Context) fail.Error {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.store.Save(ctx, i.id, i.runtime)
}

// Endpoint associates a node and one of its instances
type Endpoint struct {
	N workflow.Node
	I workflow.Instance
}

// Node ...
func (e Endpoint) Node() workflow.Node { return e.N }

// Instance ...
func (e Endpoint) Instance() workflow.Instance { return e.I }

// Relationship is a typed edge to a target endpoint
type Relationship struct {
	Hierarchy      []string
	TargetEndpoint workflow.Endpoint
}

// Type returns the most specific type of the relationship
func (r *Relationship) Type() string {
	if len(r.Hierarchy) == 0 {
		return ""
	}
	return r.Hierarchy[len(r.Hierarchy)-1]
}

// TypeHierarchy ...
func (r *Relationship) TypeHierarchy() []string { return r.Hierarchy }

// Target ...
func (r *Relationship) Target() workflow.Endpoint { return r.TargetEndpoint }

// Operation is the operation being run
type Operation struct {
	OpName string
	Retry  int
}

// Name ...
func (o *Operation) Name() string { return o.OpName }

// RetryNumber ...
func (o *Operation) RetryNumber() int { return o.Retry }

// Context is the local implementation of workflow.Context
type Context struct {
	kind      workflow.ContextKind
	source    workflow.Endpoint
	target    workflow.Endpoint
	operation *Operation
	logger    *logrus.Entry
}

// NewNodeContext creates the context of a node operation
func NewNodeContext(node workflow.Node, instance workflow.Instance, operation *Operation) *Context {
	return &Context{
		kind:      workflow.NodeInstanceContext,
		source:    Endpoint{N: node, I: instance},
		operation: operation,
		logger: logrus.WithFields(logrus.Fields{
			"node":      node.ID(),
			"instance":  instance.ID(),
			"operation": operation.Name(),
		}),
	}
}

// NewRelationshipContext creates the context of a relationship operation between 'source' and 'target'
func NewRelationshipContext(source, target workflow.Endpoint, operation *Operation) *Context {
	return &Context{
		kind:      workflow.RelationshipContext,
		source:    source,
		target:    target,
		operation: operation,
		logger: logrus.WithFields(logrus.Fields{
			"node":      source.Node().ID(),
			"instance":  source.Instance().ID(),
			"target":    target.Node().ID(),
			"operation": operation.Name(),
		}),
	}
}

// Kind ...
func (c *Context) Kind() workflow.ContextKind { return c.kind }

// Node returns the node of the source endpoint
func (c *Context) Node() workflow.Node { return c.source.Node() }

// Instance returns the instance of the source endpoint
func (c *Context) Instance() workflow.Instance { return c.source.Instance() }

// Source ...
func (c *Context) Source() workflow.Endpoint { return c.source }

// Target is nil outside of relationship contexts
func (c *Context) Target() workflow.Endpoint { return c.target }

// Operation ...
func (c *Context) Operation() workflow.Operation { return c.operation }

// Logger ...
func (c *Context) Logger() *logrus.Entry { return c.logger }

// NextRetry increments the retry number, as the host does before re-invoking an operation
func (c *Context) NextRetry() {
	c.operation.Retry++
}

var _ workflow.Context = (*Context)(nil)
