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

package workflow

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// ContextKind tells if an operation runs on a node instance or on a relationship between two instances
type ContextKind int

const (
	// NodeInstanceContext is the context of node lifecycle operations
	NodeInstanceContext ContextKind = iota
	// RelationshipContext is the context of relationship operations (attach, connect, ...)
	RelationshipContext
)

// String returns the name of the kind
func (k ContextKind) String() string {
	if k == RelationshipContext {
		return "relationship-instance"
	}
	return "node-instance"
}

// Node is the design-time declaration of a resource
type Node interface {
	ID() string
	Type() string
	TypeHierarchy() []string // from the most generic to the most specific type, Type() included
	Properties() data.Bag
}

// Instance is the runtime object managed by the host engine for one Node
type Instance interface {
	ID() string
	RuntimeProperties() data.Bag          // persisted by Update()
	Relationships() []Relationship        // typed edges to other instances
	Update(ctx context.Context) fail.Error // commits RuntimeProperties()
}

// Endpoint is one side of a relationship
type Endpoint interface {
	Node() Node
	Instance() Instance
}

// Relationship is a typed edge between two instances
type Relationship interface {
	Type() string
	TypeHierarchy() []string
	Target() Endpoint
}

// Operation describes the lifecycle verb being run
type Operation interface {
	Name() string
	RetryNumber() int // 0 on first invocation, incremented each time the host re-invokes after a retry signal
}

// Context is the view of the host engine given to an operation
// In a relationship context, Node() and Instance() are the ones of the source endpoint.
type Context interface {
	Kind() ContextKind
	Node() Node
	Instance() Instance
	Source() Endpoint
	Target() Endpoint
	Operation() Operation
	Logger() *logrus.Entry
}

// HasType tells if 'typeName' is part of the type hierarchy
func HasType(hierarchy []string, typeName string) bool {
	for _, v := range hierarchy {
		if v == typeName {
			return true
		}
	}
	return false
}

// ShortName returns the last segment of a dotted operation name ("cloudify.interfaces.lifecycle.create" gives "create")
func ShortName(operation string) string {
	if i := strings.LastIndex(operation, "."); i >= 0 {
		return operation[i+1:]
	}
	return operation
}
