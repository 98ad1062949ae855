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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the collectors of the plugin; it is written as a textfile by the runner
var Registry = prometheus.NewRegistry()

var (
	// RemoteCalls counts the calls done against OpenStack endpoints, by service and outcome
	RemoteCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osplugin",
		Subsystem: "openstack",
		Name:      "remote_calls_total",
		Help:      "Number of remote calls to OpenStack services.",
	}, []string{"service", "outcome"})

	// BreakerTransitions counts circuit breaker state changes, by service and target state
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osplugin",
		Subsystem: "openstack",
		Name:      "breaker_transitions_total",
		Help:      "Number of circuit breaker state changes.",
	}, []string{"service", "state"})

	// Signals counts the outcome of operations returned to the workflow host
	Signals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osplugin",
		Name:      "operation_signals_total",
		Help:      "Operation outcomes returned to the workflow host.",
	}, []string{"node_type", "operation", "signal"})
)

func init() {
	Registry.MustRegister(RemoteCalls, BreakerTransitions, Signals)
}

// WriteTextfile writes the current values of the collectors in the Prometheus text format to 'path'
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
