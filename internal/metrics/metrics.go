/*
Copyright 2024 The ModelFabric Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics contains the fabric's Prometheus collectors. They register
// with the registry created and served by controller-runtime, so they appear
// alongside the runtime's own metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Registry is the Prometheus registry all fabric metrics register with.
var Registry = metrics.Registry

var (
	// Binds counts backend bind attempts.
	Binds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelfabric",
		Name:      "binds_total",
		Help:      "Backend bind attempts, labelled by storage kind and result.",
	}, []string{"kind", "result"})

	// Unbinds counts backend unbind attempts.
	Unbinds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelfabric",
		Name:      "unbinds_total",
		Help:      "Backend unbind attempts, labelled by storage kind and result.",
	}, []string{"kind", "result"})

	// Probes observes capacity probe latency.
	Probes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "modelfabric",
		Name:      "probe_duration_seconds",
		Help:      "Capacity probe latency, labelled by storage kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// Optimizations counts optimizer requests.
	Optimizations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelfabric",
		Name:      "optimizations_total",
		Help:      "Optimizer placements, labelled by policy and outcome.",
	}, []string{"policy", "outcome"})

	// Samples counts telemetry samples.
	Samples = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelfabric",
		Name:      "telemetry_samples_total",
		Help:      "Telemetry samples, labelled by disposition.",
	}, []string{"disposition"})
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

func init() {
	Registry.MustRegister(Binds, Unbinds, Probes, Optimizations, Samples)
}
