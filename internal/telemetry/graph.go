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

// Package telemetry maintains per-namespace graphs of storages and the
// transfers observed between them. Readers are the optimizer; writers are the
// sample intake and the discovery executor.
package telemetry

import (
	"sync"
	"time"

	"github.com/modelfabric/modelfabric/internal/metrics"
)

// defaultAlpha weighs a new sample against the running value. Higher reacts
// faster, lower smooths harder.
const defaultAlpha = 0.3

// A Metric is one observation attached to a sample. Either the raw transfer
// counters or the precomputed edge metrics are set.
type Metric struct {
	// Raw transfer counters.
	ElapsedNS  int64 `json:"elapsedNS,omitempty"`
	Len        int64 `json:"len,omitempty"`
	TotalBytes int64 `json:"totalBytes,omitempty"`

	// Precomputed edge metrics.
	LatencyMillis float64 `json:"latencyMillis,omitempty"`
	ThroughputBPS float64 `json:"throughputBPS,omitempty"`
}

// edge reduces the metric to edge form. Raw counters are converted; an
// observation without elapsed time carries no signal and reports ok=false.
func (m Metric) edge() (latencyMillis, throughputBPS float64, ok bool) {
	if m.LatencyMillis > 0 || m.ThroughputBPS > 0 {
		return m.LatencyMillis, m.ThroughputBPS, true
	}
	if m.ElapsedNS <= 0 {
		return 0, 0, false
	}
	ops := m.Len
	if ops < 1 {
		ops = 1
	}
	latencyMillis = float64(m.ElapsedNS) / float64(ops) / 1e6
	throughputBPS = float64(m.TotalBytes) / (float64(m.ElapsedNS) / 1e9)
	return latencyMillis, throughputBPS, true
}

// A Sample is one observed transfer between two storages of a namespace.
type Sample struct {
	Namespace  string    `json:"namespace"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Metric     Metric    `json:"metric"`
	ObservedAt time.Time `json:"observedAt,omitempty"`
}

// A DiscoverPlan asks the executor to probe a storage and mark it
// discovered.
type DiscoverPlan struct {
	Namespace string
	Storage   string
}

type node struct {
	index      int
	capacity   int64
	usage      int64
	hasCap     bool
	discovered bool
	lastProbe  time.Time
}

type edgeKey struct{ from, to int }

type edge struct {
	latencyMillis float64
	throughputBPS float64
}

// A Graph holds one namespace's storages and observed transfers. A single
// writer mutates under the exclusive lock; readers share.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node
	edges map[edgeKey]*edge
	next  int
	alpha float64
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: map[string]*node{},
		edges: map[edgeKey]*edge{},
		alpha: defaultAlpha,
	}
}

// AddStorage registers a storage under a stable index. A storage already
// known keeps its index and state. Returns a DiscoverPlan for storages seen
// for the first time, nil otherwise.
func (g *Graph) AddStorage(namespace, name string) *DiscoverPlan {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[name]; ok {
		return nil
	}
	g.nodes[name] = &node{index: g.next}
	g.next++
	return &DiscoverPlan{Namespace: namespace, Storage: name}
}

// ReplaceStorage re-registers a storage whose underlying identity changed.
// The index stays stable, but edges touching it and its discovery state are
// evicted. Returns a DiscoverPlan, or nil if the name was never known.
func (g *Graph) ReplaceStorage(namespace, name string) *DiscoverPlan {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	g.evictEdges(n.index)
	g.nodes[name] = &node{index: n.index}
	return &DiscoverPlan{Namespace: namespace, Storage: name}
}

// RemoveStorage forgets a storage and every edge touching it.
func (g *Graph) RemoveStorage(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[name]
	if !ok {
		return
	}
	g.evictEdges(n.index)
	delete(g.nodes, name)
}

func (g *Graph) evictEdges(index int) {
	for k := range g.edges {
		if k.from == index || k.to == index {
			delete(g.edges, k)
		}
	}
}

// Observe merges one sample into the graph. Samples naming an unknown
// storage are dropped; samples older than the last successful probe of
// either endpoint are ignored.
func (g *Graph) Observe(s Sample) {
	g.mu.Lock()
	defer g.mu.Unlock()

	from, okFrom := g.nodes[s.Source]
	to, okTo := g.nodes[s.Target]
	if !okFrom || !okTo {
		metrics.Samples.WithLabelValues("dropped").Inc()
		return
	}
	if !s.ObservedAt.IsZero() && (s.ObservedAt.Before(from.lastProbe) || s.ObservedAt.Before(to.lastProbe)) {
		metrics.Samples.WithLabelValues("stale").Inc()
		return
	}
	latency, throughput, ok := s.Metric.edge()
	if !ok {
		metrics.Samples.WithLabelValues("dropped").Inc()
		return
	}

	k := edgeKey{from: from.index, to: to.index}
	e, exists := g.edges[k]
	if !exists {
		g.edges[k] = &edge{latencyMillis: latency, throughputBPS: throughput}
		metrics.Samples.WithLabelValues("merged").Inc()
		return
	}
	e.latencyMillis = g.alpha*latency + (1-g.alpha)*e.latencyMillis
	e.throughputBPS = g.alpha*throughput + (1-g.alpha)*e.throughputBPS
	metrics.Samples.WithLabelValues("merged").Inc()
}

// SetCapacity records a probe result and marks the storage discovered.
// Unknown storages are ignored.
func (g *Graph) SetCapacity(name string, availableBytes, usedBytes int64, hasCapacity bool, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[name]
	if !ok {
		return
	}
	n.capacity = availableBytes
	n.usage = usedBytes
	n.hasCap = hasCapacity
	n.discovered = true
	n.lastProbe = at
}

// Capacity reports the last probed capacity of a storage. ok is false for
// unknown or undiscovered storages and for storages that cannot report.
func (g *Graph) Capacity(name string) (availableBytes, usedBytes int64, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, exists := g.nodes[name]
	if !exists || !n.discovered || !n.hasCap {
		return 0, 0, false
	}
	return n.capacity, n.usage, true
}

// Discovered reports whether a storage has been probed since it was added.
func (g *Graph) Discovered(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[name]
	return ok && n.discovered
}

// Latency reports the observed latency of the directed edge between two
// storages. ok is false when no transfer has been observed.
func (g *Graph) Latency(source, target string) (latencyMillis float64, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	from, okFrom := g.nodes[source]
	to, okTo := g.nodes[target]
	if !okFrom || !okTo {
		return 0, false
	}
	e, exists := g.edges[edgeKey{from: from.index, to: to.index}]
	if !exists {
		return 0, false
	}
	return e.latencyMillis, true
}

// Traffic sums the observed throughput of every edge touching a storage.
func (g *Graph) Traffic(name string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return 0
	}
	var sum float64
	for k, e := range g.edges {
		if k.from == n.index || k.to == n.index {
			sum += e.throughputBPS
		}
	}
	return sum
}

// HottestSource returns the storage with the highest outgoing throughput,
// the namespace's busiest origin of transfers. ok is false for a graph with
// no observed edges.
func (g *Graph) HottestSource() (name string, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := map[int]float64{}
	for k, e := range g.edges {
		out[k.from] += e.throughputBPS
	}
	best := -1.0
	bestIdx := -1
	for idx, sum := range out {
		if sum > best {
			best, bestIdx = sum, idx
		}
	}
	if bestIdx < 0 {
		return "", false
	}
	for n, nd := range g.nodes {
		if nd.index == bestIdx {
			return n, true
		}
	}
	return "", false
}
