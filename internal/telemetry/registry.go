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

package telemetry

import (
	"sync"
)

// planBuffer bounds how many discovery plans may be pending before AddStorage
// drops new ones. The executor drains continuously, so the buffer only fills
// when probing is much slower than storage churn.
const planBuffer = 256

// A Registry hands out one Graph per namespace and funnels discovery plans
// to the executor. Graphs are never shared across namespaces.
type Registry struct {
	mu     sync.RWMutex
	graphs map[string]*Graph
	plans  chan DiscoverPlan
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		graphs: map[string]*Graph{},
		plans:  make(chan DiscoverPlan, planBuffer),
	}
}

// Graph returns the namespace's graph, creating it on first use.
func (r *Registry) Graph(namespace string) *Graph {
	r.mu.RLock()
	g, ok := r.graphs[namespace]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.graphs[namespace]; ok {
		return g
	}
	g = NewGraph()
	r.graphs[namespace] = g
	return g
}

// AddStorage registers a storage with its namespace's graph and schedules
// discovery for storages seen for the first time.
func (r *Registry) AddStorage(namespace, name string) {
	if plan := r.Graph(namespace).AddStorage(namespace, name); plan != nil {
		r.schedule(*plan)
	}
}

// ReplaceStorage re-registers a storage whose identity changed and schedules
// rediscovery.
func (r *Registry) ReplaceStorage(namespace, name string) {
	if plan := r.Graph(namespace).ReplaceStorage(namespace, name); plan != nil {
		r.schedule(*plan)
	}
}

// RemoveStorage forgets a storage.
func (r *Registry) RemoveStorage(namespace, name string) {
	r.Graph(namespace).RemoveStorage(name)
}

// Observe routes a sample to its namespace's graph.
func (r *Registry) Observe(s Sample) {
	r.Graph(s.Namespace).Observe(s)
}

func (r *Registry) schedule(p DiscoverPlan) {
	select {
	case r.plans <- p:
	default:
		// Probing will happen on the next replace or restart.
	}
}

// Plans exposes the pending discovery plans to the executor.
func (r *Registry) Plans() <-chan DiscoverPlan {
	return r.plans
}
