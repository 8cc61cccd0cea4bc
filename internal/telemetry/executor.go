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
	"context"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/modelfabric/modelfabric/internal/backend"
)

// A CapacityProber probes one storage's capacity by name. A nil result with a
// nil error means the storage cannot report.
type CapacityProber interface {
	ProbeStorage(ctx context.Context, namespace, name string) (*backend.Capacity, error)
}

// A CapacityProberFn is a function that satisfies CapacityProber.
type CapacityProberFn func(ctx context.Context, namespace, name string) (*backend.Capacity, error)

// ProbeStorage calls fn.
func (fn CapacityProberFn) ProbeStorage(ctx context.Context, namespace, name string) (*backend.Capacity, error) {
	return fn(ctx, namespace, name)
}

// An Executor drains the registry's discovery plans in the background,
// probing each storage and recording the result in its graph. It implements
// manager.Runnable.
type Executor struct {
	registry *Registry
	prober   CapacityProber
	log      logging.Logger
}

// NewExecutor returns an Executor over the supplied registry.
func NewExecutor(r *Registry, p CapacityProber, log logging.Logger) *Executor {
	return &Executor{registry: r, prober: p, log: log}
}

// Start runs the executor until the context is cancelled.
func (e *Executor) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case plan := <-e.registry.Plans():
			e.discover(ctx, plan)
		}
	}
}

func (e *Executor) discover(ctx context.Context, plan DiscoverPlan) {
	log := e.log.WithValues("namespace", plan.Namespace, "storage", plan.Storage)

	c, err := e.prober.ProbeStorage(ctx, plan.Namespace, plan.Storage)
	if err != nil {
		// The storage stays undiscovered; the next replace or restart
		// schedules another probe.
		log.Debug("Discovery probe failed", "error", err)
		return
	}

	g := e.registry.Graph(plan.Namespace)
	if c == nil {
		g.SetCapacity(plan.Storage, 0, 0, false, time.Now())
		log.Debug("Discovered storage without capacity reporting")
		return
	}
	g.SetCapacity(plan.Storage, c.AvailableBytes, c.UsedBytes, true, time.Now())
	log.Debug("Discovered storage", "available", c.AvailableBytes, "used", c.UsedBytes)
}
