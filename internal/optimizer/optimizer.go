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

// Package optimizer places models onto storages. It ranks the namespace's
// storages by capacity and observed traffic and, on request, materializes the
// winner as a new binding. It never mutates storages.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
	"github.com/modelfabric/modelfabric/internal/backend"
	"github.com/modelfabric/modelfabric/internal/metrics"
	"github.com/modelfabric/modelfabric/internal/store"
	"github.com/modelfabric/modelfabric/internal/telemetry"
)

// A Policy selects the ranking strategy.
type Policy string

// Placement policies.
const (
	// PolicyLowestCopy prefers the storage with the most room.
	PolicyLowestCopy Policy = "LowestCopy"
	// PolicyBalanced trades used fraction against observed traffic.
	PolicyBalanced Policy = "Balanced"
	// PolicyLowestLatency prefers the storage closest to the namespace's
	// busiest transfer source.
	PolicyLowestLatency Policy = "LowestLatency"
)

// Balanced policy weights. Used fraction and normalized traffic contribute
// equally.
const (
	balancedCapacityWeight = 0.5
	balancedTrafficWeight  = 0.5
)

const (
	errListStorages  = "cannot list storages"
	errCreateBinding = "cannot create binding"
	errBadPolicy     = "unknown placement policy"
)

// A StorageRequest asks for the best storage for a model, without creating
// anything.
type StorageRequest struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Policy    Policy `json:"policy"`
}

// A BindingRequest asks the optimizer to place a model and materialize the
// placement as an owned binding.
type BindingRequest struct {
	Namespace      string                  `json:"namespace"`
	ModelName      string                  `json:"modelName"`
	StorageKind    *v1alpha1.StorageKind   `json:"storageKind,omitempty"`
	Resources      *resource.Quantity      `json:"resources,omitempty"`
	DeletionPolicy v1alpha1.DeletionPolicy `json:"deletionPolicy,omitempty"`
	Policy         Policy                  `json:"policy"`
}

// A CapacityProber measures one storage's capacity.
type CapacityProber interface {
	Probe(ctx context.Context, namespace string, spec *v1alpha1.ModelStorageSpec) (*backend.Capacity, error)
}

// An Optimizer ranks storages and creates bindings. It is stateless across
// calls; determinism is a function of the telemetry snapshot.
type Optimizer struct {
	store    *store.Store
	prober   CapacityProber
	registry *telemetry.Registry
	log      logging.Logger
}

// New returns an Optimizer.
func New(s *store.Store, p CapacityProber, r *telemetry.Registry, log logging.Logger) *Optimizer {
	return &Optimizer{store: s, prober: p, registry: r, log: log}
}

type candidate struct {
	name     string
	capacity *backend.Capacity
	traffic  float64
	latency  float64
	hasEdge  bool
}

func (c *candidate) available() int64 {
	if c.capacity == nil {
		return 0
	}
	return c.capacity.AvailableBytes
}

func (c *candidate) usedFraction() float64 {
	if c.capacity == nil {
		return 1
	}
	total := c.capacity.AvailableBytes + c.capacity.UsedBytes
	if total == 0 {
		return 0
	}
	return float64(c.capacity.UsedBytes) / float64(total)
}

// OptimizeStorage returns the name of the best storage for the named model,
// or "" when no storage qualifies.
func (o *Optimizer) OptimizeStorage(ctx context.Context, req StorageRequest) (string, error) {
	winner, err := o.place(ctx, req.Namespace, req.Policy, nil, nil)
	o.count(req.Policy, winner, err)
	return winner, err
}

// OptimizeBinding places a model and creates an owned binding to the winning
// storage. Returns the binding's name, or "" when no storage qualifies.
func (o *Optimizer) OptimizeBinding(ctx context.Context, req BindingRequest) (string, error) {
	winner, err := o.place(ctx, req.Namespace, req.Policy, req.StorageKind, req.Resources)
	if err != nil || winner == "" {
		o.count(req.Policy, winner, err)
		return "", err
	}

	policy := req.DeletionPolicy
	if policy == "" {
		policy = v1alpha1.DeletionDelete
	}
	b := &v1alpha1.ModelStorageBinding{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: req.Namespace,
			Name:      fmt.Sprintf("%s-%s", req.ModelName, winner),
		},
		Spec: v1alpha1.ModelStorageBindingSpec{
			Model:          v1alpha1.LocalModelReference{Name: req.ModelName},
			Storage:        v1alpha1.BindingStorageSpec{Target: winner},
			DeletionPolicy: policy,
		},
	}
	if err := o.store.Create(ctx, b); err != nil {
		o.count(req.Policy, "", err)
		return "", errors.Wrap(err, errCreateBinding)
	}
	o.count(req.Policy, winner, nil)
	o.log.Debug("Created binding", "namespace", req.Namespace, "model", req.ModelName, "target", winner, "policy", req.Policy)
	return b.Name, nil
}

func (o *Optimizer) count(p Policy, winner string, err error) {
	outcome := "placed"
	switch {
	case err != nil:
		outcome = "error"
	case winner == "":
		outcome = "none"
	}
	metrics.Optimizations.WithLabelValues(string(p), outcome).Inc()
}

// place enumerates candidates, probes them in parallel and ranks them.
func (o *Optimizer) place(ctx context.Context, namespace string, policy Policy, kind *v1alpha1.StorageKind, request *resource.Quantity) (string, error) {
	switch policy {
	case PolicyLowestCopy, PolicyBalanced, PolicyLowestLatency:
	default:
		return "", errors.Errorf("%s %q", errBadPolicy, policy)
	}

	l, err := o.store.ListModelStorages(ctx, namespace)
	if err != nil {
		return "", errors.Wrap(err, errListStorages)
	}

	var specs []*v1alpha1.ModelStorage
	for i := range l.Items {
		ms := &l.Items[i]
		if ms.Status.State != v1alpha1.StateReady {
			continue
		}
		if kind != nil && ms.Spec.Kind() != *kind {
			continue
		}
		specs = append(specs, ms)
	}
	if len(specs) == 0 {
		return "", nil
	}

	g := o.registry.Graph(namespace)
	candidates := make([]*candidate, len(specs))
	eg, pctx := errgroup.WithContext(ctx)
	for i := range specs {
		i := i
		eg.Go(func() error {
			c, err := o.prober.Probe(pctx, namespace, &specs[i].Spec)
			if err != nil {
				// An unprobeable storage competes without capacity
				// rather than failing the whole placement.
				o.log.Debug("Capacity probe failed", "storage", specs[i].Name, "error", err)
				c = nil
			}
			candidates[i] = &candidate{name: specs[i].Name, capacity: c, traffic: g.Traffic(specs[i].Name)}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}

	var kept []*candidate
	for _, c := range candidates {
		if request != nil && (c.capacity == nil || c.capacity.AvailableBytes < request.Value()) {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return "", nil
	}

	o.rank(kept, policy, g)
	return kept[0].name, nil
}

func (o *Optimizer) rank(cs []*candidate, policy Policy, g *telemetry.Graph) {
	switch policy {
	case PolicyLowestCopy:
		sort.SliceStable(cs, func(i, j int) bool { return lowestCopyLess(cs[i], cs[j]) })

	case PolicyBalanced:
		maxTraffic := 0.0
		for _, c := range cs {
			if c.traffic > maxTraffic {
				maxTraffic = c.traffic
			}
		}
		score := func(c *candidate) float64 {
			t := 0.0
			if maxTraffic > 0 {
				t = c.traffic / maxTraffic
			}
			return balancedCapacityWeight*c.usedFraction() + balancedTrafficWeight*t
		}
		sort.SliceStable(cs, func(i, j int) bool {
			si, sj := score(cs[i]), score(cs[j])
			if si != sj {
				return si < sj
			}
			return lowestCopyLess(cs[i], cs[j])
		})

	case PolicyLowestLatency:
		ref, ok := g.HottestSource()
		for _, c := range cs {
			c.latency = math.Inf(1)
			if !ok {
				continue
			}
			if lat, found := g.Latency(ref, c.name); found {
				c.latency, c.hasEdge = lat, true
			}
		}
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].latency != cs[j].latency {
				return cs[i].latency < cs[j].latency
			}
			return lowestCopyLess(cs[i], cs[j])
		})
	}
}

// lowestCopyLess orders by most available space. An unprobed candidate counts
// as zero available, and a probed candidate beats an unprobed one at equal
// space. Remaining ties break on lower used fraction and finally on name.
func lowestCopyLess(a, b *candidate) bool {
	if a.available() != b.available() {
		return a.available() > b.available()
	}
	if (a.capacity != nil) != (b.capacity != nil) {
		return a.capacity != nil
	}
	if a.usedFraction() != b.usedFraction() {
		return a.usedFraction() < b.usedFraction()
	}
	return a.name < b.name
}
