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

// Package probe measures the free and used space of storages on demand.
// Results are never cached here; the telemetry graphs do that.
package probe

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/types"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
	"github.com/modelfabric/modelfabric/internal/backend"
	"github.com/modelfabric/modelfabric/internal/metrics"
	"github.com/modelfabric/modelfabric/internal/store"
)

// DefaultTimeout bounds one probe. A storage that cannot answer in time
// reports no capacity rather than an error.
const DefaultTimeout = 5 * time.Second

const errProbe = "cannot probe storage capacity"

// A Prober measures storage capacity through the backend adapters.
type Prober struct {
	store   *store.Store
	backend backend.Backend
	timeout time.Duration
}

// An Option configures a Prober.
type Option func(*Prober)

// WithTimeout bounds each probe.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) { p.timeout = d }
}

// New returns a Prober over the supplied store and backend.
func New(s *store.Store, b backend.Backend, o ...Option) *Prober {
	p := &Prober{store: s, backend: b, timeout: DefaultTimeout}
	for _, fn := range o {
		fn(p)
	}
	return p
}

// Probe measures one storage. A nil result with a nil error means the
// storage cannot report, either by nature or because the probe timed out.
func (p *Prober) Probe(ctx context.Context, namespace string, spec *v1alpha1.ModelStorageSpec) (*backend.Capacity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	c, err := p.backend.Capacity(ctx, namespace, spec)
	metrics.Probes.WithLabelValues(string(spec.Kind())).Observe(time.Since(start).Seconds())

	if errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errProbe)
	}
	return c, nil
}

// ProbeStorage resolves a storage by name and probes it.
func (p *Prober) ProbeStorage(ctx context.Context, namespace, name string) (*backend.Capacity, error) {
	ms, err := p.store.GetModelStorage(ctx, types.NamespacedName{Namespace: namespace, Name: name})
	if err != nil {
		return nil, err
	}
	return p.Probe(ctx, namespace, &ms.Spec)
}
