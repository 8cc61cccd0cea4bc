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

package backend

import (
	"context"

	"github.com/pkg/errors"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
)

// Error strings.
const (
	errNoBackend     = "no backend registered for storage kind"
	errAmbiguousKind = "storage spec must set exactly one backend"
	errCloneSource   = "cloned bindings require an object storage source and target"
	errNoTarget      = "binding has no target storage"
)

// A Dispatcher routes binding operations to the backend registered for the
// target storage's kind. It rejects malformed storage specs and illegal
// source/target pairings before any backend is touched, so a conflict never
// leaves half-provisioned artifacts behind.
type Dispatcher struct {
	backends map[v1alpha1.StorageKind]Backend
}

// NewDispatcher returns a Dispatcher over the supplied backends.
func NewDispatcher(backends map[v1alpha1.StorageKind]Backend) *Dispatcher {
	return &Dispatcher{backends: backends}
}

func (d *Dispatcher) resolve(b Binding) (Backend, error) {
	if b.Target == nil {
		return nil, Errorf(KindConflict, errNoTarget)
	}
	k := b.Target.Kind()
	if k == "" {
		return nil, Errorf(KindConflict, errAmbiguousKind)
	}
	if b.Source != nil {
		// Replication is an object store feature. Every other pairing is
		// a conflict.
		if k != v1alpha1.StorageKindObject || b.Source.Kind() != v1alpha1.StorageKindObject {
			return nil, Errorf(KindConflict, errCloneSource)
		}
	}
	be, ok := d.backends[k]
	if !ok {
		return nil, Errorf(KindConflict, "%s %q", errNoBackend, k)
	}
	return be, nil
}

// Bind routes to the target storage's backend.
func (d *Dispatcher) Bind(ctx context.Context, b Binding) error {
	be, err := d.resolve(b)
	if err != nil {
		return err
	}
	return errors.Wrapf(be.Bind(ctx, b), "%s storage %q", b.Target.Kind(), b.TargetName)
}

// Unbind routes to the target storage's backend.
func (d *Dispatcher) Unbind(ctx context.Context, b Binding, policy v1alpha1.DeletionPolicy) error {
	be, err := d.resolve(b)
	if err != nil {
		return err
	}
	return errors.Wrapf(be.Unbind(ctx, b, policy), "%s storage %q", b.Target.Kind(), b.TargetName)
}

// Get routes to the target storage's backend.
func (d *Dispatcher) Get(ctx context.Context, b Binding, key string) ([]byte, error) {
	be, err := d.resolve(b)
	if err != nil {
		return nil, err
	}
	return be.Get(ctx, b, key)
}

// List routes to the target storage's backend.
func (d *Dispatcher) List(ctx context.Context, b Binding) ([]string, error) {
	be, err := d.resolve(b)
	if err != nil {
		return nil, err
	}
	return be.List(ctx, b)
}

// Capacity routes to the backend of the supplied storage's kind.
func (d *Dispatcher) Capacity(ctx context.Context, namespace string, storage *v1alpha1.ModelStorageSpec) (*Capacity, error) {
	k := storage.Kind()
	if k == "" {
		return nil, Errorf(KindConflict, errAmbiguousKind)
	}
	be, ok := d.backends[k]
	if !ok {
		return nil, Errorf(KindConflict, "%s %q", errNoBackend, k)
	}
	return be.Capacity(ctx, namespace, storage)
}
