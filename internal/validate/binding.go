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

package validate

import (
	"context"

	"k8s.io/apimachinery/pkg/api/equality"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
	"github.com/modelfabric/modelfabric/internal/backend"
	"github.com/modelfabric/modelfabric/internal/store"
)

// Error strings.
const (
	errModelNotFound    = "referenced model does not exist"
	errModelNotReady    = "referenced model is not ready"
	errModelChanged     = "bound model schema changed; models are immutable while bound"
	errStorageNotFound  = "referenced storage does not exist"
	errStorageNotReady  = "referenced storage is not ready"
	errSourceIsTarget   = "source and target storage must differ"
	errNoSyncPolicy     = "cloned bindings require a sync policy"
	errSyncPolicyOwned  = "owned bindings may not set a sync policy"
	errGetModelAPI      = "cannot fetch referenced model"
	errGetStorageAPI    = "cannot fetch referenced storage"
)

// A Resolver turns a binding's references into the resolved context backends
// operate on. Resolution is read only.
type Resolver struct {
	store *store.Store
}

// NewResolver returns a Resolver reading through the supplied store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve validates a live binding and assembles its backend context. The
// returned context carries deep copies, so the caller may snapshot it into
// the binding's status unchanged.
//
// A reference that does not resolve is NotFound, a referent that is not Ready
// yet is NotReady, and a bound model whose schema drifted from the snapshot
// is Fatal.
func (r *Resolver) Resolve(ctx context.Context, b *v1alpha1.ModelStorageBinding) (*backend.Binding, error) {
	m, err := r.model(ctx, b)
	if err != nil {
		return nil, err
	}

	target, err := r.storage(ctx, b.Namespace, b.Spec.Storage.Target)
	if err != nil {
		return nil, err
	}

	out := &backend.Binding{
		Namespace:  b.Namespace,
		ModelName:  m.Name,
		Model:      m.Spec.DeepCopy(),
		Target:     target.Spec.DeepCopy(),
		TargetName: target.Name,
	}

	if !b.Cloned() {
		if b.Spec.SyncPolicy != nil {
			return nil, backend.Errorf(backend.KindConflict, errSyncPolicyOwned)
		}
		return out, nil
	}

	if b.Spec.SyncPolicy == nil {
		return nil, backend.Errorf(backend.KindConflict, errNoSyncPolicy)
	}
	if *b.Spec.Storage.Source == b.Spec.Storage.Target {
		return nil, backend.Errorf(backend.KindConflict, errSourceIsTarget)
	}
	source, err := r.storage(ctx, b.Namespace, *b.Spec.Storage.Source)
	if err != nil {
		return nil, err
	}
	out.Source = source.Spec.DeepCopy()
	out.SyncPolicy = b.Spec.SyncPolicy.DeepCopy()
	return out, nil
}

func (r *Resolver) model(ctx context.Context, b *v1alpha1.ModelStorageBinding) (*v1alpha1.Model, error) {
	m, err := r.store.GetModel(ctx, types.NamespacedName{Namespace: b.Namespace, Name: b.Spec.Model.Name})
	if err != nil {
		if kerrors.IsNotFound(err) {
			return nil, backend.Errorf(backend.KindNotFound, "%s: %q", errModelNotFound, b.Spec.Model.Name)
		}
		return nil, backend.WrapError(backend.KindTransient, err, errGetModelAPI)
	}
	if m.Status.State != v1alpha1.StateReady {
		return nil, backend.Errorf(backend.KindNotReady, "%s: %q is %s", errModelNotReady, m.Name, stateOrPending(m.Status.State))
	}
	// A binding that already snapshotted the model pins its schema. Drift
	// means someone mutated a bound model, which the fabric refuses to
	// propagate.
	if b.Status.Model != nil && !equality.Semantic.DeepEqual(b.Status.Model, &m.Spec) {
		return nil, backend.Errorf(backend.KindFatal, errModelChanged)
	}
	return m, nil
}

func (r *Resolver) storage(ctx context.Context, namespace, name string) (*v1alpha1.ModelStorage, error) {
	ms, err := r.store.GetModelStorage(ctx, types.NamespacedName{Namespace: namespace, Name: name})
	if err != nil {
		if kerrors.IsNotFound(err) {
			return nil, backend.Errorf(backend.KindNotFound, "%s: %q", errStorageNotFound, name)
		}
		return nil, backend.WrapError(backend.KindTransient, err, errGetStorageAPI)
	}
	if ms.Status.State != v1alpha1.StateReady {
		return nil, backend.Errorf(backend.KindNotReady, "%s: %q is %s", errStorageNotReady, name, stateOrPending(ms.Status.State))
	}
	return ms, nil
}

// Update re-resolves a binding that already bound. A nil context with a nil
// error means the resolved source and target are unchanged and there is
// nothing to do. A non-nil context asks the caller to unbind the old pair and
// bind the new one.
func (r *Resolver) Update(ctx context.Context, b *v1alpha1.ModelStorageBinding) (*backend.Binding, error) {
	out, err := r.Resolve(ctx, b)
	if err != nil {
		return nil, err
	}
	if equality.Semantic.DeepEqual(out.Source, b.Status.StorageSource) &&
		equality.Semantic.DeepEqual(out.Target, b.Status.StorageTarget) {
		return nil, nil
	}
	return out, nil
}

// FromSnapshot rebuilds the backend context from the binding's status
// snapshot. It needs no API reads, so an unbind can proceed after the
// referenced model or storages are gone. Returns nil when the binding never
// bound.
func FromSnapshot(b *v1alpha1.ModelStorageBinding) *backend.Binding {
	if b.Status.Model == nil || b.Status.StorageTarget == nil {
		return nil
	}
	return &backend.Binding{
		Namespace:  b.Namespace,
		ModelName:  b.Status.ModelName,
		Model:      b.Status.Model.DeepCopy(),
		Source:     b.Status.StorageSource.DeepCopy(),
		SyncPolicy: b.Status.StorageSyncPolicy.DeepCopy(),
		Target:     b.Status.StorageTarget.DeepCopy(),
		TargetName: b.Status.StorageTargetName,
	}
}

func stateOrPending(s v1alpha1.State) v1alpha1.State {
	if s == "" {
		return v1alpha1.StatePending
	}
	return s
}
