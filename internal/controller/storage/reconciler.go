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

// Package storage implements the controller that admits model storages.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	kcontroller "sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	xpv1 "github.com/crossplane/crossplane-runtime/apis/common/v1"
	"github.com/crossplane/crossplane-runtime/pkg/event"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/crossplane/crossplane-runtime/pkg/meta"
	"github.com/crossplane/crossplane-runtime/pkg/resource"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
	"github.com/modelfabric/modelfabric/internal/backend"
	"github.com/modelfabric/modelfabric/internal/store"
	"github.com/modelfabric/modelfabric/internal/validate"
)

const (
	finalizerName = "finalizer.modelstorages.fabric.modelfabric.io"

	timeout         = 1 * time.Minute
	defaultFallback = 30 * time.Second
	maxConcurrency  = 5

	errGetStorage      = "cannot get model storage"
	errListStorages    = "cannot list model storages"
	errListBindings    = "cannot list model storage bindings"
	errAddFinalizer    = "cannot add finalizer"
	errRemoveFinalizer = "cannot remove finalizer"
	errUpdateStatus    = "cannot update storage status"
	errInvalidStorage  = "storage spec is invalid"
	errKindTaken       = "another ready storage of a unique kind exists in this namespace"
	errStillBound      = "storage is still referenced by bindings"
)

// Event reasons.
const (
	reasonAdmit  event.Reason = "AdmitStorage"
	reasonRetire event.Reason = "RetireStorage"
)

// Setup adds a controller that reconciles ModelStorages.
func Setup(mgr ctrl.Manager, log logging.Logger, o ...ReconcilerOption) error {
	name := "fabric/" + strings.ToLower(v1alpha1.ModelStorageKind)

	opts := append([]ReconcilerOption{
		WithLogger(log.WithValues("controller", name)),
		WithRecorder(event.NewAPIRecorder(mgr.GetEventRecorderFor(name))),
	}, o...)

	return ctrl.NewControllerManagedBy(mgr).
		Named(name).
		For(&v1alpha1.ModelStorage{}).
		WithOptions(kcontroller.Options{MaxConcurrentReconciles: maxConcurrency}).
		Complete(NewReconciler(mgr, opts...))
}

// A StorageObserver is notified as storages are admitted and retired, so the
// telemetry graphs track the namespace's live storages.
type StorageObserver interface {
	AddStorage(namespace, name string)
	RemoveStorage(namespace, name string)
}

type nopObserver struct{}

func (nopObserver) AddStorage(_, _ string)    {}
func (nopObserver) RemoveStorage(_, _ string) {}

// ReconcilerOption is used to configure the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithLogger specifies how the Reconciler should log messages.
func WithLogger(log logging.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.log = log
	}
}

// WithRecorder specifies how the Reconciler should record Kubernetes events.
func WithRecorder(er event.Recorder) ReconcilerOption {
	return func(r *Reconciler) {
		r.record = er
	}
}

// WithStore specifies how the Reconciler should read and write fabric
// records.
func WithStore(s *store.Store) ReconcilerOption {
	return func(r *Reconciler) {
		r.store = s
	}
}

// WithFinalizer specifies how the Reconciler should manage the storage's
// finalizer.
func WithFinalizer(f resource.Finalizer) ReconcilerOption {
	return func(r *Reconciler) {
		r.finalizer = f
	}
}

// WithFallback specifies how long the Reconciler waits before retrying.
func WithFallback(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.fallback = d
	}
}

// WithObserver specifies who is notified of admitted and retired storages.
func WithObserver(o StorageObserver) ReconcilerOption {
	return func(r *Reconciler) {
		r.observer = o
	}
}

// NewReconciler returns a Reconciler of ModelStorages.
func NewReconciler(mgr manager.Manager, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:     store.New(mgr.GetClient()),
		finalizer: resource.NewAPIFinalizer(mgr.GetClient(), finalizerName),
		fallback:  defaultFallback,
		observer:  nopObserver{},

		log:    logging.NewNopLogger(),
		record: event.NewNopRecorder(),
	}

	for _, f := range opts {
		f(r)
	}
	return r
}

// A Reconciler reconciles ModelStorages.
type Reconciler struct {
	store     *store.Store
	finalizer resource.Finalizer
	fallback  time.Duration
	observer  StorageObserver

	log    logging.Logger
	record event.Recorder
}

// Reconcile a ModelStorage by admitting its spec and enforcing kind
// uniqueness. Deletion is held back while any binding still references the
// storage, so an unbind never races its backend away.
func (r *Reconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	log := r.log.WithValues("request", req)
	log.Debug("Reconciling")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ms, err := r.store.GetModelStorage(ctx, req.NamespacedName)
	if err != nil {
		log.Debug(errGetStorage, "error", err)
		return reconcile.Result{}, errors.Wrap(resource.IgnoreNotFound(errors.Cause(err)), errGetStorage)
	}

	if meta.WasDeleted(ms) {
		return r.delete(ctx, log, ms)
	}

	if !meta.FinalizerExists(ms, finalizerName) {
		if err := r.finalizer.AddFinalizer(ctx, ms); err != nil {
			log.Debug(errAddFinalizer, "error", err)
			return reconcile.Result{RequeueAfter: r.fallback}, nil
		}
		return reconcile.Result{}, nil
	}

	if err := validate.Storage(&ms.Spec); err != nil {
		log.Debug(errInvalidStorage, "error", err)
		r.record.Event(ms, event.Warning(reasonAdmit, err))
		ms.Status.State = v1alpha1.StatePending
		ms.Status.SetConditions(backend.ReconcileError(errors.Wrap(err, errInvalidStorage)))
		return reconcile.Result{}, errors.Wrap(r.commit(ctx, ms), errUpdateStatus)
	}

	kind := ms.Spec.Kind()
	if kind.Unique() {
		taken, err := r.kindTaken(ctx, ms, kind)
		if err != nil {
			log.Debug(errListStorages, "error", err)
			return reconcile.Result{RequeueAfter: r.fallback}, nil
		}
		if taken {
			r.record.Event(ms, event.Warning(reasonAdmit, errors.New(errKindTaken)))
			ms.Status.State = v1alpha1.StatePending
			ms.Status.Kind = kind
			ms.Status.SetConditions(backend.ReconcileError(backend.NewError(backend.KindConflict, errors.New(errKindTaken))))
			if cerr := r.commit(ctx, ms); cerr != nil {
				log.Debug(errUpdateStatus, "error", cerr)
			}
			// The slot opens when the other storage goes away.
			return reconcile.Result{RequeueAfter: r.fallback}, nil
		}
	}

	if ms.Status.State != v1alpha1.StateReady {
		r.record.Event(ms, event.Normal(reasonAdmit, "Admitted model storage"))
	}
	r.observer.AddStorage(ms.Namespace, ms.Name)
	ms.Status.State = v1alpha1.StateReady
	ms.Status.Kind = kind
	ms.Status.SetConditions(xpv1.Available(), xpv1.ReconcileSuccess())
	return reconcile.Result{}, errors.Wrap(r.commit(ctx, ms), errUpdateStatus)
}

// kindTaken reports whether another Ready storage of the same unique kind
// holds the namespace's slot. First to become Ready wins. Two storages that
// raced into Ready converge on one winner: the older wins, and equal ages
// break on name, so the loser demotes itself on its next pass.
func (r *Reconciler) kindTaken(ctx context.Context, ms *v1alpha1.ModelStorage, kind v1alpha1.StorageKind) (bool, error) {
	l, err := r.store.ListModelStorages(ctx, ms.Namespace)
	if err != nil {
		return false, err
	}
	for i := range l.Items {
		other := &l.Items[i]
		if other.Name == ms.Name {
			continue
		}
		if other.Status.State != v1alpha1.StateReady || other.Spec.Kind() != kind {
			continue
		}
		if ms.Status.State != v1alpha1.StateReady || wins(other, ms) {
			return true, nil
		}
	}
	return false, nil
}

// wins reports whether storage a beats storage b for a unique kind slot.
func wins(a, b *v1alpha1.ModelStorage) bool {
	if !a.CreationTimestamp.Equal(&b.CreationTimestamp) {
		return a.CreationTimestamp.Before(&b.CreationTimestamp)
	}
	return a.Name < b.Name
}

// delete retires a storage once nothing references it any more.
func (r *Reconciler) delete(ctx context.Context, log logging.Logger, ms *v1alpha1.ModelStorage) (reconcile.Result, error) {
	if !meta.FinalizerExists(ms, finalizerName) {
		return reconcile.Result{}, nil
	}

	bound, err := r.referenced(ctx, ms)
	if err != nil {
		log.Debug(errListBindings, "error", err)
		return reconcile.Result{RequeueAfter: r.fallback}, nil
	}
	if bound {
		log.Debug(errStillBound)
		r.record.Event(ms, event.Warning(reasonRetire, errors.New(errStillBound)))
		if ms.Status.State != v1alpha1.StateDeleting {
			ms.Status.State = v1alpha1.StateDeleting
			ms.Status.SetConditions(xpv1.Deleting())
			if cerr := r.commit(ctx, ms); cerr != nil {
				log.Debug(errUpdateStatus, "error", cerr)
			}
		}
		return reconcile.Result{RequeueAfter: r.fallback}, nil
	}

	if err := r.finalizer.RemoveFinalizer(ctx, ms); err != nil {
		log.Debug(errRemoveFinalizer, "error", err)
		return reconcile.Result{RequeueAfter: r.fallback}, nil
	}
	r.observer.RemoveStorage(ms.Namespace, ms.Name)
	r.record.Event(ms, event.Normal(reasonRetire, "Retired model storage"))
	return reconcile.Result{}, nil
}

// referenced reports whether any binding in the namespace names the storage
// as its target or source, in spec or in its status snapshot.
func (r *Reconciler) referenced(ctx context.Context, ms *v1alpha1.ModelStorage) (bool, error) {
	l, err := r.store.ListModelStorageBindings(ctx, ms.Namespace)
	if err != nil {
		return false, err
	}
	for i := range l.Items {
		b := &l.Items[i]
		if b.Spec.Storage.Target == ms.Name || b.Status.StorageTargetName == ms.Name {
			return true, nil
		}
		if b.Spec.Storage.Source != nil && *b.Spec.Storage.Source == ms.Name {
			return true, nil
		}
		if b.Status.StorageSourceName == ms.Name {
			return true, nil
		}
	}
	return false, nil
}

func (r *Reconciler) commit(ctx context.Context, ms *v1alpha1.ModelStorage) error {
	now := metav1.Now()
	ms.Status.LastUpdated = &now
	return r.store.UpdateStatus(ctx, ms)
}
