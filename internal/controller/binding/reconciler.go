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

// Package binding implements the controller that drives a model storage
// binding through its Pending, Ready and Deleting states.
package binding

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
	"github.com/modelfabric/modelfabric/internal/metrics"
	"github.com/modelfabric/modelfabric/internal/store"
	"github.com/modelfabric/modelfabric/internal/validate"
)

const (
	finalizerName = "finalizer.modelstoragebindings.fabric.modelfabric.io"

	timeout         = 1 * time.Minute
	defaultFallback = 30 * time.Second
	maxConcurrency  = 5

	errGetBinding      = "cannot get model storage binding"
	errAddFinalizer    = "cannot add finalizer"
	errRemoveFinalizer = "cannot remove finalizer"
	errUpdateStatus    = "cannot update binding status"
	errResolve         = "cannot resolve binding"
	errBind            = "cannot bind model to storage"
	errUnbind          = "cannot unbind model from storage"
)

// Event reasons.
const (
	reasonResolve event.Reason = "ResolveReferences"
	reasonBind    event.Reason = "BindModel"
	reasonUnbind  event.Reason = "UnbindModel"
)

// Setup adds a controller that reconciles ModelStorageBindings.
func Setup(mgr ctrl.Manager, log logging.Logger, o ...ReconcilerOption) error {
	name := "fabric/" + strings.ToLower(v1alpha1.ModelStorageBindingKind)

	opts := append([]ReconcilerOption{
		WithLogger(log.WithValues("controller", name)),
		WithRecorder(event.NewAPIRecorder(mgr.GetEventRecorderFor(name))),
	}, o...)

	return ctrl.NewControllerManagedBy(mgr).
		Named(name).
		For(&v1alpha1.ModelStorageBinding{}).
		WithOptions(kcontroller.Options{MaxConcurrentReconciles: maxConcurrency}).
		Complete(NewReconciler(mgr, opts...))
}

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
		r.resolver = validate.NewResolver(s)
	}
}

// WithBackend specifies the backend binding operations are dispatched to.
func WithBackend(b backend.Backend) ReconcilerOption {
	return func(r *Reconciler) {
		r.backend = b
	}
}

// WithFinalizer specifies how the Reconciler should manage the binding's
// finalizer.
func WithFinalizer(f resource.Finalizer) ReconcilerOption {
	return func(r *Reconciler) {
		r.finalizer = f
	}
}

// WithFallback specifies how long the Reconciler waits before retrying a
// failed reconcile.
func WithFallback(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.fallback = d
	}
}

// NewReconciler returns a Reconciler of ModelStorageBindings.
func NewReconciler(mgr manager.Manager, opts ...ReconcilerOption) *Reconciler {
	s := store.New(mgr.GetClient())
	r := &Reconciler{
		store:     s,
		resolver:  validate.NewResolver(s),
		finalizer: resource.NewAPIFinalizer(mgr.GetClient(), finalizerName),
		fallback:  defaultFallback,

		log:    logging.NewNopLogger(),
		record: event.NewNopRecorder(),
	}

	for _, f := range opts {
		f(r)
	}
	return r
}

// A Reconciler reconciles ModelStorageBindings.
type Reconciler struct {
	store     *store.Store
	resolver  *validate.Resolver
	backend   backend.Backend
	finalizer resource.Finalizer
	fallback  time.Duration

	log    logging.Logger
	record event.Recorder
}

// Reconcile a ModelStorageBinding by resolving its references, provisioning
// the backing artifact and keeping the status snapshot current. The status
// patch at the end of each path is the single commit point; reconciling from
// any partial state converges on the same outcome.
func (r *Reconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	log := r.log.WithValues("request", req)
	log.Debug("Reconciling")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b, err := r.store.GetModelStorageBinding(ctx, req.NamespacedName)
	if err != nil {
		// The binding was reaped while the event sat in the queue.
		log.Debug(errGetBinding, "error", err)
		return reconcile.Result{}, errors.Wrap(resource.IgnoreNotFound(errors.Cause(err)), errGetBinding)
	}

	log = log.WithValues(
		"uid", b.GetUID(),
		"version", b.GetResourceVersion(),
		"name", b.GetName(),
	)

	if meta.WasDeleted(b) {
		return r.delete(ctx, log, b)
	}

	// Deletion must be observable before any backend artifact exists, so
	// the finalizer goes on first. The update we make here triggers the
	// next reconcile.
	if !meta.FinalizerExists(b, finalizerName) {
		if err := r.finalizer.AddFinalizer(ctx, b); err != nil {
			log.Debug(errAddFinalizer, "error", err)
			return reconcile.Result{RequeueAfter: r.fallback}, nil
		}
		return reconcile.Result{}, nil
	}

	if b.Status.State == v1alpha1.StateReady {
		return r.update(ctx, log, b)
	}
	return r.bind(ctx, log, b)
}

// bind takes a Pending binding to Ready.
func (r *Reconciler) bind(ctx context.Context, log logging.Logger, b *v1alpha1.ModelStorageBinding) (reconcile.Result, error) {
	bc, err := r.resolver.Resolve(ctx, b)
	if err != nil {
		log.Debug(errResolve, "error", err, "kind", backend.KindOf(err))
		r.record.Event(b, event.Warning(reasonResolve, err))
		return r.fail(ctx, b, v1alpha1.StatePending, err)
	}

	if err := r.backend.Bind(ctx, *bc); err != nil {
		metrics.Binds.WithLabelValues(string(bc.Target.Kind()), metrics.ResultError).Inc()
		log.Debug(errBind, "error", err, "kind", backend.KindOf(err))
		r.record.Event(b, event.Warning(reasonBind, err))
		return r.fail(ctx, b, v1alpha1.StatePending, err)
	}
	metrics.Binds.WithLabelValues(string(bc.Target.Kind()), metrics.ResultOK).Inc()

	snapshot(b, bc)
	b.Status.State = v1alpha1.StateReady
	b.Status.SetConditions(xpv1.Available(), xpv1.ReconcileSuccess())
	r.record.Event(b, event.Normal(reasonBind, "Bound model to storage"))
	log.Debug("Bound model to storage", "model", bc.ModelName, "target", bc.TargetName)
	return reconcile.Result{}, errors.Wrap(r.commit(ctx, b), errUpdateStatus)
}

// update re-resolves a Ready binding. An unchanged pair is a no-op; a changed
// pair unbinds the old artifact before binding the new one.
func (r *Reconciler) update(ctx context.Context, log logging.Logger, b *v1alpha1.ModelStorageBinding) (reconcile.Result, error) {
	bc, err := r.resolver.Update(ctx, b)
	if err != nil {
		log.Debug(errResolve, "error", err, "kind", backend.KindOf(err))
		r.record.Event(b, event.Warning(reasonResolve, err))
		return r.fail(ctx, b, v1alpha1.StateReady, err)
	}
	if bc == nil {
		b.Status.SetConditions(xpv1.Available(), xpv1.ReconcileSuccess())
		return reconcile.Result{}, errors.Wrap(r.commit(ctx, b), errUpdateStatus)
	}

	if old := validate.FromSnapshot(b); old != nil {
		if err := r.backend.Unbind(ctx, *old, policyOf(b)); err != nil {
			metrics.Unbinds.WithLabelValues(string(old.Target.Kind()), metrics.ResultError).Inc()
			log.Debug(errUnbind, "error", err, "kind", backend.KindOf(err))
			r.record.Event(b, event.Warning(reasonUnbind, err))
			return r.fail(ctx, b, v1alpha1.StateReady, err)
		}
		metrics.Unbinds.WithLabelValues(string(old.Target.Kind()), metrics.ResultOK).Inc()
	}

	if err := r.backend.Bind(ctx, *bc); err != nil {
		metrics.Binds.WithLabelValues(string(bc.Target.Kind()), metrics.ResultError).Inc()
		log.Debug(errBind, "error", err, "kind", backend.KindOf(err))
		r.record.Event(b, event.Warning(reasonBind, err))
		// The old artifact is gone but the new one is not there yet. The
		// snapshot must not claim otherwise.
		clearSnapshot(b)
		b.Status.State = v1alpha1.StatePending
		b.Status.SetConditions(backend.ReconcileError(errors.Wrap(err, errBind)))
		if cerr := r.commit(ctx, b); cerr != nil {
			log.Debug(errUpdateStatus, "error", cerr)
		}
		return reconcile.Result{RequeueAfter: r.fallback}, nil
	}
	metrics.Binds.WithLabelValues(string(bc.Target.Kind()), metrics.ResultOK).Inc()

	snapshot(b, bc)
	b.Status.State = v1alpha1.StateReady
	b.Status.SetConditions(xpv1.Available(), xpv1.ReconcileSuccess())
	r.record.Event(b, event.Normal(reasonBind, "Rebound model to storage"))
	return reconcile.Result{}, errors.Wrap(r.commit(ctx, b), errUpdateStatus)
}

// delete unbinds the backing artifact and removes the finalizer. Unbind
// failures other than Transient are logged and swallowed so a broken backend
// cannot wedge deletion forever.
func (r *Reconciler) delete(ctx context.Context, log logging.Logger, b *v1alpha1.ModelStorageBinding) (reconcile.Result, error) {
	if !meta.FinalizerExists(b, finalizerName) {
		return reconcile.Result{}, nil
	}

	// Deletion precedence: the state flips to Deleting first, in its own
	// commit, so observers never see a Ready binding that is going away.
	if b.Status.State != v1alpha1.StateDeleting {
		b.Status.State = v1alpha1.StateDeleting
		b.Status.SetConditions(xpv1.Deleting())
		if err := r.commit(ctx, b); err != nil {
			log.Debug(errUpdateStatus, "error", err)
			return reconcile.Result{RequeueAfter: r.fallback}, nil
		}
		return reconcile.Result{Requeue: true}, nil
	}

	if bc := validate.FromSnapshot(b); bc != nil {
		err := r.backend.Unbind(ctx, *bc, policyOf(b))
		if backend.IsTransient(err) {
			metrics.Unbinds.WithLabelValues(string(bc.Target.Kind()), metrics.ResultError).Inc()
			log.Debug(errUnbind, "error", err)
			r.record.Event(b, event.Warning(reasonUnbind, err))
			return reconcile.Result{RequeueAfter: r.fallback}, nil
		}
		if err != nil {
			// Finalization is best effort for every other failure.
			metrics.Unbinds.WithLabelValues(string(bc.Target.Kind()), metrics.ResultError).Inc()
			log.Info("Ignoring unbind failure during finalization", "error", err, "kind", backend.KindOf(err))
			r.record.Event(b, event.Warning(reasonUnbind, err))
		} else {
			metrics.Unbinds.WithLabelValues(string(bc.Target.Kind()), metrics.ResultOK).Inc()
			r.record.Event(b, event.Normal(reasonUnbind, "Unbound model from storage"))
		}
	}

	if err := r.finalizer.RemoveFinalizer(ctx, b); err != nil {
		log.Debug(errRemoveFinalizer, "error", err)
		return reconcile.Result{RequeueAfter: r.fallback}, nil
	}
	return reconcile.Result{}, nil
}

// fail records an error condition and schedules a retry. Fatal errors are
// retried on the same schedule, but the bind path keeps failing the exact
// same way until the spec changes, so the retry is effectively a poll for
// that change.
func (r *Reconciler) fail(ctx context.Context, b *v1alpha1.ModelStorageBinding, state v1alpha1.State, err error) (reconcile.Result, error) {
	b.Status.State = state
	b.Status.SetConditions(backend.ReconcileError(err))
	if cerr := r.commit(ctx, b); cerr != nil {
		r.log.Debug(errUpdateStatus, "error", cerr)
	}
	return reconcile.Result{RequeueAfter: r.fallback}, nil
}

func (r *Reconciler) commit(ctx context.Context, b *v1alpha1.ModelStorageBinding) error {
	now := metav1.Now()
	b.Status.LastUpdated = &now
	return r.store.UpdateStatus(ctx, b)
}

// snapshot copies the resolved context into the binding's status so an
// unbind can proceed after the referents are gone.
func snapshot(b *v1alpha1.ModelStorageBinding, bc *backend.Binding) {
	b.Status.DeletionPolicy = policyOf(b)
	b.Status.Model = bc.Model
	b.Status.ModelName = bc.ModelName
	b.Status.StorageSource = bc.Source
	b.Status.StorageSourceName = sourceName(b)
	b.Status.StorageSyncPolicy = bc.SyncPolicy
	b.Status.StorageTarget = bc.Target
	b.Status.StorageTargetName = bc.TargetName
}

func clearSnapshot(b *v1alpha1.ModelStorageBinding) {
	b.Status.Model = nil
	b.Status.ModelName = ""
	b.Status.StorageSource = nil
	b.Status.StorageSourceName = ""
	b.Status.StorageSyncPolicy = nil
	b.Status.StorageTarget = nil
	b.Status.StorageTargetName = ""
}

func policyOf(b *v1alpha1.ModelStorageBinding) v1alpha1.DeletionPolicy {
	if b.Spec.DeletionPolicy == "" {
		return v1alpha1.DeletionDelete
	}
	return b.Spec.DeletionPolicy
}

func sourceName(b *v1alpha1.ModelStorageBinding) string {
	if b.Spec.Storage.Source == nil {
		return ""
	}
	return *b.Spec.Storage.Source
}
