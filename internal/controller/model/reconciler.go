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

// Package model implements the controller that accepts model schemas.
package model

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
	timeout        = 1 * time.Minute
	maxConcurrency = 5

	errGetModel     = "cannot get model"
	errUpdateStatus = "cannot update model status"
	errInvalidModel = "model schema is invalid"
)

// Event reasons.
const (
	reasonAccept event.Reason = "AcceptSchema"
)

// Setup adds a controller that reconciles Models.
func Setup(mgr ctrl.Manager, log logging.Logger, o ...ReconcilerOption) error {
	name := "fabric/" + strings.ToLower(v1alpha1.ModelKind)

	opts := append([]ReconcilerOption{
		WithLogger(log.WithValues("controller", name)),
		WithRecorder(event.NewAPIRecorder(mgr.GetEventRecorderFor(name))),
	}, o...)

	return ctrl.NewControllerManagedBy(mgr).
		Named(name).
		For(&v1alpha1.Model{}).
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
	}
}

// NewReconciler returns a Reconciler of Models.
func NewReconciler(mgr manager.Manager, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store: store.New(mgr.GetClient()),

		log:    logging.NewNopLogger(),
		record: event.NewNopRecorder(),
	}

	for _, f := range opts {
		f(r)
	}
	return r
}

// A Reconciler reconciles Models.
type Reconciler struct {
	store *store.Store

	log    logging.Logger
	record event.Recorder
}

// Reconcile a Model by checking its schema and marking it Ready. Only Ready
// models may be bound; bindings pin the schema they observed, so acceptance
// here is the last point a schema may change freely.
func (r *Reconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	log := r.log.WithValues("request", req)
	log.Debug("Reconciling")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m, err := r.store.GetModel(ctx, req.NamespacedName)
	if err != nil {
		log.Debug(errGetModel, "error", err)
		return reconcile.Result{}, errors.Wrap(resource.IgnoreNotFound(errors.Cause(err)), errGetModel)
	}

	if meta.WasDeleted(m) {
		// Models own no backend artifacts. Bindings that reference a
		// deleted model keep working off their status snapshot.
		return reconcile.Result{}, nil
	}

	if err := validate.Model(&m.Spec); err != nil {
		log.Debug(errInvalidModel, "error", err)
		r.record.Event(m, event.Warning(reasonAccept, err))
		m.Status.State = v1alpha1.StatePending
		m.Status.SetConditions(backend.ReconcileError(errors.Wrap(err, errInvalidModel)))
		return reconcile.Result{}, errors.Wrap(r.commit(ctx, m), errUpdateStatus)
	}

	if m.Status.State != v1alpha1.StateReady {
		r.record.Event(m, event.Normal(reasonAccept, "Accepted model schema"))
	}
	m.Status.State = v1alpha1.StateReady
	m.Status.Fields = m.Spec.Fields
	m.Status.SetConditions(xpv1.Available(), xpv1.ReconcileSuccess())
	return reconcile.Result{}, errors.Wrap(r.commit(ctx, m), errUpdateStatus)
}

func (r *Reconciler) commit(ctx context.Context, m *v1alpha1.Model) error {
	now := metav1.Now()
	m.Status.LastUpdated = &now
	return r.store.UpdateStatus(ctx, m)
}
