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

// Package store provides typed access to the fabric's records. All writes go
// through a single field manager so concurrent controllers never fight over
// fields they do not own.
package store

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
)

// DefaultFieldManager identifies the fabric's writes to the API server.
const DefaultFieldManager = "modelfabric"

// Error strings.
const (
	errGetModel     = "cannot get model"
	errGetStorage   = "cannot get model storage"
	errGetBinding   = "cannot get model storage binding"
	errListStorages = "cannot list model storages"
	errListBindings = "cannot list model storage bindings"
	errListModels   = "cannot list models"
	errCreate       = "cannot create resource"
	errDelete       = "cannot delete resource"
	errStatus       = "cannot update resource status"
)

// A Store reads and writes fabric records.
type Store struct {
	client client.Client
	owner  client.FieldOwner
}

// An Option configures a Store.
type Option func(*Store)

// WithFieldManager sets the field manager the store writes as.
func WithFieldManager(name string) Option {
	return func(s *Store) { s.owner = client.FieldOwner(name) }
}

// New returns a Store backed by the supplied client.
func New(c client.Client, o ...Option) *Store {
	s := &Store{client: c, owner: client.FieldOwner(DefaultFieldManager)}
	for _, fn := range o {
		fn(s)
	}
	return s
}

// GetModel fetches one model.
func (s *Store) GetModel(ctx context.Context, nn types.NamespacedName) (*v1alpha1.Model, error) {
	m := &v1alpha1.Model{}
	if err := s.client.Get(ctx, nn, m); err != nil {
		return nil, errors.Wrap(err, errGetModel)
	}
	return m, nil
}

// GetModelStorage fetches one model storage.
func (s *Store) GetModelStorage(ctx context.Context, nn types.NamespacedName) (*v1alpha1.ModelStorage, error) {
	ms := &v1alpha1.ModelStorage{}
	if err := s.client.Get(ctx, nn, ms); err != nil {
		return nil, errors.Wrap(err, errGetStorage)
	}
	return ms, nil
}

// GetModelStorageBinding fetches one binding.
func (s *Store) GetModelStorageBinding(ctx context.Context, nn types.NamespacedName) (*v1alpha1.ModelStorageBinding, error) {
	b := &v1alpha1.ModelStorageBinding{}
	if err := s.client.Get(ctx, nn, b); err != nil {
		return nil, errors.Wrap(err, errGetBinding)
	}
	return b, nil
}

// ListModels lists the models of one namespace.
func (s *Store) ListModels(ctx context.Context, namespace string) (*v1alpha1.ModelList, error) {
	l := &v1alpha1.ModelList{}
	if err := s.client.List(ctx, l, client.InNamespace(namespace)); err != nil {
		return nil, errors.Wrap(err, errListModels)
	}
	return l, nil
}

// ListModelStorages lists the storages of one namespace.
func (s *Store) ListModelStorages(ctx context.Context, namespace string) (*v1alpha1.ModelStorageList, error) {
	l := &v1alpha1.ModelStorageList{}
	if err := s.client.List(ctx, l, client.InNamespace(namespace)); err != nil {
		return nil, errors.Wrap(err, errListStorages)
	}
	return l, nil
}

// ListModelStorageBindings lists the bindings of one namespace.
func (s *Store) ListModelStorageBindings(ctx context.Context, namespace string) (*v1alpha1.ModelStorageBindingList, error) {
	l := &v1alpha1.ModelStorageBindingList{}
	if err := s.client.List(ctx, l, client.InNamespace(namespace)); err != nil {
		return nil, errors.Wrap(err, errListBindings)
	}
	return l, nil
}

// Create persists a new record.
func (s *Store) Create(ctx context.Context, obj client.Object) error {
	return errors.Wrap(s.client.Create(ctx, obj, s.owner), errCreate)
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, obj client.Object) error {
	return errors.Wrap(s.client.Delete(ctx, obj), errDelete)
}

// UpdateStatus commits a record's status subresource. This is the single
// point reconcilers write observed state through.
func (s *Store) UpdateStatus(ctx context.Context, obj client.Object) error {
	return errors.Wrap(s.client.Status().Update(ctx, obj, s.owner), errStatus)
}

// Client exposes the underlying client for callers that need watches or
// unstructured access.
func (s *Store) Client() client.Client {
	return s.client
}
