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

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
)

// A BackendFns satisfies Backend with configurable functions. Unset functions
// succeed with zero values.
type BackendFns struct {
	BindFn     func(ctx context.Context, b Binding) error
	UnbindFn   func(ctx context.Context, b Binding, policy v1alpha1.DeletionPolicy) error
	GetFn      func(ctx context.Context, b Binding, key string) ([]byte, error)
	ListFn     func(ctx context.Context, b Binding) ([]string, error)
	CapacityFn func(ctx context.Context, namespace string, storage *v1alpha1.ModelStorageSpec) (*Capacity, error)
}

// Bind calls BindFn.
func (f *BackendFns) Bind(ctx context.Context, b Binding) error {
	if f.BindFn == nil {
		return nil
	}
	return f.BindFn(ctx, b)
}

// Unbind calls UnbindFn.
func (f *BackendFns) Unbind(ctx context.Context, b Binding, policy v1alpha1.DeletionPolicy) error {
	if f.UnbindFn == nil {
		return nil
	}
	return f.UnbindFn(ctx, b, policy)
}

// Get calls GetFn.
func (f *BackendFns) Get(ctx context.Context, b Binding, key string) ([]byte, error) {
	if f.GetFn == nil {
		return nil, nil
	}
	return f.GetFn(ctx, b, key)
}

// List calls ListFn.
func (f *BackendFns) List(ctx context.Context, b Binding) ([]string, error) {
	if f.ListFn == nil {
		return nil, nil
	}
	return f.ListFn(ctx, b)
}

// Capacity calls CapacityFn.
func (f *BackendFns) Capacity(ctx context.Context, namespace string, storage *v1alpha1.ModelStorageSpec) (*Capacity, error) {
	if f.CapacityFn == nil {
		return nil, nil
	}
	return f.CapacityFn(ctx, namespace, storage)
}
