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

// Package backend implements the storage backend adapters and the dispatcher
// that routes binding operations to them.
package backend

import (
	"context"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
)

// A Binding is the resolved context a backend operates on. It is assembled by
// the validator from the referenced model and storages so backend operations
// never read fabric records themselves.
type Binding struct {
	// Namespace of the binding and everything it references.
	Namespace string

	// ModelName names the backing artifact: the bucket, the table, or the
	// native object group.
	ModelName string

	// Model is the schema the artifact must satisfy.
	Model *v1alpha1.ModelSpec

	// Source is set for cloned bindings only.
	Source     *v1alpha1.ModelStorageSpec
	SyncPolicy *v1alpha1.SyncPolicySpec

	// Target is the storage the model is bound to.
	Target     *v1alpha1.ModelStorageSpec
	TargetName string
}

// A Capacity reports the space a storage has left and has used. Backends that
// cannot report return a nil *Capacity instead.
type Capacity struct {
	AvailableBytes int64
	UsedBytes      int64
}

// A Backend adapts one storage kind to the uniform bind/unbind/get/list/
// capacity contract. Implementations classify every failure with a Kind from
// this package.
type Backend interface {
	// Bind ensures the backing artifact for the binding's model exists and
	// matches its schema.
	Bind(ctx context.Context, b Binding) error

	// Unbind releases the backing artifact according to the supplied
	// deletion policy. Unbind is idempotent: unbinding an artifact that is
	// already gone succeeds.
	Unbind(ctx context.Context, b Binding, policy v1alpha1.DeletionPolicy) error

	// Get reads one object by the backend's natural key.
	Get(ctx context.Context, b Binding, key string) ([]byte, error)

	// List enumerates object keys held for the binding's model.
	List(ctx context.Context, b Binding) ([]string, error)

	// Capacity reports free and used bytes for the supplied storage, or nil
	// when the backend cannot report.
	Capacity(ctx context.Context, namespace string, storage *v1alpha1.ModelStorageSpec) (*Capacity, error)
}
