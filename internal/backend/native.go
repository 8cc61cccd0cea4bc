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
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
)

// Error strings.
const (
	errNativeSpec    = "storage spec has no native configuration"
	errNotNative     = "native storage can only hold native models"
	errClonedNative  = "native storage cannot be a clone target"
	errListNative    = "cannot list native objects"
	errGetNative     = "cannot get native object"
	errDeleteNative  = "cannot delete native objects"
	errMarshalNative = "cannot marshal native object"
)

// A NativeBackend binds native models to custom resources held by the
// orchestrator itself. The model's schema reference names the resource kind;
// objects live in the binding's namespace.
type NativeBackend struct {
	dyn dynamic.Interface
}

// NewNativeBackend returns a Backend that stores model data as orchestrator
// objects.
func NewNativeBackend(dyn dynamic.Interface) *NativeBackend {
	return &NativeBackend{dyn: dyn}
}

func (b *NativeBackend) resource(bd Binding) (dynamic.ResourceInterface, error) {
	if bd.Target.Native == nil {
		return nil, Errorf(KindConflict, errNativeSpec)
	}
	if !bd.Model.IsNative() {
		return nil, Errorf(KindConflict, errNotNative)
	}
	ref := bd.Model.CRDRef
	gvr := schema.GroupVersionResource{
		Group:    ref.APIGroup,
		Version:  ref.Version,
		Resource: pluralOf(ref.Kind),
	}
	return b.dyn.Resource(gvr).Namespace(bd.Namespace), nil
}

// Bind verifies the model's schema reference resolves to a servable resource.
// The orchestrator owns the objects themselves, so there is nothing to
// provision.
func (b *NativeBackend) Bind(ctx context.Context, bd Binding) error {
	if bd.Source != nil {
		return Errorf(KindConflict, errClonedNative)
	}
	res, err := b.resource(bd)
	if err != nil {
		return err
	}
	if _, err := res.List(ctx, metav1.ListOptions{Limit: 1}); err != nil {
		return NewError(classifyNative(err), errors.Wrap(err, errListNative))
	}
	return nil
}

// Unbind deletes the bound objects under the Delete policy and leaves them in
// place under Retain.
func (b *NativeBackend) Unbind(ctx context.Context, bd Binding, policy v1alpha1.DeletionPolicy) error {
	if policy == v1alpha1.DeletionRetain {
		return nil
	}
	res, err := b.resource(bd)
	if err != nil {
		return err
	}
	err = res.DeleteCollection(ctx, metav1.DeleteOptions{}, metav1.ListOptions{})
	if err != nil && !kerrors.IsNotFound(err) {
		return NewError(classifyNative(err), errors.Wrap(err, errDeleteNative))
	}
	return nil
}

// Get reads one object by name and returns it as JSON.
func (b *NativeBackend) Get(ctx context.Context, bd Binding, key string) ([]byte, error) {
	res, err := b.resource(bd)
	if err != nil {
		return nil, err
	}
	u, err := res.Get(ctx, key, metav1.GetOptions{})
	if err != nil {
		return nil, NewError(classifyNative(err), errors.Wrap(err, errGetNative))
	}
	data, err := json.Marshal(u.Object)
	return data, NewError(KindPermanent, errors.Wrap(err, errMarshalNative))
}

// List enumerates the names of the bound objects.
func (b *NativeBackend) List(ctx context.Context, bd Binding) ([]string, error) {
	res, err := b.resource(bd)
	if err != nil {
		return nil, err
	}
	list, err := res.List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, NewError(classifyNative(err), errors.Wrap(err, errListNative))
	}
	names := make([]string, 0, len(list.Items))
	for _, u := range list.Items {
		names = append(names, u.GetName())
	}
	return names, nil
}

// Capacity is unknowable for native storage. The orchestrator's own limits
// are not visible through its API.
func (b *NativeBackend) Capacity(_ context.Context, _ string, storage *v1alpha1.ModelStorageSpec) (*Capacity, error) {
	if storage.Native == nil {
		return nil, Errorf(KindConflict, errNativeSpec)
	}
	return nil, nil
}

// pluralOf derives the resource name of a kind the way the orchestrator's own
// generators do for regular English kinds.
func pluralOf(kind string) string {
	k := strings.ToLower(kind)
	switch {
	case strings.HasSuffix(k, "s"), strings.HasSuffix(k, "x"), strings.HasSuffix(k, "z"),
		strings.HasSuffix(k, "ch"), strings.HasSuffix(k, "sh"):
		return k + "es"
	case strings.HasSuffix(k, "y") && len(k) > 1 && !strings.ContainsRune("aeiou", rune(k[len(k)-2])):
		return k[:len(k)-1] + "ies"
	}
	return k + "s"
}

// classifyNative maps orchestrator API failures onto the backend error
// taxonomy.
func classifyNative(err error) Kind {
	switch {
	case kerrors.IsNotFound(err):
		return KindNotFound
	case kerrors.IsUnauthorized(err), kerrors.IsForbidden(err):
		return KindUnauthorized
	case kerrors.IsConflict(err), kerrors.IsAlreadyExists(err), kerrors.IsInvalid(err):
		return KindConflict
	case kerrors.IsServerTimeout(err), kerrors.IsTimeout(err), kerrors.IsTooManyRequests(err),
		kerrors.IsServiceUnavailable(err), kerrors.IsInternalError(err):
		return KindTransient
	}
	return KindTransient
}
