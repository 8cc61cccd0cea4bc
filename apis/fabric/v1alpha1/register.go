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

// Package v1alpha1 contains the core fabric resources: models, model storages
// and the bindings that attach one to the other.
// +groupName=fabric.modelfabric.io
// +versionName=v1alpha1
package v1alpha1

import (
	"reflect"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

// Package type metadata.
const (
	Group   = "fabric.modelfabric.io"
	Version = "v1alpha1"
)

var (
	// SchemeGroupVersion is group version used to register these objects
	SchemeGroupVersion = schema.GroupVersion{Group: Group, Version: Version}

	// SchemeBuilder is used to add go types to the GroupVersionKind scheme
	SchemeBuilder = &scheme.Builder{GroupVersion: SchemeGroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)

// Model type metadata.
var (
	ModelKind             = reflect.TypeOf(Model{}).Name()
	ModelKindAPIVersion   = ModelKind + "." + SchemeGroupVersion.String()
	ModelGroupVersionKind = SchemeGroupVersion.WithKind(ModelKind)
)

// ModelStorage type metadata.
var (
	ModelStorageKind             = reflect.TypeOf(ModelStorage{}).Name()
	ModelStorageKindAPIVersion   = ModelStorageKind + "." + SchemeGroupVersion.String()
	ModelStorageGroupVersionKind = SchemeGroupVersion.WithKind(ModelStorageKind)
)

// ModelStorageBinding type metadata.
var (
	ModelStorageBindingKind             = reflect.TypeOf(ModelStorageBinding{}).Name()
	ModelStorageBindingKindAPIVersion   = ModelStorageBindingKind + "." + SchemeGroupVersion.String()
	ModelStorageBindingGroupVersionKind = SchemeGroupVersion.WithKind(ModelStorageBindingKind)
)

func init() {
	SchemeBuilder.Register(&Model{}, &ModelList{})
	SchemeBuilder.Register(&ModelStorage{}, &ModelStorageList{})
	SchemeBuilder.Register(&ModelStorageBinding{}, &ModelStorageBindingList{})
}
