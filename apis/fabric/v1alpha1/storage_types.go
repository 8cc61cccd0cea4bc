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

package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	xpv1 "github.com/crossplane/crossplane-runtime/apis/common/v1"
)

// A StorageKind discriminates the physical backend of a ModelStorage.
type StorageKind string

// Storage kinds.
const (
	StorageKindDatabase StorageKind = "Database"
	StorageKindNative   StorageKind = "Native"
	StorageKindObject   StorageKind = "Object"
)

// Unique returns true for kinds of which a namespace may hold at most one
// Ready storage.
func (k StorageKind) Unique() bool {
	return k == StorageKindDatabase || k == StorageKindNative
}

// A DatabaseStorageSpec configures a relational database backend.
type DatabaseStorageSpec struct {
	// ConnectionSecretRef names a secret in the storage's namespace holding
	// the DSN under the key "dsn".
	ConnectionSecretRef corev1.LocalObjectReference `json:"connectionSecretRef"`

	// Database is the schema name tables are created in.
	Database string `json:"database"`

	// Capacity optionally declares the space available to the fabric.
	// +optional
	Capacity *resource.Quantity `json:"capacity,omitempty"`
}

// A NativeStorageSpec configures the orchestrator itself as a backend. It
// carries no configuration; objects live in the storage's namespace.
type NativeStorageSpec struct{}

// An ObjectStorageSpec configures an S3-compatible object store backend.
type ObjectStorageSpec struct {
	// Endpoint of the object store, e.g. "https://minio.fabric:9000".
	Endpoint string `json:"endpoint"`

	// Region used for request signing.
	// +optional
	Region string `json:"region,omitempty"`

	// PathStyle forces path-style addressing, required by most self-hosted
	// object stores.
	// +optional
	PathStyle bool `json:"pathStyle,omitempty"`

	// CredentialsSecretRef names a secret in the storage's namespace holding
	// "accessKeyID" and "secretAccessKey".
	CredentialsSecretRef corev1.LocalObjectReference `json:"credentialsSecretRef"`

	// Capacity optionally declares the space available to the fabric.
	// +optional
	Capacity *resource.Quantity `json:"capacity,omitempty"`
}

// A ModelStorageSpec is a tagged union over the supported backend kinds.
// Exactly one member must be set.
type ModelStorageSpec struct {
	// +optional
	Database *DatabaseStorageSpec `json:"database,omitempty"`

	// +optional
	Native *NativeStorageSpec `json:"native,omitempty"`

	// +optional
	Object *ObjectStorageSpec `json:"object,omitempty"`
}

// Kind resolves the storage kind from the populated union member. It returns
// an empty kind when zero or multiple members are set.
func (s *ModelStorageSpec) Kind() StorageKind {
	var k StorageKind
	n := 0
	if s.Database != nil {
		k, n = StorageKindDatabase, n+1
	}
	if s.Native != nil {
		k, n = StorageKindNative, n+1
	}
	if s.Object != nil {
		k, n = StorageKindObject, n+1
	}
	if n != 1 {
		return ""
	}
	return k
}

// DeclaredCapacity returns the capacity declared for this storage, if any.
func (s *ModelStorageSpec) DeclaredCapacity() *resource.Quantity {
	switch {
	case s.Database != nil:
		return s.Database.Capacity
	case s.Object != nil:
		return s.Object.Capacity
	}
	return nil
}

// A ModelStorageStatus reflects the observed state of a ModelStorage.
type ModelStorageStatus struct {
	xpv1.ConditionedStatus `json:",inline"`

	// +optional
	State State `json:"state,omitempty"`

	// Kind resolved from the spec at last reconcile.
	// +optional
	Kind StorageKind `json:"kind,omitempty"`

	// +optional
	LastUpdated *metav1.Time `json:"lastUpdated,omitempty"`
}

// +kubebuilder:object:root=true

// A ModelStorage is a physical backend that can hold instances of one or
// more models.
// +kubebuilder:printcolumn:name="STATE",type="string",JSONPath=".status.state"
// +kubebuilder:printcolumn:name="KIND",type="string",JSONPath=".status.kind"
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"
// +kubebuilder:subresource:status
type ModelStorage struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ModelStorageSpec   `json:"spec"`
	Status ModelStorageStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ModelStorageList contains a list of ModelStorage.
type ModelStorageList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ModelStorage `json:"items"`
}
