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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	xpv1 "github.com/crossplane/crossplane-runtime/apis/common/v1"
)

// A DeletionPolicy determines the disposition of backend artifacts when the
// binding that owns them is deleted.
type DeletionPolicy string

// Deletion policies.
const (
	// DeletionDelete destroys the backing artifact on unbind.
	DeletionDelete DeletionPolicy = "Delete"
	// DeletionRetain leaves the backing artifact in place on unbind.
	DeletionRetain DeletionPolicy = "Retain"
)

// A SyncMode selects how replicated data flows from source to target.
type SyncMode string

// Sync modes.
const (
	SyncModeFull        SyncMode = "Full"
	SyncModeIncremental SyncMode = "Incremental"
)

// A SyncPolicySpec configures source to target replication for a binding.
type SyncPolicySpec struct {
	// +kubebuilder:validation:Enum=Full;Incremental
	Mode SyncMode `json:"mode"`
}

// A LocalModelReference references a model by name within the binding's
// namespace.
type LocalModelReference struct {
	Name string `json:"name"`
}

// A BindingStorageSpec names the storages a binding attaches its model to.
// An absent source makes the binding owned; a present source makes it cloned
// from that storage.
type BindingStorageSpec struct {
	// Source storage to replicate from.
	// +optional
	Source *string `json:"source,omitempty"`

	// Target storage the model is bound to.
	Target string `json:"target"`
}

// A ModelStorageBindingSpec attaches a model to a storage.
type ModelStorageBindingSpec struct {
	Model LocalModelReference `json:"model"`

	Storage BindingStorageSpec `json:"storage"`

	// DeletionPolicy for backend artifacts created by this binding.
	// +optional
	// +kubebuilder:validation:Enum=Delete;Retain
	// +kubebuilder:default=Delete
	DeletionPolicy DeletionPolicy `json:"deletionPolicy,omitempty"`

	// SyncPolicy for cloned bindings.
	// +optional
	SyncPolicy *SyncPolicySpec `json:"syncPolicy,omitempty"`
}

// A ModelStorageBindingStatus carries the resolved snapshot at last
// reconcile. The snapshot lets an unbind proceed even if the referenced model
// or storages are deleted before the binding is.
type ModelStorageBindingStatus struct {
	xpv1.ConditionedStatus `json:",inline"`

	// +optional
	State State `json:"state,omitempty"`

	// +optional
	DeletionPolicy DeletionPolicy `json:"deletionPolicy,omitempty"`

	// Model spec as resolved at last reconcile.
	// +optional
	Model *ModelSpec `json:"model,omitempty"`

	// +optional
	ModelName string `json:"modelName,omitempty"`

	// +optional
	StorageSource *ModelStorageSpec `json:"storageSource,omitempty"`

	// +optional
	StorageSourceName string `json:"storageSourceName,omitempty"`

	// +optional
	StorageSyncPolicy *SyncPolicySpec `json:"storageSyncPolicy,omitempty"`

	// +optional
	StorageTarget *ModelStorageSpec `json:"storageTarget,omitempty"`

	// +optional
	StorageTargetName string `json:"storageTargetName,omitempty"`

	// +optional
	LastUpdated *metav1.Time `json:"lastUpdated,omitempty"`
}

// +kubebuilder:object:root=true

// A ModelStorageBinding attaches a model to a storage, optionally replicating
// from a source storage.
// +kubebuilder:printcolumn:name="STATE",type="string",JSONPath=".status.state"
// +kubebuilder:printcolumn:name="MODEL",type="string",JSONPath=".spec.model.name"
// +kubebuilder:printcolumn:name="TARGET",type="string",JSONPath=".spec.storage.target"
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"
// +kubebuilder:subresource:status
type ModelStorageBinding struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ModelStorageBindingSpec   `json:"spec"`
	Status ModelStorageBindingStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ModelStorageBindingList contains a list of ModelStorageBinding.
type ModelStorageBindingList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ModelStorageBinding `json:"items"`
}

// Cloned returns true if the binding replicates from a source storage.
func (b *ModelStorageBinding) Cloned() bool {
	return b.Spec.Storage.Source != nil && *b.Spec.Storage.Source != ""
}
