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

// A State represents the observed lifecycle state of a fabric resource.
type State string

// Resource states.
const (
	StatePending  State = "Pending"
	StateReady    State = "Ready"
	StateDeleting State = "Deleting"
)

// A FieldType is the primitive or aggregation type of a model field.
type FieldType string

// Model field types.
const (
	FieldTypeString    FieldType = "string"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeBytes     FieldType = "bytes"
	FieldTypeTimestamp FieldType = "timestamp"
)

// A FieldSpec describes one field of a model's schema.
type FieldSpec struct {
	// Name of the field. Unique within the model.
	Name string `json:"name"`

	// Type of the field.
	// +kubebuilder:validation:Enum=string;integer;float;boolean;bytes;timestamp
	Type FieldType `json:"type"`

	// Required fields must be present in every stored object.
	// +optional
	Required bool `json:"required,omitempty"`

	// AggregationOf names another field this field aggregates. Aggregation
	// fields may not reference other aggregation fields.
	// +optional
	AggregationOf string `json:"aggregationOf,omitempty"`

	// Primary marks the field used as the storage primary key. At most one
	// field may be primary.
	// +optional
	Primary bool `json:"primary,omitempty"`
}

// A NativeSchemaRef references an orchestrator-native schema, i.e. a custom
// resource definition, in place of a field schema.
type NativeSchemaRef struct {
	APIGroup string `json:"apiGroup"`
	Version  string `json:"version"`
	Kind     string `json:"kind"`
}

// A ModelSpec holds either a field schema or a reference to a native schema.
// Exactly one of Fields and CRDRef must be set.
type ModelSpec struct {
	// Fields of the model's schema.
	// +optional
	Fields []FieldSpec `json:"fields,omitempty"`

	// CRDRef references a native schema instead of a field schema.
	// +optional
	CRDRef *NativeSchemaRef `json:"crdRef,omitempty"`
}

// A ModelStatus reflects the observed state of a Model.
type ModelStatus struct {
	xpv1.ConditionedStatus `json:",inline"`

	// State of the model. Only Ready models may be bound.
	// +optional
	State State `json:"state,omitempty"`

	// Fields is the accepted schema at last reconcile.
	// +optional
	Fields []FieldSpec `json:"fields,omitempty"`

	// +optional
	LastUpdated *metav1.Time `json:"lastUpdated,omitempty"`
}

// +kubebuilder:object:root=true

// A Model is a named schema for data objects held by one or more model
// storages.
// +kubebuilder:printcolumn:name="STATE",type="string",JSONPath=".status.state"
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"
// +kubebuilder:subresource:status
type Model struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ModelSpec   `json:"spec"`
	Status ModelStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ModelList contains a list of Model.
type ModelList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Model `json:"items"`
}

// IsNative returns true if the spec references a native schema rather than
// carrying a field schema.
func (s *ModelSpec) IsNative() bool {
	return s != nil && s.CRDRef != nil
}

// PrimaryField returns the spec's primary key field, or the first field when
// none is marked primary. Returns nil for native models.
func (s *ModelSpec) PrimaryField() *FieldSpec {
	if s == nil {
		return nil
	}
	for i := range s.Fields {
		if s.Fields[i].Primary {
			return &s.Fields[i]
		}
	}
	if len(s.Fields) > 0 {
		return &s.Fields[0]
	}
	return nil
}
