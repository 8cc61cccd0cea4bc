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

// Package validate checks fabric records against the rules the API server's
// schema cannot express, and resolves bindings into the context backends
// operate on.
package validate

import (
	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
	"github.com/modelfabric/modelfabric/internal/backend"
)

// Error strings.
const (
	errNoSchema        = "model must set either fields or crdRef"
	errBothSchemas     = "model may not set both fields and crdRef"
	errEmptyFields     = "model field schema must have at least one field"
	errDuplicateField  = "duplicate field name"
	errMultiplePrimary = "at most one field may be primary"
	errBadFieldType    = "unknown field type"
	errAggMissing      = "aggregation references a field that does not exist"
	errAggOfAgg        = "aggregation may not reference another aggregation"
	errAggPrimary      = "an aggregation field may not be primary"
)

var fieldTypes = map[v1alpha1.FieldType]bool{
	v1alpha1.FieldTypeString:    true,
	v1alpha1.FieldTypeInteger:   true,
	v1alpha1.FieldTypeFloat:     true,
	v1alpha1.FieldTypeBoolean:   true,
	v1alpha1.FieldTypeBytes:     true,
	v1alpha1.FieldTypeTimestamp: true,
}

// Model checks a model's schema. All violations are Conflicts; the schema
// will not become valid without a spec change.
func Model(spec *v1alpha1.ModelSpec) error {
	switch {
	case spec.CRDRef == nil && len(spec.Fields) == 0:
		return backend.Errorf(backend.KindConflict, errNoSchema)
	case spec.CRDRef != nil && len(spec.Fields) > 0:
		return backend.Errorf(backend.KindConflict, errBothSchemas)
	case spec.CRDRef != nil:
		return nil
	}

	if len(spec.Fields) == 0 {
		return backend.Errorf(backend.KindConflict, errEmptyFields)
	}

	byName := make(map[string]*v1alpha1.FieldSpec, len(spec.Fields))
	primaries := 0
	for i := range spec.Fields {
		f := &spec.Fields[i]
		if _, ok := byName[f.Name]; ok {
			return backend.Errorf(backend.KindConflict, "%s %q", errDuplicateField, f.Name)
		}
		byName[f.Name] = f
		if !fieldTypes[f.Type] {
			return backend.Errorf(backend.KindConflict, "%s %q on field %q", errBadFieldType, f.Type, f.Name)
		}
		if f.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		return backend.Errorf(backend.KindConflict, errMultiplePrimary)
	}

	for i := range spec.Fields {
		f := &spec.Fields[i]
		if f.AggregationOf == "" {
			continue
		}
		ref, ok := byName[f.AggregationOf]
		if !ok {
			return backend.Errorf(backend.KindConflict, "%s: field %q aggregates %q", errAggMissing, f.Name, f.AggregationOf)
		}
		if ref.AggregationOf != "" {
			return backend.Errorf(backend.KindConflict, "%s: field %q aggregates %q", errAggOfAgg, f.Name, f.AggregationOf)
		}
		if f.Primary {
			return backend.Errorf(backend.KindConflict, "%s: field %q", errAggPrimary, f.Name)
		}
	}
	return nil
}

// Storage checks a storage's spec resolves to exactly one backend kind.
func Storage(spec *v1alpha1.ModelStorageSpec) error {
	if spec.Kind() == "" {
		return backend.Errorf(backend.KindConflict, "storage spec must set exactly one of database, native and object")
	}
	return nil
}
