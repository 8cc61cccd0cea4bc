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

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Secret keys credentials are read from.
const (
	SecretKeyDSN             = "dsn"
	SecretKeyAccessKeyID     = "accessKeyID"
	SecretKeySecretAccessKey = "secretAccessKey"
)

const (
	errGetSecret  = "cannot get credentials secret"
	errKeyMissing = "credentials secret is missing key"
)

// A CredentialReader resolves opaque credentials referenced by storage specs.
// The fabric never embeds credentials in its own records.
type CredentialReader interface {
	Credentials(ctx context.Context, namespace, name string, keys ...string) (map[string]string, error)
}

// An APICredentialReader reads credentials from orchestrator secrets.
type APICredentialReader struct {
	client client.Client
}

// NewAPICredentialReader returns a CredentialReader backed by secrets.
func NewAPICredentialReader(c client.Client) *APICredentialReader {
	return &APICredentialReader{client: c}
}

// Credentials returns the requested keys of the named secret. A missing
// secret or key is an Unauthorized error; anything else reading the API
// server is Transient.
func (r *APICredentialReader) Credentials(ctx context.Context, namespace, name string, keys ...string) (map[string]string, error) {
	s := &corev1.Secret{}
	if err := r.client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, s); err != nil {
		if kerrors.IsNotFound(err) {
			return nil, NewError(KindUnauthorized, errors.Wrap(err, errGetSecret))
		}
		return nil, NewError(KindTransient, errors.Wrap(err, errGetSecret))
	}

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := s.Data[k]
		if !ok {
			return nil, Errorf(KindUnauthorized, "%s %q", errKeyMissing, k)
		}
		out[k] = string(v)
	}
	return out, nil
}

// A CredentialReaderFn is a function that satisfies CredentialReader.
type CredentialReaderFn func(ctx context.Context, namespace, name string, keys ...string) (map[string]string, error)

// Credentials calls fn.
func (fn CredentialReaderFn) Credentials(ctx context.Context, namespace, name string, keys ...string) (map[string]string, error) {
	return fn(ctx, namespace, name, keys...)
}
