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
	"github.com/pkg/errors"

	xpv1 "github.com/crossplane/crossplane-runtime/apis/common/v1"
)

// A Kind classifies a backend error so callers can decide whether to retry,
// surface a condition, or give up until the spec changes.
type Kind string

// Error kinds.
const (
	// KindNotFound indicates a dependent artifact or record is absent.
	KindNotFound Kind = "NotFound"
	// KindNotReady indicates a dependent record exists but is not usable yet.
	KindNotReady Kind = "NotReady"
	// KindConflict indicates a schema or source/target kind mismatch.
	KindConflict Kind = "Conflict"
	// KindUnauthorized indicates credential resolution or authentication
	// failed.
	KindUnauthorized Kind = "Unauthorized"
	// KindTransient indicates a network or server side failure that is
	// likely to resolve on retry.
	KindTransient Kind = "Transient"
	// KindPermanent indicates a failure that is unlikely to resolve on
	// retry.
	KindPermanent Kind = "Permanent"
	// KindFatal indicates an invariant violation. The operation must not be
	// retried until the spec changes.
	KindFatal Kind = "Fatal"
)

type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }

// NewError classifies the supplied error with the supplied kind. A nil error
// yields nil.
func NewError(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: k, cause: err}
}

// Errorf classifies a formatted error with the supplied kind.
func Errorf(k Kind, format string, args ...any) error {
	return &kindError{kind: k, cause: errors.Errorf(format, args...)}
}

// WrapError classifies the supplied error with the supplied kind and wraps it
// with a message. A nil error yields nil.
func WrapError(k Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: k, cause: errors.Wrap(err, message)}
}

// KindOf returns the kind the supplied error is classified with. Unclassified
// errors are Permanent; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	ke := &kindError{}
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindPermanent
}

// IsKind returns true if the supplied error is classified with the supplied
// kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// IsNotFound returns true for NotFound errors.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsConflict returns true for Conflict errors.
func IsConflict(err error) bool { return IsKind(err, KindConflict) }

// IsTransient returns true for Transient errors.
func IsTransient(err error) bool { return IsKind(err, KindTransient) }

// IsFatal returns true for Fatal errors.
func IsFatal(err error) bool { return IsKind(err, KindFatal) }

// Retriable returns true for kinds the reconciler should retry without
// surfacing a terminal condition, i.e. Transient, NotReady and NotFound.
func Retriable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindNotReady, KindNotFound:
		return true
	}
	return false
}

// ReconcileError returns the Synced=False condition for the supplied error.
// The condition reason carries the error's kind so clients can react to a
// Conflict or Fatal failure without parsing the message.
func ReconcileError(err error) xpv1.Condition {
	c := xpv1.ReconcileError(err)
	if k := KindOf(err); k != "" {
		c.Reason = xpv1.ConditionReason(k)
	}
	return c
}
