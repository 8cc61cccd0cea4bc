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
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
)

const (
	// replicationRole is passed verbatim to S3-compatible stores, which
	// accept an arbitrary role string.
	replicationRole = "arn:aws:iam:::role/modelfabric-replication"

	deleteBatchSize = 1000
)

// Error strings.
const (
	errObjectSpec        = "storage spec has no object configuration"
	errObjectClient      = "cannot build object store client"
	errHeadBucket        = "cannot check bucket"
	errCreateBucket      = "cannot create bucket"
	errDeleteBucket      = "cannot delete bucket"
	errEmptyBucket       = "cannot empty bucket"
	errGetObject         = "cannot get object"
	errListObjects       = "cannot list objects"
	errListBuckets       = "cannot list buckets"
	errPutReplication    = "cannot configure bucket replication"
	errDeleteReplication = "cannot remove bucket replication"
	errPutVersioning     = "cannot enable bucket versioning"
)

// An ObjectAPI is the subset of the object store API the adapter uses. It is
// satisfied by *s3.Client.
type ObjectAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, opts ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	PutBucketVersioning(ctx context.Context, in *s3.PutBucketVersioningInput, opts ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
	PutBucketReplication(ctx context.Context, in *s3.PutBucketReplicationInput, opts ...func(*s3.Options)) (*s3.PutBucketReplicationOutput, error)
	DeleteBucketReplication(ctx context.Context, in *s3.DeleteBucketReplicationInput, opts ...func(*s3.Options)) (*s3.DeleteBucketReplicationOutput, error)
}

// An ObjectClientFn builds an object store client for the supplied storage
// spec.
type ObjectClientFn func(ctx context.Context, namespace string, spec *v1alpha1.ObjectStorageSpec) (ObjectAPI, error)

// An ObjectBackend binds models to buckets of an S3-compatible object store.
type ObjectBackend struct {
	newClient ObjectClientFn
}

// An ObjectBackendOption configures an ObjectBackend.
type ObjectBackendOption func(*ObjectBackend)

// WithObjectClientFn specifies how the backend should build object store
// clients. Tests use this to supply fakes.
func WithObjectClientFn(fn ObjectClientFn) ObjectBackendOption {
	return func(b *ObjectBackend) { b.newClient = fn }
}

// NewObjectBackend returns a Backend that stores model data in buckets,
// resolving credentials with the supplied reader.
func NewObjectBackend(creds CredentialReader, o ...ObjectBackendOption) *ObjectBackend {
	b := &ObjectBackend{newClient: defaultObjectClientFn(creds)}
	for _, fn := range o {
		fn(b)
	}
	return b
}

func defaultObjectClientFn(creds CredentialReader) ObjectClientFn {
	return func(ctx context.Context, namespace string, spec *v1alpha1.ObjectStorageSpec) (ObjectAPI, error) {
		c, err := creds.Credentials(ctx, namespace, spec.CredentialsSecretRef.Name, SecretKeyAccessKeyID, SecretKeySecretAccessKey)
		if err != nil {
			return nil, err
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(spec.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c[SecretKeyAccessKeyID], c[SecretKeySecretAccessKey], "")),
		)
		if err != nil {
			return nil, NewError(KindPermanent, errors.Wrap(err, errObjectClient))
		}
		return s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(spec.Endpoint)
			o.UsePathStyle = spec.PathStyle
		}), nil
	}
}

// Bind ensures a bucket named after the binding's model exists on the target
// and, for cloned bindings, attaches replication from the source bucket.
func (b *ObjectBackend) Bind(ctx context.Context, bd Binding) error {
	if bd.Target.Object == nil {
		return Errorf(KindConflict, errObjectSpec)
	}

	target, err := b.newClient(ctx, bd.Namespace, bd.Target.Object)
	if err != nil {
		return err
	}
	if err := ensureBucket(ctx, target, bd.ModelName); err != nil {
		return err
	}

	if bd.Source == nil {
		return nil
	}
	if bd.Source.Object == nil {
		return Errorf(KindConflict, errObjectSpec)
	}

	source, err := b.newClient(ctx, bd.Namespace, bd.Source.Object)
	if err != nil {
		return err
	}
	if err := bucketExists(ctx, source, bd.ModelName); err != nil {
		return err
	}

	// Replication requires versioning on both ends.
	for _, c := range []ObjectAPI{source, target} {
		in := &s3.PutBucketVersioningInput{
			Bucket: aws.String(bd.ModelName),
			VersioningConfiguration: &s3types.VersioningConfiguration{
				Status: s3types.BucketVersioningStatusEnabled,
			},
		}
		if _, err := c.PutBucketVersioning(ctx, in); err != nil {
			return NewError(classifyObject(err), errors.Wrap(err, errPutVersioning))
		}
	}

	rin := &s3.PutBucketReplicationInput{
		Bucket: aws.String(bd.ModelName),
		ReplicationConfiguration: &s3types.ReplicationConfiguration{
			Role: aws.String(replicationRole),
			Rules: []s3types.ReplicationRule{{
				Status: s3types.ReplicationRuleStatusEnabled,
				Prefix: aws.String(""),
				Destination: &s3types.Destination{
					Bucket: aws.String("arn:aws:s3:::" + bd.ModelName),
				},
			}},
		},
	}
	if _, err := source.PutBucketReplication(ctx, rin); err != nil {
		return NewError(classifyObject(err), errors.Wrap(err, errPutReplication))
	}
	return nil
}

// Unbind releases the bucket. Delete empties and removes it; Retain leaves it
// in place and only revokes replication of cloned bindings. Both are safe to
// repeat.
func (b *ObjectBackend) Unbind(ctx context.Context, bd Binding, policy v1alpha1.DeletionPolicy) error {
	if bd.Target.Object == nil {
		return Errorf(KindConflict, errObjectSpec)
	}

	if bd.Source != nil && bd.Source.Object != nil {
		source, err := b.newClient(ctx, bd.Namespace, bd.Source.Object)
		if err != nil {
			return err
		}
		in := &s3.DeleteBucketReplicationInput{Bucket: aws.String(bd.ModelName)}
		if _, err := source.DeleteBucketReplication(ctx, in); err != nil && classifyObject(err) != KindNotFound {
			return NewError(classifyObject(err), errors.Wrap(err, errDeleteReplication))
		}
	}

	if policy == v1alpha1.DeletionRetain {
		return nil
	}

	target, err := b.newClient(ctx, bd.Namespace, bd.Target.Object)
	if err != nil {
		return err
	}
	if err := emptyBucket(ctx, target, bd.ModelName); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	if _, err := target.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bd.ModelName)}); err != nil {
		if classifyObject(err) == KindNotFound {
			return nil
		}
		return NewError(classifyObject(err), errors.Wrap(err, errDeleteBucket))
	}
	return nil
}

// Get reads one object by key from the model's bucket.
func (b *ObjectBackend) Get(ctx context.Context, bd Binding, key string) ([]byte, error) {
	if bd.Target.Object == nil {
		return nil, Errorf(KindConflict, errObjectSpec)
	}
	c, err := b.newClient(ctx, bd.Namespace, bd.Target.Object)
	if err != nil {
		return nil, err
	}
	out, err := c.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bd.ModelName), Key: aws.String(key)})
	if err != nil {
		return nil, NewError(classifyObject(err), errors.Wrap(err, errGetObject))
	}
	defer out.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(out.Body)
	return data, NewError(KindTransient, errors.Wrap(err, errGetObject))
}

// List enumerates the keys in the model's bucket.
func (b *ObjectBackend) List(ctx context.Context, bd Binding) ([]string, error) {
	if bd.Target.Object == nil {
		return nil, Errorf(KindConflict, errObjectSpec)
	}
	c, err := b.newClient(ctx, bd.Namespace, bd.Target.Object)
	if err != nil {
		return nil, err
	}

	var keys []string
	p := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{Bucket: aws.String(bd.ModelName)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, NewError(classifyObject(err), errors.Wrap(err, errListObjects))
		}
		for _, o := range page.Contents {
			keys = append(keys, aws.ToString(o.Key))
		}
	}
	return keys, nil
}

// Capacity sums object sizes across the store's buckets against the
// declared capacity. Storages without a declared capacity cannot report.
func (b *ObjectBackend) Capacity(ctx context.Context, namespace string, storage *v1alpha1.ModelStorageSpec) (*Capacity, error) {
	if storage.Object == nil {
		return nil, Errorf(KindConflict, errObjectSpec)
	}
	declared := storage.DeclaredCapacity()
	if declared == nil {
		return nil, nil
	}

	c, err := b.newClient(ctx, namespace, storage.Object)
	if err != nil {
		return nil, err
	}

	buckets, err := c.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, NewError(classifyObject(err), errors.Wrap(err, errListBuckets))
	}

	var used int64
	for _, bk := range buckets.Buckets {
		p := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{Bucket: bk.Name})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, NewError(classifyObject(err), errors.Wrap(err, errListObjects))
			}
			for _, o := range page.Contents {
				used += aws.ToInt64(o.Size)
			}
		}
	}

	available := declared.Value() - used
	if available < 0 {
		available = 0
	}
	return &Capacity{AvailableBytes: available, UsedBytes: used}, nil
}

func ensureBucket(ctx context.Context, c ObjectAPI, name string) error {
	err := bucketExists(ctx, c, name)
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return err
	}
	if _, err := c.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return NewError(classifyObject(err), errors.Wrap(err, errCreateBucket))
	}
	return nil
}

func bucketExists(ctx context.Context, c ObjectAPI, name string) error {
	if _, err := c.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err != nil {
		return NewError(classifyObject(err), errors.Wrap(err, errHeadBucket))
	}
	return nil
}

func emptyBucket(ctx context.Context, c ObjectAPI, name string) error {
	p := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{Bucket: aws.String(name)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return NewError(classifyObject(err), errors.Wrap(err, errEmptyBucket))
		}
		if len(page.Contents) == 0 {
			continue
		}
		ids := make([]s3types.ObjectIdentifier, 0, deleteBatchSize)
		for _, o := range page.Contents {
			ids = append(ids, s3types.ObjectIdentifier{Key: o.Key})
		}
		in := &s3.DeleteObjectsInput{
			Bucket: aws.String(name),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		}
		if _, err := c.DeleteObjects(ctx, in); err != nil {
			return NewError(classifyObject(err), errors.Wrap(err, errEmptyBucket))
		}
	}
	return nil
}

// classifyObject maps object store failures onto the backend error taxonomy.
func classifyObject(err error) Kind {
	var nsb *s3types.NoSuchBucket
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	if errors.As(err, &nsb) || errors.As(err, &nsk) || errors.As(err, &nf) {
		return KindNotFound
	}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		switch {
		case re.HTTPStatusCode() == 404:
			return KindNotFound
		case re.HTTPStatusCode() == 401 || re.HTTPStatusCode() == 403:
			return KindUnauthorized
		case re.HTTPStatusCode() >= 500:
			return KindTransient
		}
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchBucket", "NoSuchKey", "NotFound", "ReplicationConfigurationNotFoundError":
			return KindNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return KindUnauthorized
		case "SlowDown", "ServiceUnavailable", "InternalError":
			return KindTransient
		}
		return KindPermanent
	}

	// Anything without a response was most likely a connection failure.
	return KindTransient
}
