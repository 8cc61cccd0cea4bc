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
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
)

type fakeObjectAPI struct {
	head           func(in *s3.HeadBucketInput) (*s3.HeadBucketOutput, error)
	create         func(in *s3.CreateBucketInput) (*s3.CreateBucketOutput, error)
	deleteBucket   func(in *s3.DeleteBucketInput) (*s3.DeleteBucketOutput, error)
	listBuckets    func(in *s3.ListBucketsInput) (*s3.ListBucketsOutput, error)
	getObject      func(in *s3.GetObjectInput) (*s3.GetObjectOutput, error)
	listObjects    func(in *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error)
	deleteObjects  func(in *s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error)
	putVersioning  func(in *s3.PutBucketVersioningInput) (*s3.PutBucketVersioningOutput, error)
	putReplication func(in *s3.PutBucketReplicationInput) (*s3.PutBucketReplicationOutput, error)
	delReplication func(in *s3.DeleteBucketReplicationInput) (*s3.DeleteBucketReplicationOutput, error)
}

func (f *fakeObjectAPI) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.head == nil {
		return &s3.HeadBucketOutput{}, nil
	}
	return f.head(in)
}

func (f *fakeObjectAPI) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if f.create == nil {
		return &s3.CreateBucketOutput{}, nil
	}
	return f.create(in)
}

func (f *fakeObjectAPI) DeleteBucket(_ context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	if f.deleteBucket == nil {
		return &s3.DeleteBucketOutput{}, nil
	}
	return f.deleteBucket(in)
}

func (f *fakeObjectAPI) ListBuckets(_ context.Context, in *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if f.listBuckets == nil {
		return &s3.ListBucketsOutput{}, nil
	}
	return f.listBuckets(in)
}

func (f *fakeObjectAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getObject == nil {
		return &s3.GetObjectOutput{}, nil
	}
	return f.getObject(in)
}

func (f *fakeObjectAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listObjects == nil {
		return &s3.ListObjectsV2Output{}, nil
	}
	return f.listObjects(in)
}

func (f *fakeObjectAPI) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if f.deleteObjects == nil {
		return &s3.DeleteObjectsOutput{}, nil
	}
	return f.deleteObjects(in)
}

func (f *fakeObjectAPI) PutBucketVersioning(_ context.Context, in *s3.PutBucketVersioningInput, _ ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error) {
	if f.putVersioning == nil {
		return &s3.PutBucketVersioningOutput{}, nil
	}
	return f.putVersioning(in)
}

func (f *fakeObjectAPI) PutBucketReplication(_ context.Context, in *s3.PutBucketReplicationInput, _ ...func(*s3.Options)) (*s3.PutBucketReplicationOutput, error) {
	if f.putReplication == nil {
		return &s3.PutBucketReplicationOutput{}, nil
	}
	return f.putReplication(in)
}

func (f *fakeObjectAPI) DeleteBucketReplication(_ context.Context, in *s3.DeleteBucketReplicationInput, _ ...func(*s3.Options)) (*s3.DeleteBucketReplicationOutput, error) {
	if f.delReplication == nil {
		return &s3.DeleteBucketReplicationOutput{}, nil
	}
	return f.delReplication(in)
}

func objectSpec(endpoint string) *v1alpha1.ObjectStorageSpec {
	return &v1alpha1.ObjectStorageSpec{Endpoint: endpoint, PathStyle: true}
}

func clientsByEndpoint(clients map[string]ObjectAPI) ObjectClientFn {
	return func(_ context.Context, _ string, spec *v1alpha1.ObjectStorageSpec) (ObjectAPI, error) {
		return clients[spec.Endpoint], nil
	}
}

func TestObjectBind(t *testing.T) {
	model := "readings"

	t.Run("CreatesMissingBucket", func(t *testing.T) {
		created := false
		api := &fakeObjectAPI{
			head: func(_ *s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
				return nil, &s3types.NotFound{}
			},
			create: func(in *s3.CreateBucketInput) (*s3.CreateBucketOutput, error) {
				if aws.ToString(in.Bucket) != model {
					t.Errorf("CreateBucket bucket: want %q, got %q", model, aws.ToString(in.Bucket))
				}
				created = true
				return &s3.CreateBucketOutput{}, nil
			},
		}
		b := NewObjectBackend(nil, WithObjectClientFn(clientsByEndpoint(map[string]ObjectAPI{"t": api})))
		err := b.Bind(context.Background(), Binding{Namespace: "ns", ModelName: model, Target: &v1alpha1.ModelStorageSpec{Object: objectSpec("t")}})
		if err != nil {
			t.Fatalf("Bind(...): %v", err)
		}
		if !created {
			t.Error("Bind(...): bucket was not created")
		}
	})

	t.Run("ExistingBucketIsEnough", func(t *testing.T) {
		api := &fakeObjectAPI{
			create: func(_ *s3.CreateBucketInput) (*s3.CreateBucketOutput, error) {
				t.Error("CreateBucket called for an existing bucket")
				return nil, nil
			},
		}
		b := NewObjectBackend(nil, WithObjectClientFn(clientsByEndpoint(map[string]ObjectAPI{"t": api})))
		err := b.Bind(context.Background(), Binding{Namespace: "ns", ModelName: model, Target: &v1alpha1.ModelStorageSpec{Object: objectSpec("t")}})
		if err != nil {
			t.Fatalf("Bind(...): %v", err)
		}
	})

	t.Run("CloneAttachesReplication", func(t *testing.T) {
		replicated := false
		source := &fakeObjectAPI{
			putReplication: func(in *s3.PutBucketReplicationInput) (*s3.PutBucketReplicationOutput, error) {
				if aws.ToString(in.Bucket) != model {
					t.Errorf("PutBucketReplication bucket: want %q, got %q", model, aws.ToString(in.Bucket))
				}
				replicated = true
				return &s3.PutBucketReplicationOutput{}, nil
			},
		}
		target := &fakeObjectAPI{}
		b := NewObjectBackend(nil, WithObjectClientFn(clientsByEndpoint(map[string]ObjectAPI{"s": source, "t": target})))
		err := b.Bind(context.Background(), Binding{
			Namespace: "ns",
			ModelName: model,
			Source:    &v1alpha1.ModelStorageSpec{Object: objectSpec("s")},
			Target:    &v1alpha1.ModelStorageSpec{Object: objectSpec("t")},
		})
		if err != nil {
			t.Fatalf("Bind(...): %v", err)
		}
		if !replicated {
			t.Error("Bind(...): replication was not configured on the source")
		}
	})

	t.Run("CloneMissingSourceBucket", func(t *testing.T) {
		source := &fakeObjectAPI{
			head: func(_ *s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
				return nil, &s3types.NotFound{}
			},
		}
		target := &fakeObjectAPI{}
		b := NewObjectBackend(nil, WithObjectClientFn(clientsByEndpoint(map[string]ObjectAPI{"s": source, "t": target})))
		err := b.Bind(context.Background(), Binding{
			Namespace: "ns",
			ModelName: model,
			Source:    &v1alpha1.ModelStorageSpec{Object: objectSpec("s")},
			Target:    &v1alpha1.ModelStorageSpec{Object: objectSpec("t")},
		})
		if !IsNotFound(err) {
			t.Errorf("Bind(...): want NotFound, got %v", err)
		}
	})
}

func TestObjectUnbind(t *testing.T) {
	model := "readings"

	t.Run("DeleteEmptiesAndRemoves", func(t *testing.T) {
		var emptied, removed bool
		api := &fakeObjectAPI{
			listObjects: func(_ *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
				return &s3.ListObjectsV2Output{Contents: []s3types.Object{{Key: aws.String("a")}, {Key: aws.String("b")}}}, nil
			},
			deleteObjects: func(in *s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error) {
				if len(in.Delete.Objects) != 2 {
					t.Errorf("DeleteObjects: want 2 keys, got %d", len(in.Delete.Objects))
				}
				emptied = true
				return &s3.DeleteObjectsOutput{}, nil
			},
			deleteBucket: func(_ *s3.DeleteBucketInput) (*s3.DeleteBucketOutput, error) {
				removed = true
				return &s3.DeleteBucketOutput{}, nil
			},
		}
		b := NewObjectBackend(nil, WithObjectClientFn(clientsByEndpoint(map[string]ObjectAPI{"t": api})))
		bd := Binding{Namespace: "ns", ModelName: model, Target: &v1alpha1.ModelStorageSpec{Object: objectSpec("t")}}
		if err := b.Unbind(context.Background(), bd, v1alpha1.DeletionDelete); err != nil {
			t.Fatalf("Unbind(...): %v", err)
		}
		if !emptied || !removed {
			t.Errorf("Unbind(...): emptied=%t removed=%t, want both", emptied, removed)
		}
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		api := &fakeObjectAPI{
			listObjects: func(_ *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
				return nil, &s3types.NoSuchBucket{}
			},
		}
		b := NewObjectBackend(nil, WithObjectClientFn(clientsByEndpoint(map[string]ObjectAPI{"t": api})))
		bd := Binding{Namespace: "ns", ModelName: model, Target: &v1alpha1.ModelStorageSpec{Object: objectSpec("t")}}
		if err := b.Unbind(context.Background(), bd, v1alpha1.DeletionDelete); err != nil {
			t.Errorf("Unbind(...) on a released binding: want nil, got %v", err)
		}
	})

	t.Run("RetainOnlyRevokesReplication", func(t *testing.T) {
		revoked := false
		source := &fakeObjectAPI{
			delReplication: func(_ *s3.DeleteBucketReplicationInput) (*s3.DeleteBucketReplicationOutput, error) {
				revoked = true
				return &s3.DeleteBucketReplicationOutput{}, nil
			},
		}
		target := &fakeObjectAPI{
			deleteBucket: func(_ *s3.DeleteBucketInput) (*s3.DeleteBucketOutput, error) {
				t.Error("DeleteBucket called under Retain")
				return nil, nil
			},
		}
		b := NewObjectBackend(nil, WithObjectClientFn(clientsByEndpoint(map[string]ObjectAPI{"s": source, "t": target})))
		bd := Binding{
			Namespace: "ns",
			ModelName: model,
			Source:    &v1alpha1.ModelStorageSpec{Object: objectSpec("s")},
			Target:    &v1alpha1.ModelStorageSpec{Object: objectSpec("t")},
		}
		if err := b.Unbind(context.Background(), bd, v1alpha1.DeletionRetain); err != nil {
			t.Fatalf("Unbind(...): %v", err)
		}
		if !revoked {
			t.Error("Unbind(...): replication was not revoked")
		}
	})
}

func TestObjectCapacity(t *testing.T) {
	t.Run("DeclaredLessUsed", func(t *testing.T) {
		api := &fakeObjectAPI{
			listBuckets: func(_ *s3.ListBucketsInput) (*s3.ListBucketsOutput, error) {
				return &s3.ListBucketsOutput{Buckets: []s3types.Bucket{{Name: aws.String("a")}, {Name: aws.String("b")}}}, nil
			},
			listObjects: func(_ *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
				return &s3.ListObjectsV2Output{Contents: []s3types.Object{{Key: aws.String("k"), Size: aws.Int64(1024)}}}, nil
			},
		}
		b := NewObjectBackend(nil, WithObjectClientFn(clientsByEndpoint(map[string]ObjectAPI{"t": api})))
		declared := resource.MustParse("4Ki")
		spec := objectSpec("t")
		spec.Capacity = &declared
		got, err := b.Capacity(context.Background(), "ns", &v1alpha1.ModelStorageSpec{Object: spec})
		if err != nil {
			t.Fatalf("Capacity(...): %v", err)
		}
		want := &Capacity{AvailableBytes: 2048, UsedBytes: 2048}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Capacity(...): -want, +got:\n%s", diff)
		}
	})

	t.Run("UndeclaredCannotReport", func(t *testing.T) {
		b := NewObjectBackend(nil, WithObjectClientFn(clientsByEndpoint(map[string]ObjectAPI{"t": &fakeObjectAPI{}})))
		got, err := b.Capacity(context.Background(), "ns", &v1alpha1.ModelStorageSpec{Object: objectSpec("t")})
		if err != nil {
			t.Fatalf("Capacity(...): %v", err)
		}
		if got != nil {
			t.Errorf("Capacity(...): want nil for undeclared capacity, got %+v", got)
		}
	})
}

func TestClassifyObject(t *testing.T) {
	cases := map[string]struct {
		reason string
		err    error
		want   Kind
	}{
		"NoSuchBucket": {
			reason: "A missing bucket is NotFound.",
			err:    &s3types.NoSuchBucket{},
			want:   KindNotFound,
		},
		"AccessDenied": {
			reason: "Rejected credentials are Unauthorized.",
			err:    &smithyAPIError{code: "AccessDenied"},
			want:   KindUnauthorized,
		},
		"SlowDown": {
			reason: "Server side throttling is Transient.",
			err:    &smithyAPIError{code: "SlowDown"},
			want:   KindTransient,
		},
		"OtherAPIError": {
			reason: "Any other API error is Permanent.",
			err:    &smithyAPIError{code: "MalformedXML"},
			want:   KindPermanent,
		},
		"Network": {
			reason: "Errors without a response are Transient.",
			err:    errors.New("dial tcp: connection refused"),
			want:   KindTransient,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := classifyObject(tc.err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("\n%s\nclassifyObject(...): -want, +got:\n%s", tc.reason, diff)
			}
		})
	}
}

type smithyAPIError struct{ code string }

func (e *smithyAPIError) Error() string                 { return e.code }
func (e *smithyAPIError) ErrorCode() string             { return e.code }
func (e *smithyAPIError) ErrorMessage() string          { return e.code }
func (e *smithyAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }
