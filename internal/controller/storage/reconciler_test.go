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

package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/crossplane/crossplane-runtime/pkg/event"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/crossplane/crossplane-runtime/pkg/resource"
	"github.com/crossplane/crossplane-runtime/pkg/test"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
	"github.com/modelfabric/modelfabric/internal/store"
)

type recordingObserver struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (o *recordingObserver) AddStorage(namespace, name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.added = append(o.added, namespace+"/"+name)
}

func (o *recordingObserver) RemoveStorage(namespace, name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed = append(o.removed, namespace+"/"+name)
}

func objectStorage(name string, mod ...func(*v1alpha1.ModelStorage)) *v1alpha1.ModelStorage {
	ms := &v1alpha1.ModelStorage{
		ObjectMeta: metav1.ObjectMeta{
			Namespace:  "ns",
			Name:       name,
			Finalizers: []string{finalizerName},
		},
		Spec: v1alpha1.ModelStorageSpec{
			Object: &v1alpha1.ObjectStorageSpec{
				Endpoint:             "http://" + name + ":9000",
				CredentialsSecretRef: corev1.LocalObjectReference{Name: name + "-creds"},
			},
		},
	}
	for _, fn := range mod {
		fn(ms)
	}
	return ms
}

func databaseStorage(name string, mod ...func(*v1alpha1.ModelStorage)) *v1alpha1.ModelStorage {
	ms := &v1alpha1.ModelStorage{
		ObjectMeta: metav1.ObjectMeta{
			Namespace:  "ns",
			Name:       name,
			Finalizers: []string{finalizerName},
		},
		Spec: v1alpha1.ModelStorageSpec{
			Database: &v1alpha1.DatabaseStorageSpec{
				ConnectionSecretRef: corev1.LocalObjectReference{Name: name + "-dsn"},
				Database:            "fabric",
			},
		},
	}
	for _, fn := range mod {
		fn(ms)
	}
	return ms
}

func ready() func(*v1alpha1.ModelStorage) {
	return func(ms *v1alpha1.ModelStorage) {
		ms.Status.State = v1alpha1.StateReady
		ms.Status.Kind = ms.Spec.Kind()
	}
}

func createdAt(t time.Time) func(*v1alpha1.ModelStorage) {
	return func(ms *v1alpha1.ModelStorage) {
		ms.CreationTimestamp = metav1.NewTime(t)
	}
}

func terminating() func(*v1alpha1.ModelStorage) {
	return func(ms *v1alpha1.ModelStorage) {
		now := metav1.Now()
		ms.DeletionTimestamp = &now
	}
}

// serveStorage serves the subject by Get, the full set by List, and an empty
// binding list.
func newMockClient(subject *v1alpha1.ModelStorage, others []v1alpha1.ModelStorage, bindings []v1alpha1.ModelStorageBinding, committed **v1alpha1.ModelStorage) *test.MockClient {
	return &test.MockClient{
		MockGet: func(_ context.Context, _ client.ObjectKey, obj client.Object) error {
			*obj.(*v1alpha1.ModelStorage) = *subject
			return nil
		},
		MockList: func(_ context.Context, list client.ObjectList, _ ...client.ListOption) error {
			switch l := list.(type) {
			case *v1alpha1.ModelStorageList:
				l.Items = append([]v1alpha1.ModelStorage{*subject}, others...)
			case *v1alpha1.ModelStorageBindingList:
				l.Items = bindings
			}
			return nil
		},
		MockStatusUpdate: func(_ context.Context, obj client.Object, _ ...client.SubResourceUpdateOption) error {
			if committed != nil {
				*committed = obj.(*v1alpha1.ModelStorage).DeepCopy()
			}
			return nil
		},
	}
}

func newTestReconciler(c client.Client, obs StorageObserver, fin resource.Finalizer) *Reconciler {
	return &Reconciler{
		store:     store.New(c),
		finalizer: fin,
		fallback:  defaultFallback,
		observer:  obs,
		log:       logging.NewNopLogger(),
		record:    event.NewNopRecorder(),
	}
}

func TestReconcile(t *testing.T) {
	req := reconcile.Request{NamespacedName: types.NamespacedName{Namespace: "ns", Name: "minio"}}

	t.Run("AdmitsObjectStorage", func(t *testing.T) {
		var committed *v1alpha1.ModelStorage
		obs := &recordingObserver{}
		c := newMockClient(objectStorage("minio"), nil, nil, &committed)
		r := newTestReconciler(c, obs, resource.FinalizerFns{})

		got, err := r.Reconcile(context.Background(), req)
		if err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if diff := cmp.Diff(reconcile.Result{}, got); diff != "" {
			t.Errorf("Reconcile(...): -want, +got:\n%s", diff)
		}
		if committed == nil || committed.Status.State != v1alpha1.StateReady {
			t.Fatalf("storage not admitted: %+v", committed)
		}
		if committed.Status.Kind != v1alpha1.StorageKindObject {
			t.Errorf("committed kind: want %s, got %s", v1alpha1.StorageKindObject, committed.Status.Kind)
		}
		if diff := cmp.Diff([]string{"ns/minio"}, obs.added); diff != "" {
			t.Errorf("observed additions: -want, +got:\n%s", diff)
		}
	})

	t.Run("MultipleObjectStoragesCoexist", func(t *testing.T) {
		var committed *v1alpha1.ModelStorage
		other := objectStorage("ceph", ready())
		c := newMockClient(objectStorage("minio"), []v1alpha1.ModelStorage{*other}, nil, &committed)
		r := newTestReconciler(c, &recordingObserver{}, resource.FinalizerFns{})

		if _, err := r.Reconcile(context.Background(), req); err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if committed == nil || committed.Status.State != v1alpha1.StateReady {
			t.Fatalf("second object storage not admitted: %+v", committed)
		}
	})

	t.Run("SecondDatabaseIsHeldPending", func(t *testing.T) {
		var committed *v1alpha1.ModelStorage
		winner := databaseStorage("mysql-a", ready())
		c := newMockClient(databaseStorage("mysql-b"), []v1alpha1.ModelStorage{*winner}, nil, &committed)
		r := newTestReconciler(c, &recordingObserver{}, resource.FinalizerFns{})

		got, err := r.Reconcile(context.Background(), reconcile.Request{NamespacedName: types.NamespacedName{Namespace: "ns", Name: "mysql-b"}})
		if err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if diff := cmp.Diff(reconcile.Result{RequeueAfter: defaultFallback}, got); diff != "" {
			t.Errorf("Reconcile(...): -want, +got:\n%s", diff)
		}
		if committed == nil || committed.Status.State != v1alpha1.StatePending {
			t.Fatalf("losing database storage not held Pending: %+v", committed)
		}
	})

	t.Run("RacedYoungerDatabaseDemotes", func(t *testing.T) {
		// Two databases passed the uniqueness check concurrently and both
		// committed Ready. The younger one yields the slot on its next pass.
		epoch := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		var committed *v1alpha1.ModelStorage
		older := databaseStorage("mysql-a", ready(), createdAt(epoch))
		c := newMockClient(databaseStorage("mysql-b", ready(), createdAt(epoch.Add(time.Minute))), []v1alpha1.ModelStorage{*older}, nil, &committed)
		r := newTestReconciler(c, &recordingObserver{}, resource.FinalizerFns{})

		got, err := r.Reconcile(context.Background(), reconcile.Request{NamespacedName: types.NamespacedName{Namespace: "ns", Name: "mysql-b"}})
		if err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if diff := cmp.Diff(reconcile.Result{RequeueAfter: defaultFallback}, got); diff != "" {
			t.Errorf("Reconcile(...): -want, +got:\n%s", diff)
		}
		if committed == nil || committed.Status.State != v1alpha1.StatePending {
			t.Fatalf("younger raced database not demoted: %+v", committed)
		}
	})

	t.Run("RacedOlderDatabaseKeepsSlot", func(t *testing.T) {
		epoch := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		var committed *v1alpha1.ModelStorage
		younger := databaseStorage("mysql-b", ready(), createdAt(epoch.Add(time.Minute)))
		c := newMockClient(databaseStorage("mysql-a", ready(), createdAt(epoch)), []v1alpha1.ModelStorage{*younger}, nil, &committed)
		r := newTestReconciler(c, &recordingObserver{}, resource.FinalizerFns{})

		got, err := r.Reconcile(context.Background(), reconcile.Request{NamespacedName: types.NamespacedName{Namespace: "ns", Name: "mysql-a"}})
		if err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if diff := cmp.Diff(reconcile.Result{}, got); diff != "" {
			t.Errorf("Reconcile(...): -want, +got:\n%s", diff)
		}
		if committed == nil || committed.Status.State != v1alpha1.StateReady {
			t.Fatalf("older raced database did not keep the slot: %+v", committed)
		}
	})

	t.Run("RacedEqualAgeBreaksOnName", func(t *testing.T) {
		epoch := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		var committed *v1alpha1.ModelStorage
		peer := databaseStorage("mysql-a", ready(), createdAt(epoch))
		c := newMockClient(databaseStorage("mysql-b", ready(), createdAt(epoch)), []v1alpha1.ModelStorage{*peer}, nil, &committed)
		r := newTestReconciler(c, &recordingObserver{}, resource.FinalizerFns{})

		if _, err := r.Reconcile(context.Background(), reconcile.Request{NamespacedName: types.NamespacedName{Namespace: "ns", Name: "mysql-b"}}); err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if committed == nil || committed.Status.State != v1alpha1.StatePending {
			t.Fatalf("lexicographically larger raced database not demoted: %+v", committed)
		}
	})

	t.Run("RejectsAmbiguousSpec", func(t *testing.T) {
		var committed *v1alpha1.ModelStorage
		subject := objectStorage("minio", func(ms *v1alpha1.ModelStorage) {
			ms.Spec.Database = &v1alpha1.DatabaseStorageSpec{Database: "fabric"}
		})
		c := newMockClient(subject, nil, nil, &committed)
		r := newTestReconciler(c, &recordingObserver{}, resource.FinalizerFns{})

		got, err := r.Reconcile(context.Background(), req)
		if err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if diff := cmp.Diff(reconcile.Result{}, got); diff != "" {
			t.Errorf("Reconcile(...): -want, +got:\n%s", diff)
		}
		if committed == nil || committed.Status.State != v1alpha1.StatePending {
			t.Fatalf("ambiguous storage not held Pending: %+v", committed)
		}
	})

	t.Run("DeletionHeldWhileBound", func(t *testing.T) {
		var committed *v1alpha1.ModelStorage
		binding := v1alpha1.ModelStorageBinding{
			ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "readings-minio"},
			Spec: v1alpha1.ModelStorageBindingSpec{
				Model:   v1alpha1.LocalModelReference{Name: "readings"},
				Storage: v1alpha1.BindingStorageSpec{Target: "minio"},
			},
		}
		c := newMockClient(objectStorage("minio", ready(), terminating()), nil, []v1alpha1.ModelStorageBinding{binding}, &committed)
		r := newTestReconciler(c, &recordingObserver{}, resource.FinalizerFns{
			RemoveFinalizerFn: func(_ context.Context, _ resource.Object) error {
				t.Error("finalizer removed while a binding still references the storage")
				return nil
			},
		})

		got, err := r.Reconcile(context.Background(), req)
		if err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if diff := cmp.Diff(reconcile.Result{RequeueAfter: defaultFallback}, got); diff != "" {
			t.Errorf("Reconcile(...): -want, +got:\n%s", diff)
		}
		if committed == nil || committed.Status.State != v1alpha1.StateDeleting {
			t.Fatalf("bound storage not marked Deleting: %+v", committed)
		}
	})

	t.Run("DeletionHeldBySnapshotReference", func(t *testing.T) {
		// A binding whose spec moved on still pins the storage through its
		// status snapshot until the old artifact is unbound.
		binding := v1alpha1.ModelStorageBinding{
			ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "readings-ceph"},
			Spec: v1alpha1.ModelStorageBindingSpec{
				Model:   v1alpha1.LocalModelReference{Name: "readings"},
				Storage: v1alpha1.BindingStorageSpec{Target: "ceph"},
			},
			Status: v1alpha1.ModelStorageBindingStatus{StorageTargetName: "minio"},
		}
		c := newMockClient(objectStorage("minio", ready(), terminating()), nil, []v1alpha1.ModelStorageBinding{binding}, nil)
		r := newTestReconciler(c, &recordingObserver{}, resource.FinalizerFns{
			RemoveFinalizerFn: func(_ context.Context, _ resource.Object) error {
				t.Error("finalizer removed while a snapshot still references the storage")
				return nil
			},
		})

		got, err := r.Reconcile(context.Background(), req)
		if err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if diff := cmp.Diff(reconcile.Result{RequeueAfter: defaultFallback}, got); diff != "" {
			t.Errorf("Reconcile(...): -want, +got:\n%s", diff)
		}
	})

	t.Run("RetiresUnreferencedStorage", func(t *testing.T) {
		obs := &recordingObserver{}
		c := newMockClient(objectStorage("minio", ready(), terminating()), nil, nil, nil)
		r := newTestReconciler(c, obs, resource.FinalizerFns{
			RemoveFinalizerFn: func(_ context.Context, _ resource.Object) error { return nil },
		})

		got, err := r.Reconcile(context.Background(), req)
		if err != nil {
			t.Fatalf("Reconcile(...): %v", err)
		}
		if diff := cmp.Diff(reconcile.Result{}, got); diff != "" {
			t.Errorf("Reconcile(...): -want, +got:\n%s", diff)
		}
		if diff := cmp.Diff([]string{"ns/minio"}, obs.removed); diff != "" {
			t.Errorf("observed removals: -want, +got:\n%s", diff)
		}
	})
}
