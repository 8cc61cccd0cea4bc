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

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/modelfabric/modelfabric/internal/backend"
)

func TestExecutorDiscovers(t *testing.T) {
	r := NewRegistry()
	e := NewExecutor(r, CapacityProberFn(func(_ context.Context, _, name string) (*backend.Capacity, error) {
		switch name {
		case "minio":
			return &backend.Capacity{AvailableBytes: 100, UsedBytes: 10}, nil
		case "native":
			return nil, nil
		}
		return nil, errors.New("unreachable")
	}), logging.NewNopLogger())

	r.AddStorage("ns", "minio")
	r.AddStorage("ns", "native")
	r.AddStorage("ns", "broken")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Start(ctx)
	}()

	g := r.Graph("ns")
	deadline := time.After(2 * time.Second)
	for !g.Discovered("minio") || !g.Discovered("native") {
		select {
		case <-deadline:
			t.Fatal("executor did not drain the discovery plans in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if avail, used, ok := g.Capacity("minio"); !ok || avail != 100 || used != 10 {
		t.Errorf("Capacity(minio): want 100/10, got %d/%d (ok %t)", avail, used, ok)
	}
	// A storage that cannot report is discovered but exposes no capacity.
	if _, _, ok := g.Capacity("native"); ok {
		t.Error("Capacity(native): want no capacity, got one")
	}
	// A failed probe leaves the storage undiscovered for a later retry.
	if g.Discovered("broken") {
		t.Error("Discovered(broken): want false after a failed probe")
	}
}
