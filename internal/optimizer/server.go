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

package optimizer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/modelfabric/modelfabric/internal/telemetry"
)

const shutdownGrace = 10 * time.Second

// A Server exposes the optimizer and the telemetry intake over HTTP JSON. It
// implements manager.Runnable so it starts and stops with the controller
// manager.
type Server struct {
	listen   string
	opt      *Optimizer
	registry *telemetry.Registry
	log      logging.Logger
}

// NewServer returns a Server listening on the supplied address.
func NewServer(listen string, o *Optimizer, r *telemetry.Registry, log logging.Logger) *Server {
	return &Server{listen: listen, opt: o, registry: r, log: log}
}

// NeedLeaderElection keeps the server running on every replica. Placement
// requests are read-mostly and binding creation is idempotent per name.
func (s *Server) NeedLeaderElection() bool { return false }

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/optimize/storage", s.optimizeStorage)
	mux.HandleFunc("POST /v1/optimize/binding", s.optimizeBinding)
	mux.HandleFunc("POST /v1/telemetry/samples", s.ingestSamples)

	srv := &http.Server{
		Addr:              s.listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Serving optimizer API", "address", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) optimizeStorage(w http.ResponseWriter, r *http.Request) {
	var req StorageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name, err := s.opt.OptimizeStorage(r.Context(), req)
	if err != nil {
		s.log.Debug("OptimizeStorage failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct {
		Storage string `json:"storage,omitempty"`
	}{Storage: name})
}

func (s *Server) optimizeBinding(w http.ResponseWriter, r *http.Request) {
	var req BindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name, err := s.opt.OptimizeBinding(r.Context(), req)
	if err != nil {
		s.log.Debug("OptimizeBinding failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct {
		Binding string `json:"binding,omitempty"`
	}{Binding: name})
}

func (s *Server) ingestSamples(w http.ResponseWriter, r *http.Request) {
	var samples []telemetry.Sample
	if err := json.NewDecoder(r.Body).Decode(&samples); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, sample := range samples {
		s.registry.Observe(sample)
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
