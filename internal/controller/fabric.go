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

// Package controller wires up the fabric's controllers.
package controller

import (
	"time"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/modelfabric/modelfabric/internal/backend"
	"github.com/modelfabric/modelfabric/internal/controller/binding"
	"github.com/modelfabric/modelfabric/internal/controller/model"
	"github.com/modelfabric/modelfabric/internal/controller/storage"
	"github.com/modelfabric/modelfabric/internal/store"
)

// Setup adds all fabric controllers to the manager. The observer is told
// about admitted and retired storages so telemetry stays current.
func Setup(mgr ctrl.Manager, log logging.Logger, s *store.Store, be backend.Backend, obs storage.StorageObserver, fallback time.Duration) error {
	if err := model.Setup(mgr, log, model.WithStore(s)); err != nil {
		return err
	}
	if err := storage.Setup(mgr, log,
		storage.WithStore(s),
		storage.WithFallback(fallback),
		storage.WithObserver(obs),
	); err != nil {
		return err
	}
	return binding.Setup(mgr, log,
		binding.WithStore(s),
		binding.WithBackend(be),
		binding.WithFallback(fallback),
	)
}
