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

// modelfabric runs the fabric's controllers, the telemetry intake and the
// optimizer API against one cluster.
package main

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/dynamic"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client/config"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/modelfabric/modelfabric/apis/fabric/v1alpha1"
	"github.com/modelfabric/modelfabric/internal/backend"
	"github.com/modelfabric/modelfabric/internal/controller"
	"github.com/modelfabric/modelfabric/internal/optimizer"
	"github.com/modelfabric/modelfabric/internal/probe"
	"github.com/modelfabric/modelfabric/internal/store"
	"github.com/modelfabric/modelfabric/internal/telemetry"
	"github.com/modelfabric/modelfabric/internal/version"
)

func main() {
	var (
		app = kingpin.New(filepath.Base(os.Args[0]), "A multi-tenant data fabric for models and their storages.").DefaultEnvars()

		debug        = app.Flag("debug", "Run with debug logging.").Short('d').Bool()
		syncPeriod   = app.Flag("sync", "Controller manager sync period such as 300ms, 1.5h or 2h45m.").Short('s').Default("1h").Duration()
		fallbackSecs = app.Flag("fallback-secs", "How many seconds to wait before retrying a failed reconcile.").Envar("FALLBACK_SECS").Default("30").Int()
		fieldManager = app.Flag("field-manager", "Field manager name used for API writes.").Envar("FIELD_MANAGER").Default(store.DefaultFieldManager).String()
		probeTimeout = app.Flag("probe-timeout-ms", "Upper bound in milliseconds on one capacity probe.").Envar("PROBE_TIMEOUT_MS").Default("5000").Int()
		namespace    = app.Flag("namespace", "Restrict the fabric to one namespace. Empty watches all.").Envar("NAMESPACE").Default("").String()
		listen       = app.Flag("optimizer-listen", "Address the optimizer API listens on.").Default(":8480").String()
	)
	app.Version(version.Version())
	kingpin.MustParse(app.Parse(os.Args[1:]))

	zl := zap.New(zap.UseDevMode(*debug))
	log := logging.NewLogrLogger(zl.WithName("modelfabric"))
	if *debug {
		// controller-runtime is loud even at info level, so it only gets a
		// real logger in debug mode.
		ctrl.SetLogger(zl)
	}

	cfg, err := config.GetConfig()
	kingpin.FatalIfError(err, "cannot get cluster config")

	scheme := runtime.NewScheme()
	kingpin.FatalIfError(clientgoscheme.AddToScheme(scheme), "cannot add client-go APIs to scheme")
	kingpin.FatalIfError(v1alpha1.AddToScheme(scheme), "cannot add fabric APIs to scheme")

	cacheOpts := cache.Options{SyncPeriod: syncPeriod}
	if *namespace != "" {
		cacheOpts.DefaultNamespaces = map[string]cache.Config{*namespace: {}}
	}

	log.Info("Creating manager", "sync-period", syncPeriod.String(), "namespace", *namespace)
	mgr, err := manager.New(cfg, manager.Options{
		Scheme: scheme,
		Cache:  cacheOpts,
	})
	kingpin.FatalIfError(err, "cannot create manager")

	dyn, err := dynamic.NewForConfig(cfg)
	kingpin.FatalIfError(err, "cannot create dynamic client")

	s := store.New(mgr.GetClient(), store.WithFieldManager(*fieldManager))
	creds := backend.NewAPICredentialReader(mgr.GetClient())
	dispatcher := backend.NewDispatcher(map[v1alpha1.StorageKind]backend.Backend{
		v1alpha1.StorageKindDatabase: backend.NewDatabaseBackend(creds),
		v1alpha1.StorageKindNative:   backend.NewNativeBackend(dyn),
		v1alpha1.StorageKindObject:   backend.NewObjectBackend(creds),
	})

	registry := telemetry.NewRegistry()
	prober := probe.New(s, dispatcher, probe.WithTimeout(time.Duration(*probeTimeout)*time.Millisecond))

	log.Info("Adding controllers")
	kingpin.FatalIfError(controller.Setup(mgr, log, s, dispatcher, registry, time.Duration(*fallbackSecs)*time.Second), "cannot add controllers to manager")

	kingpin.FatalIfError(mgr.Add(telemetry.NewExecutor(registry, prober, log)), "cannot add discovery executor to manager")

	opt := optimizer.New(s, prober, registry, log)
	kingpin.FatalIfError(mgr.Add(optimizer.NewServer(*listen, opt, registry, log)), "cannot add optimizer server to manager")

	log.Info("Starting the manager")
	kingpin.FatalIfError(mgr.Start(signals.SetupSignalHandler()), "cannot start manager")
}
