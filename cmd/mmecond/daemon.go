// Copyright 2022 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intel/mmecon/pkg/config"
	"github.com/intel/mmecon/pkg/econ"
	xhttp "github.com/intel/mmecon/pkg/instrumentation/http"
	logger "github.com/intel/mmecon/pkg/log"
	"github.com/intel/mmecon/pkg/metrics"
	"github.com/intel/mmecon/pkg/version"
)

const (
	econModule      = "econ"
	metricsPath     = "/metrics"
	configPath      = "/config"
	shutdownTimeout = 5 * time.Second
)

// registerEconConfig registers the configuration module of e. With a nil e
// the module is registered for help only.
func registerEconConfig(e *econ.Econ) *econ.Config {
	cfg := econ.DefaultConfig().(*econ.Config)
	config.Register(econModule, econ.ConfigHelp, cfg, econ.DefaultConfig,
		config.WithNotify(func(event config.Event, source config.Source) error {
			if e == nil {
				return nil
			}
			log.Info("econ configuration %s by %s", event, source)
			return e.Configure(cfg)
		}))
	return cfg
}

// setupEcon creates the engine and activates its initial configuration.
func setupEcon(opt *options) (*econ.Econ, error) {
	e := econ.New(econ.WithProcRoot(opt.procRoot), econ.WithSysRoot(opt.sysRoot))
	cfg := registerEconConfig(e)

	if opt.configFile == "" {
		if err := e.Configure(cfg); err != nil {
			return nil, err
		}
		return e, nil
	}
	if err := config.ParseYAMLFile(opt.configFile); err != nil {
		return nil, errors.Wrapf(err, "failed to load configuration")
	}
	return e, nil
}

func registerMetrics(e *econ.Econ) (prometheus.Gatherer, error) {
	collectorsByName := map[string]metrics.InitCollector{
		econModule: func() (prometheus.Collector, error) {
			return e.Stats(), nil
		},
		"go": func() (prometheus.Collector, error) {
			return collectors.NewGoCollector(), nil
		},
		"process": func() (prometheus.Collector, error) {
			return collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), nil
		},
	}
	for name, fn := range collectorsByName {
		if err := metrics.RegisterCollector(name, fn); err != nil {
			return nil, err
		}
	}
	return metrics.NewMetricGatherer()
}

func setupHTTP(e *econ.Econ, gatherer prometheus.Gatherer) (*xhttp.Server, error) {
	srv := xhttp.NewServer()
	mux := srv.GetMux()

	if err := e.Control().RegisterHTTP(mux); err != nil {
		return nil, err
	}
	err := mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	if err != nil {
		return nil, err
	}
	err = mux.HandleFunc(configPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fmt.Fprint(w, config.Dump())
	})
	if err != nil {
		return nil, err
	}

	return srv, nil
}

func runDaemon(ctx context.Context, opt *options) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("%s %s starting...", binaryName, version.String())
	logger.ToggleDebugOnSignal(ctx, syscall.SIGUSR1)
	logger.SetStdLogger("stdlog")

	e, err := setupEcon(opt)
	if err != nil {
		return err
	}

	if opt.configFile != "" {
		fw, err := config.WatchFile(ctx, opt.configFile)
		if err != nil {
			return err
		}
		defer fw.Stop()
	}

	gatherer, err := registerMetrics(e)
	if err != nil {
		return errors.Wrapf(err, "failed to set up metrics")
	}
	srv, err := setupHTTP(e, gatherer)
	if err != nil {
		return errors.Wrapf(err, "failed to set up HTTP control plane")
	}
	if err := srv.Start(opt.httpAddress); err != nil {
		return err
	}

	if err := e.StartWatcher(ctx); err != nil {
		srv.Stop()
		return err
	}
	defer e.StopWatcher()

	<-ctx.Done()
	log.Info("shutting down...")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("HTTP server shutdown: %v", err)
	}

	return nil
}
