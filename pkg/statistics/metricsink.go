/*
Copyright 2023 The Nuclio Authors.

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

package statistics

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kusanagi/katana-sdk-go/pkg/proxy"
	"github.com/kusanagi/katana-sdk-go/pkg/worker"

	"github.com/heptiolabs/healthcheck"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultGatherInterval = 10 * time.Second

	shutdownTimeout = 5 * time.Second

	healthcheckNamespace = "katana"
)

// MetricSink exposes worker and proxy statistics for prometheus to pull, along with
// liveness and readiness probes
type MetricSink struct {
	logger         logger.Logger
	instanceName   string
	address        string
	gatherInterval time.Duration
	metricRegistry *prometheus.Registry
	healthHandler  healthcheck.Handler
	gatherers      []Gatherer
	gatherLock     sync.Mutex
	listener       net.Listener
	server         *http.Server
	stopChannel    chan struct{}
	stopOnce       sync.Once
}

func NewMetricSink(parentLogger logger.Logger,
	instanceName string,
	address string,
	gatherInterval time.Duration) (*MetricSink, error) {

	if address == "" {
		return nil, errors.New("Metric sink requires a listen address")
	}

	if gatherInterval <= 0 {
		gatherInterval = DefaultGatherInterval
	}

	metricRegistry := prometheus.NewRegistry()

	return &MetricSink{
		logger:         parentLogger.GetChild("metrics"),
		instanceName:   instanceName,
		address:        address,
		gatherInterval: gatherInterval,
		metricRegistry: metricRegistry,
		healthHandler:  healthcheck.NewMetricsHandler(metricRegistry, healthcheckNamespace),
		stopChannel:    make(chan struct{}),
	}, nil
}

// AddReadinessCheck registers a check served on /ready. checks must be added before Start
func (ms *MetricSink) AddReadinessCheck(name string, check healthcheck.Check) {
	ms.healthHandler.AddReadinessCheck(name, check)
}

// AddLivenessCheck registers a check served on /live
func (ms *MetricSink) AddLivenessCheck(name string, check healthcheck.Check) {
	ms.healthHandler.AddLivenessCheck(name, check)
}

// AddWorkers creates a gatherer for every worker
func (ms *MetricSink) AddWorkers(workers []*worker.Worker) error {
	for _, workerInstance := range workers {
		workerGatherer, err := NewWorkerGatherer(ms.instanceName, workerInstance, ms.metricRegistry)
		if err != nil {
			return errors.Wrap(err, "Failed to create worker gatherer")
		}

		ms.addGatherer(workerGatherer)
	}

	return nil
}

func (ms *MetricSink) AddProxy(proxyInstance *proxy.Proxy) error {
	proxyGatherer, err := NewProxyGatherer(ms.instanceName, proxyInstance, ms.metricRegistry)
	if err != nil {
		return errors.Wrap(err, "Failed to create proxy gatherer")
	}

	ms.addGatherer(proxyGatherer)

	return nil
}

// Start listens on the configured address and starts gathering periodically
func (ms *MetricSink) Start() error {
	var err error

	ms.listener, err = net.Listen("tcp", ms.address)
	if err != nil {
		return errors.Wrapf(err, "Failed to listen on %s", ms.address)
	}

	// a private mux so that several sinks can live in one process
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ms.metricRegistry, promhttp.HandlerOpts{}))
	mux.Handle("/live", ms.healthHandler)
	mux.Handle("/ready", ms.healthHandler)

	ms.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if err := ms.server.Serve(ms.listener); err != nil && err != http.ErrServerClosed {
			ms.logger.WarnWith("Metrics server failed", "err", err.Error())
		}
	}()

	go ms.gatherPeriodically()

	ms.logger.InfoWith("Started",
		"instanceName", ms.instanceName,
		"listenAddr", ms.listener.Addr().String())

	return nil
}

// Stop stops the server and the gathering. safe to call more than once
func (ms *MetricSink) Stop() error {
	var err error

	ms.stopOnce.Do(func() {
		close(ms.stopChannel)

		if ms.server == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err = ms.server.Shutdown(ctx)
	})

	return err
}

// Gather runs every gatherer once
func (ms *MetricSink) Gather() error {
	ms.gatherLock.Lock()
	defer ms.gatherLock.Unlock()

	for _, gatherer := range ms.gatherers {
		if err := gatherer.Gather(); err != nil {
			return err
		}
	}

	return nil
}

// GetAddress returns the address the server listens on, once started
func (ms *MetricSink) GetAddress() string {
	if ms.listener == nil {
		return ms.address
	}

	return ms.listener.Addr().String()
}

func (ms *MetricSink) GetRegistry() *prometheus.Registry {
	return ms.metricRegistry
}

func (ms *MetricSink) addGatherer(gatherer Gatherer) {
	ms.gatherLock.Lock()
	defer ms.gatherLock.Unlock()

	ms.gatherers = append(ms.gatherers, gatherer)
}

func (ms *MetricSink) gatherPeriodically() {
	ticker := time.NewTicker(ms.gatherInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ms.Gather(); err != nil {
				ms.logger.WarnWith("Failed to gather statistics", "err", err.Error())
			}
		case <-ms.stopChannel:

			// one last time so that nothing accumulated is lost
			ms.Gather() // nolint: errcheck
			return
		}
	}
}
