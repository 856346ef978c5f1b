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
	"strconv"

	"github.com/kusanagi/katana-sdk-go/pkg/processor"
	"github.com/kusanagi/katana-sdk-go/pkg/proxy"
	"github.com/kusanagi/katana-sdk-go/pkg/worker"

	"github.com/nuclio/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer moves statistics accumulated since the last call into prometheus metrics
type Gatherer interface {
	Gather() error
}

type WorkerGatherer struct {
	worker                      *worker.Worker
	prevStatistics              worker.Statistics
	prevProcessorStatistics     processor.Statistics
	handledRequestsTotal        prometheus.Counter
	handledRequestsDurationSum  prometheus.Counter
	handledRequestsSuccessTotal prometheus.Counter
	handledRequestsErrorTotal   prometheus.Counter
}

func NewWorkerGatherer(instanceName string,
	workerInstance *worker.Worker,
	metricRegistry *prometheus.Registry) (*WorkerGatherer, error) {

	newWorkerGatherer := &WorkerGatherer{
		worker: workerInstance,
	}

	labels := prometheus.Labels{
		"instance":     instanceName,
		"worker_index": strconv.Itoa(workerInstance.GetIndex()),
	}

	for _, counter := range []struct {
		target *prometheus.Counter
		name   string
		help   string
	}{
		{
			target: &newWorkerGatherer.handledRequestsTotal,
			name:   "katana_worker_handled_requests_total",
			help:   "Total number of requests handled by the worker",
		},
		{
			target: &newWorkerGatherer.handledRequestsDurationSum,
			name:   "katana_worker_handled_requests_duration_microseconds_sum",
			help:   "Total sum of microseconds it took to handle requests",
		},
		{
			target: &newWorkerGatherer.handledRequestsSuccessTotal,
			name:   "katana_worker_handled_requests_success_total",
			help:   "Total number of requests answered with a regular reply",
		},
		{
			target: &newWorkerGatherer.handledRequestsErrorTotal,
			name:   "katana_worker_handled_requests_error_total",
			help:   "Total number of requests answered with an error payload",
		},
	} {
		newCounter := prometheus.NewCounter(prometheus.CounterOpts{
			Name:        counter.name,
			Help:        counter.help,
			ConstLabels: labels,
		})

		if err := metricRegistry.Register(newCounter); err != nil {
			return nil, errors.Wrapf(err, "Failed to register %s", counter.name)
		}

		*counter.target = newCounter
	}

	return newWorkerGatherer, nil
}

func (wg *WorkerGatherer) Gather() error {

	// read current stats
	currentStatistics := *wg.worker.GetStatistics()
	currentProcessorStatistics := *wg.worker.GetProcessor().GetStatistics()

	// diff from previous to get this period
	diffStatistics := currentStatistics.DiffFrom(&wg.prevStatistics)
	diffProcessorStatistics := currentProcessorStatistics.DiffFrom(&wg.prevProcessorStatistics)

	wg.handledRequestsTotal.Add(float64(diffStatistics.RequestsHandled))
	wg.handledRequestsDurationSum.Add(float64(diffStatistics.RequestsDurationMicroSecondsSum))
	wg.handledRequestsSuccessTotal.Add(float64(diffProcessorStatistics.RequestsHandledSuccess))
	wg.handledRequestsErrorTotal.Add(float64(diffProcessorStatistics.RequestsHandledError))

	// save previous
	wg.prevStatistics = currentStatistics
	wg.prevProcessorStatistics = currentProcessorStatistics

	return nil
}

type ProxyGatherer struct {
	proxy                 *proxy.Proxy
	prevStatistics        proxy.Statistics
	receivedRequestsTotal prometheus.Counter
	dispatchedRequests    prometheus.Counter
	rejectedRequestsTotal prometheus.Counter
	sentRepliesTotal      prometheus.Counter
	droppedClientsTotal   prometheus.Counter
	lostWorkersTotal      prometheus.Counter
	queuedRequests        prometheus.Gauge
}

func NewProxyGatherer(instanceName string,
	proxyInstance *proxy.Proxy,
	metricRegistry *prometheus.Registry) (*ProxyGatherer, error) {

	labels := prometheus.Labels{
		"instance": instanceName,
	}

	newCounter := func(name string, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	newProxyGatherer := &ProxyGatherer{
		proxy: proxyInstance,
		receivedRequestsTotal: newCounter("katana_proxy_received_requests_total",
			"Total number of requests received on the frontend"),
		dispatchedRequests: newCounter("katana_proxy_dispatched_requests_total",
			"Total number of requests handed to a worker"),
		rejectedRequestsTotal: newCounter("katana_proxy_rejected_requests_total",
			"Total number of requests rejected because the backend queue was full"),
		sentRepliesTotal: newCounter("katana_proxy_sent_replies_total",
			"Total number of replies sent on the frontend"),
		droppedClientsTotal: newCounter("katana_proxy_dropped_clients_total",
			"Total number of frontend connections dropped because they did not accept replies"),
		lostWorkersTotal: newCounter("katana_proxy_lost_workers_total",
			"Total number of worker connections lost"),
		queuedRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "katana_proxy_queued_requests",
			Help:        "Number of requests waiting for a ready worker",
			ConstLabels: labels,
		}),
	}

	for _, collector := range []prometheus.Collector{
		newProxyGatherer.receivedRequestsTotal,
		newProxyGatherer.dispatchedRequests,
		newProxyGatherer.rejectedRequestsTotal,
		newProxyGatherer.sentRepliesTotal,
		newProxyGatherer.droppedClientsTotal,
		newProxyGatherer.lostWorkersTotal,
		newProxyGatherer.queuedRequests,
	} {
		if err := metricRegistry.Register(collector); err != nil {
			return nil, errors.Wrap(err, "Failed to register proxy metric")
		}
	}

	return newProxyGatherer, nil
}

func (pg *ProxyGatherer) Gather() error {
	currentStatistics := *pg.proxy.GetStatistics()
	diffStatistics := currentStatistics.DiffFrom(&pg.prevStatistics)

	pg.receivedRequestsTotal.Add(float64(diffStatistics.RequestsReceived))
	pg.dispatchedRequests.Add(float64(diffStatistics.RequestsDispatched))
	pg.rejectedRequestsTotal.Add(float64(diffStatistics.RequestsRejected))
	pg.sentRepliesTotal.Add(float64(diffStatistics.RepliesSent))
	pg.droppedClientsTotal.Add(float64(diffStatistics.ClientsDropped))
	pg.lostWorkersTotal.Add(float64(diffStatistics.WorkersLost))
	pg.queuedRequests.Set(float64(diffStatistics.RequestsQueued))

	pg.prevStatistics = currentStatistics

	return nil
}
