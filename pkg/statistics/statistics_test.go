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
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/processor"
	"github.com/kusanagi/katana-sdk-go/pkg/proxy"
	"github.com/kusanagi/katana-sdk-go/pkg/transport"
	"github.com/kusanagi/katana-sdk-go/pkg/worker"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type countingProcessor struct {
	statistics processor.Statistics
}

func (cp *countingProcessor) Process(frames [][]byte) [][]byte {
	cp.statistics.RequestsHandledSuccess++
	return codec.ReplyFrames(codec.MetadataEmpty, nil)
}

func (cp *countingProcessor) GetStatistics() *processor.Statistics {
	return &cp.statistics
}

type StatisticsTestSuite struct {
	suite.Suite
	logger logger.Logger
}

func (suite *StatisticsTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
}

func (suite *StatisticsTestSuite) TestWorkerGatherer() {
	processorInstance := &countingProcessor{}
	workerInstance, err := worker.NewWorker(suite.logger, 3, transport.NewWorkerEndpoint(), processorInstance)
	suite.Require().NoError(err)

	workerGatherer, err := NewWorkerGatherer("users", workerInstance, prometheus.NewRegistry())
	suite.Require().NoError(err)

	workerInstance.ProcessRequest(nil)
	workerInstance.ProcessRequest(nil)
	processorInstance.statistics.RequestsHandledError++

	suite.Require().NoError(workerGatherer.Gather())
	suite.Require().Equal(float64(2), testutil.ToFloat64(workerGatherer.handledRequestsTotal))
	suite.Require().Equal(float64(2), testutil.ToFloat64(workerGatherer.handledRequestsSuccessTotal))
	suite.Require().Equal(float64(1), testutil.ToFloat64(workerGatherer.handledRequestsErrorTotal))

	// gathering again without new requests adds nothing
	suite.Require().NoError(workerGatherer.Gather())
	suite.Require().Equal(float64(2), testutil.ToFloat64(workerGatherer.handledRequestsTotal))

	workerInstance.ProcessRequest(nil)
	suite.Require().NoError(workerGatherer.Gather())
	suite.Require().Equal(float64(3), testutil.ToFloat64(workerGatherer.handledRequestsTotal))
}

func (suite *StatisticsTestSuite) TestWorkerGathererDuplicateRegistration() {
	workerInstance, err := worker.NewWorker(suite.logger, 0, transport.NewWorkerEndpoint(), &countingProcessor{})
	suite.Require().NoError(err)

	registry := prometheus.NewRegistry()

	_, err = NewWorkerGatherer("users", workerInstance, registry)
	suite.Require().NoError(err)

	_, err = NewWorkerGatherer("users", workerInstance, registry)
	suite.Require().Error(err)
}

func (suite *StatisticsTestSuite) TestProxyGatherer() {
	proxyInstance := suite.createProxy()

	proxyGatherer, err := NewProxyGatherer("users", proxyInstance, prometheus.NewRegistry())
	suite.Require().NoError(err)

	statistics := proxyInstance.GetStatistics()
	atomic.AddUint64(&statistics.RequestsReceived, 5)
	atomic.AddUint64(&statistics.RequestsRejected, 1)
	atomic.AddUint64(&statistics.WorkersLost, 3)
	atomic.AddInt64(&statistics.RequestsQueued, 2)

	suite.Require().NoError(proxyGatherer.Gather())
	suite.Require().Equal(float64(5), testutil.ToFloat64(proxyGatherer.receivedRequestsTotal))
	suite.Require().Equal(float64(1), testutil.ToFloat64(proxyGatherer.rejectedRequestsTotal))
	suite.Require().Equal(float64(3), testutil.ToFloat64(proxyGatherer.lostWorkersTotal))
	suite.Require().Equal(float64(2), testutil.ToFloat64(proxyGatherer.queuedRequests))

	// the queue drained, the gauge follows
	atomic.AddInt64(&statistics.RequestsQueued, -2)
	suite.Require().NoError(proxyGatherer.Gather())
	suite.Require().Equal(float64(5), testutil.ToFloat64(proxyGatherer.receivedRequestsTotal))
	suite.Require().Equal(float64(0), testutil.ToFloat64(proxyGatherer.queuedRequests))
}

func (suite *StatisticsTestSuite) TestMetricSinkServesMetrics() {
	metricSink, err := NewMetricSink(suite.logger, "users", "127.0.0.1:0", time.Hour)
	suite.Require().NoError(err)

	proxyInstance := suite.createProxy()
	suite.Require().NoError(metricSink.AddProxy(proxyInstance))

	suite.Require().NoError(metricSink.Start())
	defer metricSink.Stop() // nolint: errcheck

	atomic.AddUint64(&proxyInstance.GetStatistics().RequestsReceived, 7)
	suite.Require().NoError(metricSink.Gather())

	response, err := http.Get("http://" + metricSink.GetAddress() + "/metrics")
	suite.Require().NoError(err)
	defer response.Body.Close() // nolint: errcheck

	body, err := io.ReadAll(response.Body)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, response.StatusCode)
	suite.Require().Contains(string(body), `katana_proxy_received_requests_total{instance="users"} 7`)

	suite.Require().NoError(metricSink.Stop())
	suite.Require().NoError(metricSink.Stop())
}

func (suite *StatisticsTestSuite) TestMetricSinkServesProbes() {
	metricSink, err := NewMetricSink(suite.logger, "users", "127.0.0.1:0", time.Hour)
	suite.Require().NoError(err)

	var ready int32

	metricSink.AddLivenessCheck("alive", func() error {
		return nil
	})

	metricSink.AddReadinessCheck("component", func() error {
		if atomic.LoadInt32(&ready) == 0 {
			return errors.New("Not ready")
		}

		return nil
	})

	suite.Require().NoError(metricSink.Start())
	defer metricSink.Stop() // nolint: errcheck

	suite.Require().Equal(http.StatusOK, suite.getStatusCode(metricSink, "/live"))
	suite.Require().Equal(http.StatusServiceUnavailable, suite.getStatusCode(metricSink, "/ready"))

	atomic.StoreInt32(&ready, 1)
	suite.Require().Equal(http.StatusOK, suite.getStatusCode(metricSink, "/ready"))
}

func (suite *StatisticsTestSuite) TestMetricSinkRequiresAddress() {
	_, err := NewMetricSink(suite.logger, "users", "", 0)
	suite.Require().Error(err)
}

func (suite *StatisticsTestSuite) getStatusCode(metricSink *MetricSink, path string) int {
	response, err := http.Get("http://" + metricSink.GetAddress() + path)
	suite.Require().NoError(err)
	defer response.Body.Close() // nolint: errcheck

	return response.StatusCode
}

func (suite *StatisticsTestSuite) createProxy() *proxy.Proxy {
	proxyInstance, err := proxy.NewProxy(suite.logger, codec.NewMsgPack(), &proxy.Configuration{
		Frontend: transport.NewWorkerEndpoint(),
		Backend:  transport.NewWorkerEndpoint(),
	})
	suite.Require().NoError(err)

	return proxyInstance
}

func TestStatisticsTestSuite(t *testing.T) {
	suite.Run(t, new(StatisticsTestSuite))
}
