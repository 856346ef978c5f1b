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

package component

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/common"
	"github.com/kusanagi/katana-sdk-go/pkg/config"
	"github.com/kusanagi/katana-sdk-go/pkg/errgroup"
	"github.com/kusanagi/katana-sdk-go/pkg/loggersink"
	"github.com/kusanagi/katana-sdk-go/pkg/processor"
	"github.com/kusanagi/katana-sdk-go/pkg/protocol"
	"github.com/kusanagi/katana-sdk-go/pkg/proxy"
	"github.com/kusanagi/katana-sdk-go/pkg/statistics"
	"github.com/kusanagi/katana-sdk-go/pkg/transport"
	"github.com/kusanagi/katana-sdk-go/pkg/worker"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

type handlerEntry struct {
	kind    string
	handler interface{}
}

// Component holds what services and middlewares have in common: configuration, resources,
// callbacks and the lifecycle of the proxy and its workers
type Component struct {
	logger           logger.Logger
	configuration    *config.Configuration
	codec            codec.Codec
	state            int32
	started          int32
	handlers         map[string]handlerEntry
	handlersLock     sync.RWMutex
	resources        map[string]interface{}
	resourcesLock    sync.RWMutex
	startupCallback  Callback
	shutdownCallback Callback
	errorCallback    ErrorCallback
	lifecycleLock    sync.Mutex
	proxy            *proxy.Proxy
	workers          []*worker.Worker
	metricSink       *statistics.MetricSink
	signalChannel    chan os.Signal
	stopChannel      chan struct{}
	stopOnce         sync.Once
}

func newComponent(parentLogger logger.Logger, configuration *config.Configuration) *Component {
	return &Component{
		logger:        parentLogger,
		configuration: configuration,
		codec:         codec.NewMsgPack(),
		handlers:      map[string]handlerEntry{},
		resources:     map[string]interface{}{},
		signalChannel: make(chan os.Signal, 1),
		stopChannel:   make(chan struct{}),
	}
}

// createLogger creates the root logger of a component from its configuration
func createLogger(configuration *config.Configuration) (logger.Logger, error) {
	loggerConfiguration, err := loggersink.NewConfiguration(
		fmt.Sprintf("%s.%s", configuration.Component, configuration.Name),
		configuration.Debug,
		configuration.Quiet,
		configuration.GetLoggerAttributes())
	if err != nil {
		return nil, errors.Wrapf(config.ErrConfiguration, "Invalid logger configuration: %s", err.Error())
	}

	return loggersink.CreateLogger(loggerConfiguration)
}

// parseConfiguration parses args and makes sure they describe the expected component kind
func parseConfiguration(args []string, expectedComponent string) (*config.Configuration, error) {
	configuration, err := config.Parse(args)
	if err != nil {
		return nil, err
	}

	if configuration.Component != expectedComponent {
		return nil, errors.Wrapf(config.ErrConfiguration,
			"Expected component %s, got %s", expectedComponent, configuration.Component)
	}

	return configuration, nil
}

// GetConfiguration returns the configuration the component was created with
func (c *Component) GetConfiguration() *config.Configuration {
	return c.configuration
}

func (c *Component) GetLogger() logger.Logger {
	return c.logger
}

// GetState returns the current lifecycle state
func (c *Component) GetState() State {
	return State(atomic.LoadInt32(&c.state))
}

// SetResource stores a value that handlers can get by name
func (c *Component) SetResource(name string, value interface{}) error {
	if c.isStarted() {
		return errors.Wrapf(ErrAlreadyRunning, "Can't set resource %s", name)
	}

	if name == "" {
		return errors.New("Resource name must not be empty")
	}

	c.resourcesLock.Lock()
	defer c.resourcesLock.Unlock()

	c.resources[name] = value

	return nil
}

func (c *Component) HasResource(name string) bool {
	c.resourcesLock.RLock()
	defer c.resourcesLock.RUnlock()

	_, found := c.resources[name]
	return found
}

func (c *Component) GetResource(name string) (interface{}, error) {
	c.resourcesLock.RLock()
	defer c.resourcesLock.RUnlock()

	value, found := c.resources[name]
	if !found {
		return nil, errors.Wrapf(api.ErrResourceNotFound, "Resource not found: %s", name)
	}

	return value, nil
}

// Startup registers a callback called before the component binds its sockets
func (c *Component) Startup(callback Callback) error {
	if c.isStarted() {
		return errors.Wrap(ErrAlreadyRunning, "Can't register startup callback")
	}

	c.startupCallback = callback
	return nil
}

// Shutdown registers a callback called before the component closes its sockets
func (c *Component) Shutdown(callback Callback) error {
	if c.isStarted() {
		return errors.Wrap(ErrAlreadyRunning, "Can't register shutdown callback")
	}

	c.shutdownCallback = callback
	return nil
}

// Error registers a callback called with every request error
func (c *Component) Error(callback ErrorCallback) error {
	if c.isStarted() {
		return errors.Wrap(ErrAlreadyRunning, "Can't register error callback")
	}

	c.errorCallback = callback
	return nil
}

// Log emits value at debug level and returns whether the component runs in debug mode
func (c *Component) Log(value interface{}) bool {
	c.logger.DebugWith("Log", "value", value)

	return c.configuration.Debug
}

// Resolve returns the binding and handler registered for a component type
func (c *Component) Resolve(componentType string) (protocol.Binding, interface{}, error) {
	c.handlersLock.RLock()
	entry, found := c.handlers[componentType]
	c.handlersLock.RUnlock()

	if !found {
		return nil, nil, errors.Errorf("No handler registered for %s", componentType)
	}

	binding, err := protocol.RegistrySingleton.Get(entry.kind)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Failed to get binding")
	}

	return binding, entry.handler, nil
}

// Run binds the sockets, starts the workers and relays requests until Stop is called
func (c *Component) Run() error {
	if c.GetState() >= StateStopping {
		return ErrStopped
	}

	if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
		return ErrAlreadyRunning
	}

	c.handlersLock.RLock()
	numHandlers := len(c.handlers)
	c.handlersLock.RUnlock()

	if numHandlers == 0 {
		c.logger.WarnWith("Running without handlers, every request will fail")
	}

	if err := c.runCallback("startup", c.startupCallback); err != nil {
		c.setState(StateStopped)
		return errors.Wrap(err, "Startup callback failed")
	}

	if err := c.bind(); err != nil {
		c.setState(StateStopped)

		// stopped while the startup callback ran
		if err == ErrStopped {
			return nil
		}

		return errors.Wrap(err, "Failed to start component")
	}

	if c.notifySignals() {
		go c.handleSignals()
	}

	workerGroup, _ := errgroup.WithContext(context.Background(), c.logger)

	for _, workerInstance := range c.workers {
		workerGroup.Go(fmt.Sprintf("worker-%d", workerInstance.GetIndex()), workerInstance.Run)
	}

	go c.stopOnWorkerFailure(workerGroup)

	c.compareAndSetState(StateBound, StateRunning)

	c.logger.DebugWith("Component running",
		"component", c.configuration.Component,
		"name", c.configuration.Name,
		"version", c.configuration.Version,
		"endpoint", c.configuration.GetFrontendEndpoint().String(),
		"workers", len(c.workers))

	proxyErr := c.proxy.Run()
	workersErr := workerGroup.Wait()

	c.setState(StateStopped)

	if proxyErr != nil {
		return errors.Wrap(proxyErr, "Proxy failed")
	}

	return workersErr
}

// Stop runs the shutdown callback then closes workers and sockets. safe to call more than
// once and from signal handlers
func (c *Component) Stop() error {
	c.stopOnce.Do(func() {
		c.lifecycleLock.Lock()
		defer c.lifecycleLock.Unlock()

		neverStarted := !c.isStarted()

		c.setState(StateStopping)
		close(c.stopChannel)
		signal.Stop(c.signalChannel)

		if neverStarted {
			c.setState(StateStopped)
			return
		}

		c.logger.DebugWith("Stopping component")

		if err := c.runCallback("shutdown", c.shutdownCallback); err != nil {
			c.logger.WarnWith("Shutdown callback failed", "err", errors.Cause(err).Error())
		}

		c.teardown()
	})

	return nil
}

func (c *Component) bind() error {
	c.lifecycleLock.Lock()
	defer c.lifecycleLock.Unlock()

	if c.GetState() >= StateStopping {
		return ErrStopped
	}

	var err error

	backend := transport.NewWorkerEndpoint()

	c.proxy, err = proxy.NewProxy(c.logger, c.codec, &proxy.Configuration{
		Frontend:  c.configuration.GetFrontendEndpoint(),
		Backend:   backend,
		QueueSize: c.configuration.QueueSize,
	})
	if err != nil {
		return errors.Wrap(err, "Failed to create proxy")
	}

	if err := c.proxy.Bind(); err != nil {
		return errors.Wrap(err, "Failed to bind proxy")
	}

	c.workers, err = worker.WorkerFactorySingleton.CreateWorkers(c.logger,
		c.configuration.Workers,
		backend,
		c.createProcessor)
	if err != nil {
		c.teardown()
		return errors.Wrap(err, "Failed to create workers")
	}

	for _, workerInstance := range c.workers {
		if err := workerInstance.Connect(); err != nil {
			c.teardown()
			return errors.Wrapf(err, "Failed to connect worker %d", workerInstance.GetIndex())
		}
	}

	if c.configuration.MetricsAddress != "" {
		if err := c.startMetricSink(); err != nil {
			c.teardown()
			return errors.Wrap(err, "Failed to start metric sink")
		}
	}

	c.setState(StateBound)

	return nil
}

func (c *Component) startMetricSink() error {
	var err error

	c.metricSink, err = statistics.NewMetricSink(c.logger,
		c.configuration.Name,
		c.configuration.MetricsAddress,
		statistics.DefaultGatherInterval)
	if err != nil {
		return err
	}

	if err := c.metricSink.AddWorkers(c.workers); err != nil {
		return err
	}

	if err := c.metricSink.AddProxy(c.proxy); err != nil {
		return err
	}

	c.metricSink.AddReadinessCheck("component", func() error {
		if state := c.GetState(); state != StateRunning {
			return errors.Errorf("Component is %s", state)
		}

		return nil
	})

	return c.metricSink.Start()
}

// teardown closes worker connections first so that pending reads unblock, then the proxy sockets
func (c *Component) teardown() {
	for _, workerInstance := range c.workers {
		if err := workerInstance.Stop(); err != nil {
			c.logger.DebugWith("Failed to stop worker", "workerIndex", workerInstance.GetIndex(), "err", err.Error())
		}
	}

	if c.proxy != nil {
		c.proxy.Stop() // nolint: errcheck
	}

	if c.metricSink != nil {
		if err := c.metricSink.Stop(); err != nil {
			c.logger.DebugWith("Failed to stop metric sink", "err", err.Error())
		}
	}
}

func (c *Component) createProcessor(workerLogger logger.Logger, workerIndex int) (worker.Processor, error) {
	handlerContext := api.Context{
		Component:        c,
		Logger:           workerLogger,
		Name:             c.configuration.Name,
		Version:          c.configuration.Version,
		FrameworkVersion: c.configuration.FrameworkVersion,
		Variables:        c.configuration.Variables,
		Debug:            c.configuration.Debug,
	}

	var errorCallback processor.ErrorCallback
	if c.errorCallback != nil {
		errorCallback = processor.ErrorCallback(c.errorCallback)
	}

	return processor.NewProcessor(workerLogger, c.codec, c, handlerContext, errorCallback), nil
}

// notifySignals registers for termination signals unless Stop already ran, in which case
// nothing would unregister them
func (c *Component) notifySignals() bool {
	c.lifecycleLock.Lock()
	defer c.lifecycleLock.Unlock()

	if c.GetState() >= StateStopping {
		return false
	}

	signal.Notify(c.signalChannel, os.Interrupt, syscall.SIGTERM)

	return true
}

func (c *Component) stopOnWorkerFailure(workerGroup *errgroup.Group) {
	select {
	case <-workerGroup.Context().Done():
		if name, err := workerGroup.Failure(); err != nil {
			c.logger.ErrorWith("Worker failed, stopping", "worker", name, "err", err.Error())
			c.Stop() // nolint: errcheck
		}
	case <-c.stopChannel:
	}
}

func (c *Component) handleSignals() {
	select {
	case receivedSignal := <-c.signalChannel:
		c.logger.DebugWith("Received signal, stopping", "signal", receivedSignal.String())
		c.Stop() // nolint: errcheck
	case <-c.stopChannel:
	}
}

func (c *Component) runCallback(name string, callback Callback) (err error) {
	if callback == nil {
		return nil
	}

	defer func() {
		if recoveredErr := recover(); recoveredErr != nil {
			common.LogPanic(c.logger, name+" callback", debug.Stack(), recoveredErr)
			err = errors.Wrapf(common.ErrorFromRecoveredError(recoveredErr), "%s callback panicked", name)
		}
	}()

	return callback(c)
}

func (c *Component) registerHandler(componentType string, kind string, handler interface{}) error {
	if c.isStarted() {
		return errors.Wrapf(ErrAlreadyRunning, "Can't register handler for %s", componentType)
	}

	if handler == nil {
		return errors.Errorf("Handler for %s must not be nil", componentType)
	}

	c.handlersLock.Lock()
	defer c.handlersLock.Unlock()

	c.handlers[componentType] = handlerEntry{
		kind:    kind,
		handler: handler,
	}

	return nil
}

func (c *Component) isStarted() bool {
	return atomic.LoadInt32(&c.started) == 1
}

func (c *Component) setState(state State) {
	atomic.StoreInt32(&c.state, int32(state))
}

func (c *Component) compareAndSetState(from State, to State) bool {
	return atomic.CompareAndSwapInt32(&c.state, int32(from), int32(to))
}
