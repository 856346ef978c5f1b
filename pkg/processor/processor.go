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

package processor

import (
	"runtime/debug"
	"sync/atomic"

	"github.com/kusanagi/katana-sdk-go/pkg/api"
	"github.com/kusanagi/katana-sdk-go/pkg/codec"
	"github.com/kusanagi/katana-sdk-go/pkg/common"
	"github.com/kusanagi/katana-sdk-go/pkg/protocol"
	"github.com/kusanagi/katana-sdk-go/pkg/schema"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// ErrHandler is the root cause of failures to find or run user logic
var ErrHandler = errors.New("Handler failed")

// Resolver finds the binding and the user handler serving a component type
type Resolver interface {
	Resolve(componentType string) (protocol.Binding, interface{}, error)
}

// ErrorCallback is notified of every request that ends in an error reply
type ErrorCallback func(err error)

type Statistics struct {
	RequestsHandledSuccess uint64
	RequestsHandledError   uint64
}

func (s *Statistics) DiffFrom(prev *Statistics) Statistics {
	return Statistics{
		RequestsHandledSuccess: s.RequestsHandledSuccess - prev.RequestsHandledSuccess,
		RequestsHandledError:   s.RequestsHandledError - prev.RequestsHandledError,
	}
}

// Processor turns a request frame set into a reply frame set. it never fails: errors are
// converted into an error payload reply
type Processor struct {

	// accessed atomically, keep as first field for alignment
	statistics Statistics

	logger        logger.Logger
	codec         codec.Codec
	mapper        *schema.Mapper
	resolver      Resolver
	context       api.Context
	errorCallback ErrorCallback
}

func NewProcessor(parentLogger logger.Logger,
	codecInstance codec.Codec,
	resolver Resolver,
	context api.Context,
	errorCallback ErrorCallback) *Processor {

	loggerInstance := parentLogger.GetChild("processor")

	return &Processor{
		logger:        loggerInstance,
		codec:         codecInstance,
		mapper:        schema.NewMapper(loggerInstance, codecInstance),
		resolver:      resolver,
		context:       context,
		errorCallback: errorCallback,
	}
}

// Process handles one request and returns exactly one two frame reply
func (p *Processor) Process(frames [][]byte) [][]byte {
	reply, err := p.process(frames)
	if err == nil {
		var payload []byte

		payload, err = p.codec.Encode(reply)
		if err == nil {
			atomic.AddUint64(&p.statistics.RequestsHandledSuccess, 1)
			return codec.ReplyFrames(reply.Metadata(), payload)
		}
	}

	atomic.AddUint64(&p.statistics.RequestsHandledError, 1)
	return p.errorReply(err)
}

// GetStatistics returns a pointer to the statistics object. This must not be modified by the reader
func (p *Processor) GetStatistics() *Statistics {
	return &p.statistics
}

func (p *Processor) process(frames [][]byte) (reply api.Reply, err error) {
	defer func() {
		if recoveredErr := recover(); recoveredErr != nil {
			common.LogPanic(p.logger, "process", debug.Stack(), recoveredErr)
			err = errors.Wrapf(ErrHandler, "Handler panicked: %s",
				common.ErrorFromRecoveredError(recoveredErr).Error())
		}
	}()

	envelope, err := codec.ParseCommandEnvelope(frames)
	if err != nil {
		return nil, err
	}

	binding, handler, err := p.resolver.Resolve(envelope.ComponentType)
	if err != nil {
		return nil, errors.Wrapf(ErrHandler, "No handler registered for %s", envelope.ComponentType)
	}

	invocation, err := binding.Decode(p.codec, envelope.Command)
	if err != nil {
		return nil, err
	}

	mapping, err := p.mapper.Decode(envelope.Mapping)
	if err != nil {
		return nil, err
	}

	context := p.context
	context.ComponentType = envelope.ComponentType
	context.Mapping = mapping

	p.logger.DebugWith("Invoking handler",
		"componentType", envelope.ComponentType,
		"kind", binding.GetKind(),
		"command", invocation.GetCommandName())

	// user errors are returned as is so that their message reaches the caller
	return invocation.Invoke(context, handler)
}

func (p *Processor) errorReply(err error) [][]byte {
	p.logger.WarnWith("Failed to process request", "err", err.Error())
	p.notifyError(err)

	payload, encodeErr := p.codec.Encode(api.NewErrorPayload(err.Error()))
	if encodeErr != nil {
		p.logger.ErrorWith("Failed to encode error payload", "err", encodeErr.Error())
		return codec.FailureReplyFrames()
	}

	return codec.ReplyFrames(codec.MetadataFailure, payload)
}

func (p *Processor) notifyError(err error) {
	if p.errorCallback == nil {
		return
	}

	defer func() {
		if recoveredErr := recover(); recoveredErr != nil {
			common.LogPanic(p.logger, "error callback", debug.Stack(), recoveredErr)
		}
	}()

	p.errorCallback(err)
}
