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

package worker

import (
	"fmt"

	"github.com/kusanagi/katana-sdk-go/pkg/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// ProcessorCreator creates the processor owned by the worker at a given index
type ProcessorCreator func(workerLogger logger.Logger, workerIndex int) (Processor, error)

type Factory struct{}

// global singleton
var WorkerFactorySingleton = Factory{}

// CreateWorkers creates a pool of at least one worker, each with its own processor
func (wf *Factory) CreateWorkers(parentLogger logger.Logger,
	numWorkers int,
	endpoint *transport.Endpoint,
	processorCreator ProcessorCreator) ([]*Worker, error) {

	if numWorkers < 1 {
		numWorkers = 1
	}

	parentLogger.DebugWith("Creating worker pool", "num", numWorkers, "endpoint", endpoint.String())

	workers := make([]*Worker, numWorkers)

	for workerIndex := 0; workerIndex < numWorkers; workerIndex++ {
		workerInstance, err := wf.createWorker(parentLogger, workerIndex, endpoint, processorCreator)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create worker")
		}

		workers[workerIndex] = workerInstance
	}

	return workers, nil
}

func (wf *Factory) createWorker(parentLogger logger.Logger,
	workerIndex int,
	endpoint *transport.Endpoint,
	processorCreator ProcessorCreator) (*Worker, error) {

	// create logger parent
	workerLogger := parentLogger.GetChild(fmt.Sprintf("w%d", workerIndex))

	processorInstance, err := processorCreator(workerLogger, workerIndex)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create processor")
	}

	return NewWorker(workerLogger, workerIndex, endpoint, processorInstance)
}
