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
	"github.com/nuclio/errors"
)

// ErrAlreadyRunning is returned when running twice, or registering after run
var ErrAlreadyRunning = errors.New("Component is already running")

// ErrStopped is returned when running a component that was already stopped
var ErrStopped = errors.New("Component was stopped")

// State is the lifecycle state of a component. states only move forward
type State int32

const (
	StateCreated State = iota
	StateBound
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Callback is called on startup and on shutdown
type Callback func(component *Component) error

// ErrorCallback is called with the error of every request that ended in an error reply
type ErrorCallback func(err error)
