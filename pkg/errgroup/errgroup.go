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

package errgroup

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/kusanagi/katana-sdk-go/pkg/common"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"golang.org/x/sync/errgroup"
)

// Group runs named goroutines. the first one to fail or panic cancels the group context and is
// remembered, so that a watcher can react to it before Wait returns
type Group struct {
	baseGroup   *errgroup.Group
	ctx         context.Context
	logger      logger.Logger
	failure     error
	failureName string
	failureLock sync.Mutex
}

func WithContext(ctx context.Context, parentLogger logger.Logger) (*Group, context.Context) {
	baseGroup, groupCtx := errgroup.WithContext(ctx)

	return &Group{
		baseGroup: baseGroup,
		ctx:       groupCtx,
		logger:    parentLogger,
	}, groupCtx
}

// Go runs f in a goroutine named name
func (g *Group) Go(name string, f func() error) {
	g.baseGroup.Go(func() error {
		err := g.run(name, f)
		if err != nil {
			g.recordFailure(name, err)
		}

		return err
	})
}

// Wait blocks until every goroutine returned, then returns the first failure
func (g *Group) Wait() error {
	return g.baseGroup.Wait()
}

// Context is done once a goroutine failed, or once Wait returned
func (g *Group) Context() context.Context {
	return g.ctx
}

// Failure returns the first failure and the name of the goroutine that produced it. the error
// is nil while no goroutine failed
func (g *Group) Failure() (string, error) {
	g.failureLock.Lock()
	defer g.failureLock.Unlock()

	return g.failureName, g.failure
}

func (g *Group) run(name string, f func() error) (err error) {
	defer func() {
		if recoveredErr := recover(); recoveredErr != nil {
			common.LogPanic(g.logger, name, debug.Stack(), recoveredErr)
			err = errors.Wrapf(common.ErrorFromRecoveredError(recoveredErr), "%s panicked", name)
		}
	}()

	return f()
}

func (g *Group) recordFailure(name string, err error) {
	g.failureLock.Lock()
	defer g.failureLock.Unlock()

	if g.failure != nil {
		return
	}

	g.failure = err
	g.failureName = name
}
