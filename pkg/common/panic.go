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

package common

import (
	"fmt"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// LogPanic logs a recovered panic along with the stack that produced it
func LogPanic(loggerInstance logger.Logger, actionName string, callStack []byte, recoveredErr interface{}) {
	if loggerInstance == nil {
		return
	}

	loggerInstance.ErrorWith("Panic caught",
		"action", actionName,
		"err", recoveredErr,
		"stack", string(callStack))
}

// ErrorFromRecoveredError converts the value handed out by recover() into an error
func ErrorFromRecoveredError(recoveredErr interface{}) error {
	switch typedErr := recoveredErr.(type) {
	case error:
		return typedErr
	case string:
		return errors.New(typedErr)
	default:
		return errors.New(fmt.Sprintf("%v", typedErr))
	}
}
