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

package loggersink

import (
	"io"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/samber/lo"
)

const (
	EncodingConsole = "console"
	EncodingJSON    = "json"

	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

type Configuration struct {
	Name     string `mapstructure:"-"`
	Debug    bool   `mapstructure:"-"`
	Quiet    bool   `mapstructure:"-"`
	Encoding string
	Output   string

	// overrides Output when set
	Writer io.Writer `mapstructure:"-"`
}

// NewConfiguration creates a logger configuration. attributes may set the encoding
// ("console" or "json") and the output ("stdout" or "stderr")
func NewConfiguration(name string,
	debug bool,
	quiet bool,
	attributes map[string]interface{}) (*Configuration, error) {

	newConfiguration := Configuration{
		Name:  name,
		Debug: debug,
		Quiet: quiet,
	}

	// parse attributes
	if err := mapstructure.Decode(attributes, &newConfiguration); err != nil {
		return nil, errors.Wrap(err, "Failed to decode attributes")
	}

	if newConfiguration.Encoding == "" {
		newConfiguration.Encoding = EncodingConsole
	}

	if newConfiguration.Output == "" {
		newConfiguration.Output = OutputStdout
	}

	if !lo.Contains([]string{EncodingConsole, EncodingJSON}, newConfiguration.Encoding) {
		return nil, errors.Errorf("Unsupported log encoding: %s", newConfiguration.Encoding)
	}

	if !lo.Contains([]string{OutputStdout, OutputStderr}, newConfiguration.Output) {
		return nil, errors.Errorf("Unsupported log output: %s", newConfiguration.Output)
	}

	return &newConfiguration, nil
}

// Level returns debug when debug is enabled and output isn't quieted, warn otherwise
func (c *Configuration) Level() nucliozap.Level {
	if c.Debug && !c.Quiet {
		return nucliozap.DebugLevel
	}

	return nucliozap.WarnLevel
}

// CreateLogger returns the component logger
func CreateLogger(configuration *Configuration) (logger.Logger, error) {
	writer := configuration.Writer

	switch {
	case configuration.Quiet:
		writer = io.Discard
	case writer != nil:
	case configuration.Output == OutputStderr:
		writer = os.Stderr
	default:
		writer = os.Stdout
	}

	// get the default encoding and override line ending to newline
	encoderConfig := nucliozap.NewEncoderConfig()
	encoderConfig.JSON.LineEnding = "\n"

	loggerInstance, err := nucliozap.NewNuclioZap(configuration.Name,
		configuration.Encoding,
		encoderConfig,
		writer,
		writer,
		configuration.Level())
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create logger")
	}

	return loggerInstance, nil
}
