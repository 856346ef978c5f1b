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

package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/kusanagi/katana-sdk-go/pkg/common"
	"github.com/kusanagi/katana-sdk-go/pkg/transport"

	"github.com/coreos/go-semver/semver"
	"github.com/nuclio/errors"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

// ErrConfiguration is the root cause of every invalid command line
var ErrConfiguration = errors.New("Invalid configuration")

// component kinds
const (
	ComponentService    = "service"
	ComponentMiddleware = "middleware"
)

// variables with a meaning to the runtime
const (
	VariableWorkers     = "workers"
	VariableQueueSize   = "queue-size"
	VariableMetrics     = "metrics"
	VariableLogEncoding = "log-encoding"
	VariableLogOutput   = "log-output"
)

const (
	defaultTCPHost        = "127.0.0.1"
	defaultSocketTemplate = "@katana-%s-%s-%s"
)

type Configuration struct {
	FrameworkVersion    string
	Component           string
	Name                string
	Version             string
	Socket              string
	TCP                 string
	Variables           map[string]string
	DisableCompactNames bool
	Debug               bool
	Callback            string
	Quiet               bool

	// options and arguments that were not recognized, in order
	Unrecognized []string

	// derived from variables
	Workers        int
	QueueSize      int
	MetricsAddress string
}

// Parse reads a configuration from command line arguments (without the program name)
func Parse(args []string) (*Configuration, error) {
	flagSet := newFlagSet(Options)

	unrecognized := findUnrecognized(flagSet, args)

	if err := flagSet.Parse(args); err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "Failed to parse arguments: %s", err.Error())
	}

	for _, option := range Options {
		if option.Required && !flagSet.Changed(option.Name) {
			return nil, errors.Wrapf(ErrConfiguration, "Missing required option: --%s", option.Name)
		}
	}

	configuration := Configuration{
		Variables:    map[string]string{},
		Unrecognized: append(unrecognized, flagSet.Args()...),
	}

	configuration.FrameworkVersion, _ = flagSet.GetString(OptionFrameworkVersion)
	configuration.Component, _ = flagSet.GetString(OptionComponent)
	configuration.Name, _ = flagSet.GetString(OptionName)
	configuration.Version, _ = flagSet.GetString(OptionVersion)
	configuration.Socket, _ = flagSet.GetString(OptionSocket)
	configuration.TCP, _ = flagSet.GetString(OptionTCP)
	configuration.DisableCompactNames, _ = flagSet.GetBool(OptionDisableCompactNames)
	configuration.Debug, _ = flagSet.GetBool(OptionDebug)
	configuration.Callback, _ = flagSet.GetString(OptionCallback)
	configuration.Quiet, _ = flagSet.GetBool(OptionQuiet)

	variables, _ := flagSet.GetStringArray(OptionVar)
	for _, variable := range variables {
		key, value, found := strings.Cut(variable, "=")
		if !found || key == "" {
			return nil, errors.Wrapf(ErrConfiguration, "Invalid variable, expected key=value: %s", variable)
		}

		configuration.Variables[key] = value
	}

	if err := configuration.validate(); err != nil {
		return nil, err
	}

	if err := configuration.populateDefaults(); err != nil {
		return nil, err
	}

	return &configuration, nil
}

// GetFrontendEndpoint returns where the component listens for the gateway
func (c *Configuration) GetFrontendEndpoint() *transport.Endpoint {
	if c.TCP != "" {
		return &transport.Endpoint{
			Scheme:  transport.SchemeTCP,
			Address: c.TCP,
		}
	}

	return transport.NewIPCEndpoint(c.Socket)
}

// GetLoggerAttributes returns the logger attributes set through variables
func (c *Configuration) GetLoggerAttributes() map[string]interface{} {
	attributes := map[string]interface{}{}

	if encoding, found := c.Variables[VariableLogEncoding]; found {
		attributes["encoding"] = encoding
	}

	if output, found := c.Variables[VariableLogOutput]; found {
		attributes["output"] = output
	}

	return attributes
}

// IsService returns true when the component is a service
func (c *Configuration) IsService() bool {
	return c.Component == ComponentService
}

func (c *Configuration) String() string {
	return fmt.Sprintf("%s %s (%s) framework=%s endpoint=%s vars=%v",
		c.Component,
		c.Name,
		c.Version,
		c.FrameworkVersion,
		c.GetFrontendEndpoint().String(),
		common.SortedKeys(c.Variables))
}

func (c *Configuration) validate() error {
	if _, err := semver.NewVersion(c.FrameworkVersion); err != nil {
		return errors.Wrapf(ErrConfiguration, "Invalid framework version: %s", c.FrameworkVersion)
	}

	if _, err := semver.NewVersion(c.Version); err != nil {
		return errors.Wrapf(ErrConfiguration, "Invalid version: %s", c.Version)
	}

	if !lo.Contains([]string{ComponentService, ComponentMiddleware}, c.Component) {
		return errors.Wrapf(ErrConfiguration, "Invalid component: %s", c.Component)
	}

	if c.Name == "" {
		return errors.Wrap(ErrConfiguration, "Name must not be empty")
	}

	return nil
}

func (c *Configuration) populateDefaults() error {
	var err error

	if c.TCP != "" {
		if c.TCP, err = normalizeTCPAddress(c.TCP); err != nil {
			return err
		}
	} else if c.Socket == "" {
		c.Socket = fmt.Sprintf(defaultSocketTemplate, c.Component, c.Name, c.Version)
	}

	c.Workers = 1
	if workers, found := c.Variables[VariableWorkers]; found {
		if c.Workers, err = strconv.Atoi(workers); err != nil {
			return errors.Wrapf(ErrConfiguration, "Invalid number of workers: %s", workers)
		}

		c.Workers = lo.Max([]int{1, c.Workers})
	}

	if queueSize, found := c.Variables[VariableQueueSize]; found {
		if c.QueueSize, err = strconv.Atoi(queueSize); err != nil || c.QueueSize < 0 {
			return errors.Wrapf(ErrConfiguration, "Invalid queue size: %s", queueSize)
		}
	}

	c.MetricsAddress = c.Variables[VariableMetrics]

	return nil
}

// normalizeTCPAddress turns a bare port into a loopback address
func normalizeTCPAddress(address string) (string, error) {
	host, port := defaultTCPHost, address

	if strings.Contains(address, ":") {
		var err error

		host, port, err = net.SplitHostPort(address)
		if err != nil {
			return "", errors.Wrapf(ErrConfiguration, "Invalid tcp address: %s", address)
		}

		if host == "" {
			host = defaultTCPHost
		}
	}

	portNumber, err := strconv.Atoi(port)
	if err != nil || portNumber < 1 || portNumber > 65535 {
		return "", errors.Wrapf(ErrConfiguration, "Invalid tcp port: %s", port)
	}

	return net.JoinHostPort(host, port), nil
}

// findUnrecognized returns the options in args that the flag set doesn't know
func findUnrecognized(flagSet *pflag.FlagSet, args []string) []string {
	var unrecognized []string

	for _, arg := range args {
		if arg == "--" {
			break
		}

		switch {
		case strings.HasPrefix(arg, "--"):
			name, _, _ := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
			if flagSet.Lookup(name) == nil {
				unrecognized = append(unrecognized, arg)
			}
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			if flagSet.ShorthandLookup(arg[1:2]) == nil {
				unrecognized = append(unrecognized, arg)
			}
		}
	}

	return unrecognized
}
