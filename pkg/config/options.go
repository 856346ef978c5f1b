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
	"io"

	"github.com/spf13/pflag"
)

// option names
const (
	OptionFrameworkVersion    = "framework-version"
	OptionComponent           = "component"
	OptionName                = "name"
	OptionVersion             = "version"
	OptionSocket              = "socket"
	OptionTCP                 = "tcp"
	OptionVar                 = "var"
	OptionDisableCompactNames = "disable-compact-names"
	OptionDebug               = "debug"
	OptionCallback            = "callback"
	OptionQuiet               = "quiet"
)

// Option declares a command line option
type Option struct {
	Name      string
	Shorthand string
	Required  bool
	HasValue  bool
	Repeated  bool
	Usage     string
}

// Options are the options every component accepts
var Options = []Option{
	{Name: OptionFrameworkVersion, Shorthand: "p", Required: true, HasValue: true, Usage: "Framework version (semantic version)"},
	{Name: OptionComponent, Shorthand: "c", Required: true, HasValue: true, Usage: "Component kind (service or middleware)"},
	{Name: OptionName, Shorthand: "n", Required: true, HasValue: true, Usage: "Component name"},
	{Name: OptionVersion, Shorthand: "v", Required: true, HasValue: true, Usage: "Component version (semantic version)"},
	{Name: OptionSocket, Shorthand: "s", HasValue: true, Usage: "Unix socket path to listen on, @ prefix for the abstract namespace"},
	{Name: OptionTCP, Shorthand: "t", HasValue: true, Usage: "TCP port or host:port to listen on, takes precedence over socket"},
	{Name: OptionVar, Shorthand: "V", HasValue: true, Repeated: true, Usage: "Variable as key=value, may be repeated"},
	{Name: OptionDisableCompactNames, Shorthand: "d", Usage: "Disable compact names in payloads"},
	{Name: OptionDebug, Shorthand: "D", Usage: "Enable debug logging"},
	{Name: OptionCallback, Shorthand: "C", HasValue: true, Usage: "Callback to run for debugging"},
	{Name: OptionQuiet, Shorthand: "q", Usage: "Disable all logging output"},
}

// newFlagSet registers every option in a flag set that tolerates unknown flags
func newFlagSet(options []Option) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("katana", pflag.ContinueOnError)
	flagSet.ParseErrorsWhitelist.UnknownFlags = true
	flagSet.SortFlags = false
	flagSet.SetOutput(io.Discard)

	for _, option := range options {
		switch {
		case option.Repeated:
			flagSet.StringArrayP(option.Name, option.Shorthand, nil, option.Usage)
		case option.HasValue:
			flagSet.StringP(option.Name, option.Shorthand, "", option.Usage)
		default:
			flagSet.BoolP(option.Name, option.Shorthand, false, option.Usage)
		}
	}

	return flagSet
}

// Usage returns the help text of the options
func Usage() string {
	return newFlagSet(Options).FlagUsages()
}
