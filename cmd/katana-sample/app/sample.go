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

package app

import (
	"fmt"

	"github.com/kusanagi/katana-sdk-go/pkg/config"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type RootCommandeer struct {
	cmd *cobra.Command
}

func NewRootCommandeer() *RootCommandeer {
	commandeer := &RootCommandeer{}

	commandeer.cmd = &cobra.Command{
		Use:   "katana-sample [options]",
		Short: "Sample users service and gateway middleware",

		// options are parsed by the component so that unknown ones are tolerated
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lo.Contains(args, "-h") || lo.Contains(args, "--help") {
				fmt.Fprintf(cmd.OutOrStdout(), "Usage: %s\n\nOptions:\n%s", cmd.Use, config.Usage()) // nolint: errcheck
				return nil
			}

			return run(args)
		},
	}

	return commandeer
}

// Execute uses os.Args to execute the command
func (rc *RootCommandeer) Execute() error {
	return rc.cmd.Execute()
}

// GetCmd returns the underlying cobra command
func (rc *RootCommandeer) GetCmd() *cobra.Command {
	return rc.cmd
}

func run(args []string) error {
	configuration, err := config.Parse(args)
	if err != nil {
		return errors.Wrap(err, "Failed to parse arguments")
	}

	switch configuration.Component {
	case config.ComponentService:
		service, err := NewUsersService(args)
		if err != nil {
			return errors.Wrap(err, "Failed to create service")
		}

		return service.Run()
	default:
		middleware, err := NewGatewayMiddleware(args)
		if err != nil {
			return errors.Wrap(err, "Failed to create middleware")
		}

		return middleware.Run()
	}
}
