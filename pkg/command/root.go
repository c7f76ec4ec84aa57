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

package command

import (
	"os"
	"strings"

	"github.com/nuclio/kaniko-action/pkg/common"
	"github.com/nuclio/kaniko-action/pkg/config"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/spf13/cobra"
	// load authentication modes
	_ "k8s.io/client-go/plugin/pkg/client/auth/oidc"
)

type RootCommandeer struct {
	loggerInstance    logger.Logger
	cmd               *cobra.Command
	verbose           bool
	configurationPath string
	configuration     *config.Config
}

func NewRootCommandeer() *RootCommandeer {
	commandeer := &RootCommandeer{}

	cmd := &cobra.Command{
		Use:           "kaniko-action [command]",
		Short:         "Build container images with kaniko on a local, container or pod backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&commandeer.verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().StringVarP(&commandeer.configurationPath,
		"config",
		"c",
		os.Getenv("KANIKO_ACTION_CONFIG"),
		"Path to a configuration file (YAML)")

	// add children
	cmd.AddCommand(
		newBuildCommandeer(commandeer).cmd,
		newVersionCommandeer(commandeer).cmd,
	)

	commandeer.cmd = cmd

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

func (rc *RootCommandeer) initialize() error {
	var err error

	rc.loggerInstance, err = rc.createLogger()
	if err != nil {
		return errors.Wrap(err, "Failed to create logger")
	}

	configurationReader, err := config.NewReader()
	if err != nil {
		return errors.Wrap(err, "Failed to create configuration reader")
	}

	rc.configuration, err = configurationReader.ReadFileOrDefault(rc.configurationPath)
	if err != nil {
		return errors.Wrap(err, "Failed to read configuration")
	}

	if err := rc.resolveAmbientConfiguration(); err != nil {
		return errors.Wrap(err, "Failed to resolve configuration from environment")
	}

	rc.loggerInstance.DebugWith("Initialized",
		"configurationPath", rc.configurationPath,
		"backend", rc.configuration.Backend,
		"workDir", rc.configuration.WorkDir)

	return nil
}

// resolveAmbientConfiguration fills in what the runner environment dictates, so that
// nothing below the command layer reads the environment
func (rc *RootCommandeer) resolveAmbientConfiguration() error {
	if rc.configuration.WorkDir == "" {
		rc.configuration.WorkDir = common.GetEnvOrDefaultString("RUNNER_TEMP", os.TempDir())
	}

	credentialsDir, err := common.ExpandPath(rc.configuration.CredentialsDir)
	if err != nil {
		return errors.Wrap(err, "Failed to expand credentials directory")
	}

	rc.configuration.CredentialsDir = credentialsDir

	return nil
}

func (rc *RootCommandeer) createLogger() (logger.Logger, error) {
	var loggerLevel nucliozap.Level

	if rc.verbose {
		loggerLevel = nucliozap.DebugLevel
	} else {
		loggerLevel = nucliozap.InfoLevel
	}

	loggerInstance, err := nucliozap.NewNuclioZapCmd("kaniko-action", loggerLevel, os.Stdout)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create logger")
	}

	return loggerInstance, nil
}

// inputEnvName returns the variable GitHub Actions passes an input in
func inputEnvName(name string) string {
	return "INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
}
