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

package executor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nuclio/kaniko-action/pkg/build"
	"github.com/nuclio/kaniko-action/pkg/builderrors"
	"github.com/nuclio/kaniko-action/pkg/cmdrunner"
	"github.com/nuclio/kaniko-action/pkg/common"
	"github.com/nuclio/kaniko-action/pkg/config"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Local runs the executor as a process on this machine
type Local struct {
	logger        logger.Logger
	cmdRunner     cmdrunner.CmdRunner
	configuration *config.Config
}

func NewLocal(parentLogger logger.Logger,
	cmdRunner cmdrunner.CmdRunner,
	configuration *config.Config) (*Local, error) {

	if len(configuration.Local.ExecutorCommand) == 0 {
		return nil, errors.New("Local executor command must not be empty")
	}

	return &Local{
		logger:        parentLogger.GetChild("local"),
		cmdRunner:     cmdRunner,
		configuration: configuration,
	}, nil
}

func (l *Local) GetKind() config.BackendKind {
	return config.BackendKindLocal
}

func (l *Local) GetContextURI(stagedEnvironment *StagedEnvironment) string {
	return "dir://" + filepath.ToSlash(stagedEnvironment.ContextDir) + "/"
}

func (l *Local) Stage(ctx context.Context, stageOptions *StageOptions) (*StagedEnvironment, error) {
	stagedEnvironment := newStagedEnvironment(stageOptions)

	// the context is used in place
	if !common.IsDir(stageOptions.ContextDir) {
		return stagedEnvironment, builderrors.NewStagingError(nil,
			"Context directory does not exist: %s", stageOptions.ContextDir)
	}

	outputDir, err := os.MkdirTemp(l.configuration.WorkDir, "kaniko-action-")
	if err != nil {
		return stagedEnvironment, builderrors.NewStagingError(err, "Failed to create output directory")
	}

	stagedEnvironment.ID = filepath.Base(outputDir)
	stagedEnvironment.OutputDir = outputDir

	if err := stagedEnvironment.Lifecycle.Transition(StateContextStaged); err != nil {
		return stagedEnvironment, errors.Wrap(err, "Failed to mark context as staged")
	}

	executorPath, err := exec.LookPath(l.configuration.Local.ExecutorCommand[0])
	if err != nil {
		return stagedEnvironment, builderrors.NewStagingError(err,
			"Executor not found: %s", l.configuration.Local.ExecutorCommand[0]).
			WithResource(stagedEnvironment.ID)
	}

	if err := stagedEnvironment.Lifecycle.Transition(StateReady); err != nil {
		return stagedEnvironment, errors.Wrap(err, "Failed to mark environment as ready")
	}

	l.logger.DebugWithCtx(ctx, "Staged local environment",
		"outputDir", outputDir,
		"contextDir", stagedEnvironment.ContextDir,
		"executorPath", executorPath)

	return stagedEnvironment, nil
}

func (l *Local) Execute(ctx context.Context,
	stagedEnvironment *StagedEnvironment,
	args []string) (*ExecuteResult, error) {

	if err := stagedEnvironment.Lifecycle.Transition(StateRunning); err != nil {
		return nil, errors.Wrap(err, "Local environment is not ready")
	}

	digestFilePath := filepath.Join(stagedEnvironment.OutputDir, build.DigestFileName)

	command := append(common.ShellQuoteAll(l.configuration.Local.ExecutorCommand),
		"--digest-file",
		common.ShellQuote(digestFilePath))
	command = append(command, common.ShellQuoteAll(args)...)

	runResult, err := l.cmdRunner.Run(ctx,
		&cmdrunner.RunOptions{
			WorkingDir:        &stagedEnvironment.ContextDir,
			Env:               map[string]string{"DOCKER_CONFIG": stagedEnvironment.CredentialsDir},
			CaptureOutputMode: cmdrunner.CaptureOutputModeCombined,
		},
		"%s",
		strings.Join(command, " "))

	executeResult := &ExecuteResult{
		Output: common.RemoveANSIColorsFromString(runResult.Output),
	}

	if err != nil {
		stagedEnvironment.Lifecycle.Transition(StateFailed) // nolint: errcheck

		return executeResult, builderrors.NewExecutionError(err,
			"Executor exited with code %d", runResult.ExitCode).
			WithOutput(executeResult.Output).
			WithResource(stagedEnvironment.ID)
	}

	stagedEnvironment.Lifecycle.Transition(StateCompleted) // nolint: errcheck

	executeResult.DigestFilePath = digestFilePath
	return executeResult, nil
}

func (l *Local) Teardown(ctx context.Context, stagedEnvironment *StagedEnvironment) error {
	if stagedEnvironment == nil || stagedEnvironment.Lifecycle.IsTornDown() {
		return nil
	}

	defer stagedEnvironment.Lifecycle.Transition(StateTornDown) // nolint: errcheck

	if stagedEnvironment.OutputDir == "" {
		return nil
	}

	l.logger.DebugWithCtx(ctx, "Removing output directory", "outputDir", stagedEnvironment.OutputDir)

	if err := os.RemoveAll(stagedEnvironment.OutputDir); err != nil {
		return builderrors.NewTeardownError(err, "Failed to remove output directory").
			WithResource(stagedEnvironment.ID)
	}

	return nil
}
