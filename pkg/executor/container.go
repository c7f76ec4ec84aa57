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
	"path/filepath"

	"github.com/nuclio/kaniko-action/pkg/build"
	"github.com/nuclio/kaniko-action/pkg/builderrors"
	"github.com/nuclio/kaniko-action/pkg/common"
	"github.com/nuclio/kaniko-action/pkg/config"
	"github.com/nuclio/kaniko-action/pkg/dockerclient"
	"github.com/nuclio/kaniko-action/pkg/staging"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/rs/xid"
)

// Container runs the executor in a throwaway container, feeding it the staged archive over stdin
type Container struct {
	logger        logger.Logger
	dockerClient  dockerclient.Client
	bundler       *staging.Bundler
	configuration *config.Config
	remotePaths   build.RemotePaths
}

func NewContainer(parentLogger logger.Logger,
	dockerClient dockerclient.Client,
	configuration *config.Config) (*Container, error) {
	loggerInstance := parentLogger.GetChild("container")

	return &Container{
		logger:        loggerInstance,
		dockerClient:  dockerClient,
		bundler:       staging.NewBundler(loggerInstance),
		configuration: configuration,
		remotePaths: build.RemotePaths{
			InputDir:  configuration.Container.InputDir,
			OutputDir: configuration.Container.OutputDir,
			AuthDir:   configuration.Container.AuthDir,
		},
	}, nil
}

func (c *Container) GetKind() config.BackendKind {
	return config.BackendKindContainer
}

func (c *Container) GetContextURI(stagedEnvironment *StagedEnvironment) string {
	return c.remotePaths.ContextURI()
}

func (c *Container) Stage(ctx context.Context, stageOptions *StageOptions) (*StagedEnvironment, error) {
	stagedEnvironment := newStagedEnvironment(stageOptions)
	stagedEnvironment.ID = "kaniko-action-" + xid.New().String()
	stagedEnvironment.ArchivePath = filepath.Join(c.getWorkDir(), stagedEnvironment.ID+".tar.gz")

	if err := c.bundler.WriteFile(ctx,
		stagedEnvironment.ArchivePath,
		stageOptions.ContextDir,
		stageOptions.CredentialsDir); err != nil {
		return stagedEnvironment, builderrors.NewStagingError(err, "Failed to stage build context").
			WithResource(stagedEnvironment.ArchivePath)
	}

	if err := stagedEnvironment.Lifecycle.Transition(StateContextStaged); err != nil {
		return stagedEnvironment, errors.Wrap(err, "Failed to mark context as staged")
	}

	if c.configuration.Container.PullImage {
		if err := c.dockerClient.PullImage(ctx, stageOptions.ExecutorImage); err != nil {
			return stagedEnvironment, builderrors.NewStagingError(err,
				"Failed to pull executor image %s", stageOptions.ExecutorImage)
		}
	}

	if err := stagedEnvironment.Lifecycle.Transition(StateReady); err != nil {
		return stagedEnvironment, errors.Wrap(err, "Failed to mark environment as ready")
	}

	c.logger.DebugWithCtx(ctx, "Staged container environment",
		"containerName", stagedEnvironment.ID,
		"archivePath", stagedEnvironment.ArchivePath)

	return stagedEnvironment, nil
}

func (c *Container) Execute(ctx context.Context,
	stagedEnvironment *StagedEnvironment,
	args []string) (*ExecuteResult, error) {

	if err := stagedEnvironment.Lifecycle.Transition(StateRunning); err != nil {
		return nil, errors.Wrap(err, "Container environment is not ready")
	}

	plan := build.NewRemoteCommandPlan(c.remotePaths, c.configuration.Container.ExecutorBinary, args)

	archiveFile, err := os.Open(stagedEnvironment.ArchivePath)
	if err != nil {
		stagedEnvironment.Lifecycle.Transition(StateFailed) // nolint: errcheck

		return nil, builderrors.NewExecutionError(err, "Failed to open staged archive").
			WithResource(stagedEnvironment.ID)
	}
	defer archiveFile.Close() // nolint: errcheck

	c.logger.InfoWithCtx(ctx, "Running executor container",
		"containerName", stagedEnvironment.ID,
		"image", stagedEnvironment.ExecutorImage)

	var stderr string
	stdout, err := c.dockerClient.RunContainer(ctx, stagedEnvironment.ExecutorImage, &dockerclient.RunOptions{
		ContainerName: stagedEnvironment.ID,
		Entrypoint:    c.configuration.Container.Shell,
		Interactive:   true,
		Remove:        true,
		Stdin:         archiveFile,
		Command:       "-c " + common.ShellQuote(plan.String()),
		Stderr:        &stderr,
	})

	executeResult := &ExecuteResult{
		Output: common.RemoveANSIColorsFromString(stdout),
	}

	if err != nil {
		stagedEnvironment.Lifecycle.Transition(StateFailed) // nolint: errcheck

		return executeResult, builderrors.NewExecutionError(err, "Executor container failed").
			WithOutput(common.RemoveANSIColorsFromString(stdout + stderr)).
			WithResource(stagedEnvironment.ID)
	}

	stagedEnvironment.Lifecycle.Transition(StateCompleted) // nolint: errcheck

	return executeResult, nil
}

func (c *Container) Teardown(ctx context.Context, stagedEnvironment *StagedEnvironment) error {
	if stagedEnvironment == nil || stagedEnvironment.Lifecycle.IsTornDown() {
		return nil
	}

	defer stagedEnvironment.Lifecycle.Transition(StateTornDown) // nolint: errcheck

	var teardownErr error

	// the container only exists once it was started
	if stagedEnvironment.Lifecycle.GetState() != StateCreated &&
		stagedEnvironment.Lifecycle.GetState() != StateContextStaged &&
		stagedEnvironment.Lifecycle.GetState() != StateReady {
		if err := c.dockerClient.RemoveContainer(ctx, stagedEnvironment.ID); err != nil {
			teardownErr = builderrors.NewTeardownError(err, "Failed to remove container").
				WithResource(stagedEnvironment.ID)
		}
	}

	if stagedEnvironment.ArchivePath != "" {
		if err := os.Remove(stagedEnvironment.ArchivePath); err != nil && !os.IsNotExist(err) && teardownErr == nil {
			teardownErr = builderrors.NewTeardownError(err, "Failed to remove staged archive").
				WithResource(stagedEnvironment.ArchivePath)
		}
	}

	return teardownErr
}

func (c *Container) getWorkDir() string {
	if c.configuration.WorkDir != "" {
		return c.configuration.WorkDir
	}

	return os.TempDir()
}
