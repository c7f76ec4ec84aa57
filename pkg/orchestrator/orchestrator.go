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

package orchestrator

import (
	"context"
	"time"

	"github.com/nuclio/kaniko-action/pkg/build"
	"github.com/nuclio/kaniko-action/pkg/builderrors"
	"github.com/nuclio/kaniko-action/pkg/common"
	"github.com/nuclio/kaniko-action/pkg/config"
	"github.com/nuclio/kaniko-action/pkg/digest"
	"github.com/nuclio/kaniko-action/pkg/executor"
	"github.com/nuclio/kaniko-action/pkg/metrics"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/samber/lo"
)

const defaultTeardownTimeout = time.Minute

// BackendFactory creates the backend a configuration asks for
type BackendFactory func(ctx context.Context,
	parentLogger logger.Logger,
	configuration *config.Config) (executor.Backend, error)

type Result struct {
	Digest          string
	Backend         config.BackendKind
	Args            []string
	StageDuration   time.Duration
	ExecuteDuration time.Duration
}

type Orchestrator struct {
	logger         logger.Logger
	configuration  *config.Config
	recorder       *metrics.Recorder
	backendFactory BackendFactory
}

func NewOrchestrator(parentLogger logger.Logger,
	configuration *config.Config,
	recorder *metrics.Recorder,
	backendFactory BackendFactory) (*Orchestrator, error) {

	if backendFactory == nil {
		backendFactory = executor.NewBackend
	}

	return &Orchestrator{
		logger:         parentLogger.GetChild("orchestrator"),
		configuration:  configuration,
		recorder:       recorder,
		backendFactory: backendFactory,
	}, nil
}

// Build runs a single build: stage, execute, extract the digest and always tear down what was staged
func (o *Orchestrator) Build(ctx context.Context, request *build.Request) (*Result, error) {
	result, err := o.build(ctx, request)

	if o.recorder != nil {
		buildResult := metrics.ResultSucceeded
		if err != nil {
			buildResult = metrics.ResultFailed
		}
		o.recorder.IncreaseBuilds(o.configuration.Backend, buildResult)
	}

	return result, err
}

func (o *Orchestrator) build(ctx context.Context, request *build.Request) (*Result, error) {
	if err := o.validate(request); err != nil {
		return nil, err
	}

	contextDir, err := common.ExpandPath(request.Context)
	if err != nil {
		return nil, builderrors.NewConfigurationError("Failed to resolve context %q: %s", request.Context, err.Error())
	}

	credentialsDir, err := common.ExpandPath(o.configuration.CredentialsDir)
	if err != nil {
		return nil, builderrors.NewConfigurationError("Failed to resolve credentials directory %q: %s",
			o.configuration.CredentialsDir,
			err.Error())
	}

	backend, err := o.backendFactory(ctx, o.logger, o.configuration)
	if err != nil {
		return nil, builderrors.NewConfigurationError("Failed to create %s backend: %s",
			o.configuration.Backend,
			err.Error())
	}

	result := &Result{
		Backend: backend.GetKind(),
	}

	o.logger.InfoWithCtx(ctx, "Staging build context",
		"backend", result.Backend,
		"contextDir", contextDir,
		"credentialsDir", credentialsDir)

	stageStartTime := time.Now()
	stagedEnvironment, err := backend.Stage(ctx, &executor.StageOptions{
		ContextDir:     contextDir,
		CredentialsDir: credentialsDir,
		ExecutorImage:  request.ExecutorImage,
	})
	result.StageDuration = o.observePhase(ctx, "stage", result.Backend, stageStartTime)

	// whatever was created is released, even if the run was cancelled
	if stagedEnvironment != nil {
		defer o.teardown(ctx, backend, stagedEnvironment)
	}

	if err != nil {
		return nil, errors.Wrap(err, "Failed to stage build environment")
	}

	result.Args = build.GenerateArgs(request, backend.GetContextURI(stagedEnvironment))

	o.logger.InfoWithCtx(ctx, "Executing build",
		"backend", result.Backend,
		"resource", stagedEnvironment.ID,
		"args", result.Args)

	executeStartTime := time.Now()
	executeResult, err := backend.Execute(ctx, stagedEnvironment, result.Args)
	result.ExecuteDuration = o.observePhase(ctx, "execute", result.Backend, executeStartTime)

	if err != nil {
		return nil, errors.Wrap(err, "Failed to execute build")
	}

	if result.Digest, err = o.extractDigest(executeResult); err != nil {
		return nil, errors.Wrap(err, "Failed to extract image digest")
	}

	o.logger.InfoWithCtx(ctx, "Build completed", "digest", result.Digest)

	return result, nil
}

func (o *Orchestrator) validate(request *build.Request) error {
	if err := request.Validate(); err != nil {
		return err
	}

	if request.Context == "" {
		return builderrors.NewConfigurationError("Context must be set")
	}

	// only the local backend provides its own executor
	if request.ExecutorImage == "" && o.configuration.Backend != config.BackendKindLocal {
		return builderrors.NewConfigurationError("Executor image must be set for the %s backend",
			o.configuration.Backend)
	}

	return nil
}

func (o *Orchestrator) extractDigest(executeResult *executor.ExecuteResult) (string, error) {
	switch {
	case executeResult.DigestFilePath != "":
		return digest.FromFile(executeResult.DigestFilePath)
	case executeResult.DigestOutput != "":
		return digest.FromOutput(executeResult.DigestOutput)
	default:
		return digest.FromOutput(executeResult.Output)
	}
}

// teardown runs on a context of its own, so cancelling the run doesn't leak its resources. Failures
// are logged, they never replace the outcome of the run
func (o *Orchestrator) teardown(ctx context.Context,
	backend executor.Backend,
	stagedEnvironment *executor.StagedEnvironment) {

	teardownTimeout := o.configuration.TeardownTimeout.Duration
	if teardownTimeout <= 0 {
		teardownTimeout = defaultTeardownTimeout
	}

	teardownCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	teardownStartTime := time.Now()

	if err := backend.Teardown(teardownCtx, stagedEnvironment); err != nil {
		o.logger.WarnWithCtx(ctx, "Failed to tear down build environment",
			"resource", stagedEnvironment.ID,
			"states", o.getLifecycleHistory(stagedEnvironment),
			"err", err.Error())
	} else {
		o.logger.DebugWithCtx(ctx, "Tore down build environment",
			"resource", stagedEnvironment.ID,
			"states", o.getLifecycleHistory(stagedEnvironment))
	}

	o.observePhase(ctx, "teardown", backend.GetKind(), teardownStartTime)
}

// getLifecycleHistory returns the visited states as strings, for logging
func (o *Orchestrator) getLifecycleHistory(stagedEnvironment *executor.StagedEnvironment) []string {
	if stagedEnvironment.Lifecycle == nil {
		return nil
	}

	return lo.Map(stagedEnvironment.Lifecycle.GetHistory(), func(state executor.State, _ int) string {
		return string(state)
	})
}

func (o *Orchestrator) observePhase(ctx context.Context,
	phase string,
	backendKind config.BackendKind,
	startTime time.Time) time.Duration {
	duration := time.Since(startTime)

	o.logger.DebugWithCtx(ctx, "Phase ended", "phase", phase, "duration", duration.String())

	if o.recorder != nil {
		o.recorder.ObservePhase(phase, backendKind, duration)
	}

	return duration
}
