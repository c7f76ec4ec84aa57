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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nuclio/kaniko-action/pkg/build"
	"github.com/nuclio/kaniko-action/pkg/common"
	"github.com/nuclio/kaniko-action/pkg/config"
	"github.com/nuclio/kaniko-action/pkg/metrics"
	"github.com/nuclio/kaniko-action/pkg/orchestrator"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/v3io/version-go"
)

type buildCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	request        build.Request
	backendName    string
	namespace      string
	backendFactory orchestrator.BackendFactory
}

func newBuildCommandeer(rootCommandeer *RootCommandeer) *buildCommandeer {
	commandeer := &buildCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build (and optionally push) an image with the kaniko executor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return errors.New("Build does not take positional arguments")
			}

			if err := rootCommandeer.initialize(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return commandeer.run(ctx, cmd)
		},
	}

	commandeer.addFlags(cmd)
	commandeer.cmd = cmd

	return commandeer
}

func (b *buildCommandeer) addFlags(cmd *cobra.Command) {
	request := &b.request

	cmd.Flags().StringVar(&request.ExecutorImage, "executor", getInputString("executor", ""), "Image of the kaniko executor")
	cmd.Flags().BoolVar(&request.Cache, "cache", getInputBool("cache", false), "Enable layer caching")
	cmd.Flags().StringVar(&request.CacheRepository, "cache-repository", getInputString("cache-repository", ""), "Repository for cached layers")
	cmd.Flags().StringVar(&request.CacheTTL, "cache-ttl", getInputString("cache-ttl", ""), "Cache timeout, e.g. 24h")
	cmd.Flags().StringVar(&request.PushRetry, "push-retry", getInputString("push-retry", ""), "Number of push retries")
	cmd.Flags().StringArrayVar(&request.RegistryMirrors, "registry-mirror", getInputLines("registry-mirror"), "Registry mirror (repeatable)")
	cmd.Flags().StringVar(&request.Verbosity, "verbosity", getInputString("verbosity", ""), "Executor log level")
	cmd.Flags().StringArrayVar(&request.ExtraArgs, "kaniko-args", getInputLines("kaniko-args"), "Extra executor argument (repeatable)")
	cmd.Flags().StringArrayVar(&request.BuildArgs, "build-args", getInputLines("build-args"), "Build argument as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&request.Context, "context", getInputString("context", "."), "Build context directory")
	cmd.Flags().StringVar(&request.File, "file", getInputString("file", ""), "Path to the Dockerfile")
	cmd.Flags().StringArrayVar(&request.Labels, "labels", getInputLines("labels"), "Image label as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&request.Push, "push", getInputBool("push", false), "Push the image to the tags")
	cmd.Flags().StringArrayVar(&request.Tags, "tags", getInputLines("tags"), "Image tag (repeatable)")
	cmd.Flags().StringVar(&request.Target, "target", getInputString("target", ""), "Target stage to build")
	cmd.Flags().StringVarP(&b.namespace, "namespace", "n", getInputString("namespace", ""), "Kubernetes namespace of the build pod")
	cmd.Flags().StringVar(&b.backendName, "backend", getInputString("backend", ""), "Backend - \"local\", \"container\" or \"pod\"")
}

func (b *buildCommandeer) run(ctx context.Context, cmd *cobra.Command) error {
	loggerInstance := b.rootCommandeer.loggerInstance
	configuration := b.rootCommandeer.configuration

	if err := b.applyOverrides(configuration); err != nil {
		return errors.Wrap(err, "Failed to apply command line overrides")
	}

	loggerInstance.InfoWithCtx(ctx, "Building image",
		"version", version.Get(),
		"backend", configuration.Backend,
		"context", b.request.Context,
		"tags", b.request.Tags,
		"push", b.request.Push)

	recorder, err := metrics.NewRecorder(loggerInstance, &configuration.Metrics)
	if err != nil {
		return errors.Wrap(err, "Failed to create metrics recorder")
	}

	// pushed whatever the outcome, failed builds are counted too
	defer func() {
		if err := recorder.Push(context.Background()); err != nil {
			loggerInstance.WarnWith("Failed to push metrics", "err", errors.GetErrorStackString(err, 5))
		}
	}()

	buildOrchestrator, err := orchestrator.NewOrchestrator(loggerInstance, configuration, recorder, b.backendFactory)
	if err != nil {
		return errors.Wrap(err, "Failed to create orchestrator")
	}

	result, err := buildOrchestrator.Build(ctx, &b.request)
	if err != nil {
		return errors.Wrap(err, "Failed to build image")
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Digest) // nolint: errcheck

	if err := writeOutput(os.Getenv("GITHUB_OUTPUT"), "digest", result.Digest); err != nil {
		return errors.Wrap(err, "Failed to write digest output")
	}

	loggerInstance.InfoWithCtx(ctx, "Image built",
		"digest", result.Digest,
		"stageDuration", result.StageDuration.String(),
		"executeDuration", result.ExecuteDuration.String())

	return nil
}

func (b *buildCommandeer) applyOverrides(configuration *config.Config) error {
	if b.backendName != "" {
		backendKind := config.BackendKind(b.backendName)
		if !lo.Contains(config.BackendKinds, backendKind) {
			return errors.Errorf("Unknown backend %q, expected one of %v", b.backendName, config.BackendKinds)
		}

		configuration.Backend = backendKind
	}

	if b.namespace != "" {
		configuration.Kubernetes.Namespace = b.namespace
	}

	return nil
}

// writeOutput appends name=value to the step output file, if the runner provided one
func writeOutput(outputPath string, name string, value string) error {
	if outputPath == "" {
		return nil
	}

	outputFile, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "Failed to open output file %s", outputPath)
	}

	defer outputFile.Close() // nolint: errcheck

	if _, err := fmt.Fprintf(outputFile, "%s=%s\n", name, value); err != nil {
		return errors.Wrapf(err, "Failed to write output %s", name)
	}

	return nil
}

func getInputString(name string, defaultValue string) string {
	return common.GetEnvOrDefaultString(inputEnvName(name), defaultValue)
}

func getInputBool(name string, defaultValue bool) bool {
	return common.GetEnvOrDefaultBool(inputEnvName(name), defaultValue)
}

func getInputLines(name string) []string {
	return common.GetEnvOrDefaultLines(inputEnvName(name), nil)
}
