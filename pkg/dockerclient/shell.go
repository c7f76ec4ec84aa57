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

package dockerclient

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/nuclio/kaniko-action/pkg/cmdrunner"
	"github.com/nuclio/kaniko-action/pkg/common"

	"github.com/docker/distribution/reference"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// RestrictedNameChars collects the characters allowed to represent a container name.
const restrictedNameChars = `[a-zA-Z0-9][a-zA-Z0-9_.-]`

// RestrictedNamePattern is a regular expression to validate names against the collection of restricted characters.
// taken from moby and used to validate names (containers, entrypoints)
var restrictedNameRegex = regexp.MustCompile(`^/?` + restrictedNameChars + `+$`)

var containerIDRegex = regexp.MustCompile(`^[\w+-\.]+$`)

// loose regex, today just prohibit whitespaces
var entrypointRegex = regexp.MustCompile(`^[\S]+$`)

// this is an open issue https://github.com/kubernetes/kubernetes/issues/53201#issuecomment-534647130
// taking the loose approach,
var envVarNameRegex = regexp.MustCompile(`^[^=\s]+$`)

// ShellClient is a docker client that uses the shell to communicate with docker
type ShellClient struct {
	logger    logger.Logger
	cmdRunner cmdrunner.CmdRunner
}

// NewShellClient creates a new docker client
func NewShellClient(ctx context.Context,
	parentLogger logger.Logger,
	runner cmdrunner.CmdRunner) (*ShellClient, error) {
	var err error

	newClient := &ShellClient{
		logger:    parentLogger.GetChild("docker"),
		cmdRunner: runner,
	}

	// set cmd runner
	if newClient.cmdRunner == nil {
		newClient.cmdRunner, err = cmdrunner.NewShellRunner(newClient.logger)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create command runner")
		}
	}

	// verify
	if _, err = newClient.cmdRunner.Run(ctx, nil, "docker version"); err != nil {
		return nil, errors.Wrap(err, "No docker client found")
	}

	return newClient, nil
}

// PullImage pulls an image from a remote docker repository
func (c *ShellClient) PullImage(ctx context.Context, imageURL string) error {
	c.logger.InfoWithCtx(ctx, "Pulling image", "imageURL", imageURL)

	if _, err := reference.Parse(imageURL); err != nil {
		return errors.Wrap(err, "Invalid image URL")
	}

	_, err := c.runCommand(ctx, nil, "docker pull %s", common.ShellQuote(imageURL))
	return err
}

// RunContainer runs a container in the foreground, given run options
func (c *ShellClient) RunContainer(ctx context.Context,
	imageName string,
	runOptions *RunOptions) (string, error) {
	c.logger.DebugWithCtx(ctx, "Running container",
		"imageName", imageName,
		"containerName", runOptions.ContainerName,
		"entrypoint", runOptions.Entrypoint)

	// validate the given run options against malicious contents
	if err := c.validateRunOptions(imageName, runOptions); err != nil {
		return "", errors.Wrap(err, "Invalid run options passed")
	}

	var runArguments []string

	if runOptions.Interactive {
		runArguments = append(runArguments, "-i")
	}

	if runOptions.Remove {
		runArguments = append(runArguments, "--rm")
	}

	if runOptions.ContainerName != "" {
		runArguments = append(runArguments, "--name", runOptions.ContainerName)
	}

	if runOptions.Entrypoint != "" {
		runArguments = append(runArguments, "--entrypoint", runOptions.Entrypoint)
	}

	// sorted, so the same options always produce the same command
	envNames := make([]string, 0, len(runOptions.Env))
	for envName := range runOptions.Env {
		envNames = append(envNames, envName)
	}
	sort.Strings(envNames)

	for _, envName := range envNames {
		runArguments = append(runArguments,
			"--env",
			common.ShellQuote(fmt.Sprintf("%s=%s", envName, runOptions.Env[envName])))
	}

	runArguments = append(runArguments, common.ShellQuote(imageName))

	if runOptions.Command != "" {
		runArguments = append(runArguments, runOptions.Command)
	}

	runResult, err := c.runCommand(ctx,
		&cmdrunner.RunOptions{
			CaptureOutputMode: cmdrunner.CaptureOutputModeStdout,
			Stdin:             runOptions.Stdin,
		},
		"docker run %s",
		strings.Join(runArguments, " "))

	// if user requested, set stderr
	if runOptions.Stderr != nil {
		*runOptions.Stderr = runResult.Stderr
	}

	if err != nil {
		c.logger.WarnWithCtx(ctx, "Failed to run container",
			"err", err.Error(),
			"exitCode", runResult.ExitCode,
			"stderr", c.getLastNonEmptyLine(strings.Split(runResult.Stderr, "\n"), 0))

		// stdout is still returned so callers can report what the container printed
		return runResult.Output, errors.Wrap(err, "Failed to run container")
	}

	return runResult.Output, nil
}

// RemoveContainer removes a container given a container ID or name
func (c *ShellClient) RemoveContainer(ctx context.Context, containerID string) error {
	c.logger.DebugWithCtx(ctx, "Removing container", "containerID", containerID)

	// containerID is ID or name
	if !containerIDRegex.MatchString(containerID) && !restrictedNameRegex.MatchString(containerID) {
		return errors.New("Invalid container ID name in remove container")
	}

	runResult, err := c.runCommand(ctx,
		&cmdrunner.RunOptions{
			CaptureOutputMode: cmdrunner.CaptureOutputModeCombined,
		},
		"docker rm -f %s",
		containerID)
	if err != nil {

		// already gone (e.g. removed by --rm)
		if strings.Contains(runResult.Output, "No such container") {
			c.logger.DebugWithCtx(ctx, "Container already removed", "containerID", containerID)
			return nil
		}

		return errors.Wrapf(err, "Failed to remove container %s", containerID)
	}

	return nil
}

func (c *ShellClient) runCommand(ctx context.Context,
	runOptions *cmdrunner.RunOptions,
	format string,
	vars ...interface{}) (cmdrunner.RunResult, error) {

	// if user didn't pass any, capture stdout only
	if runOptions == nil {
		runOptions = &cmdrunner.RunOptions{
			CaptureOutputMode: cmdrunner.CaptureOutputModeStdout,
		}
	}

	return c.cmdRunner.Run(ctx, runOptions, format, vars...)
}

func (c *ShellClient) getLastNonEmptyLine(lines []string, offset int) string {

	numLines := len(lines)

	// protect ourselves from overflows
	if offset >= numLines {
		offset = numLines - 1
	} else if offset < 0 {
		offset = 0
	}

	// iterate backwards over the lines
	for idx := numLines - 1 - offset; idx >= 0; idx-- {
		if lines[idx] != "" {
			return lines[idx]
		}
	}

	return ""
}

func (c *ShellClient) validateRunOptions(imageName string, runOptions *RunOptions) error {
	if _, err := reference.Parse(imageName); err != nil {
		return errors.Wrap(err, "Invalid image name passed")
	}

	if runOptions.ContainerName != "" && !restrictedNameRegex.MatchString(runOptions.ContainerName) {
		return errors.New("Invalid container name")
	}

	if runOptions.Entrypoint != "" && !entrypointRegex.MatchString(runOptions.Entrypoint) {
		return errors.New("Invalid entrypoint")
	}

	for envVarName := range runOptions.Env {
		if !envVarNameRegex.MatchString(envVarName) {
			return errors.Errorf("Invalid env var name: %s", envVarName)
		}
	}

	if runOptions.Stdin != nil && !runOptions.Interactive {
		return errors.New("Stdin requires an interactive container")
	}

	return nil
}
