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

package cmdrunner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// bounds the wait for output pipes to close once the process was killed
const waitDelay = 5 * time.Second

type ShellRunner struct {
	logger logger.Logger
	shell  string
}

func NewShellRunner(parentLogger logger.Logger) (*ShellRunner, error) {
	return &ShellRunner{
		logger: parentLogger.GetChild("runner"),
		shell:  "/bin/sh",
	}, nil
}

func (sr *ShellRunner) Run(ctx context.Context,
	runOptions *RunOptions,
	format string,
	vars ...interface{}) (RunResult, error) {

	// support missing runOptions for tests that send nil
	if runOptions == nil {
		runOptions = &RunOptions{}
	}

	// format the command
	formattedCommand := fmt.Sprintf(format, vars...)
	redactedCommand := Redact(runOptions.LogRedactions, formattedCommand)

	if !runOptions.LogOnlyOnFailure {
		sr.logger.DebugWithCtx(ctx, "Executing", "command", redactedCommand)
	}

	// create a command
	cmd := exec.CommandContext(ctx, sr.shell, "-c", formattedCommand)

	// on cancellation kill the shell together with its children, which would otherwise keep
	// the output pipes open until they exit by themselves
	setProcessGroupCancellation(cmd)
	cmd.WaitDelay = waitDelay

	// if there are runOptions, set them
	if runOptions.WorkingDir != nil {
		cmd.Dir = *runOptions.WorkingDir
	}

	// get environment variables if any
	if runOptions.Env != nil {
		cmd.Env = sr.getEnvFromOptions(runOptions)
	}

	if runOptions.Stdin != nil {
		cmd.Stdin = runOptions.Stdin
	}

	runResult := RunResult{
		ExitCode: 0,
	}

	if err := sr.runAndCaptureOutput(cmd, runOptions, &runResult); err != nil {

		// did the command fail because of an unsuccessful exit code
		if exitError, ok := err.(*exec.ExitError); ok {
			runResult.ExitCode = exitError.ExitCode()
		} else {
			runResult.ExitCode = -1
		}

		sr.logger.DebugWithCtx(ctx, "Failed to execute command",
			"command", redactedCommand,
			"output", runResult.Output,
			"stderr", runResult.Stderr,
			"exitCode", runResult.ExitCode,
			"err", err)

		return runResult, errors.Wrapf(err, "stdout:\n%s\nstderr:\n%s", runResult.Output, runResult.Stderr)
	}

	if !runOptions.LogOnlyOnFailure {
		sr.logger.DebugWithCtx(ctx, "Command executed successfully",
			"output", runResult.Output,
			"stderr", runResult.Stderr,
			"exitCode", runResult.ExitCode)
	}

	return runResult, nil
}

func (sr *ShellRunner) getEnvFromOptions(runOptions *RunOptions) []string {
	envs := os.Environ()

	for name, value := range runOptions.Env {
		envs = append(envs, fmt.Sprintf("%s=%s", name, value))
	}

	return envs
}

func (sr *ShellRunner) runAndCaptureOutput(cmd *exec.Cmd,
	runOptions *RunOptions,
	runResult *RunResult) error {

	switch runOptions.CaptureOutputMode {

	case CaptureOutputModeCombined:
		stdoutAndStderr, err := cmd.CombinedOutput()
		runResult.Output = Redact(runOptions.LogRedactions, string(stdoutAndStderr))
		return err

	case CaptureOutputModeStdout:
		var stdOut, stdErr bytes.Buffer
		cmd.Stdout = &stdOut
		cmd.Stderr = &stdErr

		err := cmd.Run()

		runResult.Output = Redact(runOptions.LogRedactions, stdOut.String())
		runResult.Stderr = Redact(runOptions.LogRedactions, stdErr.String())

		return err
	}

	return fmt.Errorf("Invalid output capture mode: %d", runOptions.CaptureOutputMode)
}

func Redact(redactions []string, runOutput string) string {
	if redactions == nil {
		return runOutput
	}

	var replacements []string

	for _, redactionField := range redactions {
		if redactionField == "" {
			continue
		}
		replacements = append(replacements, redactionField, "[redacted]")
	}

	replacer := strings.NewReplacer(replacements...)
	return replacer.Replace(runOutput)
}
