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
	"context"
	"io"
)

type CaptureOutputMode int

const (
	CaptureOutputModeCombined CaptureOutputMode = iota
	CaptureOutputModeStdout
)

// RunOptions specifies options to CmdRunner.Run
type RunOptions struct {
	WorkingDir *string

	// piped into the command's stdin, e.g. a staged context archive
	Stdin io.Reader

	// added on top of the current process environment
	Env map[string]string

	LogRedactions     []string
	CaptureOutputMode CaptureOutputMode
	LogOnlyOnFailure  bool
}

// RunResult holds the outcome of a finished command
type RunResult struct {
	Output   string
	Stderr   string
	ExitCode int
}

// CmdRunner specifies the interface to an underlying command runner
type CmdRunner interface {

	// Run runs a command, given options. The command is killed once the context is done
	Run(ctx context.Context, runOptions *RunOptions, format string, vars ...interface{}) (RunResult, error)
}
