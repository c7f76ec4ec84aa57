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

	"github.com/nuclio/kaniko-action/pkg/config"
)

// Backend runs the executor somewhere: a local process, a container or a pod
type Backend interface {

	// GetKind returns the kind of the backend
	GetKind() config.BackendKind

	// GetContextURI returns the build context location as the executor sees it
	GetContextURI(stagedEnvironment *StagedEnvironment) string

	// Stage prepares the build context and credentials. A non nil environment is returned whenever
	// something was created, even on error, so it can be torn down
	Stage(ctx context.Context, stageOptions *StageOptions) (*StagedEnvironment, error)

	// Execute runs the executor with the given arguments against a staged environment
	Execute(ctx context.Context, stagedEnvironment *StagedEnvironment, args []string) (*ExecuteResult, error)

	// Teardown removes every transient resource. It is idempotent
	Teardown(ctx context.Context, stagedEnvironment *StagedEnvironment) error
}

type StageOptions struct {
	ContextDir     string
	CredentialsDir string
	ExecutorImage  string
}

// StagedEnvironment holds whatever a backend created for a single run
type StagedEnvironment struct {
	Lifecycle *Lifecycle

	// output dir name, container name or pod name
	ID        string
	Namespace string

	ContextDir     string
	CredentialsDir string
	ExecutorImage  string

	// local output dir holding the digest file
	OutputDir string

	// staged context archive, for remote backends
	ArchivePath string
}

type ExecuteResult struct {

	// captured executor output, ANSI colors removed
	Output string

	// set if the executor wrote the digest to a local file
	DigestFilePath string

	// set if the digest was reported out of band (e.g. pod termination message)
	DigestOutput string
}

func newStagedEnvironment(stageOptions *StageOptions) *StagedEnvironment {
	return &StagedEnvironment{
		Lifecycle:      NewLifecycle(),
		ContextDir:     stageOptions.ContextDir,
		CredentialsDir: stageOptions.CredentialsDir,
		ExecutorImage:  stageOptions.ExecutorImage,
	}
}
