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

package build

import (
	"path"
	"strings"

	"github.com/nuclio/kaniko-action/pkg/common"
)

const (
	DefaultRemoteInputDir  = "/kaniko-input"
	DefaultRemoteOutputDir = "/kaniko-output"
	DefaultRemoteAuthDir   = "/kaniko/.docker"

	// archive roots, see staging.Bundler
	ContextDirName     = "context"
	CredentialsDirName = "docker-config"

	DigestFileName = "digest"

	// printed after the digest so it always ends up on a line of its own
	DigestDelimiter = "--- kaniko-action digest end ---"
)

// RemotePaths are the fixed locations inside the remote build environment
type RemotePaths struct {
	InputDir  string
	OutputDir string
	AuthDir   string
}

// NewDefaultRemotePaths returns the paths used inside the executor debug image
func NewDefaultRemotePaths() RemotePaths {
	return RemotePaths{
		InputDir:  DefaultRemoteInputDir,
		OutputDir: DefaultRemoteOutputDir,
		AuthDir:   DefaultRemoteAuthDir,
	}
}

// ContextURI is the context as the executor sees it after the archive is unpacked
func (rp RemotePaths) ContextURI() string {
	return "dir://" + path.Join(rp.InputDir, ContextDirName) + "/"
}

func (rp RemotePaths) DigestFilePath() string {
	return path.Join(rp.OutputDir, DigestFileName)
}

// RemoteCommandPlan is an ordered list of shell commands, executed with && semantics
type RemoteCommandPlan struct {
	commands []string
}

// NewRemoteCommandPlan plans unpacking the staged archive (read from stdin), moving the
// credentials to where the executor reads registry auth, running the executor and
// printing the resulting digest
func NewRemoteCommandPlan(paths RemotePaths, executorBinary string, args []string) *RemoteCommandPlan {
	inputDir := common.ShellQuote(paths.InputDir)
	outputDir := common.ShellQuote(paths.OutputDir)
	authDir := common.ShellQuote(paths.AuthDir)
	credentialsDir := common.ShellQuote(path.Join(paths.InputDir, CredentialsDirName))
	digestFilePath := common.ShellQuote(paths.DigestFilePath())

	executorCommand := append([]string{
		common.ShellQuote(executorBinary),
		"--digest-file",
		digestFilePath,
	}, common.ShellQuoteAll(args)...)

	return &RemoteCommandPlan{
		commands: []string{
			"mkdir -p " + inputDir + " " + outputDir,
			"tar -xzf - -C " + inputDir,
			"rm -rf " + authDir + " && mv " + credentialsDir + " " + authDir,
			strings.Join(executorCommand, " "),
			"cat " + digestFilePath + " && echo && echo " + common.ShellQuote(DigestDelimiter),
		},
	}
}

// Commands returns a copy of the planned steps
func (rcp *RemoteCommandPlan) Commands() []string {
	return append([]string{}, rcp.commands...)
}

// String renders the plan as a single shell command line
func (rcp *RemoteCommandPlan) String() string {
	return strings.Join(rcp.commands, " && ")
}
