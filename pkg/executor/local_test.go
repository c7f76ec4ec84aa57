//go:build test_unit

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
	"strings"
	"testing"

	"github.com/nuclio/kaniko-action/pkg/builderrors"
	"github.com/nuclio/kaniko-action/pkg/cmdrunner"
	"github.com/nuclio/kaniko-action/pkg/common"
	"github.com/nuclio/kaniko-action/pkg/config"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

var testDigest = "sha256:" + strings.Repeat("a", 64)

// records its arguments and environment, and writes a digest where asked to
var fakeExecutorScript = `
digest_file=""
for arg in "$@"; do
	if [ "$previous" = "--digest-file" ]; then
		digest_file="$arg"
	fi
	previous="$arg"
done
echo "args: $*"
echo "DOCKER_CONFIG=$DOCKER_CONFIG"
printf '%s' '` + testDigest + `' > "$digest_file"
`

type backendTestSuite struct {
	suite.Suite
	logger         logger.Logger
	ctx            context.Context
	tempDir        string
	contextDir     string
	credentialsDir string
	configuration  *config.Config
}

func (suite *backendTestSuite) SetupTest() {
	var err error

	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.ctx = context.Background()
	suite.tempDir = suite.T().TempDir()

	suite.contextDir = filepath.Join(suite.tempDir, "workspace")
	suite.credentialsDir = filepath.Join(suite.tempDir, "dot-docker")

	suite.writeFile(filepath.Join(suite.contextDir, "Dockerfile"), "FROM alpine\n")
	suite.writeFile(filepath.Join(suite.credentialsDir, "config.json"), `{"auths":{}}`)

	reader, err := config.NewReader()
	suite.Require().NoError(err)

	suite.configuration = reader.GetDefaultConfiguration()
	suite.configuration.WorkDir = filepath.Join(suite.tempDir, "work")
	suite.Require().NoError(os.MkdirAll(suite.configuration.WorkDir, 0755))
}

func (suite *backendTestSuite) writeFile(path string, contents string) {
	suite.Require().NoError(os.MkdirAll(filepath.Dir(path), 0755))
	suite.Require().NoError(os.WriteFile(path, []byte(contents), 0644))
}

func (suite *backendTestSuite) getStageOptions() *StageOptions {
	return &StageOptions{
		ContextDir:     suite.contextDir,
		CredentialsDir: suite.credentialsDir,
		ExecutorImage:  "gcr.io/kaniko-project/executor:v1.9.1",
	}
}

type LocalTestSuite struct {
	backendTestSuite
}

func (suite *LocalTestSuite) TestStageExecuteTeardown() {
	scriptPath := filepath.Join(suite.tempDir, "executor.sh")
	suite.writeFile(scriptPath, fakeExecutorScript)
	suite.configuration.Local.ExecutorCommand = []string{"/bin/sh", scriptPath}

	shellRunner, err := cmdrunner.NewShellRunner(suite.logger)
	suite.Require().NoError(err)

	local, err := NewLocal(suite.logger, shellRunner, suite.configuration)
	suite.Require().NoError(err)
	suite.Require().Equal(config.BackendKindLocal, local.GetKind())

	stagedEnvironment, err := local.Stage(suite.ctx, suite.getStageOptions())
	suite.Require().NoError(err)
	suite.Require().Equal(StateReady, stagedEnvironment.Lifecycle.GetState())
	suite.Require().True(common.IsDir(stagedEnvironment.OutputDir))
	suite.Require().Equal(suite.configuration.WorkDir, filepath.Dir(stagedEnvironment.OutputDir))

	contextURI := local.GetContextURI(stagedEnvironment)
	suite.Require().Equal("dir://"+suite.contextDir+"/", contextURI)

	executeResult, err := local.Execute(suite.ctx, stagedEnvironment, []string{
		"--context", contextURI,
		"--no-push",
		"--label", "it's quoted",
	})
	suite.Require().NoError(err)
	suite.Require().Equal(StateCompleted, stagedEnvironment.Lifecycle.GetState())

	suite.Require().Contains(executeResult.Output, "args: --digest-file "+executeResult.DigestFilePath)
	suite.Require().Contains(executeResult.Output, "--context "+contextURI+" --no-push --label it's quoted")
	suite.Require().Contains(executeResult.Output, "DOCKER_CONFIG="+suite.credentialsDir)

	digestContents, err := os.ReadFile(executeResult.DigestFilePath)
	suite.Require().NoError(err)
	suite.Require().Equal(testDigest, string(digestContents))

	err = local.Teardown(suite.ctx, stagedEnvironment)
	suite.Require().NoError(err)
	suite.Require().False(common.FileExists(stagedEnvironment.OutputDir))
	suite.Require().True(stagedEnvironment.Lifecycle.IsTornDown())

	// idempotent
	suite.Require().NoError(local.Teardown(suite.ctx, stagedEnvironment))
}

func (suite *LocalTestSuite) TestExecuteFailureCarriesOutput() {
	suite.configuration.Local.ExecutorCommand = []string{"sh"}

	mockRunner := cmdrunner.NewMockRunner()
	mockRunner.
		On("Run", mock.Anything, mock.Anything, "%s", mock.Anything).
		Return(cmdrunner.RunResult{
			Output:   "\x1b[31mERROR\x1b[0m error building image",
			ExitCode: 1,
		}, errors.New("exit status 1")).
		Once()

	local, err := NewLocal(suite.logger, mockRunner, suite.configuration)
	suite.Require().NoError(err)

	stagedEnvironment, err := local.Stage(suite.ctx, suite.getStageOptions())
	suite.Require().NoError(err)

	executeResult, err := local.Execute(suite.ctx, stagedEnvironment, []string{"--no-push"})
	suite.Require().Error(err)
	suite.Require().True(builderrors.IsKind(err, builderrors.KindExecution))
	suite.Require().Equal("ERROR error building image", builderrors.OutputOf(err))
	suite.Require().Equal("ERROR error building image", executeResult.Output)
	suite.Require().Empty(executeResult.DigestFilePath)
	suite.Require().Equal(StateFailed, stagedEnvironment.Lifecycle.GetState())

	// the credentials are handed over through the environment
	runOptions := mockRunner.Calls[0].Arguments.Get(1).(*cmdrunner.RunOptions)
	suite.Require().Equal(suite.credentialsDir, runOptions.Env["DOCKER_CONFIG"])

	suite.Require().NoError(local.Teardown(suite.ctx, stagedEnvironment))
	mockRunner.AssertExpectations(suite.T())
}

func (suite *LocalTestSuite) TestStageMissingContext() {
	local, err := NewLocal(suite.logger, cmdrunner.NewMockRunner(), suite.configuration)
	suite.Require().NoError(err)

	stageOptions := suite.getStageOptions()
	stageOptions.ContextDir = filepath.Join(suite.tempDir, "nope")

	stagedEnvironment, err := local.Stage(suite.ctx, stageOptions)
	suite.Require().Error(err)
	suite.Require().True(builderrors.IsKind(err, builderrors.KindStaging))
	suite.Require().NotNil(stagedEnvironment)
	suite.Require().Empty(stagedEnvironment.OutputDir)
	suite.Require().NoError(local.Teardown(suite.ctx, stagedEnvironment))
}

func (suite *LocalTestSuite) TestStageExecutorNotFound() {
	suite.configuration.Local.ExecutorCommand = []string{filepath.Join(suite.tempDir, "no-such-executor")}

	local, err := NewLocal(suite.logger, cmdrunner.NewMockRunner(), suite.configuration)
	suite.Require().NoError(err)

	stagedEnvironment, err := local.Stage(suite.ctx, suite.getStageOptions())
	suite.Require().Error(err)
	suite.Require().True(builderrors.IsKind(err, builderrors.KindStaging))

	// partially staged, still torn down
	suite.Require().True(common.IsDir(stagedEnvironment.OutputDir))
	suite.Require().NoError(local.Teardown(suite.ctx, stagedEnvironment))
	suite.Require().False(common.FileExists(stagedEnvironment.OutputDir))
}

func (suite *LocalTestSuite) TestExecuteRequiresReady() {
	local, err := NewLocal(suite.logger, cmdrunner.NewMockRunner(), suite.configuration)
	suite.Require().NoError(err)

	_, err = local.Execute(suite.ctx, newStagedEnvironment(suite.getStageOptions()), nil)
	suite.Require().Error(err)
}

func (suite *LocalTestSuite) TestNewLocalRequiresCommand() {
	suite.configuration.Local.ExecutorCommand = nil

	_, err := NewLocal(suite.logger, cmdrunner.NewMockRunner(), suite.configuration)
	suite.Require().Error(err)
}

func TestLocalTestSuite(t *testing.T) {
	suite.Run(t, new(LocalTestSuite))
}
