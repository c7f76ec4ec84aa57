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

package build

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RemoteCommandPlanTestSuite struct {
	suite.Suite
}

func (suite *RemoteCommandPlanTestSuite) TestDefaultPaths() {
	paths := NewDefaultRemotePaths()

	suite.Require().Equal("dir:///kaniko-input/context/", paths.ContextURI())
	suite.Require().Equal("/kaniko-output/digest", paths.DigestFilePath())
}

func (suite *RemoteCommandPlanTestSuite) TestCommandsOrder() {
	plan := NewRemoteCommandPlan(NewDefaultRemotePaths(),
		"/kaniko/executor",
		[]string{"--context", "dir:///kaniko-input/context/", "--no-push"})

	suite.Require().Equal([]string{
		"mkdir -p '/kaniko-input' '/kaniko-output'",
		"tar -xzf - -C '/kaniko-input'",
		"rm -rf '/kaniko/.docker' && mv '/kaniko-input/docker-config' '/kaniko/.docker'",
		"'/kaniko/executor' --digest-file '/kaniko-output/digest' '--context' 'dir:///kaniko-input/context/' '--no-push'",
		"cat '/kaniko-output/digest' && echo && echo '--- kaniko-action digest end ---'",
	}, plan.Commands())
}

func (suite *RemoteCommandPlanTestSuite) TestStringJoinsWithAnd() {
	plan := NewRemoteCommandPlan(RemotePaths{
		InputDir:  "/in",
		OutputDir: "/out",
		AuthDir:   "/auth",
	}, "executor", nil)

	suite.Require().Equal("mkdir -p '/in' '/out' && "+
		"tar -xzf - -C '/in' && "+
		"rm -rf '/auth' && mv '/in/docker-config' '/auth' && "+
		"'executor' --digest-file '/out/digest' && "+
		"cat '/out/digest' && echo && echo '--- kaniko-action digest end ---'", plan.String())
}

func (suite *RemoteCommandPlanTestSuite) TestArgumentsAreShellSafe() {
	plan := NewRemoteCommandPlan(NewDefaultRemotePaths(),
		"/kaniko/executor",
		[]string{"--label", "description=it's $(dangerous)"})

	suite.Require().Equal(
		`'/kaniko/executor' --digest-file '/kaniko-output/digest' '--label' 'description=it'\''s $(dangerous)'`,
		plan.Commands()[3])
}

func (suite *RemoteCommandPlanTestSuite) TestCommandsReturnsCopy() {
	plan := NewRemoteCommandPlan(NewDefaultRemotePaths(), "/kaniko/executor", nil)

	commands := plan.Commands()
	commands[0] = "rm -rf /"

	suite.Require().Equal("mkdir -p '/kaniko-input' '/kaniko-output'", plan.Commands()[0])
}

func TestRemoteCommandPlanTestSuite(t *testing.T) {
	suite.Run(t, new(RemoteCommandPlanTestSuite))
}
