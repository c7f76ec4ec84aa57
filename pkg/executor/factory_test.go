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
	"path/filepath"
	"testing"

	"github.com/nuclio/kaniko-action/pkg/config"

	"github.com/stretchr/testify/suite"
)

type FactoryTestSuite struct {
	backendTestSuite
}

func (suite *FactoryTestSuite) TestNewLocalBackend() {
	suite.configuration.Backend = config.BackendKindLocal

	backend, err := NewBackend(suite.ctx, suite.logger, suite.configuration)
	suite.Require().NoError(err)
	suite.Require().Equal(config.BackendKindLocal, backend.GetKind())
	suite.Require().IsType(&Local{}, backend)
}

func (suite *FactoryTestSuite) TestNewPodBackendWithMissingKubeconfig() {
	suite.configuration.Backend = config.BackendKindPod
	suite.configuration.Kubernetes.Kubeconfig = filepath.Join(suite.tempDir, "no-such-kubeconfig")

	_, err := NewBackend(suite.ctx, suite.logger, suite.configuration)
	suite.Require().Error(err)
}

func (suite *FactoryTestSuite) TestUnsupportedBackend() {
	suite.configuration.Backend = "daemon"

	_, err := NewBackend(suite.ctx, suite.logger, suite.configuration)
	suite.Require().Error(err)
}

func TestFactoryTestSuite(t *testing.T) {
	suite.Run(t, new(FactoryTestSuite))
}
