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

package common

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type k8sTestSuite struct {
	suite.Suite
}

func (suite *k8sTestSuite) TestResolveDefaultNamespace() {
	suite.Require().Equal("default", ResolveDefaultNamespace(""))
	suite.Require().Equal("builds", ResolveDefaultNamespace("builds"))
}

func (suite *k8sTestSuite) TestGetKubeconfigPath() {
	suite.Require().Equal("/explicit/config", GetKubeconfigPath("/explicit/config"))

	suite.T().Setenv("KUBECONFIG", "/from/env")
	suite.Require().Equal("/from/env", GetKubeconfigPath(""))
}

func TestK8sTestSuite(t *testing.T) {
	suite.Run(t, new(k8sTestSuite))
}
