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

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nuclio/kaniko-action/pkg/config"

	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type RecorderTestSuite struct {
	suite.Suite
	logger logger.Logger
	ctx    context.Context
}

func (suite *RecorderTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.ctx = context.Background()
}

func (suite *RecorderTestSuite) TestObserve() {
	recorder, err := NewRecorder(suite.logger, &config.MetricsConfig{})
	suite.Require().NoError(err)

	recorder.ObservePhase("stage", config.BackendKindPod, 2*time.Second)
	recorder.ObservePhase("execute", config.BackendKindPod, time.Minute)
	recorder.IncreaseBuilds(config.BackendKindPod, ResultSucceeded)
	recorder.IncreaseBuilds(config.BackendKindPod, ResultSucceeded)
	recorder.IncreaseBuilds(config.BackendKindLocal, ResultFailed)

	suite.Require().Equal(2.0,
		testutil.ToFloat64(recorder.builds.WithLabelValues(string(config.BackendKindPod), ResultSucceeded)))
	suite.Require().Equal(1.0,
		testutil.ToFloat64(recorder.builds.WithLabelValues(string(config.BackendKindLocal), ResultFailed)))

	// one series per phase/backend pair
	suite.Require().Equal(2, testutil.CollectAndCount(recorder.phaseDuration))

	metricFamilies, err := recorder.GetGatherer().Gather()
	suite.Require().NoError(err)
	suite.Require().Len(metricFamilies, 2)
}

func (suite *RecorderTestSuite) TestPushDisabled() {
	recorder, err := NewRecorder(suite.logger, &config.MetricsConfig{})
	suite.Require().NoError(err)

	suite.Require().NoError(recorder.Push(suite.ctx))
}

func (suite *RecorderTestSuite) TestPush() {
	var pushedPath, pushedBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		pushedPath = r.URL.Path
		pushedBody = string(body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	recorder, err := NewRecorder(suite.logger, &config.MetricsConfig{
		PushGatewayURL: server.URL,
		JobName:        "kaniko_action",
	})
	suite.Require().NoError(err)

	recorder.IncreaseBuilds(config.BackendKindContainer, ResultSucceeded)

	err = recorder.Push(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Equal("/metrics/job/kaniko_action", pushedPath)
	suite.Require().NotEmpty(pushedBody)
}

func (suite *RecorderTestSuite) TestPushFailure() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	recorder, err := NewRecorder(suite.logger, &config.MetricsConfig{
		PushGatewayURL: server.URL,
		JobName:        "kaniko_action",
	})
	suite.Require().NoError(err)

	err = recorder.Push(suite.ctx)
	suite.Require().Error(err)
	suite.Require().True(strings.Contains(err.Error(), "Failed to push metrics"))
}

func TestRecorderTestSuite(t *testing.T) {
	suite.Run(t, new(RecorderTestSuite))
}
