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
	"time"

	"github.com/nuclio/kaniko-action/pkg/config"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// Recorder collects per run metrics: how long every phase took and how the run ended
type Recorder struct {
	logger         logger.Logger
	configuration  *config.MetricsConfig
	metricRegistry *prometheus.Registry
	phaseDuration  *prometheus.HistogramVec
	builds         *prometheus.CounterVec
}

func NewRecorder(parentLogger logger.Logger, configuration *config.MetricsConfig) (*Recorder, error) {
	newRecorder := &Recorder{
		logger:         parentLogger.GetChild("metrics"),
		configuration:  configuration,
		metricRegistry: prometheus.NewRegistry(),
	}

	newRecorder.phaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kaniko_action_phase_duration_seconds",
		Help:    "Time it took to complete a build phase",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 16),
	}, []string{"phase", "backend"})

	if err := newRecorder.metricRegistry.Register(newRecorder.phaseDuration); err != nil {
		return nil, errors.Wrap(err, "Failed to register phase duration histogram")
	}

	newRecorder.builds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kaniko_action_builds_total",
		Help: "Number of builds, by backend and result",
	}, []string{"backend", "result"})

	if err := newRecorder.metricRegistry.Register(newRecorder.builds); err != nil {
		return nil, errors.Wrap(err, "Failed to register builds counter")
	}

	return newRecorder, nil
}

func (r *Recorder) ObservePhase(phase string, backendKind config.BackendKind, duration time.Duration) {
	r.phaseDuration.WithLabelValues(phase, string(backendKind)).Observe(duration.Seconds())
}

func (r *Recorder) IncreaseBuilds(backendKind config.BackendKind, result string) {
	r.builds.WithLabelValues(string(backendKind), result).Inc()
}

func (r *Recorder) GetGatherer() prometheus.Gatherer {
	return r.metricRegistry
}

// Push sends the collected metrics to the configured push gateway, if any
func (r *Recorder) Push(ctx context.Context) error {
	if r.configuration == nil || r.configuration.PushGatewayURL == "" {
		return nil
	}

	r.logger.DebugWithCtx(ctx, "Pushing metrics",
		"pushGatewayURL", r.configuration.PushGatewayURL,
		"jobName", r.configuration.JobName)

	// add rather than replace, so runs of different backends don't overwrite one another
	if err := push.New(r.configuration.PushGatewayURL, r.configuration.JobName).
		Gatherer(r.GetGatherer()).
		AddContext(ctx); err != nil {
		return errors.Wrap(err, "Failed to push metrics")
	}

	return nil
}
