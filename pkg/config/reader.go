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

package config

import (
	"io"
	"os"
	"time"

	"github.com/nuclio/kaniko-action/pkg/build"
	"github.com/nuclio/kaniko-action/pkg/common"

	"github.com/imdario/mergo"
	"github.com/nuclio/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

type Reader struct{}

func NewReader() (*Reader, error) {
	return &Reader{}, nil
}

// Read parses a YAML configuration and fills whatever it leaves unset from the defaults
func (r *Reader) Read(reader io.Reader, config *Config) error {
	configBytes, err := io.ReadAll(reader)
	if err != nil {
		return errors.Wrap(err, "Failed to read configuration")
	}

	if err := yaml.Unmarshal(configBytes, config); err != nil {
		return errors.Wrap(err, "Failed to unmarshal configuration")
	}

	if err := mergo.Merge(config, r.GetDefaultConfiguration()); err != nil {
		return errors.Wrap(err, "Failed to merge configuration with defaults")
	}

	return r.validate(config)
}

func (r *Reader) ReadFileOrDefault(configurationPath string) (*Config, error) {
	var configuration Config

	// if there's no configuration file, return a default configuration. otherwise try to parse it
	if configurationPath == "" || !common.FileExists(configurationPath) {
		return r.GetDefaultConfiguration(), nil
	}

	configurationFile, err := os.Open(configurationPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open configuration file: %s", configurationPath)
	}

	// close after
	defer configurationFile.Close() // nolint: errcheck

	if err := r.Read(configurationFile, &configuration); err != nil {
		return nil, errors.Wrapf(err, "Failed to read configuration file: %s", configurationPath)
	}

	return &configuration, nil
}

func (r *Reader) GetDefaultConfiguration() *Config {
	return &Config{
		Backend:         BackendKindPod,
		CredentialsDir:  "~/.docker",
		TeardownTimeout: metav1.Duration{Duration: time.Minute},
		Local: LocalConfig{
			ExecutorCommand: []string{"/kaniko/executor"},
		},
		Container: ContainerConfig{
			Shell:          "/busybox/sh",
			ExecutorBinary: "/kaniko/executor",
			InputDir:       build.DefaultRemoteInputDir,
			OutputDir:      build.DefaultRemoteOutputDir,
			AuthDir:        build.DefaultRemoteAuthDir,
		},
		Kubernetes: KubernetesConfig{
			HelperImage: "devodev/inotify:0.1.0",
			HelperResources: ResourceLimits{
				CPU:    "0.2",
				Memory: "10Mi",
			},
			BuildResources: ResourceLimits{
				CPU:    "1",
				Memory: "10Gi",
			},
			VolumeSizeLimits: VolumeSizeLimits{
				Ready:       "1Ki",
				Credentials: "1Gi",
				Context:     "100Gi",
			},
			PodNamePrefix:     "kaniko-action",
			ReadinessTimeout:  metav1.Duration{Duration: 5 * time.Minute},
			CompletionTimeout: metav1.Duration{Duration: time.Hour},
			PollInterval:      metav1.Duration{Duration: time.Second},
		},
		Metrics: MetricsConfig{
			JobName: "kaniko_action",
		},
	}
}

func (r *Reader) validate(config *Config) error {
	for _, backendKind := range BackendKinds {
		if config.Backend == backendKind {
			return nil
		}
	}

	return errors.Errorf("Unsupported backend: %s", config.Backend)
}
