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

	"github.com/nuclio/kaniko-action/pkg/cmdrunner"
	"github.com/nuclio/kaniko-action/pkg/common"
	"github.com/nuclio/kaniko-action/pkg/config"
	"github.com/nuclio/kaniko-action/pkg/dockerclient"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"k8s.io/client-go/kubernetes"
)

// NewBackend creates the backend configured by configuration.Backend
func NewBackend(ctx context.Context, parentLogger logger.Logger, configuration *config.Config) (Backend, error) {
	switch configuration.Backend {
	case config.BackendKindLocal:
		cmdRunner, err := cmdrunner.NewShellRunner(parentLogger)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create command runner")
		}

		return NewLocal(parentLogger, cmdRunner, configuration)

	case config.BackendKindContainer:
		dockerClient, err := dockerclient.NewShellClient(ctx, parentLogger, nil)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create docker client")
		}

		return NewContainer(parentLogger, dockerClient, configuration)

	case config.BackendKindPod:
		restConfig, err := common.GetClientConfig(common.GetKubeconfigPath(configuration.Kubernetes.Kubeconfig))
		if err != nil {
			return nil, errors.Wrap(err, "Failed to get kubernetes client configuration")
		}

		kubeClientSet, err := kubernetes.NewForConfig(restConfig)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create kubernetes client set")
		}

		return NewPod(parentLogger, kubeClientSet, newSPDYPodExecutor(restConfig, kubeClientSet), configuration)

	default:
		return nil, errors.Errorf("Unsupported backend: %s", configuration.Backend)
	}
}
