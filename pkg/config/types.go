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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type BackendKind string

const (
	BackendKindLocal     BackendKind = "local"
	BackendKindContainer BackendKind = "container"
	BackendKindPod       BackendKind = "pod"
)

// BackendKinds lists every supported backend, in the order they are documented
var BackendKinds = []BackendKind{
	BackendKindLocal,
	BackendKindContainer,
	BackendKindPod,
}

type Config struct {
	Backend BackendKind `json:"backend,omitempty"`

	// transient outputs (digest files, archives) are created under this directory
	WorkDir string `json:"workDir,omitempty"`

	// registry credentials, a docker config directory holding config.json
	CredentialsDir string `json:"credentialsDir,omitempty"`

	// bounds cleanup of the transient resources, which runs even when the build is cancelled
	TeardownTimeout metav1.Duration `json:"teardownTimeout,omitempty"`

	Local      LocalConfig      `json:"local,omitempty"`
	Container  ContainerConfig  `json:"container,omitempty"`
	Kubernetes KubernetesConfig `json:"kubernetes,omitempty"`
	Metrics    MetricsConfig    `json:"metrics,omitempty"`
}

type LocalConfig struct {

	// the executor command prefix, e.g. ["/kaniko/executor"] or
	// ["go", "run", "github.com/GoogleContainerTools/kaniko/cmd/executor@v1.9.1"]
	ExecutorCommand []string `json:"executorCommand,omitempty"`
}

type ContainerConfig struct {
	Shell          string `json:"shell,omitempty"`
	ExecutorBinary string `json:"executorBinary,omitempty"`
	PullImage      bool   `json:"pullImage,omitempty"`
	InputDir       string `json:"inputDir,omitempty"`
	OutputDir      string `json:"outputDir,omitempty"`
	AuthDir        string `json:"authDir,omitempty"`
}

type ResourceLimits struct {
	CPU    string `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
}

type VolumeSizeLimits struct {
	Ready       string `json:"ready,omitempty"`
	Credentials string `json:"credentials,omitempty"`
	Context     string `json:"context,omitempty"`
}

type KubernetesConfig struct {

	// "@selfNamespace" resolves to the namespace of the running pod
	Namespace  string `json:"namespace,omitempty"`
	Kubeconfig string `json:"kubeconfig,omitempty"`

	// runs "inotifywait" until the ready file is created
	HelperImage        string           `json:"helperImage,omitempty"`
	HelperResources    ResourceLimits   `json:"helperResources,omitempty"`
	BuildResources     ResourceLimits   `json:"buildResources,omitempty"`
	VolumeSizeLimits   VolumeSizeLimits `json:"volumeSizeLimits,omitempty"`
	ServiceAccountName string           `json:"serviceAccountName,omitempty"`
	PodNamePrefix      string           `json:"podNamePrefix,omitempty"`
	ReadinessTimeout   metav1.Duration  `json:"readinessTimeout,omitempty"`
	CompletionTimeout  metav1.Duration  `json:"completionTimeout,omitempty"`
	PollInterval       metav1.Duration  `json:"pollInterval,omitempty"`
}

type MetricsConfig struct {

	// when set, collected metrics are pushed here once the run ends
	PushGatewayURL string `json:"pushGatewayURL,omitempty"`
	JobName        string `json:"jobName,omitempty"`
}
