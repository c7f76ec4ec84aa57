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
	"io"

	"github.com/nuclio/errors"
	v1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
)

// podExecutor runs a command inside a running container of a pod
type podExecutor interface {
	Exec(ctx context.Context,
		namespace string,
		podName string,
		containerName string,
		command []string,
		stdin io.Reader,
		stdout io.Writer,
		stderr io.Writer) error
}

type spdyPodExecutor struct {
	restConfig    *rest.Config
	kubeClientSet kubernetes.Interface
}

func newSPDYPodExecutor(restConfig *rest.Config, kubeClientSet kubernetes.Interface) *spdyPodExecutor {
	return &spdyPodExecutor{
		restConfig:    restConfig,
		kubeClientSet: kubeClientSet,
	}
}

func (spe *spdyPodExecutor) Exec(ctx context.Context,
	namespace string,
	podName string,
	containerName string,
	command []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer) error {

	request := spe.kubeClientSet.
		CoreV1().
		RESTClient().
		Post().
		Resource("pods").
		Namespace(namespace).
		Name(podName).
		SubResource("exec").
		VersionedParams(&v1.PodExecOptions{
			Container: containerName,
			Command:   command,
			Stdin:     stdin != nil,
			Stdout:    stdout != nil,
			Stderr:    stderr != nil,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(spe.restConfig, "POST", request.URL())
	if err != nil {
		return errors.Wrap(err, "Failed to create pod executor")
	}

	if err := executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}); err != nil {
		return errors.Wrapf(err, "Failed to execute in container %s of pod %s", containerName, podName)
	}

	return nil
}
