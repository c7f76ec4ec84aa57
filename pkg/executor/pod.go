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
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nuclio/kaniko-action/pkg/build"
	"github.com/nuclio/kaniko-action/pkg/builderrors"
	"github.com/nuclio/kaniko-action/pkg/common"
	"github.com/nuclio/kaniko-action/pkg/config"
	"github.com/nuclio/kaniko-action/pkg/staging"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
)

const (
	helperContainerName = "prepare"
	buildContainerName  = "build"

	readyVolumeName       = "ready"
	credentialsVolumeName = "docker-config"
	contextVolumeName     = "context"

	readyDir      = "/ready"
	readyFile     = "/ready/yes"
	podAuthDir    = "/kaniko/.docker"
	podContextURI = "dir:///context/"

	// the executor writes the digest here, so it can be read back as the termination message
	terminationMessagePath = "/dev/termination-log"
)

// Pod runs the executor in a pod. A helper init container holds the pod until the staged
// archive has been streamed into the shared volumes and the ready file was created
type Pod struct {
	logger          logger.Logger
	kubeClientSet   kubernetes.Interface
	podExecutor     podExecutor
	bundler         *staging.Bundler
	configuration   *config.Config
	helperResources v1.ResourceList
	buildResources  v1.ResourceList
	volumeSizes     map[string]resource.Quantity
}

func NewPod(parentLogger logger.Logger,
	kubeClientSet kubernetes.Interface,
	podExecutor podExecutor,
	configuration *config.Config) (*Pod, error) {
	var err error

	loggerInstance := parentLogger.GetChild("pod")

	newPod := &Pod{
		logger:        loggerInstance,
		kubeClientSet: kubeClientSet,
		podExecutor:   podExecutor,
		bundler:       staging.NewBundler(loggerInstance),
		configuration: configuration,
		volumeSizes:   map[string]resource.Quantity{},
	}

	kubernetesConfig := configuration.Kubernetes

	if newPod.helperResources, err = newPod.parseResourceLimits(kubernetesConfig.HelperResources); err != nil {
		return nil, errors.Wrap(err, "Failed to parse helper container resources")
	}

	if newPod.buildResources, err = newPod.parseResourceLimits(kubernetesConfig.BuildResources); err != nil {
		return nil, errors.Wrap(err, "Failed to parse build container resources")
	}

	for volumeName, sizeLimit := range map[string]string{
		readyVolumeName:       kubernetesConfig.VolumeSizeLimits.Ready,
		credentialsVolumeName: kubernetesConfig.VolumeSizeLimits.Credentials,
		contextVolumeName:     kubernetesConfig.VolumeSizeLimits.Context,
	} {
		if sizeLimit == "" {
			continue
		}

		quantity, err := resource.ParseQuantity(sizeLimit)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse size limit of volume %s", volumeName)
		}

		newPod.volumeSizes[volumeName] = quantity
	}

	return newPod, nil
}

func (p *Pod) GetKind() config.BackendKind {
	return config.BackendKindPod
}

func (p *Pod) GetContextURI(stagedEnvironment *StagedEnvironment) string {
	return podContextURI
}

// Stage archives the context and credentials locally. The pod is created on Execute, once the
// executor arguments are known
func (p *Pod) Stage(ctx context.Context, stageOptions *StageOptions) (*StagedEnvironment, error) {
	stagedEnvironment := newStagedEnvironment(stageOptions)
	stagedEnvironment.Namespace = common.ResolveDefaultNamespace(p.configuration.Kubernetes.Namespace)

	archiveName := p.configuration.Kubernetes.PodNamePrefix + "-" + xid.New().String() + ".tar.gz"
	stagedEnvironment.ArchivePath = filepath.Join(p.getWorkDir(), archiveName)

	if err := p.bundler.WriteFile(ctx,
		stagedEnvironment.ArchivePath,
		stageOptions.ContextDir,
		stageOptions.CredentialsDir); err != nil {
		return stagedEnvironment, builderrors.NewStagingError(err, "Failed to stage build context").
			WithResource(stagedEnvironment.ArchivePath)
	}

	if err := stagedEnvironment.Lifecycle.Transition(StateContextStaged); err != nil {
		return stagedEnvironment, errors.Wrap(err, "Failed to mark context as staged")
	}

	return stagedEnvironment, nil
}

func (p *Pod) Execute(ctx context.Context,
	stagedEnvironment *StagedEnvironment,
	args []string) (*ExecuteResult, error) {

	if err := stagedEnvironment.Lifecycle.require(StateContextStaged); err != nil {
		return nil, errors.Wrap(err, "Pod environment is not staged")
	}

	if err := p.createAndPrepare(ctx, stagedEnvironment, args); err != nil {
		return nil, err
	}

	if err := stagedEnvironment.Lifecycle.Transition(StateRunning); err != nil {
		return nil, errors.Wrap(err, "Failed to mark pod as running")
	}

	var completedPod *v1.Pod
	var buildLogs strings.Builder

	errGroup, errGroupCtx := errgroup.WithContext(ctx)

	errGroup.Go(func() error {
		p.followBuildLogs(errGroupCtx, stagedEnvironment, &buildLogs)
		return nil
	})

	errGroup.Go(func() error {
		var err error

		completedPod, err = p.waitForCompletion(errGroupCtx, stagedEnvironment)
		return err
	})

	err := errGroup.Wait()

	executeResult := &ExecuteResult{
		Output: buildLogs.String(),
	}

	if err != nil {
		stagedEnvironment.Lifecycle.Transition(StateFailed) // nolint: errcheck

		return executeResult, builderrors.NewExecutionError(err, "Failed waiting for pod to complete").
			WithOutput(executeResult.Output).
			WithResource(stagedEnvironment.ID)
	}

	buildState := p.getBuildContainerTerminatedState(completedPod)

	if completedPod.Status.Phase != v1.PodSucceeded || buildState == nil || buildState.ExitCode != 0 {
		stagedEnvironment.Lifecycle.Transition(StateFailed) // nolint: errcheck

		exitCode := int32(-1)
		if buildState != nil {
			exitCode = buildState.ExitCode
		}

		return executeResult, builderrors.NewExecutionError(nil,
			"Pod ended in phase %s, executor exit code %d", completedPod.Status.Phase, exitCode).
			WithOutput(executeResult.Output).
			WithResource(stagedEnvironment.ID)
	}

	stagedEnvironment.Lifecycle.Transition(StateCompleted) // nolint: errcheck

	executeResult.DigestOutput = buildState.Message
	return executeResult, nil
}

func (p *Pod) Teardown(ctx context.Context, stagedEnvironment *StagedEnvironment) error {
	if stagedEnvironment == nil || stagedEnvironment.Lifecycle.IsTornDown() {
		return nil
	}

	defer stagedEnvironment.Lifecycle.Transition(StateTornDown) // nolint: errcheck

	var teardownErr error

	// only set once the pod was created
	if stagedEnvironment.ID != "" {
		p.logger.DebugWithCtx(ctx, "Deleting pod",
			"namespace", stagedEnvironment.Namespace,
			"podName", stagedEnvironment.ID)

		err := p.kubeClientSet.
			CoreV1().
			Pods(stagedEnvironment.Namespace).
			Delete(ctx, stagedEnvironment.ID, metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			teardownErr = builderrors.NewTeardownError(err, "Failed to delete pod").
				WithResource(stagedEnvironment.ID)
		}
	}

	if stagedEnvironment.ArchivePath != "" {
		if err := os.Remove(stagedEnvironment.ArchivePath); err != nil && !os.IsNotExist(err) && teardownErr == nil {
			teardownErr = builderrors.NewTeardownError(err, "Failed to remove staged archive").
				WithResource(stagedEnvironment.ArchivePath)
		}
	}

	return teardownErr
}

// createAndPrepare creates the pod, streams the archive into it and releases the helper
func (p *Pod) createAndPrepare(ctx context.Context, stagedEnvironment *StagedEnvironment, args []string) error {
	podSpec := p.compilePod(stagedEnvironment, args)

	p.logger.DebugWithCtx(ctx, "Creating pod",
		"namespace", stagedEnvironment.Namespace,
		"podName", podSpec.Name)

	createdPod, err := p.kubeClientSet.
		CoreV1().
		Pods(stagedEnvironment.Namespace).
		Create(ctx, podSpec, metav1.CreateOptions{})
	if err != nil {
		return builderrors.NewStagingError(err, "Failed to create pod").WithResource(podSpec.Name)
	}

	stagedEnvironment.ID = createdPod.Name

	if err := p.waitForHelperRunning(ctx, stagedEnvironment); err != nil {
		return builderrors.NewStagingError(err, "Pod did not become ready").WithResource(stagedEnvironment.ID)
	}

	archiveFile, err := os.Open(stagedEnvironment.ArchivePath)
	if err != nil {
		return builderrors.NewStagingError(err, "Failed to open staged archive").
			WithResource(stagedEnvironment.ArchivePath)
	}
	defer archiveFile.Close() // nolint: errcheck

	p.logger.InfoWithCtx(ctx, "Copying build context into pod", "podName", stagedEnvironment.ID)

	if err := p.execInHelper(ctx, stagedEnvironment, []string{"tar", "-xzf", "-", "-C", "/"}, archiveFile); err != nil {
		return builderrors.NewStagingError(err, "Failed to copy build context into pod").
			WithResource(stagedEnvironment.ID)
	}

	if err := p.execInHelper(ctx, stagedEnvironment, []string{"touch", readyFile}, nil); err != nil {
		return builderrors.NewStagingError(err, "Failed to signal pod readiness").
			WithResource(stagedEnvironment.ID)
	}

	if err := stagedEnvironment.Lifecycle.Transition(StateReady); err != nil {
		return errors.Wrap(err, "Failed to mark pod as ready")
	}

	return nil
}

func (p *Pod) execInHelper(ctx context.Context,
	stagedEnvironment *StagedEnvironment,
	command []string,
	stdin io.Reader) error {
	var stdout, stderr bytes.Buffer

	if err := p.podExecutor.Exec(ctx,
		stagedEnvironment.Namespace,
		stagedEnvironment.ID,
		helperContainerName,
		command,
		stdin,
		&stdout,
		&stderr); err != nil {
		return errors.Wrapf(err, "Command %s failed: %s", command[0], strings.TrimSpace(stderr.String()))
	}

	return nil
}

func (p *Pod) waitForHelperRunning(ctx context.Context, stagedEnvironment *StagedEnvironment) error {
	p.logger.DebugWithCtx(ctx, "Waiting for helper container to run",
		"podName", stagedEnvironment.ID,
		"timeout", p.configuration.Kubernetes.ReadinessTimeout.Duration)

	return wait.PollUntilContextTimeout(ctx,
		p.getPollInterval(),
		p.configuration.Kubernetes.ReadinessTimeout.Duration,
		true,
		func(ctx context.Context) (bool, error) {
			pod, err := p.getPod(ctx, stagedEnvironment)
			if err != nil {
				return false, err
			}

			if pod.Status.Phase == v1.PodFailed {
				return false, errors.New("Pod failed before becoming ready")
			}

			for _, containerStatus := range pod.Status.InitContainerStatuses {
				if containerStatus.Name != helperContainerName {
					continue
				}

				if containerStatus.State.Terminated != nil {
					return false, errors.Errorf("Helper container terminated with exit code %d",
						containerStatus.State.Terminated.ExitCode)
				}

				return containerStatus.State.Running != nil, nil
			}

			return false, nil
		})
}

func (p *Pod) waitForCompletion(ctx context.Context, stagedEnvironment *StagedEnvironment) (*v1.Pod, error) {
	var completedPod *v1.Pod

	p.logger.DebugWithCtx(ctx, "Waiting for pod to complete",
		"podName", stagedEnvironment.ID,
		"timeout", p.configuration.Kubernetes.CompletionTimeout.Duration)

	err := wait.PollUntilContextTimeout(ctx,
		p.getPollInterval(),
		p.configuration.Kubernetes.CompletionTimeout.Duration,
		true,
		func(ctx context.Context) (bool, error) {
			pod, err := p.getPod(ctx, stagedEnvironment)
			if err != nil {
				return false, err
			}

			switch pod.Status.Phase {
			case v1.PodSucceeded, v1.PodFailed:
				completedPod = pod
				return true, nil
			}

			return false, nil
		})
	if err != nil {
		return nil, errors.Wrap(err, "Pod did not complete")
	}

	return completedPod, nil
}

// followBuildLogs streams the build container logs once it started. Logs are best effort, failures
// are only logged
func (p *Pod) followBuildLogs(ctx context.Context, stagedEnvironment *StagedEnvironment, output *strings.Builder) {
	err := wait.PollUntilContextTimeout(ctx,
		p.getPollInterval(),
		p.configuration.Kubernetes.CompletionTimeout.Duration,
		true,
		func(ctx context.Context) (bool, error) {
			pod, err := p.getPod(ctx, stagedEnvironment)
			if err != nil {
				return false, nil
			}

			if pod.Status.Phase == v1.PodSucceeded || pod.Status.Phase == v1.PodFailed {
				return true, nil
			}

			for _, containerStatus := range pod.Status.ContainerStatuses {
				if containerStatus.Name == buildContainerName {
					return containerStatus.State.Running != nil || containerStatus.State.Terminated != nil, nil
				}
			}

			return false, nil
		})
	if err != nil {
		p.logger.DebugWithCtx(ctx, "Build container never started, not following logs", "err", err.Error())
		return
	}

	logStream, err := p.kubeClientSet.
		CoreV1().
		Pods(stagedEnvironment.Namespace).
		GetLogs(stagedEnvironment.ID, &v1.PodLogOptions{
			Container: buildContainerName,
			Follow:    true,
		}).
		Stream(ctx)
	if err != nil {
		p.logger.WarnWithCtx(ctx, "Failed to stream build logs", "err", err.Error())
		return
	}
	defer logStream.Close() // nolint: errcheck

	scanner := bufio.NewScanner(logStream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {

		// remove ansi color characters generated automatically by kaniko
		logLine := common.RemoveANSIColorsFromString(scanner.Text())

		p.logger.InfoWithCtx(ctx, logLine, "podName", stagedEnvironment.ID)
		output.WriteString(logLine)
		output.WriteString("\n")
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		p.logger.WarnWithCtx(ctx, "Build log stream ended with error", "err", err.Error())
	}
}

func (p *Pod) getPod(ctx context.Context, stagedEnvironment *StagedEnvironment) (*v1.Pod, error) {
	pod, err := p.kubeClientSet.
		CoreV1().
		Pods(stagedEnvironment.Namespace).
		Get(ctx, stagedEnvironment.ID, metav1.GetOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get pod")
	}

	return pod, nil
}

func (p *Pod) getBuildContainerTerminatedState(pod *v1.Pod) *v1.ContainerStateTerminated {
	for _, containerStatus := range pod.Status.ContainerStatuses {
		if containerStatus.Name == buildContainerName {
			return containerStatus.State.Terminated
		}
	}

	return nil
}

func (p *Pod) compilePod(stagedEnvironment *StagedEnvironment, args []string) *v1.Pod {
	podName := p.configuration.Kubernetes.PodNamePrefix + "-" + xid.New().String()

	readyMount := v1.VolumeMount{Name: readyVolumeName, MountPath: readyDir}
	contextMount := v1.VolumeMount{Name: contextVolumeName, MountPath: "/" + build.ContextDirName}

	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      podName,
			Namespace: stagedEnvironment.Namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":       "kaniko-action",
				"app.kubernetes.io/managed-by": "kaniko-action",
			},
		},
		Spec: v1.PodSpec{
			InitContainers: []v1.Container{
				{
					Name:    helperContainerName,
					Image:   p.configuration.Kubernetes.HelperImage,
					Command: []string{"inotifywait", "-e", "create", readyDir},
					Resources: v1.ResourceRequirements{
						Limits: p.helperResources,
					},
					VolumeMounts: []v1.VolumeMount{
						readyMount,
						{Name: credentialsVolumeName, MountPath: "/" + build.CredentialsDirName},
						contextMount,
					},
				},
			},
			Containers: []v1.Container{
				{
					Name:  buildContainerName,
					Image: stagedEnvironment.ExecutorImage,
					Args:  append([]string{"--digest-file", terminationMessagePath}, args...),
					Resources: v1.ResourceRequirements{
						Limits: p.buildResources,
					},
					TerminationMessagePath:   terminationMessagePath,
					TerminationMessagePolicy: v1.TerminationMessageReadFile,
					VolumeMounts: []v1.VolumeMount{
						{Name: credentialsVolumeName, MountPath: podAuthDir},
						contextMount,
					},
				},
			},
			Volumes: []v1.Volume{
				p.compileEmptyDirVolume(readyVolumeName),
				p.compileEmptyDirVolume(credentialsVolumeName),
				p.compileEmptyDirVolume(contextVolumeName),
			},
			ServiceAccountName: p.configuration.Kubernetes.ServiceAccountName,
			RestartPolicy:      v1.RestartPolicyNever,
		},
	}
}

func (p *Pod) compileEmptyDirVolume(volumeName string) v1.Volume {
	emptyDir := &v1.EmptyDirVolumeSource{}

	if sizeLimit, found := p.volumeSizes[volumeName]; found {
		emptyDir.SizeLimit = &sizeLimit
	}

	return v1.Volume{
		Name: volumeName,
		VolumeSource: v1.VolumeSource{
			EmptyDir: emptyDir,
		},
	}
}

func (p *Pod) parseResourceLimits(limits config.ResourceLimits) (v1.ResourceList, error) {
	resourceList := v1.ResourceList{}

	for resourceName, value := range map[v1.ResourceName]string{
		v1.ResourceCPU:    limits.CPU,
		v1.ResourceMemory: limits.Memory,
	} {
		if value == "" {
			continue
		}

		quantity, err := resource.ParseQuantity(value)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid %s quantity: %s", resourceName, value)
		}

		resourceList[resourceName] = quantity
	}

	return resourceList, nil
}

func (p *Pod) getPollInterval() time.Duration {
	if p.configuration.Kubernetes.PollInterval.Duration > 0 {
		return p.configuration.Kubernetes.PollInterval.Duration
	}

	return time.Second
}

func (p *Pod) getWorkDir() string {
	if p.configuration.WorkDir != "" {
		return p.configuration.WorkDir
	}

	return os.TempDir()
}
