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

package dockerclient

import (
	"context"
)

// Client is a docker client
type Client interface {

	// PullImage pulls an image from a remote docker repository
	PullImage(ctx context.Context, imageURL string) error

	// RunContainer runs a container in the foreground and returns its stdout
	RunContainer(ctx context.Context, imageName string, runOptions *RunOptions) (string, error)

	// RemoveContainer removes a container given a container ID or name. A missing container is not an error
	RemoveContainer(ctx context.Context, containerID string) error
}
