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

	"github.com/stretchr/testify/mock"
)

//
// Docker client mock
//

// MockDockerClient is a mock docker client
type MockDockerClient struct {
	mock.Mock
}

func NewMockDockerClient() *MockDockerClient {
	return &MockDockerClient{}
}

// PullImage pulls an image from a remote docker repository
func (mdc *MockDockerClient) PullImage(ctx context.Context, imageURL string) error {
	args := mdc.Called(ctx, imageURL)
	return args.Error(0)
}

// RunContainer will run a container based on an image and run options
func (mdc *MockDockerClient) RunContainer(ctx context.Context,
	imageName string,
	runOptions *RunOptions) (string, error) {
	args := mdc.Called(ctx, imageName, runOptions)
	return args.String(0), args.Error(1)
}

// RemoveContainer removes a container given a container ID
func (mdc *MockDockerClient) RemoveContainer(ctx context.Context, containerID string) error {
	args := mdc.Called(ctx, containerID)
	return args.Error(0)
}
