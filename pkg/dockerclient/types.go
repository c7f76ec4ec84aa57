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
	"io"
)

// RunOptions are options for running a docker image
type RunOptions struct {
	ContainerName string
	Entrypoint    string
	Env           map[string]string

	// keep stdin open and feed it from Stdin
	Interactive bool
	Stdin       io.Reader

	// remove the container once it exits
	Remove bool

	// appended after the image name as is
	Command string

	// if set, receives the stderr of the container
	Stderr *string
}
