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

package build

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nuclio/kaniko-action/pkg/builderrors"

	"github.com/docker/distribution/reference"
	"github.com/nuclio/errors"
)

// Request describes a single image build. It is created once from the caller's
// inputs and is never mutated afterwards
type Request struct {
	ExecutorImage   string
	Context         string
	File            string
	BuildArgs       []string
	Labels          []string
	Target          string
	Tags            []string
	Push            bool
	Cache           bool
	CacheRepository string
	CacheTTL        string
	PushRetry       string
	RegistryMirrors []string
	Verbosity       string
	ExtraArgs       []string
}

// DockerfileInContext returns the path of the Dockerfile relative to the context, slash separated.
// Both paths are resolved against the working directory first, so either may be absolute.
// The context is remounted elsewhere inside the build environment, so the returned path is never absolute
func (r *Request) DockerfileInContext() string {
	if r.File == "" {
		return ""
	}

	relativePath, err := r.resolveDockerfileInContext()
	if err != nil {

		// the caller broke the precondition (see Validate)
		return filepath.ToSlash(filepath.Base(r.File))
	}

	return filepath.ToSlash(relativePath)
}

// Validate checks the request before any side effect takes place
func (r *Request) Validate() error {
	if r.ExecutorImage != "" {
		if _, err := reference.ParseNormalizedNamed(r.ExecutorImage); err != nil {
			return builderrors.NewConfigurationError("Invalid executor image %q: %s", r.ExecutorImage, err.Error())
		}
	}

	if r.File != "" {
		relativePath, err := r.resolveDockerfileInContext()
		if err != nil {
			return builderrors.NewConfigurationError("Failed to resolve dockerfile %q in context %q: %s",
				r.File,
				r.Context,
				err.Error())
		}

		if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
			return builderrors.NewConfigurationError("Dockerfile %q lies outside of context %q", r.File, r.Context)
		}
	}

	if r.Push && len(r.Tags) == 0 {
		return builderrors.NewConfigurationError("Pushing requires at least one tag")
	}

	for _, tag := range r.Tags {
		if _, err := reference.ParseNormalizedNamed(tag); err != nil {
			return builderrors.NewConfigurationError("Invalid tag %q: %s", tag, err.Error())
		}
	}

	if r.Cache && r.CacheRepository != "" {
		if _, err := reference.ParseNormalizedNamed(r.CacheRepository); err != nil {
			return builderrors.NewConfigurationError("Invalid cache repository %q: %s", r.CacheRepository, err.Error())
		}
	}

	if r.PushRetry != "" {
		if pushRetry, err := strconv.Atoi(r.PushRetry); err != nil || pushRetry < 0 {
			return builderrors.NewConfigurationError("Push retry must be a non-negative integer, got %q", r.PushRetry)
		}
	}

	return nil
}

func (r *Request) resolveDockerfileInContext() (string, error) {
	contextPath, err := filepath.Abs(r.Context)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to resolve absolute path of context %s", r.Context)
	}

	dockerfilePath, err := filepath.Abs(r.File)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to resolve absolute path of dockerfile %s", r.File)
	}

	relativePath, err := filepath.Rel(contextPath, dockerfilePath)
	if err != nil {
		return "", errors.Wrap(err, "Failed to resolve dockerfile relative to context")
	}

	return relativePath, nil
}
