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

// GenerateArgs translates a request into the executor's argument vector. contextURI
// is where the executor finds the context inside the build environment.
// The order of the emitted flags is part of the executor contract. Nothing is
// reordered or deduplicated
func GenerateArgs(request *Request, contextURI string) []string {
	args := []string{"--context", contextURI}

	if request.File != "" {
		args = append(args, "--dockerfile", request.DockerfileInContext())
	}

	for _, buildArg := range request.BuildArgs {
		args = append(args, "--build-arg", buildArg)
	}

	for _, label := range request.Labels {
		args = append(args, "--label", label)
	}

	// pushing is the executor's default
	if !request.Push {
		args = append(args, "--no-push")
	}

	for _, tag := range request.Tags {
		args = append(args, "--destination", tag)
	}

	if request.Target != "" {
		args = append(args, "--target", request.Target)
	}

	if request.Cache {
		args = append(args, "--cache=true")
		if request.CacheRepository != "" {
			args = append(args, "--cache-repo", request.CacheRepository)
		}
	}

	// independent of the cache toggle
	if request.CacheTTL != "" {
		args = append(args, "--cache-ttl", request.CacheTTL)
	}

	if request.PushRetry != "" {
		args = append(args, "--push-retry", request.PushRetry)
	}

	for _, mirror := range request.RegistryMirrors {
		args = append(args, "--registry-mirror", mirror)
	}

	if request.Verbosity != "" {
		args = append(args, "--verbosity", request.Verbosity)
	}

	return append(args, request.ExtraArgs...)
}
