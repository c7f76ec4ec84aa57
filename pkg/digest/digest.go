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

package digest

import (
	_ "crypto/sha256"
	"os"
	"strings"

	"github.com/nuclio/kaniko-action/pkg/builderrors"
	"github.com/nuclio/kaniko-action/pkg/common"

	ocidigest "github.com/opencontainers/go-digest"
	"github.com/samber/lo"
)

const Prefix = string(ocidigest.SHA256) + ":"

// FromFile reads a digest from a file which is expected to hold nothing but the digest
func FromFile(path string) (string, error) {
	if !common.IsFile(path) {
		return "", builderrors.NewDigestNotFoundError("Digest file %s was not written", path).
			WithResource(path)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return "", builderrors.NewDigestNotFoundError("Failed to read digest file %s: %s", path, err.Error()).
			WithResource(path)
	}

	return Validate(strings.TrimSpace(string(contents)))
}

// FromOutput returns the last sha256 digest line in the given captured output
func FromOutput(output string) (string, error) {
	digestLines := lo.Filter(strings.Split(output, "\n"), func(line string, _ int) bool {
		return strings.HasPrefix(strings.TrimSpace(line), Prefix)
	})

	lastDigestLine, err := lo.Last(digestLines)
	if err != nil {
		return "", builderrors.NewDigestNotFoundError("No %s digest found in output", ocidigest.SHA256)
	}

	return Validate(strings.TrimSpace(lastDigestLine))
}

// Validate verifies the value is a well formed sha256 digest
func Validate(value string) (string, error) {
	parsedDigest, err := ocidigest.Parse(value)
	if err != nil {
		return "", builderrors.NewDigestNotFoundError("Malformed digest %q: %s", value, err.Error())
	}

	if parsedDigest.Algorithm() != ocidigest.SHA256 {
		return "", builderrors.NewDigestNotFoundError("Unexpected digest algorithm %s", parsedDigest.Algorithm())
	}

	return parsedDigest.String(), nil
}
