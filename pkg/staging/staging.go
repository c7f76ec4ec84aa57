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

package staging

import (
	"context"
	"io"
	"os"

	"github.com/nuclio/kaniko-action/pkg/build"
	"github.com/nuclio/kaniko-action/pkg/common"

	"github.com/mholt/archiver/v4"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Bundler packs a build context and registry credentials into a single gzip tarball with
// two roots, "context/" and "docker-config/"
type Bundler struct {
	logger logger.Logger
}

func NewBundler(parentLogger logger.Logger) *Bundler {
	return &Bundler{
		logger: parentLogger.GetChild("staging"),
	}
}

// WriteFile writes the bundle to archivePath, creating or truncating it
func (b *Bundler) WriteFile(ctx context.Context, archivePath string, contextDir string, credentialsDir string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return errors.Wrapf(err, "Failed to create archive file: %s", archivePath)
	}

	if err := b.Write(ctx, archiveFile, contextDir, credentialsDir); err != nil {
		archiveFile.Close() // nolint: errcheck
		return errors.Wrap(err, "Failed to write archive")
	}

	if err := archiveFile.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close archive file: %s", archivePath)
	}

	return nil
}

// Write streams the bundle to output
func (b *Bundler) Write(ctx context.Context, output io.Writer, contextDir string, credentialsDir string) error {
	if !common.IsDir(contextDir) {
		return errors.Errorf("Context directory does not exist: %s", contextDir)
	}

	// the remote side always relocates docker-config, so it must exist even when empty
	if !common.IsDir(credentialsDir) {
		b.logger.WarnWithCtx(ctx, "Credentials directory not found, staging an empty one",
			"credentialsDir", credentialsDir)

		placeholderDir, err := os.MkdirTemp("", "kaniko-action-docker-config-")
		if err != nil {
			return errors.Wrap(err, "Failed to create empty credentials directory")
		}
		defer os.RemoveAll(placeholderDir) // nolint: errcheck

		credentialsDir = placeholderDir
	}

	files, err := archiver.FilesFromDisk(nil, map[string]string{
		contextDir:     build.ContextDirName,
		credentialsDir: build.CredentialsDirName,
	})
	if err != nil {
		return errors.Wrap(err, "Failed to collect files to archive")
	}

	b.logger.DebugWithCtx(ctx, "Archiving build context",
		"contextDir", contextDir,
		"credentialsDir", credentialsDir,
		"numFiles", len(files))

	format := archiver.CompressedArchive{
		Compression: archiver.Gz{},
		Archival:    archiver.Tar{},
	}

	if err := format.Archive(ctx, output, files); err != nil {
		return errors.Wrap(err, "Failed to archive files")
	}

	return nil
}
