//go:build test_unit

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
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mholt/archiver/v4"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type BundlerTestSuite struct {
	suite.Suite
	logger         logger.Logger
	bundler        *Bundler
	ctx            context.Context
	tempDir        string
	contextDir     string
	credentialsDir string
}

func (suite *BundlerTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.bundler = NewBundler(suite.logger)
	suite.ctx = context.Background()
	suite.tempDir = suite.T().TempDir()

	suite.contextDir = filepath.Join(suite.tempDir, "workspace")
	suite.credentialsDir = filepath.Join(suite.tempDir, "dot-docker")

	suite.writeFile(filepath.Join(suite.contextDir, "Dockerfile"), "FROM alpine\n")
	suite.writeFile(filepath.Join(suite.contextDir, "src", "main.go"), "package main\n")
	suite.writeFile(filepath.Join(suite.credentialsDir, "config.json"), `{"auths":{}}`)
}

func (suite *BundlerTestSuite) TestArchiveLayout() {
	archivePath := filepath.Join(suite.tempDir, "bundle.tar.gz")

	err := suite.bundler.WriteFile(suite.ctx, archivePath, suite.contextDir, suite.credentialsDir)
	suite.Require().NoError(err)

	archivedFiles, archivedDirs := suite.readArchive(archivePath)

	suite.Require().Equal(map[string]string{
		"context/Dockerfile":        "FROM alpine\n",
		"context/src/main.go":       "package main\n",
		"docker-config/config.json": `{"auths":{}}`,
	}, archivedFiles)

	// nothing besides the two roots
	for _, archivedDir := range archivedDirs {
		suite.Require().True(strings.HasPrefix(archivedDir, "context") ||
			strings.HasPrefix(archivedDir, "docker-config"), archivedDir)
	}
}

func (suite *BundlerTestSuite) TestMissingCredentialsStagesEmptyDir() {
	archivePath := filepath.Join(suite.tempDir, "bundle.tar.gz")

	err := suite.bundler.WriteFile(suite.ctx,
		archivePath,
		suite.contextDir,
		filepath.Join(suite.tempDir, "does-not-exist"))
	suite.Require().NoError(err)

	archivedFiles, archivedDirs := suite.readArchive(archivePath)

	suite.Require().Contains(archivedDirs, "docker-config")
	suite.Require().Contains(archivedFiles, "context/Dockerfile")
	suite.Require().NotContains(archivedFiles, "docker-config/config.json")
}

func (suite *BundlerTestSuite) TestMissingContextFails() {
	var output bytes.Buffer

	err := suite.bundler.Write(suite.ctx, &output, filepath.Join(suite.tempDir, "nope"), suite.credentialsDir)
	suite.Require().Error(err)
	suite.Require().Zero(output.Len())
}

// readArchive returns the contents of every file in the archive and the names of its directories
func (suite *BundlerTestSuite) readArchive(archivePath string) (map[string]string, []string) {
	archiveFile, err := os.Open(archivePath)
	suite.Require().NoError(err)
	defer archiveFile.Close() // nolint: errcheck

	archivedFiles := map[string]string{}
	var archivedDirs []string

	format := archiver.CompressedArchive{
		Compression: archiver.Gz{},
		Archival:    archiver.Tar{},
	}

	err = format.Extract(suite.ctx, archiveFile, nil, func(ctx context.Context, file archiver.File) error {
		name := strings.TrimSuffix(file.NameInArchive, "/")

		if file.IsDir() {
			archivedDirs = append(archivedDirs, name)
			return nil
		}

		reader, err := file.Open()
		if err != nil {
			return err
		}
		defer reader.Close() // nolint: errcheck

		contents, err := io.ReadAll(reader)
		if err != nil {
			return err
		}

		archivedFiles[name] = string(contents)
		return nil
	})
	suite.Require().NoError(err)

	return archivedFiles, archivedDirs
}

func (suite *BundlerTestSuite) writeFile(path string, contents string) {
	suite.Require().NoError(os.MkdirAll(filepath.Dir(path), 0755))
	suite.Require().NoError(os.WriteFile(path, []byte(contents), 0644))
}

func TestBundlerTestSuite(t *testing.T) {
	suite.Run(t, new(BundlerTestSuite))
}
