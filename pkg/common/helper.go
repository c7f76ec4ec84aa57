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

package common

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/nuclio/errors"
	"github.com/samber/lo"
)

// IsFile returns true if the object @ path is a file
func IsFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// IsDir returns true if the object @ path is a dir
func IsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.IsDir()
}

// FileExists returns true if the file @ path exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExpandPath expands a leading ~ and returns an absolute path
func ExpandPath(path string) (string, error) {
	expandedPath, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to expand path %s", path)
	}

	absolutePath, err := filepath.Abs(expandedPath)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to resolve absolute path of %s", expandedPath)
	}

	return absolutePath, nil
}

// GetEnvOrDefaultString returns the value of the environment variable, or the default if empty
func GetEnvOrDefaultString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvOrDefaultBool returns the parsed environment variable, or the default if empty or unparsable
func GetEnvOrDefaultBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvOrDefaultLines splits a multi-line environment variable into its non-empty, trimmed lines
func GetEnvOrDefaultLines(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return SplitLines(value)
}

// SplitLines splits input on newlines, trimming each line and dropping blank ones
func SplitLines(input string) []string {
	lines := lo.Map(strings.Split(input, "\n"), func(line string, _ int) string {
		return strings.TrimSpace(line)
	})

	return lo.Filter(lines, func(line string, _ int) bool {
		return line != ""
	})
}
