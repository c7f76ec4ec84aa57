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

package common

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/suite"
)

type StringsTestSuite struct {
	suite.Suite
}

func (suite *StringsTestSuite) TestShellQuote() {
	for _, testCase := range []struct {
		input    string
		expected string
	}{
		{input: "", expected: "''"},
		{input: "simple", expected: "'simple'"},
		{input: "with space", expected: "'with space'"},
		{input: "it's", expected: `'it'\''s'`},
		{input: "$(rm -rf /)", expected: "'$(rm -rf /)'"},
	} {
		suite.Require().Equal(testCase.expected, ShellQuote(testCase.input))
	}
}

func (suite *StringsTestSuite) TestShellQuoteRoundTrips() {
	for _, input := range []string{
		"MSG=it's done",
		`A="quoted" & #not-a-comment`,
		"back\\slash $HOME `date` !bang",
		"multi\nline",
	} {
		output, err := exec.Command("/bin/sh", "-c", "printf %s "+ShellQuote(input)).Output()
		suite.Require().NoError(err)
		suite.Require().Equal(input, string(output))
	}
}

func (suite *StringsTestSuite) TestShellQuoteAll() {
	suite.Require().Equal([]string{"'--context'", "'dir:///context/'"},
		ShellQuoteAll([]string{"--context", "dir:///context/"}))
}

func (suite *StringsTestSuite) TestRemoveANSIColorsFromString() {
	suite.Require().Equal("INFO[0000] Retrieving image manifest",
		RemoveANSIColorsFromString("\x1b[36mINFO\x1b[0m[0000] Retrieving image manifest"))
}

func TestStringsTestSuite(t *testing.T) {
	suite.Run(t, new(StringsTestSuite))
}
