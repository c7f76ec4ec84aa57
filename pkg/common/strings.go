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
	"regexp"
)

var ansiColorRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// RemoveANSIColorsFromString strips terminal color sequences (the executor colors its logs)
func RemoveANSIColorsFromString(input string) string {
	return ansiColorRegex.ReplaceAllString(input, "")
}

// ShellQuote wraps the input in single quotes, escaping embedded single quotes
func ShellQuote(input string) string {
	if input == "" {
		return "''"
	}

	quoted := []byte{'\''}
	for idx := 0; idx < len(input); idx++ {
		if input[idx] == '\'' {
			quoted = append(quoted, `'\''`...)
			continue
		}
		quoted = append(quoted, input[idx])
	}

	return string(append(quoted, '\''))
}

// ShellQuoteAll quotes each of the given words
func ShellQuoteAll(words []string) []string {
	quotedWords := make([]string, len(words))
	for idx, word := range words {
		quotedWords[idx] = ShellQuote(word)
	}

	return quotedWords
}
