/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package utils

import (
	"fmt"
	"os"
	"strings"
)

// ReadContextFiles reads the content of the specified context files and combines them into a single string.
func ReadContextFiles(filePaths string) (string, error) {
	if filePaths == "" {
		return "", nil // No context files provided
	}

	paths := strings.Split(filePaths, ",")
	var combinedContext strings.Builder
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read context file '%s': %w", path, err)
		}
		combinedContext.WriteString("\n-- Context from file: " + path + " --\n")
		combinedContext.WriteString(string(content))
	}
	return combinedContext.String(), nil
}

// GetDefaultOutputFilePath names the suite file written for table.
func GetDefaultOutputFilePath(tableName, format string) string {
	switch strings.ToLower(format) {
	case FormatYAML, "yml":
		return fmt.Sprintf("%s_suite.yaml", tableName)
	case FormatTOML:
		return fmt.Sprintf("%s_suite.toml", tableName)
	default:
		return fmt.Sprintf("%s_suite.json", tableName)
	}
}

// ParseSemanticTypesFlag parses "numeric[amount,total],value_set[status]" into
// a semantic_types map. Categories are kept as written.
func ParseSemanticTypesFlag(flag string) (map[string][]string, error) {
	semanticTypes := make(map[string][]string)
	if flag == "" {
		return semanticTypes, nil
	}

	// strip any whitespace
	flag = strings.ReplaceAll(flag, " ", "")

	for _, part := range SplitOutsideBrackets(flag) {
		if part == "" {
			continue
		}
		bracketStart := strings.Index(part, "[")
		if bracketStart == -1 {
			return nil, fmt.Errorf("semantic type %q must list its columns, e.g. %s[col_a,col_b]", part, part)
		}
		bracketEnd := strings.Index(part, "]")
		if bracketEnd == -1 || bracketEnd < bracketStart {
			return nil, fmt.Errorf("missing closing bracket in: %s", part)
		}
		if bracketEnd != len(part)-1 {
			return nil, fmt.Errorf("unexpected text after closing bracket in: %s", part)
		}

		category := part[:bracketStart]
		if category == "" {
			return nil, fmt.Errorf("missing semantic type name in: %s", part)
		}
		var columns []string
		for _, col := range strings.Split(part[bracketStart+1:bracketEnd], ",") {
			if col != "" {
				columns = append(columns, col)
			}
		}
		semanticTypes[category] = append(semanticTypes[category], columns...)
	}

	return semanticTypes, nil
}

// SplitOutsideBrackets Helper function to split string by commas that are not within brackets
func SplitOutsideBrackets(s string) []string {
	var result []string
	var current strings.Builder
	inBrackets := false

	for _, char := range s {
		switch char {
		case '[':
			inBrackets = true
			current.WriteRune(char)
		case ']':
			inBrackets = false
			current.WriteRune(char)
		case ',':
			if inBrackets {
				current.WriteRune(char)
			} else {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	// Add the last part
	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}
