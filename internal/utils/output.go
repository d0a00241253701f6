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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/profiler"
)

// Supported suite output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// ParseFormat normalizes a --format value.
func ParseFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatTOML:
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported output format %q (use %s, %s or %s)", format, FormatJSON, FormatYAML, FormatTOML)
}

// WriteSuite encodes suite to w in the given format.
func WriteSuite(w io.Writer, suite *profiler.Suite, format string) error {
	format, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(suite); err != nil {
			return fmt.Errorf("failed to encode suite as yaml: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		if err := enc.Encode(suite); err != nil {
			return fmt.Errorf("failed to encode suite as toml: %w", err)
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(suite); err != nil {
			return fmt.Errorf("failed to encode suite as json: %w", err)
		}
		return nil
	}
}

// WriteSuiteFile writes suite to path, replacing any existing file.
func WriteSuiteFile(path string, suite *profiler.Suite, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	if err := WriteSuite(f, suite, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file %s: %w", path, err)
	}
	return nil
}
