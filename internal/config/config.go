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
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Database     DatabaseConfig
	GeminiAPIKey string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string
	Host                           string
	Port                           int
	User                           string
	Password                       string
	DBName                         string
	SSLMode                        string
	CloudSQLInstanceConnectionName string
	UsePrivateIP                   bool
}

var globalConfig *Config

// GetConfig returns a default configuration. Configuration will be set by flags in root.go
func GetConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		GeminiAPIKey: "", // Gemini API key can be set via flag or env var
	}
}

// SetConfig sets the global configuration.
func SetConfig(cfg *Config) {
	globalConfig = cfg
}

// Current returns the configuration installed by SetConfig, or nil.
func Current() *Config {
	return globalConfig
}

var profilerConfigTypes = map[string]bool{
	"yaml": true,
	"yml":  true,
	"json": true,
	"toml": true,
}

// LoadProfilerConfig reads a profiler configuration file (YAML, JSON or TOML)
// and returns its top-level settings as a raw map, ready for validation by the
// profiler. Parameter names are case sensitive: a top-level key that is not
// already lowercase is rejected rather than folded onto a known name.
func LoadProfilerConfig(path string) (map[string]any, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !profilerConfigTypes[ext] {
		return nil, errors.WithHint(
			errors.Newf("unsupported profiler config file %q", path),
			"use a .yaml, .yml, .json or .toml file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read profiler config %s", path)
	}
	var doc map[string]any
	if ext == "toml" {
		err = toml.Unmarshal(data, &doc)
	} else {
		// JSON documents are valid YAML.
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read profiler config %s", path)
	}
	if key, ok := firstNonLowercaseKey(doc); ok {
		return nil, errors.WithHint(
			errors.Newf("parameter %s from config is not recognized", key),
			"profiler config parameter names are lowercase")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(ext)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read profiler config %s", path)
	}
	return v.AllSettings(), nil
}

// firstNonLowercaseKey reports, in sorted order, the first top-level key that
// viper would silently lowercase.
func firstNonLowercaseKey(m map[string]any) (string, bool) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k != strings.ToLower(k) {
			return k, true
		}
	}
	return "", false
}
