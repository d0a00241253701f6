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
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It discards everything until Initialize is called.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize replaces the global logger. jsonOutput selects the production JSON
// encoder; otherwise a colored console encoder writing to stderr is used.
func Initialize(jsonOutput bool, debug bool) error {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		l, err := cfg.Build()
		if err != nil {
			return err
		}
		Logger = l.Sugar()
		return nil
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
	Logger = zap.New(core).Sugar()
	return nil
}

// Named returns a child of the global logger, e.g. Named("profiler").
func Named(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// Sync flushes buffered log entries. Errors from syncing stderr are ignored.
func Sync() {
	_ = Logger.Sync()
}
