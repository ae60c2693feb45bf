// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging builds the process logger from level and style
// settings.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level names a zap log level ("debug", "info", "warn", "error").
type Level string

// Style selects the output encoding.
type Style string

const (
	// StyleTerminal is human-readable console output.
	StyleTerminal Style = "terminal"
	// StyleJSON is structured output for log aggregation.
	StyleJSON Style = "json"
	// StyleNoop drops all output.
	StyleNoop Style = "noop"
)

// Config holds logger settings.
type Config struct {
	Level Level
	Style Style
}

// NewLogger builds a zap logger. Unknown levels fall back to info,
// unknown styles to terminal.
func NewLogger(config *Config) *zap.Logger {
	if config == nil {
		config = &Config{}
	}
	if config.Style == StyleNoop {
		return zap.NewNop()
	}

	level, err := zapcore.ParseLevel(string(config.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	switch config.Style {
	case StyleJSON:
		zapConfig = zap.NewProductionConfig()
	default:
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
