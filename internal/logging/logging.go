/*
Copyright 2026.

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

// Package logging builds the zap encoders shared by the controller and the agent.
package logging

import (
	"fmt"
	"io"
	"log/slog"

	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	ctrlzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Supported log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatECS     = "ecs"
)

// Encoder returns the zap encoder for the given format.
func Encoder(format string) (zapcore.Encoder, error) {
	switch format {
	case FormatConsole:
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), nil
	case FormatJSON, "":
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "time"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(encoderConfig), nil
	case FormatECS:
		return zapcore.NewJSONEncoder(ecszap.ECSCompatibleEncoderConfig(zap.NewProductionEncoderConfig())), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// ApplyFormat sets the encoder of controller-runtime zap options.
// Development options keep their console encoder unless a format is given explicitly.
func ApplyFormat(opts *ctrlzap.Options, format string) error {
	if format == "" {
		return nil
	}
	enc, err := Encoder(format)
	if err != nil {
		return err
	}
	opts.Encoder = enc
	return nil
}

// NewSlog returns a slog.Logger writing through a zap core with the given format.
func NewSlog(w io.Writer, format string, level zapcore.Level) (*slog.Logger, error) {
	enc, err := Encoder(format)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return slog.New(zapslog.NewHandler(core)), nil
}
