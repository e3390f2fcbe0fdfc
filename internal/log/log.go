// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package log configures the default hclog logger of the application.
package log

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zendmn/internal/config"
	"github.com/pbinitiative/zendmn/internal/profile"
)

// Init replaces the default hclog logger. An empty level picks debug for the
// DEV profile and info otherwise.
func Init(conf config.Log) {
	hclog.SetDefault(New(conf, os.Stderr))
}

func New(conf config.Log, output io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "zendmn",
		Level:      level(conf.Level),
		JSONFormat: conf.JSON || profile.Current == profile.PROD,
		Output:     output,
	})
}

func level(name string) hclog.Level {
	if name != "" {
		if l := hclog.LevelFromString(name); l != hclog.NoLevel {
			return l
		}
	}
	if profile.Current == profile.DEV {
		return hclog.Debug
	}
	return hclog.Info
}

func Error(format string, args ...any) {
	hclog.Default().Error(fmt.Sprintf(format, args...))
}

func Infof(ctx context.Context, format string, args ...any) {
	hclog.FromContext(ctx).Info(fmt.Sprintf(format, args...))
}
