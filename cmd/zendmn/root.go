// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zendmn/internal/config"
	"github.com/pbinitiative/zendmn/internal/log"
	"github.com/pbinitiative/zendmn/internal/otel"
	"github.com/pbinitiative/zendmn/internal/profile"
	"github.com/pbinitiative/zendmn/pkg/dmn"
	otelPkg "github.com/pbinitiative/zendmn/pkg/otel"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "zendmn",
	Short: "ZenDMN - DMN decision engine",
	Long: `ZenDMN loads DMN decision requirements graphs and evaluates their
decision tables and literal expressions.

Configuration is read from the file given by --config, CONFIG_FILE or
./conf.yaml, falling back to the environment.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
}

// application holds everything a command needs to evaluate decisions.
type application struct {
	conf      config.Config
	otel      *otel.Otel
	engine    *dmn.Engine
	collector *dmn.MetricCollector
}

func setupApplication(ctx context.Context) (*application, error) {
	profile.InitProfile()

	var conf config.Config
	var err error
	if cfgFile != "" {
		conf, err = config.ReadConfig(cfgFile)
	} else {
		conf, err = config.InitConfig()
	}
	if err != nil {
		return nil, err
	}
	log.Init(conf.Log)

	openTelemetry, err := otel.SetupOtel(conf.Tracing)
	if err != nil {
		log.Error("Failed to set up OTEL: %s", err)
		return nil, err
	}
	meter := openTelemetry.Meter()
	metrics, err := otelPkg.NewMetrics(meter)
	if err != nil {
		openTelemetry.Stop(ctx)
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	registry, err := dmn.NewScriptEngineRegistry(ctx, conf.Script)
	if err != nil {
		openTelemetry.Stop(ctx)
		return nil, err
	}
	collector := dmn.NewMetricCollector(metrics)
	engine, err := dmn.NewEngine(
		dmn.WithLogger(hclog.Default().Named("dmn-engine")),
		dmn.WithConfig(conf.Dmn),
		dmn.WithScriptResolver(registry),
		dmn.WithMeter(meter),
		dmn.WithPostDecisionListener(collector),
	)
	if err != nil {
		openTelemetry.Stop(ctx)
		return nil, err
	}
	return &application{conf: conf, otel: openTelemetry, engine: engine, collector: collector}, nil
}

func (a *application) stop(ctx context.Context) {
	if err := a.otel.Flush(ctx); err != nil {
		log.Error("failed to flush traces: %s", err)
	}
	a.otel.Stop(ctx)
}
