// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pbinitiative/zendmn/internal/log"
	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var evalFlags struct {
	file     string
	decision string
	vars     string
	set      []string
	metrics  bool
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a decision",
	Long: `Evaluate a decision of a DMN file and print the result rows as yaml.

Variables are read from a yaml file given by --vars and from --set
name=value pairs. Values given by --set are parsed as yaml scalars, so
--set guestCount=15 binds a number and --set vip=true a boolean.

Examples:
  zendmn eval --file dinner.dmn --decision dish --vars variables.yaml
  zendmn eval --file dinner.dmn --set season=Summer --set guestCount=15 --metrics`,
	RunE: evaluateDecision,
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List the decisions of a DMN file",
	RunE:  listDecisions,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(decisionsCmd)

	evalCmd.Flags().StringVarP(&evalFlags.file, "file", "f", "", "DMN file to load")
	evalCmd.Flags().StringVarP(&evalFlags.decision, "decision", "d", "", "key of the decision to evaluate (optional when the file has one decision)")
	evalCmd.Flags().StringVar(&evalFlags.vars, "vars", "", "yaml file with the variables")
	evalCmd.Flags().StringArrayVar(&evalFlags.set, "set", nil, "variable as name=value, may be repeated")
	evalCmd.Flags().BoolVar(&evalFlags.metrics, "metrics", false, "print the engine metrics after the result")
	_ = evalCmd.MarkFlagRequired("file")

	decisionsCmd.Flags().StringVarP(&evalFlags.file, "file", "f", "", "DMN file to load")
	_ = decisionsCmd.MarkFlagRequired("file")
}

type evaluationOutput struct {
	Decision                 string           `yaml:"decision"`
	Result                   []map[string]any `yaml:"result"`
	ExecutedDecisionElements int64            `yaml:"executedDecisionElements"`
}

func evaluateDecision(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := setupApplication(ctx)
	if err != nil {
		return err
	}
	defer app.stop(ctx)

	variables, err := readVariables(evalFlags.vars, evalFlags.set)
	if err != nil {
		return err
	}
	graph, err := app.engine.LoadFromFile(ctx, evalFlags.file)
	if err != nil {
		return err
	}
	decisionKey, err := selectDecision(graph, evalFlags.decision)
	if err != nil {
		return err
	}

	result, err := app.engine.EvaluateDecisionByKey(ctx, graph, decisionKey, variables)
	if err != nil {
		return fmt.Errorf("failed to evaluate decision %s: %w", decisionKey, err)
	}
	log.Infof(ctx, "Evaluated decision %s with %d result rows", decisionKey, result.Len())

	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	err = encoder.Encode(evaluationOutput{
		Decision:                 decisionKey,
		Result:                   result.ResultList(),
		ExecutedDecisionElements: app.collector.ClearExecutedDecisionElements(),
	})
	if err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if evalFlags.metrics {
		return writeMetrics(cmd.OutOrStdout(), prometheus.DefaultGatherer)
	}
	return nil
}

func listDecisions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := setupApplication(ctx)
	if err != nil {
		return err
	}
	defer app.stop(ctx)

	graph, err := app.engine.LoadFromFile(ctx, evalFlags.file)
	if err != nil {
		return err
	}
	for _, key := range graph.DecisionKeys() {
		decision, _ := graph.Decision(key)
		kind := "decision table"
		if _, ok := decision.DecisionTable(); !ok {
			kind = "literal expression"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", key, decision.Name, kind)
	}
	return nil
}

func selectDecision(graph *runtime.DecisionRequirementsGraph, key string) (string, error) {
	if key != "" {
		return key, nil
	}
	keys := graph.DecisionKeys()
	if len(keys) != 1 {
		return "", fmt.Errorf("--decision is required, %s contains the decisions %s", graph.ResourceName, strings.Join(keys, ", "))
	}
	return keys[0], nil
}

// readVariables merges the variables file with the --set pairs. Pairs
// override the file.
func readVariables(file string, pairs []string) (map[string]any, error) {
	variables := map[string]any{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read variables: %w", err)
		}
		if err := yaml.Unmarshal(data, &variables); err != nil {
			return nil, fmt.Errorf("failed to parse variables from %s: %w", file, err)
		}
	}
	for _, pair := range pairs {
		name, raw, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid variable %q, expected name=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		variables[strings.TrimSpace(name)] = value
	}
	return variables, nil
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return err
		}
	}
	return nil
}
