// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package dmn

import (
	"context"
	"crypto/md5"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pbinitiative/zendmn/pkg/dmn/model/dmn"
	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/dmn/types"
	"github.com/pbinitiative/zendmn/pkg/script/feel"
)

func (engine *Engine) LoadFromFile(ctx context.Context, filename string) (*runtime.DecisionRequirementsGraph, error) {
	xmlData, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load dmn definition from file: %v, %w", filename, err)
	}
	return engine.Load(ctx, xmlData, filename)
}

// Load parses a DMN document and builds its decision requirements graph.
func (engine *Engine) Load(ctx context.Context, xmlData []byte, resourceName string) (*runtime.DecisionRequirementsGraph, error) {
	_, span := engine.tracer.Start(ctx, "load:"+resourceName)
	defer span.End()

	md5sum := md5.Sum(xmlData)
	var definitions dmn.TDefinitions
	if err := xml.Unmarshal(xmlData, &definitions); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse dmn definition from file: %v, %w", resourceName, err)
	}

	graph, err := transformDefinitions(definitions)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to transform dmn definition from file: %v, %w", resourceName, err)
	}
	graph.ResourceName = resourceName
	graph.Checksum = md5sum
	engine.logger.Debug("dmn definition loaded", "resource", resourceName, "decisions", len(graph.Decisions))
	return graph, nil
}

func transformDefinitions(definitions dmn.TDefinitions) (*runtime.DecisionRequirementsGraph, error) {
	decisions := make([]*runtime.Decision, 0, len(definitions.Decisions))
	byId := make(map[string]*runtime.Decision, len(definitions.Decisions))
	var errJoin error
	for _, tDecision := range definitions.Decisions {
		decision, err := transformDecision(tDecision)
		if err != nil {
			errJoin = errors.Join(errJoin, fmt.Errorf("decision %s: %w", tDecision.Id, err))
			continue
		}
		decision.ExpressionLanguage = definitions.ExpressionLanguage
		decisions = append(decisions, decision)
		if _, found := byId[decision.Key]; !found {
			byId[decision.Key] = decision
		}
	}
	if errJoin != nil {
		return nil, errJoin
	}

	for _, tDecision := range definitions.Decisions {
		decision := byId[tDecision.Id]
		for _, requirement := range tDecision.InformationRequirement {
			if requirement.RequiredDecision == nil {
				continue
			}
			requiredId := strings.TrimPrefix(strings.TrimSpace(requirement.RequiredDecision.Href), "#")
			required, ok := byId[requiredId]
			if !ok {
				errJoin = errors.Join(errJoin, fmt.Errorf("decision %s requires unknown decision %s", decision.Key, requiredId))
				continue
			}
			decision.RequiredDecisions = append(decision.RequiredDecisions, required)
		}
	}
	if errJoin != nil {
		return nil, errJoin
	}
	return runtime.NewDecisionRequirementsGraph(definitions.Id, definitions.Name, decisions)
}

func transformDecision(tDecision dmn.TDecision) (*runtime.Decision, error) {
	decision := &runtime.Decision{
		Key:        tDecision.Id,
		Name:       tDecision.Name,
		VersionTag: tDecision.CamundaVersionTag,
	}
	if decision.VersionTag == "" {
		decision.VersionTag = tDecision.VersionTag.Value
	}

	switch {
	case tDecision.DecisionTable != nil:
		table, err := transformDecisionTable(*tDecision.DecisionTable)
		if err != nil {
			return nil, err
		}
		decision.Logic = table
	case tDecision.LiteralExpression != nil:
		decision.Logic = transformLiteralExpression(tDecision, *tDecision.LiteralExpression)
	default:
		return nil, fmt.Errorf("%w: decision %s has neither a decision table nor a literal expression", ErrDecisionTypeNotSupported, tDecision.Id)
	}
	return decision, nil
}

func transformDecisionTable(tTable dmn.TDecisionTable) (*runtime.DecisionTable, error) {
	hitPolicy, ok := runtime.ParseHitPolicy(string(tTable.HitPolicy))
	if !ok {
		return nil, fmt.Errorf("%w: unknown hit policy '%s'", ErrNoHitPolicyHandler, tTable.HitPolicy)
	}
	aggregator, ok := runtime.ParseAggregator(string(tTable.HitPolicyAggregation))
	if !ok {
		return nil, fmt.Errorf("%w: unknown aggregation '%s'", ErrNoHitPolicyHandler, tTable.HitPolicyAggregation)
	}
	table := &runtime.DecisionTable{
		Key:        tTable.Id,
		HitPolicy:  hitPolicy,
		Aggregator: aggregator,
		Inputs:     make([]*runtime.Clause, 0, len(tTable.Inputs)),
		Outputs:    make([]*runtime.Clause, 0, len(tTable.Outputs)),
		Rules:      make([]*runtime.Rule, 0, len(tTable.Rules)),
	}

	for _, input := range tTable.Inputs {
		clause := &runtime.Clause{
			Key:            input.Id,
			Name:           input.Label,
			Role:           runtime.RoleInput,
			InputVariable:  input.InputVariable,
			TypeDefinition: typeDefinition(input.InputExpression.TypeRef),
		}
		if strings.TrimSpace(input.InputExpression.Text) != "" {
			clause.Expression = &runtime.Expression{
				Key:      input.InputExpression.Id,
				Text:     input.InputExpression.Text,
				Language: input.InputExpression.ExpressionLanguage,
			}
		}
		values, err := parseValueList(input.InputValues)
		if err != nil {
			return nil, fmt.Errorf("input values of %s: %w", input.Id, err)
		}
		clause.InputValues = values
		table.Inputs = append(table.Inputs, clause)
	}

	for _, output := range tTable.Outputs {
		clause := &runtime.Clause{
			Key:            output.Id,
			Name:           output.Label,
			Role:           runtime.RoleOutput,
			OutputName:     output.Name,
			TypeDefinition: typeDefinition(output.TypeRef),
		}
		values, err := parseValueList(output.OutputValues)
		if err != nil {
			return nil, fmt.Errorf("output values of %s: %w", output.Id, err)
		}
		clause.OutputValues = values
		table.Outputs = append(table.Outputs, clause)
	}

	for _, tRule := range tTable.Rules {
		if len(tRule.InputEntry) != len(table.Inputs) || len(tRule.OutputEntry) != len(table.Outputs) {
			return nil, fmt.Errorf("rule %s has %d input and %d output entries, table declares %d inputs and %d outputs",
				tRule.Id, len(tRule.InputEntry), len(tRule.OutputEntry), len(table.Inputs), len(table.Outputs))
		}
		rule := &runtime.Rule{
			Key:         tRule.Id,
			Name:        tRule.Description,
			Conditions:  make([]*runtime.ClauseEntry, 0, len(tRule.InputEntry)),
			Conclusions: make([]*runtime.ClauseEntry, 0, len(tRule.OutputEntry)),
		}
		for i, entry := range tRule.InputEntry {
			text := entry.Text
			if strings.TrimSpace(text) == "-" {
				text = ""
			}
			rule.Conditions = append(rule.Conditions, &runtime.ClauseEntry{
				Key:        entry.Id,
				Clause:     table.Inputs[i],
				Expression: runtime.Expression{Key: entry.Id, Text: text, Language: entry.ExpressionLanguage},
			})
		}
		for i, entry := range tRule.OutputEntry {
			rule.Conclusions = append(rule.Conclusions, &runtime.ClauseEntry{
				Key:        entry.Id,
				Clause:     table.Outputs[i],
				Expression: runtime.Expression{Key: entry.Id, Text: entry.Text, Language: entry.ExpressionLanguage},
			})
		}
		table.Rules = append(table.Rules, rule)
	}
	return table, nil
}

func transformLiteralExpression(tDecision dmn.TDecision, tLiteral dmn.TLiteralExpression) *runtime.LiteralExpression {
	name := tDecision.Variable.Name
	if name == "" {
		name = tDecision.Id
	}
	typeRef := tDecision.Variable.TypeRef
	if typeRef == "" {
		typeRef = tLiteral.TypeRef
	}
	return &runtime.LiteralExpression{
		Key: tLiteral.Id,
		Expression: runtime.Expression{
			Key:      tLiteral.Id,
			Text:     tLiteral.Text,
			Language: tLiteral.ExpressionLanguage,
		},
		Variable: runtime.Variable{
			Name:           name,
			TypeDefinition: typeDefinition(typeRef),
		},
	}
}

// typeDefinition maps DMN type references to transformer names.
func typeDefinition(typeRef dmn.TypeRef) runtime.TypeDefinition {
	switch strings.TrimSpace(string(typeRef)) {
	case string(dmn.TypeRefDateTimeDuration), types.TypeDayTimeDuration:
		return runtime.TypeDefinition{TypeName: types.TypeDayTimeDuration}
	case string(dmn.TypeRefAny):
		return runtime.TypeDefinition{}
	}
	return runtime.TypeDefinition{TypeName: strings.TrimSpace(string(typeRef))}
}

// parseValueList reads the comma separated literals of inputValues and
// outputValues. Quoted literals become strings, numbers become int64 or
// float64 and anything else is kept as written.
func parseValueList(tests *dmn.TUnaryTests) ([]any, error) {
	if tests == nil || strings.TrimSpace(tests.Text) == "" {
		return nil, nil
	}
	items, err := feel.SplitList(tests.Text)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		switch {
		case strings.HasPrefix(item, `"`):
			value, err := strconv.Unquote(item)
			if err != nil {
				return nil, fmt.Errorf("invalid string literal %s: %w", item, err)
			}
			values = append(values, value)
		case item == "true" || item == "false":
			values = append(values, item == "true")
		default:
			if i, err := strconv.ParseInt(item, 10, 64); err == nil {
				values = append(values, i)
			} else if f, err := strconv.ParseFloat(item, 64); err == nil {
				values = append(values, f)
			} else {
				values = append(values, item)
			}
		}
	}
	return values, nil
}
