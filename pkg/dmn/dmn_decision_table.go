// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package dmn

import (
	"context"
	"fmt"

	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/dmn/types"
	otelPkg "github.com/pbinitiative/zendmn/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// evaluateDecisionTable runs inputs, rule matching, rule outputs and the hit
// policy, then notifies listeners and assembles the rows.
func (engine *Engine) evaluateDecisionTable(ctx context.Context, key int64, decision *runtime.Decision, table *runtime.DecisionTable, scope *variableScope) (DecisionResult, *DecisionTableEvaluationEvent, error) {
	handler, err := HandlerFor(table.HitPolicy, table.Aggregator)
	if err != nil {
		return DecisionResult{}, nil, err
	}
	evaluator := engine.newExpressionEvaluator(decision)

	inputs, inputValues, err := evaluator.evaluateInputs(table, scope)
	if err != nil {
		return DecisionResult{}, nil, err
	}
	matchedRules, err := evaluator.matchRules(table, inputValues, scope)
	if err != nil {
		return DecisionResult{}, nil, err
	}
	ruleResults, err := evaluator.evaluateRuleOutputs(table, matchedRules, scope)
	if err != nil {
		return DecisionResult{}, nil, err
	}

	result, err := handler.Apply(table, DecisionTableResult{
		ExecutedDecisionElements: table.ExecutedDecisionElements(),
		Inputs:                   inputs,
		MatchedRules:             ruleResults,
	})
	if err != nil {
		return DecisionResult{}, nil, fmt.Errorf("failed to apply hit policy of decision %s: %w", decision.Key, err)
	}
	trace.SpanFromContext(ctx).AddEvent("decision table evaluated", trace.WithAttributes(
		attribute.String(otelPkg.AttributeDecisionKey, decision.Key),
		attribute.String(otelPkg.AttributeHitPolicy, table.HitPolicy.String()),
		attribute.Int(otelPkg.AttributeMatchedRules, len(ruleResults)),
	))
	engine.logger.Debug("decision table evaluated", "decision", decision.Key, "hitPolicy", table.HitPolicy.String(),
		"matchedRules", len(ruleResults), "reconciledRules", len(result.MatchedRules))

	event := newDecisionTableEvaluationEvent(key, decision, table, result)
	if err := engine.notifyPreDecisionTable(ctx, event); err != nil {
		return DecisionResult{}, nil, err
	}
	decisionResult := assembleDecisionResult(result)
	engine.notifyPostDecisionTable(ctx, event)
	return decisionResult, event, nil
}

// evaluateInputs evaluates every input expression once. Clauses without an
// expression are skipped.
func (e *expressionEvaluator) evaluateInputs(table *runtime.DecisionTable, scope *variableScope) ([]EvaluatedInput, map[string]types.TypedValue, error) {
	inputs := make([]EvaluatedInput, 0, len(table.Inputs))
	values := make(map[string]types.TypedValue, len(table.Inputs))
	for _, clause := range table.Inputs {
		if clause.Expression.IsEmpty() {
			continue
		}
		raw, err := e.evaluateExpression(roleInputExpression, *clause.Expression, scope)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to evaluate input %s: %w", clauseLabel(clause), err)
		}
		typed, err := e.engine.transform(clause.TypeDefinition, raw)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to evaluate input %s: %w", clauseLabel(clause), err)
		}
		values[clause.Key] = typed
		inputs = append(inputs, EvaluatedInput{
			Key:           clause.Key,
			Name:          clause.Name,
			InputVariable: clause.InputVariableName(),
			Expression:    clause.Expression.Text,
			Value:         typed,
		})
	}
	return inputs, values, nil
}

// matchRules returns the applicable rules in declaration order.
func (e *expressionEvaluator) matchRules(table *runtime.DecisionTable, inputs map[string]types.TypedValue, scope *variableScope) ([]*runtime.Rule, error) {
	matched := make([]*runtime.Rule, 0, len(table.Rules))
	for _, rule := range table.Rules {
		applicable, err := e.isRuleApplicable(rule, inputs, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate rule %s: %w", rule.Key, err)
		}
		if applicable {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

// isRuleApplicable evaluates the conditions of a rule in order. Once a
// condition of a clause is true, further conditions on the same clause are
// skipped. The rule applies when every referenced clause is satisfied.
func (e *expressionEvaluator) isRuleApplicable(rule *runtime.Rule, inputs map[string]types.TypedValue, scope *variableScope) (bool, error) {
	satisfied := make(map[string]bool, len(rule.Conditions))
	for _, condition := range rule.Conditions {
		clause := condition.Clause
		if satisfied[clause.Key] {
			continue
		}
		input, ok := inputs[clause.Key]
		if !ok {
			input = types.Untyped(nil)
		}
		matched, err := e.evaluateInputEntry(clause, condition.Expression, scope.withInput(clause, input))
		if err != nil {
			return false, err
		}
		satisfied[clause.Key] = matched
	}
	for _, ok := range satisfied {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// evaluateRuleOutputs evaluates the conclusions of the matched rules against
// the decision scope. Empty conclusions produce no output.
func (e *expressionEvaluator) evaluateRuleOutputs(table *runtime.DecisionTable, rules []*runtime.Rule, scope *variableScope) ([]RuleResult, error) {
	index := make(map[*runtime.Rule]int, len(table.Rules))
	for i, rule := range table.Rules {
		index[rule] = i + 1
	}

	results := make([]RuleResult, 0, len(rules))
	for _, rule := range rules {
		result := RuleResult{Key: rule.Key, Index: index[rule]}
		for _, conclusion := range rule.Conclusions {
			if conclusion.Expression.IsEmpty() {
				continue
			}
			clause := conclusion.Clause
			raw, err := e.evaluateExpression(roleOutputEntry, conclusion.Expression, scope)
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate output %s of rule %s: %w", clauseLabel(clause), rule.Key, err)
			}
			typed, err := e.engine.transform(clause.TypeDefinition, raw)
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate output %s of rule %s: %w", clauseLabel(clause), rule.Key, err)
			}
			result.Outputs = append(result.Outputs, EvaluatedOutput{
				Key:        clause.Key,
				Name:       clause.Name,
				OutputName: clause.OutputName,
				Value:      typed,
			})
		}
		results = append(results, result)
	}
	return results, nil
}

func clauseLabel(clause *runtime.Clause) string {
	if clause.Name != "" {
		return fmt.Sprintf("'%s' (%s)", clause.Name, clause.Key)
	}
	return clause.Key
}
