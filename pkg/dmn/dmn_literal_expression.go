// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package dmn

import (
	"fmt"

	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
)

// evaluateLiteralExpression produces a single row holding the value of the
// expression under the variable name of the literal expression.
func (engine *Engine) evaluateLiteralExpression(key int64, decision *runtime.Decision, literal *runtime.LiteralExpression, scope *variableScope) (DecisionResult, *LiteralExpressionEvaluationEvent, error) {
	evaluator := engine.newExpressionEvaluator(decision)
	raw, err := evaluator.evaluateExpression(roleLiteralExpression, literal.Expression, scope)
	if err != nil {
		return DecisionResult{}, nil, fmt.Errorf("failed to evaluate literal expression of decision %s: %w", decision.Key, err)
	}
	value, err := engine.transform(literal.Variable.TypeDefinition, raw)
	if err != nil {
		return DecisionResult{}, nil, fmt.Errorf("failed to evaluate literal expression of decision %s: %w", decision.Key, err)
	}

	name := literal.Variable.Name
	if name == "" {
		name = decision.Key
	}
	row := ResultRow{}
	row.put(name, value)
	engine.logger.Debug("literal expression evaluated", "decision", decision.Key, "variable", name)

	return NewDecisionResult(row), &LiteralExpressionEvaluationEvent{
		EvaluationKey:     key,
		Decision:          decision,
		LiteralExpression: literal,
		OutputName:        name,
		OutputValue:       value,
	}, nil
}
