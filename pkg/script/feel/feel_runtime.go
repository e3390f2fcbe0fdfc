// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package feel

import (
	"fmt"

	"github.com/pbinitiative/feel"
	"github.com/pbinitiative/zendmn/pkg/dmn/types"
)

// Languages are the names FEEL expressions are tagged with in DMN models.
var Languages = []string{
	"feel",
	"http://www.omg.org/spec/FEEL/20140401",
	"https://www.omg.org/spec/DMN/20191111/FEEL/",
	"https://www.omg.org/spec/DMN/20180521/FEEL/",
}

// FeelRuntime evaluates FEEL expressions and unary tests.
// The underlying interpreter keeps no state between calls so a single value
// can be shared by concurrent evaluations.
type FeelRuntime struct {
	eval func(expression string, scope map[string]any) (any, error)
}

func NewFeelRuntime() *FeelRuntime {
	return &FeelRuntime{
		eval: func(expression string, scope map[string]any) (any, error) {
			return feel.EvalStringWithScope(expression, scope)
		},
	}
}

// Evaluate implements script.ScriptEngine so FEEL can also be picked through
// the language registry.
func (r *FeelRuntime) Evaluate(expression string, variableContext map[string]any) (any, error) {
	return r.EvaluateSimpleExpression(expression, variableContext)
}

func (r *FeelRuntime) EvaluateSimpleExpression(expression string, variableContext map[string]any) (any, error) {
	value, err := r.safeEval(expression, variableContext)
	if err != nil {
		return nil, err
	}
	return types.NormalizeNumber(value), nil
}

// EvaluateSimpleUnaryTests checks the value bound to inputName against the
// unary tests in expression.
func (r *FeelRuntime) EvaluateSimpleUnaryTests(expression string, inputName string, variableContext map[string]any) (bool, error) {
	test, err := UnaryTestsToExpression(expression, inputName)
	if err != nil {
		return false, err
	}
	if test == "" {
		return true, nil
	}
	value, err := r.safeEval(test, variableContext)
	if err != nil {
		return false, err
	}
	switch v := value.(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("unary tests \"%s\" evaluated to non boolean value %v", expression, value)
}

func (r *FeelRuntime) safeEval(expression string, variableContext map[string]any) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value = nil
			err = fmt.Errorf("failed to evaluate feel expression \"%s\": %v", expression, p)
		}
	}()
	scope := make(map[string]any, len(variableContext))
	for k, v := range variableContext {
		if typed, ok := v.(types.TypedValue); ok {
			v = typed.Value()
		}
		scope[k] = v
	}
	value, err = r.eval(expression, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate feel expression \"%s\": %w", expression, err)
	}
	return value, nil
}
