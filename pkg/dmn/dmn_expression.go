// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package dmn

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/script/feel"
	"github.com/pbinitiative/zendmn/pkg/script/juel"
)

const FeelLanguage = "feel"

// expressionRole is the place an expression takes in a decision. Every role
// has its own default language.
type expressionRole int

const (
	roleInputExpression expressionRole = iota
	roleInputEntry
	roleOutputEntry
	roleLiteralExpression
)

func (r expressionRole) String() string {
	switch r {
	case roleInputExpression:
		return "input expression"
	case roleInputEntry:
		return "input entry"
	case roleOutputEntry:
		return "output entry"
	case roleLiteralExpression:
		return "literal expression"
	}
	return "unknown"
}

func isFeelLanguage(language string) bool {
	return slices.Contains(feel.Languages, strings.ToLower(strings.TrimSpace(language)))
}

// resolveLanguage picks the explicit language of the expression, then the
// engine default for the role, then the default of the decision and finally
// FEEL.
func (engine *Engine) resolveLanguage(expression runtime.Expression, role expressionRole, decision *runtime.Decision) string {
	if language := strings.TrimSpace(expression.Language); language != "" {
		return language
	}
	var language string
	switch role {
	case roleInputExpression:
		language = engine.defaultInputExpressionLanguage
	case roleInputEntry:
		language = engine.defaultInputEntryLanguage
	case roleOutputEntry:
		language = engine.defaultOutputEntryLanguage
	case roleLiteralExpression:
		language = engine.defaultLiteralExpressionLanguage
	}
	if language == "" && decision != nil {
		language = strings.TrimSpace(decision.ExpressionLanguage)
	}
	if language == "" {
		return FeelLanguage
	}
	return language
}

// cacheKey identifies an expression within one decision table evaluation.
// Input entries are tested against the input of their clause, so the clause
// is part of their identity.
type cacheKey struct {
	role     expressionRole
	language string
	clause   string
	text     string
}

// evaluationCache memoizes raw expression results for the duration of a
// single decision table evaluation.
type evaluationCache struct {
	values map[cacheKey]any
}

func newEvaluationCache() *evaluationCache {
	return &evaluationCache{values: map[cacheKey]any{}}
}

// expressionEvaluator dispatches expressions to the engine matching their
// language. Each decision table evaluation uses its own evaluator.
type expressionEvaluator struct {
	engine   *Engine
	decision *runtime.Decision
	cache    *evaluationCache
}

func (engine *Engine) newExpressionEvaluator(decision *runtime.Decision) *expressionEvaluator {
	return &expressionEvaluator{
		engine:   engine,
		decision: decision,
		cache:    newEvaluationCache(),
	}
}

// evaluateExpression evaluates input expressions, output entries and
// literal expressions. Empty expressions yield nil without calling an engine.
func (e *expressionEvaluator) evaluateExpression(role expressionRole, expression runtime.Expression, scope *variableScope) (any, error) {
	if expression.IsEmpty() {
		return nil, nil
	}
	language := e.engine.resolveLanguage(expression, role, e.decision)
	key := cacheKey{role: role, language: strings.ToLower(language), text: expression.Text}
	if value, ok := e.cache.values[key]; ok {
		return value, nil
	}
	value, err := e.engine.evaluate(language, expression.Text, scope)
	if err != nil {
		return nil, err
	}
	e.cache.values[key] = value
	return value, nil
}

// evaluateInputEntry tests the input of clause bound in scope against entry.
// Empty entries match without calling an engine.
func (e *expressionEvaluator) evaluateInputEntry(clause *runtime.Clause, entry runtime.Expression, scope *variableScope) (bool, error) {
	if entry.IsEmpty() || strings.TrimSpace(entry.Text) == "-" {
		return true, nil
	}
	language := e.engine.resolveLanguage(entry, roleInputEntry, e.decision)
	key := cacheKey{role: roleInputEntry, language: strings.ToLower(language), clause: clause.Key, text: entry.Text}
	if value, ok := e.cache.values[key]; ok {
		return value.(bool), nil
	}

	var matched bool
	if isFeelLanguage(language) {
		result, err := e.engine.feel.EvaluateSimpleUnaryTests(entry.Text, clause.InputVariableName(), scope.context())
		if err != nil {
			return false, &ExpressionEvaluationError{Language: language, Expression: entry.Text, Err: err}
		}
		matched = result
	} else {
		result, err := e.engine.evaluateScript(language, entry.Text, scope)
		if err != nil {
			return false, err
		}
		b, ok := result.(bool)
		if !ok && result != nil {
			return false, &ExpressionEvaluationError{
				Language:   language,
				Expression: entry.Text,
				Err:        fmt.Errorf("input entry evaluated to non boolean value %v", result),
			}
		}
		matched = b
	}
	e.cache.values[key] = matched
	return matched, nil
}

func (engine *Engine) evaluate(language string, text string, scope *variableScope) (any, error) {
	if isFeelLanguage(language) {
		value, err := engine.feel.EvaluateSimpleExpression(text, scope.context())
		if err != nil {
			return nil, &ExpressionEvaluationError{Language: language, Expression: text, Err: err}
		}
		return value, nil
	}
	return engine.evaluateScript(language, text, scope)
}

func (engine *Engine) evaluateScript(language string, text string, scope *variableScope) (any, error) {
	scriptEngine, ok := engine.scripts.Lookup(language)
	if !ok {
		return nil, fmt.Errorf("%w: unable to find script engine for language \"%s\"", ErrNoScriptEngineFound, language)
	}
	if strings.EqualFold(strings.TrimSpace(language), juel.Language) {
		text = juel.Wrap(text)
	}
	value, err := scriptEngine.Evaluate(text, scope.context())
	if err != nil {
		return nil, &ExpressionEvaluationError{Language: language, Expression: text, Err: err}
	}
	return value, nil
}
