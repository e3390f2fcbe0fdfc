// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package script

import (
	"errors"
	"strings"
)

var ErrNoScriptEngineFound = errors.New("no script engine found")

// FeelEngine evaluates FEEL simple expressions and simple unary tests.
type FeelEngine interface {
	EvaluateSimpleExpression(expression string, variableContext map[string]any) (any, error)
	// EvaluateSimpleUnaryTests tests the value bound to inputName in
	// variableContext against the unary tests in expression.
	EvaluateSimpleUnaryTests(expression string, inputName string, variableContext map[string]any) (bool, error)
}

// ScriptEngine evaluates expressions of one named scripting language.
// Implementations must not modify variableContext.
type ScriptEngine interface {
	Evaluate(expression string, variableContext map[string]any) (any, error)
}

// Resolver looks up a script engine by language name.
type Resolver interface {
	Lookup(language string) (ScriptEngine, bool)
}

// EngineRegistry is a Resolver backed by a map. Registration happens during
// setup, lookups afterwards need no locking.
type EngineRegistry struct {
	engines map[string]ScriptEngine
}

func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{engines: map[string]ScriptEngine{}}
}

// Register makes engine available under every given language name.
func (r *EngineRegistry) Register(engine ScriptEngine, languages ...string) *EngineRegistry {
	for _, language := range languages {
		r.engines[strings.ToLower(strings.TrimSpace(language))] = engine
	}
	return r
}

func (r *EngineRegistry) Lookup(language string) (ScriptEngine, bool) {
	engine, ok := r.engines[strings.ToLower(strings.TrimSpace(language))]
	return engine, ok
}
