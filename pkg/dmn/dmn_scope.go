// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package dmn

import (
	"maps"

	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/dmn/types"
)

// variableScope is the set of variables an expression is evaluated with.
// Scopes are owned by a single evaluation call and never touch the caller's map.
type variableScope struct {
	variables map[string]any
}

func newVariableScope(variables map[string]any) *variableScope {
	s := variableScope{variables: make(map[string]any, len(variables)+2)}
	maps.Copy(s.variables, variables)
	return &s
}

// bindInput binds the evaluated input of clause under its input variable
// name, and the typed value under the same name with the "_typed" suffix.
func (s *variableScope) bindInput(clause *runtime.Clause, value types.TypedValue) {
	s.variables[clause.InputVariableName()] = value.Value()
	s.variables[clause.TypedInputVariableName()] = value
}

// withInput returns a copy of the scope with the input of clause bound.
func (s *variableScope) withInput(clause *runtime.Clause, value types.TypedValue) *variableScope {
	local := newVariableScope(s.variables)
	local.bindInput(clause, value)
	return local
}

func (s *variableScope) set(name string, value any) {
	s.variables[name] = value
}

func (s *variableScope) context() map[string]any {
	return s.variables
}
