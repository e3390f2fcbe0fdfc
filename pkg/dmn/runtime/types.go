// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package runtime holds the immutable decision model the engine evaluates.
// Values of this package are built once (usually by the DMN XML adapter) and
// shared read-only between concurrent evaluations.
package runtime

import (
	"fmt"
	"strings"
)

// DefaultInputVariableName is bound to the evaluated input value while the
// input entries of a clause are tested.
const DefaultInputVariableName = "cellInput"

// TypedSuffix is appended to an input variable name to form the binding that
// carries the typed input value.
const TypedSuffix = "_typed"

type ClauseRole int

const (
	RoleInput ClauseRole = iota
	RoleOutput
)

func (r ClauseRole) String() string {
	if r == RoleOutput {
		return "output"
	}
	return "input"
}

type HitPolicy int

const (
	HitPolicyUnique HitPolicy = iota
	HitPolicyFirst
	HitPolicyPriority
	HitPolicyAny
	HitPolicyRuleOrder
	HitPolicyOutputOrder
	HitPolicyCollect
)

var hitPolicyNames = map[HitPolicy]string{
	HitPolicyUnique:      "UNIQUE",
	HitPolicyFirst:       "FIRST",
	HitPolicyPriority:    "PRIORITY",
	HitPolicyAny:         "ANY",
	HitPolicyRuleOrder:   "RULE ORDER",
	HitPolicyOutputOrder: "OUTPUT ORDER",
	HitPolicyCollect:     "COLLECT",
}

func (h HitPolicy) String() string {
	if name, ok := hitPolicyNames[h]; ok {
		return name
	}
	return fmt.Sprintf("HitPolicy(%d)", int(h))
}

// ParseHitPolicy maps the DMN name of a hit policy. An empty name is UNIQUE,
// the DMN default.
func ParseHitPolicy(name string) (HitPolicy, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
	if normalized == "" {
		return HitPolicyUnique, true
	}
	for policy, policyName := range hitPolicyNames {
		if policyName == normalized {
			return policy, true
		}
	}
	return 0, false
}

type Aggregator int

const (
	AggregatorNone Aggregator = iota
	AggregatorSum
	AggregatorMin
	AggregatorMax
	AggregatorCount
)

var aggregatorNames = map[Aggregator]string{
	AggregatorNone:  "",
	AggregatorSum:   "SUM",
	AggregatorMin:   "MIN",
	AggregatorMax:   "MAX",
	AggregatorCount: "COUNT",
}

func (a Aggregator) String() string {
	if name, ok := aggregatorNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Aggregator(%d)", int(a))
}

func ParseAggregator(name string) (Aggregator, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	for aggregator, aggregatorName := range aggregatorNames {
		if aggregatorName == normalized {
			return aggregator, true
		}
	}
	return 0, false
}

// Expression is a piece of expression text with an optional explicit
// language. An empty Language means the engine default for the role applies.
type Expression struct {
	Key      string
	Text     string
	Language string
}

// IsEmpty reports whether the expression carries no text. Empty expressions
// are never handed to an evaluator.
func (e *Expression) IsEmpty() bool {
	return e == nil || strings.TrimSpace(e.Text) == ""
}

type TypeDefinition struct {
	TypeName string
}

type Clause struct {
	Key  string
	Name string
	Role ClauseRole
	// OutputName is the name an output clause writes its value under.
	OutputName string
	// InputVariable is the variable an input clause binds its value to while
	// its entries are tested.
	InputVariable string
	// Expression produces the tested value of an input clause. Nil for
	// output clauses and for input clauses without an expression.
	Expression     *Expression
	TypeDefinition TypeDefinition
	InputValues    []any
	// OutputValues is the ordered list used by PRIORITY and OUTPUT ORDER.
	OutputValues []any
}

// InputVariableName returns the configured input variable or the default.
func (c *Clause) InputVariableName() string {
	if c.InputVariable == "" {
		return DefaultInputVariableName
	}
	return c.InputVariable
}

// TypedInputVariableName is the binding that carries the typed input value.
func (c *Clause) TypedInputVariableName() string {
	return c.InputVariableName() + TypedSuffix
}

type ClauseEntry struct {
	Key        string
	Clause     *Clause
	Expression Expression
}

type Rule struct {
	Key         string
	Name        string
	Conditions  []*ClauseEntry
	Conclusions []*ClauseEntry
}

// DecisionLogic is implemented by the kinds of decision logic the engine
// knows how to evaluate.
type DecisionLogic interface {
	decisionLogic()
}

type DecisionTable struct {
	Key        string
	Inputs     []*Clause
	Outputs    []*Clause
	Rules      []*Rule
	HitPolicy  HitPolicy
	Aggregator Aggregator
}

func (*DecisionTable) decisionLogic() {}

// Clauses returns input clauses followed by output clauses.
func (t *DecisionTable) Clauses() []*Clause {
	clauses := make([]*Clause, 0, len(t.Inputs)+len(t.Outputs))
	clauses = append(clauses, t.Inputs...)
	return append(clauses, t.Outputs...)
}

// ExecutedDecisionElements is the audit metric of one evaluation of the
// table: every clause counted once for every rule.
func (t *DecisionTable) ExecutedDecisionElements() int64 {
	return int64(len(t.Inputs)+len(t.Outputs)) * int64(len(t.Rules))
}

type Variable struct {
	Name           string
	TypeDefinition TypeDefinition
}

type LiteralExpression struct {
	Key        string
	Expression Expression
	Variable   Variable
}

func (*LiteralExpression) decisionLogic() {}

type Decision struct {
	Key        string
	Name       string
	VersionTag string
	// ExpressionLanguage is used for expressions without a language when the
	// engine has no default for their role either.
	ExpressionLanguage string
	Logic              DecisionLogic
	RequiredDecisions  []*Decision
}

// DecisionTable returns the logic of the decision when it is a decision table.
func (d *Decision) DecisionTable() (*DecisionTable, bool) {
	table, ok := d.Logic.(*DecisionTable)
	return table, ok
}
