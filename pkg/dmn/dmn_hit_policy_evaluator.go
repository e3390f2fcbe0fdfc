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

	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/dmn/types"
)

// HitPolicyHandler reconciles the matched rules of a decision table. The
// rules arrive in declaration order.
type HitPolicyHandler interface {
	Apply(table *runtime.DecisionTable, result DecisionTableResult) (DecisionTableResult, error)
}

// HandlerFor returns the handler of a hit policy and aggregator pair.
// Aggregators are only valid together with COLLECT.
func HandlerFor(hitPolicy runtime.HitPolicy, aggregator runtime.Aggregator) (HitPolicyHandler, error) {
	if aggregator != runtime.AggregatorNone && hitPolicy != runtime.HitPolicyCollect {
		return nil, fmt.Errorf("%w: hit policy %s does not support aggregator %s", ErrNoHitPolicyHandler, hitPolicy, aggregator)
	}
	switch hitPolicy {
	case runtime.HitPolicyUnique:
		return uniqueHandler{}, nil
	case runtime.HitPolicyFirst:
		return firstHandler{}, nil
	case runtime.HitPolicyPriority:
		return priorityHandler{}, nil
	case runtime.HitPolicyAny:
		return anyHandler{}, nil
	case runtime.HitPolicyRuleOrder:
		return ruleOrderHandler{}, nil
	case runtime.HitPolicyOutputOrder:
		return outputOrderHandler{}, nil
	case runtime.HitPolicyCollect:
		switch aggregator {
		case runtime.AggregatorNone, runtime.AggregatorSum, runtime.AggregatorMin, runtime.AggregatorMax, runtime.AggregatorCount:
			return collectHandler{aggregator: aggregator}, nil
		}
	}
	return nil, fmt.Errorf("%w: hit policy %s with aggregator %s", ErrNoHitPolicyHandler, hitPolicy, aggregator)
}

type uniqueHandler struct{}

func (uniqueHandler) Apply(table *runtime.DecisionTable, result DecisionTableResult) (DecisionTableResult, error) {
	if len(result.MatchedRules) > 1 {
		return result, fmt.Errorf("%w: hit policy UNIQUE only allows a single rule to match, matched rules %v",
			ErrAmbiguousResult, ruleKeys(result.MatchedRules))
	}
	return result, nil
}

type firstHandler struct{}

func (firstHandler) Apply(table *runtime.DecisionTable, result DecisionTableResult) (DecisionTableResult, error) {
	if len(result.MatchedRules) > 1 {
		return result.withMatchedRules(result.MatchedRules[:1:1]), nil
	}
	return result, nil
}

type anyHandler struct{}

func (anyHandler) Apply(table *runtime.DecisionTable, result DecisionTableResult) (DecisionTableResult, error) {
	if len(result.MatchedRules) < 2 {
		return result, nil
	}
	first := result.MatchedRules[0]
	for _, rule := range result.MatchedRules[1:] {
		if !sameOutputs(first, rule) {
			return result, fmt.Errorf("%w: hit policy ANY only allows matched rules with equal outputs, rules %s and %s differ",
				ErrHitPolicyViolation, first.Key, rule.Key)
		}
	}
	return result, nil
}

func sameOutputs(a, b RuleResult) bool {
	entriesA, entriesB := a.OutputEntries(), b.OutputEntries()
	if len(entriesA) != len(entriesB) {
		return false
	}
	for name, value := range entriesA {
		other, ok := entriesB[name]
		if !ok || !types.ValuesEqual(value, other) {
			return false
		}
	}
	return true
}

type ruleOrderHandler struct{}

func (ruleOrderHandler) Apply(table *runtime.DecisionTable, result DecisionTableResult) (DecisionTableResult, error) {
	return result, nil
}

type priorityHandler struct{}

func (priorityHandler) Apply(table *runtime.DecisionTable, result DecisionTableResult) (DecisionTableResult, error) {
	if len(result.MatchedRules) == 0 {
		return result, nil
	}
	ordered, err := sortByOutputValues(table, result.MatchedRules, "PRIORITY")
	if err != nil {
		return result, err
	}
	return result.withMatchedRules(ordered[:1:1]), nil
}

type outputOrderHandler struct{}

func (outputOrderHandler) Apply(table *runtime.DecisionTable, result DecisionTableResult) (DecisionTableResult, error) {
	if len(result.MatchedRules) == 0 {
		return result, nil
	}
	ordered, err := sortByOutputValues(table, result.MatchedRules, "OUTPUT ORDER")
	if err != nil {
		return result, err
	}
	return result.withMatchedRules(ordered), nil
}

// sortByOutputValues orders rules by the position of their outputs in the
// output value lists. Output clauses are compared in declaration order and
// clauses without values are ignored. Equal rules keep their order.
func sortByOutputValues(table *runtime.DecisionTable, rules []RuleResult, policy string) ([]RuleResult, error) {
	var clauses []*runtime.Clause
	for _, clause := range table.Outputs {
		if len(clause.OutputValues) > 0 {
			clauses = append(clauses, clause)
		}
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("%w: hit policy %s requires output values on at least one output clause", ErrHitPolicyViolation, policy)
	}

	priorities := make(map[string][]int, len(rules))
	for _, rule := range rules {
		entries := rule.OutputEntries()
		ranks := make([]int, len(clauses))
		for i, clause := range clauses {
			value, ok := entries[clause.OutputName]
			rank := -1
			if ok {
				rank = slices.IndexFunc(clause.OutputValues, func(candidate any) bool {
					return types.ValuesEqual(candidate, value.Value())
				})
			}
			if rank < 0 {
				return nil, fmt.Errorf("%w: hit policy %s: value %v of output %s in rule %s is not one of the output values %v",
					ErrHitPolicyViolation, policy, value.Value(), clause.OutputName, rule.Key, clause.OutputValues)
			}
			ranks[i] = rank
		}
		priorities[rule.Key] = ranks
	}

	ordered := slices.Clone(rules)
	slices.SortStableFunc(ordered, func(a, b RuleResult) int {
		return slices.Compare(priorities[a.Key], priorities[b.Key])
	})
	return ordered, nil
}

type collectHandler struct {
	aggregator runtime.Aggregator
}

func (h collectHandler) Apply(table *runtime.DecisionTable, result DecisionTableResult) (DecisionTableResult, error) {
	if h.aggregator == runtime.AggregatorNone {
		return result, nil
	}
	name, err := collectResultName(table, result.MatchedRules)
	if err != nil {
		return result, err
	}

	values := make([]any, 0, len(result.MatchedRules))
	for _, rule := range result.MatchedRules {
		if len(rule.Outputs) > 1 {
			return result, fmt.Errorf("%w: hit policy COLLECT with aggregator %s cannot aggregate compound output of rule %s",
				ErrHitPolicyViolation, h.aggregator, rule.Key)
		}
		if len(rule.Outputs) == 1 && !rule.Outputs[0].Value.IsNull() {
			values = append(values, rule.Outputs[0].Value.Value())
		}
	}

	var aggregate types.TypedValue
	if h.aggregator == runtime.AggregatorCount {
		aggregate = types.NewTypedValue(types.TypeLong, int64(len(result.MatchedRules)))
	} else {
		aggregate, err = aggregateNumbers(h.aggregator, values)
		if err != nil {
			return result, err
		}
	}
	result.CollectResultName = name
	result.CollectResultValue = aggregate
	return result, nil
}

// collectResultName is the output name produced by the matched rules, or the
// first output clause when no rule produced one.
func collectResultName(table *runtime.DecisionTable, rules []RuleResult) (string, error) {
	for _, rule := range rules {
		if len(rule.Outputs) > 0 {
			return rule.Outputs[0].OutputName, nil
		}
	}
	if len(table.Outputs) > 0 && table.Outputs[0].OutputName != "" {
		return table.Outputs[0].OutputName, nil
	}
	return "", fmt.Errorf("%w: hit policy COLLECT with aggregator requires an output clause", ErrHitPolicyViolation)
}

// aggregateNumbers computes SUM, MIN or MAX. Integral values aggregate to
// int64, a single floating point value turns the aggregate into float64.
// Without values the aggregate is null.
func aggregateNumbers(aggregator runtime.Aggregator, values []any) (types.TypedValue, error) {
	if len(values) == 0 {
		return types.Untyped(nil), nil
	}
	integral := true
	for _, value := range values {
		if !types.IsNumber(value) {
			return types.TypedValue{}, fmt.Errorf("%w: unable to %s non numeric value %v of type %T",
				ErrHitPolicyViolation, aggregator, value, value)
		}
		if _, ok := types.AsInt64(value); !ok || !types.IsIntegral(value) {
			integral = false
		}
	}

	if integral {
		ints := make([]int64, len(values))
		for i, value := range values {
			ints[i], _ = types.AsInt64(value)
		}
		return types.NewTypedValue(types.TypeLong, reduce(aggregator, ints)), nil
	}
	floats := make([]float64, len(values))
	for i, value := range values {
		floats[i], _ = types.AsFloat64(value)
	}
	return types.NewTypedValue(types.TypeDouble, reduce(aggregator, floats)), nil
}

func reduce[T int64 | float64](aggregator runtime.Aggregator, values []T) T {
	switch aggregator {
	case runtime.AggregatorMin:
		return slices.Min(values)
	case runtime.AggregatorMax:
		return slices.Max(values)
	}
	var sum T
	for _, value := range values {
		sum += value
	}
	return sum
}

func ruleKeys(rules []RuleResult) []string {
	keys := make([]string, len(rules))
	for i, rule := range rules {
		keys[i] = rule.Key
	}
	return keys
}
