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

	"github.com/pbinitiative/zendmn/pkg/dmn/types"
)

type EvaluatedInput struct {
	Key           string
	Name          string
	InputVariable string
	Expression    string
	Value         types.TypedValue
}

type EvaluatedOutput struct {
	Key        string
	Name       string
	OutputName string
	Value      types.TypedValue
}

type RuleResult struct {
	Key string
	// Index is the 1-based position of the rule in its table.
	Index   int
	Outputs []EvaluatedOutput
}

// OutputEntries returns the produced outputs keyed by output name.
func (r RuleResult) OutputEntries() map[string]types.TypedValue {
	entries := make(map[string]types.TypedValue, len(r.Outputs))
	for _, output := range r.Outputs {
		entries[output.OutputName] = output.Value
	}
	return entries
}

// DecisionTableResult is a snapshot of one decision table evaluation. Every
// evaluation stage returns a new snapshot instead of changing its input.
type DecisionTableResult struct {
	ExecutedDecisionElements int64
	Inputs                   []EvaluatedInput
	MatchedRules             []RuleResult
	// CollectResultName is set by COLLECT with an aggregator. The value may
	// be null.
	CollectResultName  string
	CollectResultValue types.TypedValue
}

func (r DecisionTableResult) HasCollectResult() bool {
	return r.CollectResultName != ""
}

// Input returns the evaluated input of the clause with the given key.
func (r DecisionTableResult) Input(clauseKey string) (EvaluatedInput, bool) {
	for _, input := range r.Inputs {
		if input.Key == clauseKey {
			return input, true
		}
	}
	return EvaluatedInput{}, false
}

func (r DecisionTableResult) withMatchedRules(rules []RuleResult) DecisionTableResult {
	r.MatchedRules = rules
	return r
}

func (r DecisionTableResult) clone() DecisionTableResult {
	r.Inputs = slices.Clone(r.Inputs)
	r.MatchedRules = slices.Clone(r.MatchedRules)
	return r
}

type ResultEntry struct {
	Name  string
	Value types.TypedValue
}

// ResultRow maps output names to values and keeps the order the outputs were
// produced in.
type ResultRow struct {
	entries []ResultEntry
}

func (r *ResultRow) put(name string, value types.TypedValue) {
	for i := range r.entries {
		if r.entries[i].Name == name {
			r.entries[i].Value = value
			return
		}
	}
	r.entries = append(r.entries, ResultEntry{Name: name, Value: value})
}

func (r ResultRow) Entries() []ResultEntry {
	return slices.Clone(r.entries)
}

func (r ResultRow) Len() int {
	return len(r.entries)
}

func (r ResultRow) Names() []string {
	names := make([]string, len(r.entries))
	for i, entry := range r.entries {
		names[i] = entry.Name
	}
	return names
}

func (r ResultRow) Get(name string) (types.TypedValue, bool) {
	for _, entry := range r.entries {
		if entry.Name == name {
			return entry.Value, true
		}
	}
	return types.TypedValue{}, false
}

// SingleEntry returns the first entry of the row. ok is false for an empty row.
func (r ResultRow) SingleEntry() (types.TypedValue, bool) {
	if len(r.entries) == 0 {
		return types.TypedValue{}, false
	}
	return r.entries[0].Value, true
}

// ToMap returns the plain values of the row.
func (r ResultRow) ToMap() map[string]any {
	values := make(map[string]any, len(r.entries))
	for _, entry := range r.entries {
		values[entry.Name] = entry.Value.Value()
	}
	return values
}

// DecisionResult is the ordered list of rows a decision produced.
type DecisionResult struct {
	rows []ResultRow
}

func NewDecisionResult(rows ...ResultRow) DecisionResult {
	return DecisionResult{rows: rows}
}

func (d DecisionResult) Rows() []ResultRow {
	return slices.Clone(d.rows)
}

func (d DecisionResult) Len() int {
	return len(d.rows)
}

func (d DecisionResult) IsEmpty() bool {
	return len(d.rows) == 0
}

// SingleResult returns the only row of the result, nil for an empty result
// and ErrAmbiguousResult when there are more rows.
func (d DecisionResult) SingleResult() (*ResultRow, error) {
	switch len(d.rows) {
	case 0:
		return nil, nil
	case 1:
		row := d.rows[0]
		return &row, nil
	}
	return nil, fmt.Errorf("%w: expected a single result row but got %d", ErrAmbiguousResult, len(d.rows))
}

// SingleEntry returns the first entry of the only row. An empty result yields
// a null value.
func (d DecisionResult) SingleEntry() (types.TypedValue, error) {
	row, err := d.SingleResult()
	if err != nil || row == nil {
		return types.Untyped(nil), err
	}
	value, _ := row.SingleEntry()
	return value, nil
}

// CollectEntries returns the value of the named output of every row that has it.
func (d DecisionResult) CollectEntries(name string) []types.TypedValue {
	values := make([]types.TypedValue, 0, len(d.rows))
	for _, row := range d.rows {
		if value, ok := row.Get(name); ok {
			values = append(values, value)
		}
	}
	return values
}

// ResultList returns the plain values of all rows.
func (d DecisionResult) ResultList() []map[string]any {
	list := make([]map[string]any, len(d.rows))
	for i, row := range d.rows {
		list[i] = row.ToMap()
	}
	return list
}

// assembleDecisionResult turns a reconciled table result into rows. An
// aggregated result becomes a single row.
func assembleDecisionResult(result DecisionTableResult) DecisionResult {
	if result.HasCollectResult() {
		row := ResultRow{}
		row.put(result.CollectResultName, result.CollectResultValue)
		return NewDecisionResult(row)
	}
	rows := make([]ResultRow, 0, len(result.MatchedRules))
	for _, rule := range result.MatchedRules {
		row := ResultRow{}
		for _, output := range rule.Outputs {
			row.put(output.OutputName, output.Value)
		}
		rows = append(rows, row)
	}
	return NewDecisionResult(rows...)
}
