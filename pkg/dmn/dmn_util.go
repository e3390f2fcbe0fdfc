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

	"github.com/pbinitiative/zendmn/internal/config"
	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/script"
	"github.com/pbinitiative/zendmn/pkg/script/feel"
	"github.com/pbinitiative/zendmn/pkg/script/js"
	"github.com/pbinitiative/zendmn/pkg/script/juel"
)

// NewScriptEngineRegistry registers the JavaScript, JUEL and FEEL runtimes.
// The JavaScript VMs live until ctx is done.
func NewScriptEngineRegistry(ctx context.Context, conf config.Script) (*script.EngineRegistry, error) {
	jsRuntime, err := js.NewJsRuntime(ctx, conf.MaxPoolSize, conf.MinPoolSize, conf.ProgramCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create javascript runtime: %w", err)
	}
	return script.NewEngineRegistry().
		Register(jsRuntime, js.Languages...).
		Register(juel.NewJuelRuntime(jsRuntime), juel.Language).
		Register(feel.NewFeelRuntime(), feel.Languages...), nil
}

// mergeDecisionResult makes the result of a required decision visible to
// the decisions depending on it. A single row is merged entry by entry unless
// the decision collects rows without aggregating them, otherwise every output
// becomes a list.
func mergeDecisionResult(scope *variableScope, decision *runtime.Decision, result DecisionResult) {
	rows := result.Rows()
	if len(rows) == 0 {
		return
	}
	if len(rows) == 1 && !collectsRows(decision) {
		for _, entry := range rows[0].Entries() {
			scope.set(entry.Name, entry.Value.Value())
		}
		return
	}

	var names []string
	lists := map[string][]any{}
	for _, row := range rows {
		for _, entry := range row.Entries() {
			if _, ok := lists[entry.Name]; !ok {
				names = append(names, entry.Name)
			}
			lists[entry.Name] = append(lists[entry.Name], entry.Value.Value())
		}
	}
	for _, name := range names {
		scope.set(name, lists[name])
	}
}

func collectsRows(decision *runtime.Decision) bool {
	table, ok := decision.DecisionTable()
	if !ok {
		return false
	}
	if table.HitPolicy == runtime.HitPolicyCollect {
		return table.Aggregator == runtime.AggregatorNone
	}
	return table.HitPolicy == runtime.HitPolicyRuleOrder
}
