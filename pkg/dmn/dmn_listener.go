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
	"slices"

	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/dmn/types"
)

// DecisionLogicEvaluationEvent is either a *DecisionTableEvaluationEvent or
// a *LiteralExpressionEvaluationEvent.
type DecisionLogicEvaluationEvent interface {
	EvaluatedDecision() *runtime.Decision
	ExecutedElements() int64
}

type DecisionTableEvaluationEvent struct {
	EvaluationKey            int64
	Decision                 *runtime.Decision
	DecisionTable            *runtime.DecisionTable
	Inputs                   []EvaluatedInput
	MatchedRules             []RuleResult
	CollectResultName        string
	CollectResultValue       types.TypedValue
	ExecutedDecisionElements int64
}

func newDecisionTableEvaluationEvent(key int64, decision *runtime.Decision, table *runtime.DecisionTable, result DecisionTableResult) *DecisionTableEvaluationEvent {
	result = result.clone()
	return &DecisionTableEvaluationEvent{
		EvaluationKey:            key,
		Decision:                 decision,
		DecisionTable:            table,
		Inputs:                   result.Inputs,
		MatchedRules:             result.MatchedRules,
		CollectResultName:        result.CollectResultName,
		CollectResultValue:       result.CollectResultValue,
		ExecutedDecisionElements: result.ExecutedDecisionElements,
	}
}

func (e *DecisionTableEvaluationEvent) EvaluatedDecision() *runtime.Decision { return e.Decision }

func (e *DecisionTableEvaluationEvent) ExecutedElements() int64 { return e.ExecutedDecisionElements }

type LiteralExpressionEvaluationEvent struct {
	EvaluationKey     int64
	Decision          *runtime.Decision
	LiteralExpression *runtime.LiteralExpression
	OutputName        string
	OutputValue       types.TypedValue
}

func (e *LiteralExpressionEvaluationEvent) EvaluatedDecision() *runtime.Decision { return e.Decision }

func (e *LiteralExpressionEvaluationEvent) ExecutedElements() int64 { return 0 }

// DecisionEvaluationEvent describes the evaluation of a decision together
// with the decisions it required, in evaluation order.
type DecisionEvaluationEvent struct {
	EvaluationKey            int64
	Decision                 *runtime.Decision
	Result                   DecisionResult
	RootEvent                DecisionLogicEvaluationEvent
	RequiredDecisionEvents   []DecisionLogicEvaluationEvent
	ExecutedDecisionElements int64
}

type DecisionTableEvaluationListener interface {
	NotifyDecisionTable(ctx context.Context, event *DecisionTableEvaluationEvent) error
}

type DecisionEvaluationListener interface {
	NotifyDecision(ctx context.Context, event *DecisionEvaluationEvent) error
}

type DecisionTableEvaluationListenerFunc func(ctx context.Context, event *DecisionTableEvaluationEvent) error

func (f DecisionTableEvaluationListenerFunc) NotifyDecisionTable(ctx context.Context, event *DecisionTableEvaluationEvent) error {
	return f(ctx, event)
}

type DecisionEvaluationListenerFunc func(ctx context.Context, event *DecisionEvaluationEvent) error

func (f DecisionEvaluationListenerFunc) NotifyDecision(ctx context.Context, event *DecisionEvaluationEvent) error {
	return f(ctx, event)
}

// listeners holds the listeners of an engine. The lists are fixed when the
// engine is created.
type listeners struct {
	preDecisionTable  []DecisionTableEvaluationListener
	postDecisionTable []DecisionTableEvaluationListener
	preDecision       []DecisionEvaluationListener
	postDecision      []DecisionEvaluationListener
}

func (l listeners) freeze() listeners {
	return listeners{
		preDecisionTable:  slices.Clip(slices.Clone(l.preDecisionTable)),
		postDecisionTable: slices.Clip(slices.Clone(l.postDecisionTable)),
		preDecision:       slices.Clip(slices.Clone(l.preDecision)),
		postDecision:      slices.Clip(slices.Clone(l.postDecision)),
	}
}

func (engine *Engine) notifyPreDecisionTable(ctx context.Context, event *DecisionTableEvaluationEvent) error {
	for _, listener := range engine.listeners.preDecisionTable {
		if err := listener.NotifyDecisionTable(ctx, event); err != nil {
			return &ListenerError{Listener: fmt.Sprintf("%T", listener), Err: err}
		}
	}
	return nil
}

func (engine *Engine) notifyPostDecisionTable(ctx context.Context, event *DecisionTableEvaluationEvent) {
	for _, listener := range engine.listeners.postDecisionTable {
		engine.safeNotify(fmt.Sprintf("%T", listener), event.Decision, func() error {
			return listener.NotifyDecisionTable(ctx, event)
		})
	}
}

func (engine *Engine) notifyPreDecision(ctx context.Context, event *DecisionEvaluationEvent) error {
	for _, listener := range engine.listeners.preDecision {
		if err := listener.NotifyDecision(ctx, event); err != nil {
			return &ListenerError{Listener: fmt.Sprintf("%T", listener), Err: err}
		}
	}
	return nil
}

func (engine *Engine) notifyPostDecision(ctx context.Context, event *DecisionEvaluationEvent) {
	for _, listener := range engine.listeners.postDecision {
		engine.safeNotify(fmt.Sprintf("%T", listener), event.Decision, func() error {
			return listener.NotifyDecision(ctx, event)
		})
	}
}

// safeNotify runs a post evaluation notification. Failures are logged and
// never reach the caller.
func (engine *Engine) safeNotify(listener string, decision *runtime.Decision, notify func() error) {
	defer func() {
		if r := recover(); r != nil {
			engine.logger.Warn("evaluation listener panicked", "listener", listener, "decision", decision.Key, "panic", r)
		}
	}()
	if err := notify(); err != nil {
		engine.logger.Warn("evaluation listener failed", "listener", listener, "decision", decision.Key, "err", err)
	}
}
