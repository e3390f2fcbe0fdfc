// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package otel

import (
	"errors"

	"go.opentelemetry.io/otel/metric"
)

type DecisionMetrics struct {
	DecisionsEvaluated       metric.Int64Counter
	DecisionsFailed          metric.Int64Counter
	ExecutedDecisionElements metric.Int64Counter
	EvaluationDuration       metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*DecisionMetrics, error) {
	var errJoin error

	decisionsEvaluated, err := meter.Int64Counter("decisions_evaluated", metric.WithDescription("Number of decisions evaluated"))
	errJoin = errors.Join(errJoin, err)

	decisionsFailed, err := meter.Int64Counter("decisions_failed", metric.WithDescription("Number of decision evaluations that failed"))
	errJoin = errors.Join(errJoin, err)

	executedElements, err := meter.Int64Counter("executed_decision_elements", metric.WithDescription("Number of decision elements executed"))
	errJoin = errors.Join(errJoin, err)

	evaluationDuration, err := meter.Float64Histogram("decision_evaluation_duration", metric.WithUnit("ms"), metric.WithDescription("Time a decision evaluation took, milliseconds"))
	errJoin = errors.Join(errJoin, err)

	metrics := DecisionMetrics{
		DecisionsEvaluated:       decisionsEvaluated,
		DecisionsFailed:          decisionsFailed,
		ExecutedDecisionElements: executedElements,
		EvaluationDuration:       evaluationDuration,
	}
	return &metrics, errJoin
}
