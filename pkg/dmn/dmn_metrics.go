// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package dmn

import (
	"context"
	"sync/atomic"

	otelPkg "github.com/pbinitiative/zendmn/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricCollector counts the executed decision elements of every evaluated
// decision. Register it with WithPostDecisionListener.
type MetricCollector struct {
	executedElements atomic.Int64
	metrics          *otelPkg.DecisionMetrics
}

// NewMetricCollector returns a collector that also records to metrics when
// it is not nil.
func NewMetricCollector(metrics *otelPkg.DecisionMetrics) *MetricCollector {
	return &MetricCollector{metrics: metrics}
}

func (c *MetricCollector) NotifyDecision(ctx context.Context, event *DecisionEvaluationEvent) error {
	c.executedElements.Add(event.ExecutedDecisionElements)
	if c.metrics != nil {
		c.metrics.ExecutedDecisionElements.Add(ctx, event.ExecutedDecisionElements,
			metric.WithAttributes(attribute.String(otelPkg.AttributeDecisionKey, event.Decision.Key)))
	}
	return nil
}

func (c *MetricCollector) ExecutedDecisionElements() int64 {
	return c.executedElements.Load()
}

// ClearExecutedDecisionElements resets the counter and returns its last value.
func (c *MetricCollector) ClearExecutedDecisionElements() int64 {
	return c.executedElements.Swap(0)
}
