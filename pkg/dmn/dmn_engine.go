// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package dmn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zendmn/internal/appcontext"
	"github.com/pbinitiative/zendmn/internal/config"
	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/dmn/types"
	otelPkg "github.com/pbinitiative/zendmn/pkg/otel"
	"github.com/pbinitiative/zendmn/pkg/script"
	"github.com/pbinitiative/zendmn/pkg/script/feel"
	"github.com/pbinitiative/zendmn/pkg/script/juel"
	"github.com/pbinitiative/zendmn/pkg/zenflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Engine evaluates decisions. It is immutable once created and safe for
// concurrent use; every evaluation owns its variables and expression cache.
type Engine struct {
	logger       hclog.Logger
	feel         script.FeelEngine
	scripts      script.Resolver
	typeRegistry *types.Registry

	defaultInputExpressionLanguage   string
	defaultInputEntryLanguage        string
	defaultOutputEntryLanguage       string
	defaultLiteralExpressionLanguage string
	feelLegacyBehavior               bool

	listeners listeners
	tracer    trace.Tracer
	meter     metric.Meter
	metrics   *otelPkg.DecisionMetrics
	snowflake *snowflake.Node
}

type EngineOption = func(*Engine)

// NewEngine creates a decision engine. Without options FEEL is used for all
// expressions and other languages fail with ErrNoScriptEngineFound.
func NewEngine(options ...EngineOption) (*Engine, error) {
	engine := Engine{
		logger:       hclog.Default().Named("dmn-engine"),
		feel:         feel.NewFeelRuntime(),
		scripts:      script.NewEngineRegistry(),
		typeRegistry: types.NewRegistry(),
	}
	for _, option := range options {
		option(&engine)
	}

	if engine.feelLegacyBehavior {
		engine.defaultInputExpressionLanguage = orDefault(engine.defaultInputExpressionLanguage, juel.Language)
		engine.defaultOutputEntryLanguage = orDefault(engine.defaultOutputEntryLanguage, juel.Language)
		engine.defaultLiteralExpressionLanguage = orDefault(engine.defaultLiteralExpressionLanguage, juel.Language)
	}
	engine.listeners = engine.listeners.freeze()
	if engine.tracer == nil {
		engine.tracer = otel.GetTracerProvider().Tracer("dmn-engine")
	}

	var errJoin error
	if engine.meter != nil {
		var err error
		engine.metrics, err = otelPkg.NewMetrics(engine.meter)
		errJoin = errors.Join(errJoin, err)
	}
	if engine.snowflake == nil {
		var err error
		engine.snowflake, err = zenflake.NewEnvironmentNode()
		errJoin = errors.Join(errJoin, err)
	}
	if errJoin != nil {
		return nil, fmt.Errorf("failed to create dmn engine: %w", errJoin)
	}
	return &engine, nil
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func WithLogger(logger hclog.Logger) EngineOption {
	return func(engine *Engine) {
		engine.logger = logger
	}
}

// WithConfig applies the default expression languages and the legacy FEEL
// behavior.
func WithConfig(conf config.Dmn) EngineOption {
	return func(engine *Engine) {
		engine.defaultInputExpressionLanguage = conf.DefaultInputExpressionLanguage
		engine.defaultInputEntryLanguage = conf.DefaultInputEntryLanguage
		engine.defaultOutputEntryLanguage = conf.DefaultOutputEntryLanguage
		engine.defaultLiteralExpressionLanguage = conf.DefaultLiteralExpressionLanguage
		engine.feelLegacyBehavior = conf.FeelLegacyBehavior
	}
}

func WithFeelEngine(feelEngine script.FeelEngine) EngineOption {
	return func(engine *Engine) {
		engine.feel = feelEngine
	}
}

func WithScriptResolver(resolver script.Resolver) EngineOption {
	return func(engine *Engine) {
		engine.scripts = resolver
	}
}

func WithTypeRegistry(registry *types.Registry) EngineOption {
	return func(engine *Engine) {
		engine.typeRegistry = registry
	}
}

func WithDefaultInputExpressionLanguage(language string) EngineOption {
	return func(engine *Engine) {
		engine.defaultInputExpressionLanguage = language
	}
}

func WithDefaultInputEntryLanguage(language string) EngineOption {
	return func(engine *Engine) {
		engine.defaultInputEntryLanguage = language
	}
}

func WithDefaultOutputEntryLanguage(language string) EngineOption {
	return func(engine *Engine) {
		engine.defaultOutputEntryLanguage = language
	}
}

func WithDefaultLiteralExpressionLanguage(language string) EngineOption {
	return func(engine *Engine) {
		engine.defaultLiteralExpressionLanguage = language
	}
}

// WithPreDecisionTableListener registers listeners notified before the rows
// of a decision table are assembled. An error aborts the evaluation.
func WithPreDecisionTableListener(listener ...DecisionTableEvaluationListener) EngineOption {
	return func(engine *Engine) {
		engine.listeners.preDecisionTable = append(engine.listeners.preDecisionTable, listener...)
	}
}

// WithPostDecisionTableListener registers listeners notified after a decision
// table was evaluated. Their failures are only logged.
func WithPostDecisionTableListener(listener ...DecisionTableEvaluationListener) EngineOption {
	return func(engine *Engine) {
		engine.listeners.postDecisionTable = append(engine.listeners.postDecisionTable, listener...)
	}
}

func WithPreDecisionListener(listener ...DecisionEvaluationListener) EngineOption {
	return func(engine *Engine) {
		engine.listeners.preDecision = append(engine.listeners.preDecision, listener...)
	}
}

func WithPostDecisionListener(listener ...DecisionEvaluationListener) EngineOption {
	return func(engine *Engine) {
		engine.listeners.postDecision = append(engine.listeners.postDecision, listener...)
	}
}

func WithMeter(meter metric.Meter) EngineOption {
	return func(engine *Engine) {
		engine.meter = meter
	}
}

func WithTracer(tracer trace.Tracer) EngineOption {
	return func(engine *Engine) {
		engine.tracer = tracer
	}
}

func WithSnowflake(node *snowflake.Node) EngineOption {
	return func(engine *Engine) {
		engine.snowflake = node
	}
}

// EvaluateDecision evaluates the decisions required by decision depth first,
// each at most once, and then decision itself. Outputs of required decisions
// are visible to the decisions depending on them.
func (engine *Engine) EvaluateDecision(ctx context.Context, decision *runtime.Decision, variables map[string]any) (result DecisionResult, retErr error) {
	if decision == nil {
		return DecisionResult{}, errors.New("decision must not be nil")
	}
	evaluationKey := engine.snowflake.Generate().Int64()
	ctx, span := engine.tracer.Start(ctx, fmt.Sprintf("decision:%s", decision.Key), trace.WithAttributes(
		attribute.String(otelPkg.AttributeDecisionKey, decision.Key),
		attribute.String(otelPkg.AttributeDecisionName, decision.Name),
		attribute.Int64(otelPkg.AttributeEvaluationKey, evaluationKey),
	))
	ctx = appcontext.WithEvaluation(ctx, evaluationKey, decision.Key)
	start := time.Now()
	defer func() {
		engine.recordEvaluation(ctx, decision, time.Since(start), retErr)
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	scope := newVariableScope(variables)
	visited := map[string]bool{decision.Key: true}
	requiredEvents, err := engine.evaluateRequiredDecisions(ctx, evaluationKey, decision, scope, visited)
	if err != nil {
		return DecisionResult{}, err
	}
	result, rootEvent, err := engine.evaluateDecisionLogic(ctx, evaluationKey, decision, scope)
	if err != nil {
		return DecisionResult{}, err
	}

	executed := rootEvent.ExecutedElements()
	for _, event := range requiredEvents {
		executed += event.ExecutedElements()
	}
	span.SetAttributes(attribute.Int(otelPkg.AttributeRequiredDecisions, len(requiredEvents)))

	event := &DecisionEvaluationEvent{
		EvaluationKey:            evaluationKey,
		Decision:                 decision,
		Result:                   result,
		RootEvent:                rootEvent,
		RequiredDecisionEvents:   requiredEvents,
		ExecutedDecisionElements: executed,
	}
	if err := engine.notifyPreDecision(ctx, event); err != nil {
		return DecisionResult{}, err
	}
	engine.notifyPostDecision(ctx, event)
	engine.logger.Debug("decision evaluated", "decision", decision.Key, "evaluationKey", evaluationKey,
		"rows", result.Len(), "executedDecisionElements", executed)
	return result, nil
}

// EvaluateDecisionTable is EvaluateDecision for decisions whose logic is a
// decision table.
func (engine *Engine) EvaluateDecisionTable(ctx context.Context, decision *runtime.Decision, variables map[string]any) (DecisionResult, error) {
	if decision == nil {
		return DecisionResult{}, errors.New("decision must not be nil")
	}
	if _, ok := decision.DecisionTable(); !ok {
		return DecisionResult{}, fmt.Errorf("%w: decision %s is not a decision table", ErrDecisionTypeNotSupported, decision.Key)
	}
	return engine.EvaluateDecision(ctx, decision, variables)
}

// EvaluateDecisionByKey evaluates the decision with the given key of graph.
func (engine *Engine) EvaluateDecisionByKey(ctx context.Context, graph *runtime.DecisionRequirementsGraph, key string, variables map[string]any) (DecisionResult, error) {
	decision, ok := graph.Decision(key)
	if !ok {
		return DecisionResult{}, &DecisionNotFoundError{DecisionID: key}
	}
	return engine.EvaluateDecision(ctx, decision, variables)
}

func (engine *Engine) evaluateRequiredDecisions(ctx context.Context, evaluationKey int64, decision *runtime.Decision, scope *variableScope, visited map[string]bool) ([]DecisionLogicEvaluationEvent, error) {
	var events []DecisionLogicEvaluationEvent
	for _, required := range decision.RequiredDecisions {
		if visited[required.Key] {
			continue
		}
		visited[required.Key] = true

		requiredEvents, err := engine.evaluateRequiredDecisions(ctx, evaluationKey, required, scope, visited)
		if err != nil {
			return nil, err
		}
		events = append(events, requiredEvents...)

		result, event, err := engine.evaluateDecisionLogic(ctx, evaluationKey, required, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate required decision %s of %s: %w", required.Key, decision.Key, err)
		}
		mergeDecisionResult(scope, required, result)
		events = append(events, event)
	}
	return events, nil
}

func (engine *Engine) evaluateDecisionLogic(ctx context.Context, evaluationKey int64, decision *runtime.Decision, scope *variableScope) (DecisionResult, DecisionLogicEvaluationEvent, error) {
	switch logic := decision.Logic.(type) {
	case *runtime.DecisionTable:
		result, event, err := engine.evaluateDecisionTable(ctx, evaluationKey, decision, logic, scope)
		if err != nil {
			return DecisionResult{}, nil, err
		}
		return result, event, nil
	case *runtime.LiteralExpression:
		result, event, err := engine.evaluateLiteralExpression(evaluationKey, decision, logic, scope)
		if err != nil {
			return DecisionResult{}, nil, err
		}
		return result, event, nil
	}
	return DecisionResult{}, nil, fmt.Errorf("%w: decision %s has logic of type %T", ErrDecisionTypeNotSupported, decision.Key, decision.Logic)
}

func (engine *Engine) transform(definition runtime.TypeDefinition, raw any) (types.TypedValue, error) {
	return engine.typeRegistry.Transform(definition.TypeName, raw)
}

func (engine *Engine) recordEvaluation(ctx context.Context, decision *runtime.Decision, duration time.Duration, err error) {
	if engine.metrics == nil {
		return
	}
	attributes := metric.WithAttributes(attribute.String(otelPkg.AttributeDecisionKey, decision.Key))
	engine.metrics.DecisionsEvaluated.Add(ctx, 1, attributes)
	if err != nil {
		engine.metrics.DecisionsFailed.Add(ctx, 1, attributes)
	}
	engine.metrics.EvaluationDuration.Record(ctx, float64(duration.Microseconds())/1000, attributes)
}
