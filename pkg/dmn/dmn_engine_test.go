package dmn

import (
	"context"
	"errors"
	"maps"
	"testing"

	"github.com/pbinitiative/zendmn/internal/appcontext"
	"github.com/pbinitiative/zendmn/internal/config"
	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/dmn/types"
	"github.com/pbinitiative/zendmn/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dishDecision() *runtime.Decision {
	return newTable(runtime.HitPolicyUnique).
		input("Season", "season").
		input("GuestCount", "guestCount").
		output("Dish").
		rule("light_salad", []string{`"Summer"`, "< 20"}, `"Light salad"`).
		decision("dish")
}

func TestDishDecision(t *testing.T) {
	var event *DecisionEvaluationEvent
	engine, _ := newTestEngine(t, WithPostDecisionListener(DecisionEvaluationListenerFunc(
		func(ctx context.Context, e *DecisionEvaluationEvent) error {
			event = e
			return nil
		})))
	decision := dishDecision()

	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"season": "Summer", "guestCount": 15})
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())
	dish, err := result.SingleEntry()
	require.NoError(t, err)
	assert.Equal(t, "Light salad", dish.Value())
	assert.Equal(t, []map[string]any{{"Dish": "Light salad"}}, result.ResultList())

	result, err = engine.EvaluateDecision(context.Background(), decision, map[string]any{"season": "Summer", "guestCount": 35})
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
	row, err := result.SingleResult()
	require.NoError(t, err)
	assert.Nil(t, row)

	require.NotNil(t, event)
	assert.Equal(t, int64(3), event.ExecutedDecisionElements)
	tableEvent, ok := event.RootEvent.(*DecisionTableEvaluationEvent)
	require.True(t, ok)
	assert.Empty(t, tableEvent.MatchedRules)
	require.Len(t, tableEvent.Inputs, 2)
	assert.Equal(t, 35, tableEvent.Inputs[1].Value.Value())
}

// fiveTable matches rules low, medium and five for x = 5.
func fiveTable(hitPolicy runtime.HitPolicy, outputValues ...any) *tableBuilder {
	return newTable(hitPolicy).
		input("x", "x").
		output("result", outputValues...).
		rule("low", []string{"< 10"}, `"low"`).
		rule("medium", []string{"< 20"}, `"medium"`).
		rule("high", []string{"> 100"}, `"high"`).
		rule("five", []string{"5"}, `"five"`)
}

func TestHitPolicies(t *testing.T) {
	priorities := []any{"five", "medium", "low", "high"}
	tests := []struct {
		name     string
		table    *tableBuilder
		expected []any
		err      error
	}{
		{name: "unique", table: fiveTable(runtime.HitPolicyUnique), err: ErrAmbiguousResult},
		{name: "first", table: fiveTable(runtime.HitPolicyFirst), expected: []any{"low"}},
		{name: "rule order", table: fiveTable(runtime.HitPolicyRuleOrder), expected: []any{"low", "medium", "five"}},
		{name: "collect", table: fiveTable(runtime.HitPolicyCollect), expected: []any{"low", "medium", "five"}},
		{name: "any with different outputs", table: fiveTable(runtime.HitPolicyAny), err: ErrHitPolicyViolation},
		{name: "priority", table: fiveTable(runtime.HitPolicyPriority, priorities...), expected: []any{"five"}},
		{name: "output order", table: fiveTable(runtime.HitPolicyOutputOrder, priorities...), expected: []any{"five", "medium", "low"}},
		{name: "priority without output values", table: fiveTable(runtime.HitPolicyPriority), err: ErrHitPolicyViolation},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			engine, _ := newTestEngine(t)
			result, err := engine.EvaluateDecision(context.Background(), test.table.decision("five"), map[string]any{"x": 5})
			if test.err != nil {
				assert.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, rowValues(t, result, "result"))
		})
	}
}

func TestUniqueWithSingleMatch(t *testing.T) {
	engine, _ := newTestEngine(t)
	result, err := engine.EvaluateDecision(context.Background(), fiveTable(runtime.HitPolicyUnique).decision("five"), map[string]any{"x": 15})
	require.NoError(t, err)
	assert.Equal(t, []any{"medium"}, rowValues(t, result, "result"))
}

func TestAnyWithEqualOutputs(t *testing.T) {
	engine, _ := newTestEngine(t)
	decision := newTable(runtime.HitPolicyAny).
		input("x", "x").
		output("result").
		rule("r1", []string{"< 10"}, `"same"`).
		rule("r2", []string{"5"}, `"same"`).
		decision("any")

	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, []any{"same", "same"}, rowValues(t, result, "result"))
}

func collectTable(aggregator runtime.Aggregator, conclusions ...string) *tableBuilder {
	b := newTable(runtime.HitPolicyCollect).aggregate(aggregator).input("x", "x").output("amount")
	for i, conclusion := range conclusions {
		b.rule("rule"+string(rune('a'+i)), []string{""}, conclusion)
	}
	return b
}

func TestCollectAggregators(t *testing.T) {
	tests := []struct {
		name       string
		aggregator runtime.Aggregator
		outputs    []string
		expected   any
		typeName   string
	}{
		{name: "sum", aggregator: runtime.AggregatorSum, outputs: []string{"10", "50", "30"}, expected: int64(90), typeName: types.TypeLong},
		{name: "max", aggregator: runtime.AggregatorMax, outputs: []string{"10", "50", "30"}, expected: int64(50), typeName: types.TypeLong},
		{name: "min", aggregator: runtime.AggregatorMin, outputs: []string{"10", "50", "30"}, expected: int64(10), typeName: types.TypeLong},
		{name: "count", aggregator: runtime.AggregatorCount, outputs: []string{"10", "50", "30"}, expected: int64(3), typeName: types.TypeLong},
		{name: "count non numeric", aggregator: runtime.AggregatorCount, outputs: []string{`"a"`, "1", `"b"`}, expected: int64(3), typeName: types.TypeLong},
		{name: "sum of floats", aggregator: runtime.AggregatorSum, outputs: []string{"1.5", "2"}, expected: 3.5, typeName: types.TypeDouble},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			engine, _ := newTestEngine(t)
			result, err := engine.EvaluateDecision(context.Background(), collectTable(test.aggregator, test.outputs...).decision("collect"), map[string]any{"x": 1})
			require.NoError(t, err)
			row, err := result.SingleResult()
			require.NoError(t, err)
			require.NotNil(t, row)
			value, ok := row.Get("amount")
			require.True(t, ok)
			assert.Equal(t, test.expected, value.Value())
			assert.Equal(t, test.typeName, value.Type())
		})
	}
}

func TestCollectAggregatorViolations(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.EvaluateDecision(context.Background(), collectTable(runtime.AggregatorSum, `"a"`, "1").decision("collect"), map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrHitPolicyViolation)

	compound := newTable(runtime.HitPolicyCollect).aggregate(runtime.AggregatorSum).
		input("x", "x").
		output("a").
		output("b").
		rule("r1", []string{""}, "1", "2").
		decision("compound")
	_, err = engine.EvaluateDecision(context.Background(), compound, map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrHitPolicyViolation)
}

func TestCollectAggregatorWithoutMatch(t *testing.T) {
	engine, _ := newTestEngine(t)
	decision := newTable(runtime.HitPolicyCollect).aggregate(runtime.AggregatorSum).
		input("x", "x").
		output("amount").
		rule("r1", []string{"> 100"}, "10").
		decision("collect")

	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 1})
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())
	value, err := result.SingleEntry()
	require.NoError(t, err)
	assert.True(t, value.IsNull())
}

func TestAggregatorRequiresCollect(t *testing.T) {
	_, err := HandlerFor(runtime.HitPolicyFirst, runtime.AggregatorSum)
	assert.ErrorIs(t, err, ErrNoHitPolicyHandler)

	engine, _ := newTestEngine(t)
	_, err = engine.EvaluateDecision(context.Background(), fiveTable(runtime.HitPolicyUnique).aggregate(runtime.AggregatorCount).decision("five"), map[string]any{"x": 5})
	assert.ErrorIs(t, err, ErrNoHitPolicyHandler)
}

func TestWildcardConditionMatchesEveryInput(t *testing.T) {
	engine, feel := newTestEngine(t)
	decision := newTable(runtime.HitPolicyUnique).
		input("x", "x").
		output("result").
		rule("any", []string{""}, `"matched"`).
		decision("wildcard")

	for _, x := range []any{1, "text", nil, true} {
		result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": x})
		require.NoError(t, err)
		assert.Equal(t, []any{"matched"}, rowValues(t, result, "result"))
	}
	assert.Zero(t, feel.unaryTests.Load())
}

func TestEvaluationIsDeterministic(t *testing.T) {
	engine, _ := newTestEngine(t)
	decision := fiveTable(runtime.HitPolicyRuleOrder).decision("five")
	variables := map[string]any{"x": 5}

	first, err := engine.EvaluateDecision(context.Background(), decision, variables)
	require.NoError(t, err)
	second, err := engine.EvaluateDecision(context.Background(), decision, variables)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]any{"x": 5}, variables)
}

func TestRuleOrderWithCachedConditions(t *testing.T) {
	engine, feel := newTestEngine(t)
	decision := newTable(runtime.HitPolicyRuleOrder).
		input("x", "x").
		output("result").
		rule("r1", []string{"< 10"}, `"first"`).
		rule("r2", []string{"< 10"}, `"second"`).
		rule("r3", []string{"< 10"}, `"third"`).
		decision("ordered")

	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, []any{"first", "second", "third"}, rowValues(t, result, "result"))
	assert.Equal(t, int64(1), feel.unaryTests.Load())
	assert.Equal(t, int64(4), feel.expressions.Load())
}

func TestInputEntryCacheIsPerClause(t *testing.T) {
	engine, feel := newTestEngine(t)
	decision := newTable(runtime.HitPolicyUnique).
		input("a", "a").
		input("b", "b").
		output("result").
		rule("r1", []string{"5", "5"}, `"both"`).
		decision("clauses")

	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"a": 5, "b": 6})
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
	assert.Equal(t, int64(2), feel.unaryTests.Load())
}

func TestConditionsOnSameClauseAreAlternatives(t *testing.T) {
	table := newTable(runtime.HitPolicyUnique).input("x", "x").output("result").table
	clause := table.Inputs[0]
	table.Rules = []*runtime.Rule{{
		Key: "either",
		Conditions: []*runtime.ClauseEntry{
			{Key: "c1", Clause: clause, Expression: runtime.Expression{Text: "5"}},
			{Key: "c2", Clause: clause, Expression: runtime.Expression{Text: "1"}},
		},
		Conclusions: []*runtime.ClauseEntry{
			{Key: "o1", Clause: table.Outputs[0], Expression: runtime.Expression{Text: `"matched"`}},
		},
	}}
	decision := &runtime.Decision{Key: "either", Logic: table}

	engine, feel := newTestEngine(t)
	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, []any{"matched"}, rowValues(t, result, "result"))
	assert.Equal(t, int64(1), feel.unaryTests.Load())

	result, err = engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, []any{"matched"}, rowValues(t, result, "result"))

	result, err = engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 3})
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
}

func TestInputWithoutExpressionIsNull(t *testing.T) {
	engine, feel := newTestEngine(t)
	decision := newTable(runtime.HitPolicyUnique).
		input("x", "").
		output("result").
		rule("r1", []string{"null"}, `"null input"`).
		decision("empty")

	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, []any{"null input"}, rowValues(t, result, "result"))
	assert.Equal(t, int64(1), feel.expressions.Load())
}

type recordingEngine struct {
	result      any
	expressions []string
	contexts    []map[string]any
}

func (r *recordingEngine) Evaluate(expression string, variableContext map[string]any) (any, error) {
	r.expressions = append(r.expressions, expression)
	r.contexts = append(r.contexts, maps.Clone(variableContext))
	if r.result == nil {
		return expression, nil
	}
	return r.result, nil
}

func TestInputVariableBinding(t *testing.T) {
	recorder := &recordingEngine{result: true}
	engine, _ := newTestEngine(t,
		WithScriptResolver(script.NewEngineRegistry().Register(recorder, "test")),
		WithDefaultInputEntryLanguage("test"),
	)
	table := newTable(runtime.HitPolicyUnique).input("amount", "amount").output("result").rule("r1", []string{"amount > 5"}, `"big"`)
	table.table.Inputs[0].InputVariable = "amount"

	result, err := engine.EvaluateDecision(context.Background(), table.decision("binding"), map[string]any{"amount": 7})
	require.NoError(t, err)
	assert.Equal(t, []any{"big"}, rowValues(t, result, "result"))

	require.Len(t, recorder.contexts, 1)
	assert.Equal(t, 7, recorder.contexts[0]["amount"])
	assert.Equal(t, types.Untyped(7), recorder.contexts[0]["amount_typed"])
	assert.NotContains(t, recorder.contexts[0], runtime.DefaultInputVariableName)
}

func TestDefaultInputVariableBinding(t *testing.T) {
	recorder := &recordingEngine{result: true}
	engine, _ := newTestEngine(t,
		WithScriptResolver(script.NewEngineRegistry().Register(recorder, "test")),
		WithDefaultInputEntryLanguage("test"),
	)
	decision := newTable(runtime.HitPolicyUnique).
		input("a", "a").
		input("b", "b").
		output("result").
		rule("r1", []string{"cellInput == 1", "cellInput == 2"}, `"ok"`).
		decision("binding")

	_, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	require.Len(t, recorder.contexts, 2)
	assert.Equal(t, 1, recorder.contexts[0]["cellInput"])
	assert.Equal(t, 2, recorder.contexts[1]["cellInput"])
}

func TestScriptInputEntryMustBeBoolean(t *testing.T) {
	recorder := &recordingEngine{result: "yes"}
	engine, _ := newTestEngine(t,
		WithScriptResolver(script.NewEngineRegistry().Register(recorder, "test")),
		WithDefaultInputEntryLanguage("test"),
	)
	_, err := engine.EvaluateDecision(context.Background(), fiveTable(runtime.HitPolicyFirst).decision("five"), map[string]any{"x": 5})
	assert.ErrorIs(t, err, ErrExpressionEvaluationFailed)
}

func TestScriptEngineNotFound(t *testing.T) {
	engine, _ := newTestEngine(t, WithDefaultOutputEntryLanguage("groovy"))
	_, err := engine.EvaluateDecision(context.Background(), fiveTable(runtime.HitPolicyFirst).decision("five"), map[string]any{"x": 5})
	assert.ErrorIs(t, err, ErrNoScriptEngineFound)
}

func TestExpressionEvaluationError(t *testing.T) {
	engine, _ := newTestEngine(t)
	decision := newTable(runtime.HitPolicyUnique).
		input("x", "x").
		output("result").
		rule("r1", []string{""}, "unknownVariable").
		decision("broken")

	_, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpressionEvaluationFailed)
	var evaluationErr *ExpressionEvaluationError
	require.ErrorAs(t, err, &evaluationErr)
	assert.Equal(t, FeelLanguage, evaluationErr.Language)
	assert.Equal(t, "unknownVariable", evaluationErr.Expression)
}

func TestLegacyBehaviorWrapsJuelExpressions(t *testing.T) {
	recorder := &recordingEngine{}
	engine, feel := newTestEngine(t,
		WithConfig(config.Dmn{FeelLegacyBehavior: true}),
		WithScriptResolver(script.NewEngineRegistry().Register(recorder, "juel")),
	)
	decision := newTable(runtime.HitPolicyUnique).
		input("x", "x").
		output("result").
		output("wrapped").
		rule("r1", []string{`"${x}"`}, `"yes"`, "#{x}").
		decision("legacy")

	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"${x}", `${"yes"}`, "#{x}"}, recorder.expressions)
	row, err := result.SingleResult()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": `${"yes"}`, "wrapped": "#{x}"}, row.ToMap())
	assert.Equal(t, int64(1), feel.unaryTests.Load())
}

func TestExplicitLanguageWins(t *testing.T) {
	recorder := &recordingEngine{result: "scripted"}
	engine, feel := newTestEngine(t, WithScriptResolver(script.NewEngineRegistry().Register(recorder, "test")))
	table := newTable(runtime.HitPolicyUnique).input("x", "x").output("result").rule("r1", []string{""}, "ignored")
	table.table.Rules[0].Conclusions[0].Expression.Language = "test"
	decision := table.decision("explicit")
	decision.ExpressionLanguage = "feel"

	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, []any{"scripted"}, rowValues(t, result, "result"))
	assert.Equal(t, int64(1), feel.expressions.Load())
}

func TestDecisionLanguageIsFallback(t *testing.T) {
	recorder := &recordingEngine{result: "scripted"}
	engine, feel := newTestEngine(t, WithScriptResolver(script.NewEngineRegistry().Register(recorder, "test")))
	decision := newTable(runtime.HitPolicyUnique).input("x", "").output("result").rule("r1", []string{""}, "anything").decision("fallback")
	decision.ExpressionLanguage = "test"

	result, err := engine.EvaluateDecision(context.Background(), decision, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"scripted"}, rowValues(t, result, "result"))
	assert.Zero(t, feel.expressions.Load())
}

func TestLiteralExpression(t *testing.T) {
	var event *DecisionEvaluationEvent
	engine, _ := newTestEngine(t, WithPostDecisionListener(DecisionEvaluationListenerFunc(
		func(ctx context.Context, e *DecisionEvaluationEvent) error {
			event = e
			return nil
		})))
	decision := &runtime.Decision{
		Key: "total",
		Logic: &runtime.LiteralExpression{
			Key:        "literal",
			Expression: runtime.Expression{Text: "amount"},
			Variable:   runtime.Variable{Name: "total", TypeDefinition: runtime.TypeDefinition{TypeName: types.TypeLong}},
		},
	}

	result, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"amount": 42})
	require.NoError(t, err)
	value, err := result.SingleEntry()
	require.NoError(t, err)
	assert.Equal(t, int64(42), value.Value())
	assert.Equal(t, types.TypeLong, value.Type())

	require.NotNil(t, event)
	literalEvent, ok := event.RootEvent.(*LiteralExpressionEvaluationEvent)
	require.True(t, ok)
	assert.Equal(t, "total", literalEvent.OutputName)
	assert.Zero(t, event.ExecutedDecisionElements)

	_, err = engine.EvaluateDecisionTable(context.Background(), decision, nil)
	assert.ErrorIs(t, err, ErrDecisionTypeNotSupported)
}

func TestTypeTransformFailure(t *testing.T) {
	engine, _ := newTestEngine(t)
	decision := newTable(runtime.HitPolicyUnique).typedInput("x", "x", types.TypeBoolean).output("result").rule("r1", []string{""}, "1").decision("typed")
	_, err := engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": "not a boolean"})
	assert.ErrorIs(t, err, ErrTypeTransformFailed)

	decision = newTable(runtime.HitPolicyUnique).typedInput("x", "x", "money").output("result").rule("r1", []string{""}, "1").decision("unknown")
	_, err = engine.EvaluateDecision(context.Background(), decision, map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrMissingDataTypeTransformer)
}

func TestEvaluateDecisionByKey(t *testing.T) {
	engine, _ := newTestEngine(t)
	graph, err := runtime.NewDecisionRequirementsGraph("drg", "drg", []*runtime.Decision{dishDecision()})
	require.NoError(t, err)

	result, err := engine.EvaluateDecisionByKey(context.Background(), graph, "dish", map[string]any{"season": "Summer", "guestCount": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Len())

	_, err = engine.EvaluateDecisionByKey(context.Background(), graph, "missing", nil)
	var notFound *DecisionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.DecisionID)
}

func TestRequiredDecisions(t *testing.T) {
	evaluations := map[string]int{}
	var event *DecisionEvaluationEvent
	engine, _ := newTestEngine(t,
		WithPreDecisionTableListener(DecisionTableEvaluationListenerFunc(func(ctx context.Context, e *DecisionTableEvaluationEvent) error {
			evaluations[e.Decision.Key]++
			return nil
		})),
		WithPostDecisionListener(DecisionEvaluationListenerFunc(func(ctx context.Context, e *DecisionEvaluationEvent) error {
			event = e
			return nil
		})),
	)
	discount := newTable(runtime.HitPolicyUnique).input("customer", "customer").output("discount").
		rule("gold", []string{`"gold"`}, "10").decision("discount")
	tier := newTable(runtime.HitPolicyUnique).input("discount", "discount").output("tier").
		rule("premium", []string{"10"}, `"premium"`).decision("tier", discount)
	price := newTable(runtime.HitPolicyUnique).input("tier", "tier").output("price").
		rule("premium", []string{`"premium"`}, "90").decision("price", discount, tier)

	result, err := engine.EvaluateDecision(context.Background(), price, map[string]any{"customer": "gold"})
	require.NoError(t, err)
	value, err := result.SingleEntry()
	require.NoError(t, err)
	assert.Equal(t, int64(90), value.Value())

	assert.Equal(t, map[string]int{"discount": 1, "tier": 1, "price": 1}, evaluations)
	require.NotNil(t, event)
	require.Len(t, event.RequiredDecisionEvents, 2)
	assert.Equal(t, "discount", event.RequiredDecisionEvents[0].EvaluatedDecision().Key)
	assert.Equal(t, "tier", event.RequiredDecisionEvents[1].EvaluatedDecision().Key)
	assert.Equal(t, int64(6), event.ExecutedDecisionElements)
}

func TestRequiredDecisionFailure(t *testing.T) {
	engine, _ := newTestEngine(t)
	broken := newTable(runtime.HitPolicyUnique).input("x", "x").output("y").rule("r1", []string{""}, "unknownVariable").decision("broken")
	top := newTable(runtime.HitPolicyUnique).input("y", "y").output("z").rule("r1", []string{""}, "1").decision("top", broken)

	_, err := engine.EvaluateDecision(context.Background(), top, map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrExpressionEvaluationFailed)
	assert.ErrorContains(t, err, "required decision broken")
}

func TestMergeDecisionResult(t *testing.T) {
	single := ResultRow{}
	single.put("a", types.Untyped(1))
	single.put("b", types.Untyped("x"))
	second := ResultRow{}
	second.put("a", types.Untyped(2))

	unique := newTable(runtime.HitPolicyUnique).decision("unique")
	scope := newVariableScope(nil)
	mergeDecisionResult(scope, unique, NewDecisionResult(single))
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, scope.context())

	collect := newTable(runtime.HitPolicyCollect).decision("collect")
	scope = newVariableScope(nil)
	mergeDecisionResult(scope, collect, NewDecisionResult(single))
	assert.Equal(t, map[string]any{"a": []any{1}, "b": []any{"x"}}, scope.context())

	sum := newTable(runtime.HitPolicyCollect).aggregate(runtime.AggregatorSum).decision("sum")
	scope = newVariableScope(nil)
	mergeDecisionResult(scope, sum, NewDecisionResult(single))
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, scope.context())

	scope = newVariableScope(nil)
	mergeDecisionResult(scope, unique, NewDecisionResult(single, second))
	assert.Equal(t, map[string]any{"a": []any{1, 2}, "b": []any{"x"}}, scope.context())

	scope = newVariableScope(map[string]any{"a": 0})
	mergeDecisionResult(scope, unique, NewDecisionResult())
	assert.Equal(t, map[string]any{"a": 0}, scope.context())
}

func TestResultAccessors(t *testing.T) {
	first := ResultRow{}
	first.put("dish", types.Untyped("salad"))
	first.put("drink", types.Untyped("water"))
	first.put("dish", types.Untyped("soup"))
	second := ResultRow{}
	second.put("dish", types.Untyped("steak"))

	assert.Equal(t, []string{"dish", "drink"}, first.Names())
	entry, ok := first.SingleEntry()
	require.True(t, ok)
	assert.Equal(t, "soup", entry.Value())

	result := NewDecisionResult(first, second)
	_, err := result.SingleResult()
	assert.ErrorIs(t, err, ErrAmbiguousResult)
	_, err = result.SingleEntry()
	assert.ErrorIs(t, err, ErrAmbiguousResult)
	assert.Equal(t, []types.TypedValue{types.Untyped("soup"), types.Untyped("steak")}, result.CollectEntries("dish"))
	assert.Len(t, result.CollectEntries("drink"), 1)
}

func TestDecisionListeners(t *testing.T) {
	var calls []string
	record := func(name string) DecisionTableEvaluationListenerFunc {
		return func(ctx context.Context, e *DecisionTableEvaluationEvent) error {
			calls = append(calls, name)
			return nil
		}
	}
	engine, _ := newTestEngine(t,
		WithPreDecisionTableListener(record("pre table 1"), record("pre table 2")),
		WithPostDecisionTableListener(record("post table")),
		WithPreDecisionListener(DecisionEvaluationListenerFunc(func(ctx context.Context, e *DecisionEvaluationEvent) error {
			calls = append(calls, "pre decision")
			return nil
		})),
		WithPostDecisionListener(DecisionEvaluationListenerFunc(func(ctx context.Context, e *DecisionEvaluationEvent) error {
			calls = append(calls, "post decision")
			return nil
		})),
	)
	_, err := engine.EvaluateDecision(context.Background(), dishDecision(), map[string]any{"season": "Summer", "guestCount": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"pre table 1", "pre table 2", "post table", "pre decision", "post decision"}, calls)
}

func TestPreListenerErrorAbortsEvaluation(t *testing.T) {
	listenerErr := errors.New("rejected")
	postCalled := false
	engine, _ := newTestEngine(t,
		WithPreDecisionTableListener(DecisionTableEvaluationListenerFunc(func(ctx context.Context, e *DecisionTableEvaluationEvent) error {
			return listenerErr
		})),
		WithPostDecisionTableListener(DecisionTableEvaluationListenerFunc(func(ctx context.Context, e *DecisionTableEvaluationEvent) error {
			postCalled = true
			return nil
		})),
	)
	_, err := engine.EvaluateDecision(context.Background(), dishDecision(), map[string]any{"season": "Summer", "guestCount": 1})
	assert.ErrorIs(t, err, listenerErr)
	var errListener *ListenerError
	assert.ErrorAs(t, err, &errListener)
	assert.False(t, postCalled)
}

func TestPostListenerFailuresAreIgnored(t *testing.T) {
	engine, _ := newTestEngine(t,
		WithPostDecisionTableListener(DecisionTableEvaluationListenerFunc(func(ctx context.Context, e *DecisionTableEvaluationEvent) error {
			panic("listener bug")
		})),
		WithPostDecisionListener(DecisionEvaluationListenerFunc(func(ctx context.Context, e *DecisionEvaluationEvent) error {
			return errors.New("unavailable")
		})),
	)
	result, err := engine.EvaluateDecision(context.Background(), dishDecision(), map[string]any{"season": "Summer", "guestCount": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Len())
}

func TestListenersSeeEvaluationContext(t *testing.T) {
	var contextKey, eventKey int64
	var decisionKey string
	engine, _ := newTestEngine(t, WithPostDecisionTableListener(DecisionTableEvaluationListenerFunc(
		func(ctx context.Context, e *DecisionTableEvaluationEvent) error {
			contextKey, _ = appcontext.EvaluationKeyFromContext(ctx)
			decisionKey, _ = appcontext.DecisionKeyFromContext(ctx)
			eventKey = e.EvaluationKey
			return nil
		})))
	_, err := engine.EvaluateDecision(context.Background(), dishDecision(), map[string]any{"season": "Summer", "guestCount": 1})
	require.NoError(t, err)
	assert.NotZero(t, eventKey)
	assert.Equal(t, eventKey, contextKey)
	assert.Equal(t, "dish", decisionKey)
}
