package dmn

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/pbinitiative/zendmn/pkg/dmn/types"
	"github.com/stretchr/testify/require"
)

// stubFeel understands variable references, literals and comma separated
// comparisons against literals. It counts every call.
type stubFeel struct {
	expressions atomic.Int64
	unaryTests  atomic.Int64
}

func (s *stubFeel) EvaluateSimpleExpression(expression string, variableContext map[string]any) (any, error) {
	s.expressions.Add(1)
	return stubLiteral(expression, variableContext)
}

func (s *stubFeel) EvaluateSimpleUnaryTests(expression string, inputName string, variableContext map[string]any) (bool, error) {
	s.unaryTests.Add(1)
	input := variableContext[inputName]
	for _, test := range strings.Split(expression, ",") {
		test = strings.TrimSpace(test)
		op := "="
		for _, candidate := range []string{"<=", ">=", "<", ">"} {
			if strings.HasPrefix(test, candidate) {
				op = candidate
				test = strings.TrimSpace(strings.TrimPrefix(test, candidate))
				break
			}
		}
		expected, err := stubLiteral(test, variableContext)
		if err != nil {
			return false, err
		}
		if stubCompare(op, input, expected) {
			return true, nil
		}
	}
	return false, nil
}

func stubLiteral(text string, variableContext map[string]any) (any, error) {
	text = strings.TrimSpace(text)
	if value, ok := variableContext[text]; ok {
		return value, nil
	}
	switch text {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if strings.HasPrefix(text, `"`) {
		return strconv.Unquote(text)
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unknown expression %q", text)
}

func stubCompare(op string, input any, expected any) bool {
	if op == "=" {
		return types.ValuesEqual(input, expected)
	}
	a, okA := types.AsFloat64(input)
	b, okB := types.AsFloat64(expected)
	if !okA || !okB {
		return false
	}
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	}
	return a >= b
}

func newTestEngine(t *testing.T, options ...EngineOption) (*Engine, *stubFeel) {
	t.Helper()
	feel := &stubFeel{}
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	defaults := []EngineOption{WithFeelEngine(feel), WithSnowflake(node), WithLogger(hclog.NewNullLogger())}
	engine, err := NewEngine(append(defaults, options...)...)
	require.NoError(t, err)
	return engine, feel
}

type tableBuilder struct {
	table *runtime.DecisionTable
}

func newTable(hitPolicy runtime.HitPolicy) *tableBuilder {
	return &tableBuilder{table: &runtime.DecisionTable{Key: "table", HitPolicy: hitPolicy}}
}

func (b *tableBuilder) aggregate(aggregator runtime.Aggregator) *tableBuilder {
	b.table.Aggregator = aggregator
	return b
}

func (b *tableBuilder) input(name string, expression string) *tableBuilder {
	clause := &runtime.Clause{Key: "input_" + name, Name: name, Role: runtime.RoleInput}
	if expression != "" {
		clause.Expression = &runtime.Expression{Key: "expr_" + name, Text: expression}
	}
	b.table.Inputs = append(b.table.Inputs, clause)
	return b
}

func (b *tableBuilder) typedInput(name string, expression string, typeName string) *tableBuilder {
	b.input(name, expression)
	b.table.Inputs[len(b.table.Inputs)-1].TypeDefinition = runtime.TypeDefinition{TypeName: typeName}
	return b
}

func (b *tableBuilder) output(name string, outputValues ...any) *tableBuilder {
	b.table.Outputs = append(b.table.Outputs, &runtime.Clause{
		Key:          "output_" + name,
		Name:         name,
		Role:         runtime.RoleOutput,
		OutputName:   name,
		OutputValues: outputValues,
	})
	return b
}

// rule adds a rule with one condition per input and one conclusion per
// output, in clause order.
func (b *tableBuilder) rule(key string, conditions []string, conclusions ...string) *tableBuilder {
	rule := &runtime.Rule{Key: key}
	for i, condition := range conditions {
		rule.Conditions = append(rule.Conditions, &runtime.ClauseEntry{
			Key:        fmt.Sprintf("%s_in_%d", key, i),
			Clause:     b.table.Inputs[i],
			Expression: runtime.Expression{Text: condition},
		})
	}
	for i, conclusion := range conclusions {
		rule.Conclusions = append(rule.Conclusions, &runtime.ClauseEntry{
			Key:        fmt.Sprintf("%s_out_%d", key, i),
			Clause:     b.table.Outputs[i],
			Expression: runtime.Expression{Text: conclusion},
		})
	}
	b.table.Rules = append(b.table.Rules, rule)
	return b
}

func (b *tableBuilder) decision(key string, required ...*runtime.Decision) *runtime.Decision {
	b.table.Key = key + "_table"
	return &runtime.Decision{Key: key, Name: key, Logic: b.table, RequiredDecisions: required}
}

func rowValues(t *testing.T, result DecisionResult, name string) []any {
	t.Helper()
	values := make([]any, 0, result.Len())
	for _, value := range result.CollectEntries(name) {
		values = append(values, value.Value())
	}
	return values
}
