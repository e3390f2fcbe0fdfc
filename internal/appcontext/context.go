package appcontext

import (
	"context"
)

type EVALUATION_CONTEXT string

var (
	EvaluationKey EVALUATION_CONTEXT = "evaluationKey"
	DecisionKey   EVALUATION_CONTEXT = "decisionKey"
)

// WithEvaluation marks ctx as belonging to the evaluation of decisionKey.
func WithEvaluation(ctx context.Context, evaluationKey int64, decisionKey string) context.Context {
	ctx = context.WithValue(ctx, EvaluationKey, evaluationKey)
	return context.WithValue(ctx, DecisionKey, decisionKey)
}

func EvaluationKeyFromContext(ctx context.Context) (int64, bool) {
	evaluationKey, ok := ctx.Value(EvaluationKey).(int64)
	return evaluationKey, ok
}

func DecisionKeyFromContext(ctx context.Context) (string, bool) {
	decisionKey, ok := ctx.Value(DecisionKey).(string)
	return decisionKey, ok
}
