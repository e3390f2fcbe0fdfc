package otel

const (
	Prefix                     = "dmn-"
	AttributeDecisionKey       = Prefix + "decision-key"
	AttributeDecisionName      = Prefix + "decision-name"
	AttributeEvaluationKey     = Prefix + "evaluation-key"
	AttributeHitPolicy         = Prefix + "hit-policy"
	AttributeRequiredDecisions = Prefix + "required-decisions"
	AttributeMatchedRules      = Prefix + "matched-rules"
)
