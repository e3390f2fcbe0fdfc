// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package dmn

import (
	"errors"
	"fmt"

	"github.com/pbinitiative/zendmn/pkg/dmn/types"
	"github.com/pbinitiative/zendmn/pkg/script"
)

var (
	ErrAmbiguousResult            = errors.New("ambiguous result")
	ErrHitPolicyViolation         = errors.New("hit policy violation")
	ErrNoHitPolicyHandler         = errors.New("no hit policy handler")
	ErrDecisionTypeNotSupported   = errors.New("decision type not supported")
	ErrExpressionEvaluationFailed = errors.New("expression evaluation failed")

	ErrNoScriptEngineFound        = script.ErrNoScriptEngineFound
	ErrTypeTransformFailed        = types.ErrTypeTransformFailed
	ErrMissingDataTypeTransformer = types.ErrMissingDataTypeTransformer
)

type DecisionNotFoundError struct {
	DecisionID string
}

func (e *DecisionNotFoundError) Error() string {
	return fmt.Sprintf("decision [%s] doesnt exist", e.DecisionID)
}

// ExpressionEvaluationError is returned when an expression engine failed.
// It matches ErrExpressionEvaluationFailed.
type ExpressionEvaluationError struct {
	Language   string
	Expression string
	Err        error
}

func (e *ExpressionEvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate %s expression \"%s\": %v", e.Language, e.Expression, e.Err)
}

func (e *ExpressionEvaluationError) Unwrap() error {
	return e.Err
}

func (e *ExpressionEvaluationError) Is(target error) bool {
	return target == ErrExpressionEvaluationFailed
}

// ListenerError wraps an error returned by a pre evaluation listener.
type ListenerError struct {
	Listener string
	Err      error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %s failed: %v", e.Listener, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}
