// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package js

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pbinitiative/zendmn/pkg/script"
)

// Languages are the names the JavaScript runtime is registered under.
var Languages = []string{"javascript", "js", "ecmascript"}

type JsRunnerFactory struct {
}

func (JsRunnerFactory) NewRunner() script.Runner {
	return newJsRunner()
}

// JsRuntime evaluates JavaScript expressions on pooled goja VMs. Compiled
// programs are shared between VMs through an LRU cache keyed by source.
type JsRuntime struct {
	pool     *script.RunnerPool
	programs *lru.Cache[string, *goja.Program]
}

func NewJsRuntime(ctx context.Context, maxVmPoolSize int, minVmPoolSize int, programCacheSize int) (*JsRuntime, error) {
	pool, err := script.NewRunnerPool(ctx, JsRunnerFactory{}, maxVmPoolSize, minVmPoolSize)
	if err != nil {
		return nil, err
	}
	programs, err := lru.New[string, *goja.Program](programCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %w", err)
	}
	return &JsRuntime{
		pool:     pool,
		programs: programs,
	}, nil
}

// Evaluate runs expression with variableContext bound as globals and returns
// the exported result. undefined and null both yield nil.
func (r *JsRuntime) Evaluate(expression string, variableContext map[string]any) (any, error) {
	program, err := r.compile(expression)
	if err != nil {
		return nil, err
	}
	var runner = r.pool.GetRunnerFromPool()
	defer r.pool.ReturnRunnerToPool(runner)

	return runner.(*JsRunner).run(program, variableContext)
}

func (r *JsRuntime) compile(expression string) (*goja.Program, error) {
	if program, ok := r.programs.Get(expression); ok {
		return program, nil
	}
	program, err := goja.Compile("", expression, false)
	if err != nil {
		return nil, fmt.Errorf("error compiling script \"%s\" : %w", expression, err)
	}
	r.programs.Add(expression, program)
	return program, nil
}

type JsRunner struct {
	vm *goja.Runtime
}

func (r *JsRunner) Runner() {}

func newJsRunner() *JsRunner {
	r := JsRunner{vm: goja.New()}
	return &r
}

func (r *JsRunner) run(program *goja.Program, variableContext map[string]any) (any, error) {
	defer func() {
		for name := range variableContext {
			_ = r.vm.GlobalObject().Delete(name)
		}
	}()
	for name, value := range variableContext {
		if err := r.vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("failed to bind variable %s: %w", name, err)
		}
	}
	value, err := r.vm.RunProgram(program)
	if err != nil {
		return nil, fmt.Errorf("error running script: %w", err)
	}
	if goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}
