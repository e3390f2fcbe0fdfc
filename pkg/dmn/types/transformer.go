// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/senseyeio/duration"
)

var (
	ErrTypeTransformFailed        = errors.New("type transform failed")
	ErrMissingDataTypeTransformer = errors.New("missing data type transformer")
)

// TypeTransformError is returned when a transformer rejects a raw value.
type TypeTransformError struct {
	TypeName string
	Value    any
	Reason   string
}

func (e *TypeTransformError) Error() string {
	return fmt.Sprintf("cannot transform value '%v' (%T) to type '%s': %s", e.Value, e.Value, e.TypeName, e.Reason)
}

func (e *TypeTransformError) Is(target error) bool {
	return target == ErrTypeTransformFailed
}

func transformError(typeName string, value any, format string, a ...any) error {
	return &TypeTransformError{TypeName: typeName, Value: value, Reason: fmt.Sprintf(format, a...)}
}

// Transformer converts an untyped raw value into a TypedValue of one type.
// A nil raw value always transforms into a typed null.
type Transformer interface {
	Transform(raw any) (TypedValue, error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(raw any) (TypedValue, error)

func (f TransformerFunc) Transform(raw any) (TypedValue, error) {
	return f(raw)
}

// Registry resolves transformers by type name. The zero value is not usable,
// use NewRegistry. A registry is read-only once handed to an engine.
type Registry struct {
	transformers map[string]Transformer
}

// NewRegistry returns a registry with the built-in transformers.
func NewRegistry() *Registry {
	r := &Registry{transformers: map[string]Transformer{}}
	r.Register("", TransformerFunc(transformUntyped))
	r.Register(TypeUntyped, TransformerFunc(transformUntyped))
	r.Register("any", TransformerFunc(transformUntyped))
	r.Register(TypeString, TransformerFunc(transformString))
	r.Register(TypeBoolean, TransformerFunc(transformBoolean))
	r.Register(TypeInteger, TransformerFunc(transformInteger))
	r.Register(TypeLong, TransformerFunc(transformLong))
	r.Register(TypeDouble, TransformerFunc(transformDouble))
	r.Register(TypeNumber, TransformerFunc(transformNumber))
	r.Register(TypeDate, TransformerFunc(transformDate))
	r.Register(TypeDateTime, TransformerFunc(transformDateTime))
	r.Register(TypeDayTimeDuration, TransformerFunc(transformDayTimeDuration))
	r.Register(TypeYearMonthDuration, TransformerFunc(transformYearMonthDuration))
	return r
}

// Register adds or replaces the transformer for a type name. Type names are
// matched case-insensitively.
func (r *Registry) Register(typeName string, transformer Transformer) {
	r.transformers[strings.ToLower(typeName)] = transformer
}

func (r *Registry) TransformerFor(typeName string) (Transformer, error) {
	transformer, ok := r.transformers[strings.ToLower(strings.TrimSpace(typeName))]
	if !ok {
		return nil, fmt.Errorf("%w: no transformer registered for type '%s'", ErrMissingDataTypeTransformer, typeName)
	}
	return transformer, nil
}

// Transform looks up the transformer of typeName and applies it.
func (r *Registry) Transform(typeName string, raw any) (TypedValue, error) {
	transformer, err := r.TransformerFor(typeName)
	if err != nil {
		return TypedValue{}, err
	}
	return transformer.Transform(raw)
}

func transformUntyped(raw any) (TypedValue, error) {
	if tv, ok := raw.(TypedValue); ok {
		return tv, nil
	}
	if _, foreign := raw.(float64er); foreign {
		raw = NormalizeNumber(raw)
	}
	return Untyped(raw), nil
}

func transformString(raw any) (TypedValue, error) {
	if IsNumber(raw) {
		return NewTypedValue(TypeString, fmt.Sprint(NormalizeNumber(raw))), nil
	}
	switch v := raw.(type) {
	case nil:
		return NewTypedValue(TypeString, nil), nil
	case string:
		return NewTypedValue(TypeString, v), nil
	case bool:
		return NewTypedValue(TypeString, strconv.FormatBool(v)), nil
	case fmt.Stringer:
		return NewTypedValue(TypeString, v.String()), nil
	}
	return TypedValue{}, transformError(TypeString, raw, "unsupported value")
}

func transformBoolean(raw any) (TypedValue, error) {
	switch v := raw.(type) {
	case nil:
		return NewTypedValue(TypeBoolean, nil), nil
	case bool:
		return NewTypedValue(TypeBoolean, v), nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return NewTypedValue(TypeBoolean, true), nil
		case "false":
			return NewTypedValue(TypeBoolean, false), nil
		}
	}
	return TypedValue{}, transformError(TypeBoolean, raw, "expected true or false")
}

func toInt64(typeName string, raw any) (int64, error) {
	if s, ok := raw.(string); ok {
		parsed, err := parseNumber(strings.TrimSpace(s))
		if err != nil {
			return 0, transformError(typeName, raw, "%v", err)
		}
		raw = parsed
	}
	i, ok := AsInt64(raw)
	if !ok {
		return 0, transformError(typeName, raw, "not an integral number")
	}
	return i, nil
}

func transformInteger(raw any) (TypedValue, error) {
	if raw == nil {
		return NewTypedValue(TypeInteger, nil), nil
	}
	i, err := toInt64(TypeInteger, raw)
	if err != nil {
		return TypedValue{}, err
	}
	if i > math.MaxInt32 || i < math.MinInt32 {
		return TypedValue{}, transformError(TypeInteger, raw, "out of integer range")
	}
	return NewTypedValue(TypeInteger, int(i)), nil
}

func transformLong(raw any) (TypedValue, error) {
	if raw == nil {
		return NewTypedValue(TypeLong, nil), nil
	}
	i, err := toInt64(TypeLong, raw)
	if err != nil {
		return TypedValue{}, err
	}
	return NewTypedValue(TypeLong, i), nil
}

func transformDouble(raw any) (TypedValue, error) {
	if raw == nil {
		return NewTypedValue(TypeDouble, nil), nil
	}
	if s, ok := raw.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return TypedValue{}, transformError(TypeDouble, raw, "not a number")
		}
		return NewTypedValue(TypeDouble, f), nil
	}
	f, ok := AsFloat64(raw)
	if !ok {
		return TypedValue{}, transformError(TypeDouble, raw, "not a number")
	}
	return NewTypedValue(TypeDouble, f), nil
}

func transformNumber(raw any) (TypedValue, error) {
	if raw == nil {
		return NewTypedValue(TypeNumber, nil), nil
	}
	if s, ok := raw.(string); ok {
		parsed, err := parseNumber(strings.TrimSpace(s))
		if err != nil {
			return TypedValue{}, transformError(TypeNumber, raw, "%v", err)
		}
		return NewTypedValue(TypeNumber, parsed), nil
	}
	if !IsNumber(raw) {
		return TypedValue{}, transformError(TypeNumber, raw, "not a number")
	}
	return NewTypedValue(TypeNumber, NormalizeNumber(raw)), nil
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func transformDate(raw any) (TypedValue, error) {
	switch v := raw.(type) {
	case nil:
		return NewTypedValue(TypeDate, nil), nil
	case time.Time:
		return NewTypedValue(TypeDate, v), nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return NewTypedValue(TypeDate, t), nil
			}
		}
		return TypedValue{}, transformError(TypeDate, raw, "expected format yyyy-MM-dd'T'HH:mm:ss or yyyy-MM-dd")
	}
	return TypedValue{}, transformError(TypeDate, raw, "unsupported value")
}

func transformDateTime(raw any) (TypedValue, error) {
	switch v := raw.(type) {
	case nil:
		return NewTypedValue(TypeDateTime, nil), nil
	case time.Time:
		return NewTypedValue(TypeDateTime, v), nil
	case string:
		s := strings.TrimSpace(v)
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return NewTypedValue(TypeDateTime, t), nil
		}
		if t, err := time.Parse(dateLayouts[0], s); err == nil {
			return NewTypedValue(TypeDateTime, t), nil
		}
		return TypedValue{}, transformError(TypeDateTime, raw, "expected an RFC 3339 date time")
	}
	return TypedValue{}, transformError(TypeDateTime, raw, "unsupported value")
}

func toDuration(typeName string, raw any) (duration.Duration, error) {
	switch v := raw.(type) {
	case duration.Duration:
		return v, nil
	case string:
		d, err := duration.ParseISO8601(strings.TrimSpace(v))
		if err != nil {
			return duration.Duration{}, transformError(typeName, raw, "%v", err)
		}
		return d, nil
	}
	return duration.Duration{}, transformError(typeName, raw, "expected an ISO 8601 duration")
}

func transformDayTimeDuration(raw any) (TypedValue, error) {
	switch v := raw.(type) {
	case nil:
		return NewTypedValue(TypeDayTimeDuration, nil), nil
	case time.Duration:
		return NewTypedValue(TypeDayTimeDuration, v), nil
	}
	d, err := toDuration(TypeDayTimeDuration, raw)
	if err != nil {
		return TypedValue{}, err
	}
	if d.Y != 0 || d.M != 0 {
		return TypedValue{}, transformError(TypeDayTimeDuration, raw, "years and months are not allowed")
	}
	return NewTypedValue(TypeDayTimeDuration, d), nil
}

func transformYearMonthDuration(raw any) (TypedValue, error) {
	if raw == nil {
		return NewTypedValue(TypeYearMonthDuration, nil), nil
	}
	d, err := toDuration(TypeYearMonthDuration, raw)
	if err != nil {
		return TypedValue{}, err
	}
	if d.W != 0 || d.D != 0 || d.TH != 0 || d.TM != 0 || d.TS != 0 {
		return TypedValue{}, transformError(TypeYearMonthDuration, raw, "only years and months are allowed")
	}
	return NewTypedValue(TypeYearMonthDuration, d), nil
}
