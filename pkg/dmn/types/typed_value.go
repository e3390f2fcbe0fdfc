// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package types

import (
	"fmt"
	"reflect"
	"time"
)

const (
	TypeUntyped           = "untyped"
	TypeString            = "string"
	TypeBoolean           = "boolean"
	TypeInteger           = "integer"
	TypeLong              = "long"
	TypeDouble            = "double"
	TypeNumber            = "number"
	TypeDate              = "date"
	TypeDateTime          = "dateTime"
	TypeDayTimeDuration   = "dayTimeDuration"
	TypeYearMonthDuration = "yearMonthDuration"
)

// TypedValue is a value tagged with its declared type. It is immutable and
// may be shared freely.
type TypedValue struct {
	typeName string
	value    any
}

func NewTypedValue(typeName string, value any) TypedValue {
	return TypedValue{typeName: typeName, value: value}
}

// Untyped wraps a value that has no declared type.
func Untyped(value any) TypedValue {
	return TypedValue{typeName: TypeUntyped, value: value}
}

func (v TypedValue) Type() string { return v.typeName }

func (v TypedValue) Value() any { return v.value }

func (v TypedValue) IsNull() bool { return v.value == nil }

func (v TypedValue) String() string {
	return fmt.Sprintf("%v (%s)", v.value, v.typeName)
}

// Equal compares the wrapped values. Numbers compare by numeric value so that
// int(1) equals int64(1) and float64(1).
func (v TypedValue) Equal(other TypedValue) bool {
	return ValuesEqual(v.value, other.value)
}

// ValuesEqual compares two raw values with numeric normalization.
func ValuesEqual(a, b any) bool {
	if tv, ok := a.(TypedValue); ok {
		a = tv.value
	}
	if tv, ok := b.(TypedValue); ok {
		b = tv.value
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if IsNumber(a) && IsNumber(b) {
		if ai, ok := AsInt64(a); ok {
			if bi, ok := AsInt64(b); ok {
				return ai == bi
			}
		}
		af, _ := AsFloat64(a)
		bf, _ := AsFloat64(b)
		return af == bf
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
