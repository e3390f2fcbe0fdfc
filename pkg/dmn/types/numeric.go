// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package types

import (
	"fmt"
	"math"
	"strconv"
)

// float64er covers number types of expression libraries that expose their
// value as float64.
type float64er interface {
	Float64() float64
}

// IsNumber reports whether value is a Go number or a library number type.
func IsNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case float64er:
		return true
	}
	return false
}

// IsIntegral reports whether value is an integer number type. Library number
// types count as integral when their value has no fraction.
func IsIntegral(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64er:
		f := v.Float64()
		return f == math.Trunc(f) && !math.IsInf(f, 0)
	}
	return false
}

// AsInt64 converts integer values. Floats are only accepted when they have no
// fraction.
func AsInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), uint64(v) <= math.MaxInt64
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case float64er:
		return floatToInt64(v.Float64())
	}
	return 0, false
}

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func AsFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case float64er:
		return v.Float64(), true
	}
	if i, ok := AsInt64(value); ok {
		return float64(i), true
	}
	if u, ok := value.(uint64); ok {
		return float64(u), true
	}
	return 0, false
}

// NormalizeNumber maps any supported number to int64 when it is integral and
// to float64 otherwise. Non numbers are returned unchanged.
func NormalizeNumber(value any) any {
	if !IsNumber(value) {
		return value
	}
	if IsIntegral(value) {
		if i, ok := AsInt64(value); ok {
			return i
		}
	}
	f, _ := AsFloat64(value)
	return f
}

func parseNumber(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return f, nil
}
