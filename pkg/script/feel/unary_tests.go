// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package feel

import (
	"fmt"
	"strings"
)

var comparisonOperators = []string{"<=", ">=", "!=", "<", ">", "="}

// UnaryTestsToExpression rewrites FEEL unary tests into a boolean FEEL
// expression over inputName. An empty result means the tests match any input.
//
//	"<= 10"          -> "(inputName <= 10)"
//	"\"a\",\"b\""    -> "(inputName = \"a\") or (inputName = \"b\")"
//	"[1..5]"         -> "(inputName >= 1 and inputName <= 5)"
//	"not(\"a\")"     -> "not((inputName = \"a\"))"
func UnaryTestsToExpression(expression string, inputName string) (string, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" || trimmed == "-" {
		return "", nil
	}
	if inner, ok := negated(trimmed); ok {
		positive, err := UnaryTestsToExpression(inner, inputName)
		if err != nil {
			return "", err
		}
		if positive == "" {
			return "false", nil
		}
		return "not(" + positive + ")", nil
	}
	tests, err := splitTopLevel(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid unary tests \"%s\": %w", expression, err)
	}
	parts := make([]string, 0, len(tests))
	for _, test := range tests {
		part, err := unaryTest(test, inputName)
		if err != nil {
			return "", fmt.Errorf("invalid unary tests \"%s\": %w", expression, err)
		}
		if part == "" {
			return "", nil
		}
		parts = append(parts, "("+part+")")
	}
	return strings.Join(parts, " or "), nil
}

func negated(expression string) (string, bool) {
	if !strings.HasPrefix(expression, "not(") || !strings.HasSuffix(expression, ")") {
		return "", false
	}
	inner := expression[len("not(") : len(expression)-1]
	// "not(a) or not(b)" is not a single negation
	if _, err := splitTopLevel(inner); err != nil || !balanced(inner) {
		return "", false
	}
	return inner, true
}

func unaryTest(test string, inputName string) (string, error) {
	test = strings.TrimSpace(test)
	switch {
	case test == "":
		return "", fmt.Errorf("empty test")
	case test == "-":
		return "", nil
	case test == "null":
		return inputName + " = null", nil
	case strings.Contains(test, "?"):
		return replaceOutsideStrings(test, "?", inputName), nil
	}
	if interval, ok, err := intervalTest(test, inputName); ok || err != nil {
		return interval, err
	}
	for _, op := range comparisonOperators {
		if rest, ok := strings.CutPrefix(test, op); ok {
			return inputName + " " + op + " " + strings.TrimSpace(rest), nil
		}
	}
	return inputName + " = " + test, nil
}

func intervalTest(test string, inputName string) (string, bool, error) {
	if len(test) < 2 {
		return "", false, nil
	}
	open, closing := test[0], test[len(test)-1]
	if (open != '[' && open != '(' && open != ']') || (closing != ']' && closing != ')' && closing != '[') {
		return "", false, nil
	}
	body := test[1 : len(test)-1]
	idx := indexOutsideStrings(body, "..")
	if idx < 0 {
		return "", false, nil
	}
	low := strings.TrimSpace(body[:idx])
	high := strings.TrimSpace(body[idx+2:])
	if low == "" || high == "" {
		return "", true, fmt.Errorf("interval %s is missing an endpoint", test)
	}
	lowOp := ">="
	if open != '[' {
		lowOp = ">"
	}
	highOp := "<="
	if closing != ']' {
		highOp = "<"
	}
	return fmt.Sprintf("%s %s %s and %s %s %s", inputName, lowOp, low, inputName, highOp, high), true, nil
}

// SplitList splits a comma separated list of FEEL literals or tests.
func SplitList(expression string) ([]string, error) {
	return splitTopLevel(expression)
}

// splitTopLevel splits on commas that are not nested in brackets or strings.
func splitTopLevel(expression string) ([]string, error) {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(expression); i++ {
		c := expression[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == '}':
			depth--
		case c == ']':
			// "]a..b]" style intervals open with a closing bracket
			if depth > 0 {
				depth--
			} else {
				depth++
			}
		case c == ',' && depth == 0:
			parts = append(parts, expression[start:i])
			start = i + 1
		}
	}
	if inString {
		return nil, fmt.Errorf("unterminated string")
	}
	return append(parts, expression[start:]), nil
}

func balanced(expression string) bool {
	depth := 0
	inString := false
	for i := 0; i < len(expression); i++ {
		c := expression[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func indexOutsideStrings(s string, sub string) int {
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case strings.HasPrefix(s[i:], sub):
			return i
		}
	}
	return -1
}

func replaceOutsideStrings(s string, old string, replacement string) string {
	sb := strings.Builder{}
	for {
		idx := indexOutsideStrings(s, old)
		if idx < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		sb.WriteString(s[:idx])
		sb.WriteString(replacement)
		s = s[idx+len(old):]
	}
}
