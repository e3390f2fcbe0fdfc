// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package juel evaluates JUEL style templates such as "${amount > 100}".
// The expressions inside the delimiters are translated to JavaScript and run
// on a script engine.
package juel

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pbinitiative/zendmn/pkg/script"
)

const Language = "juel"

// IsWrapped reports whether the expression already starts with an expression
// delimiter.
func IsWrapped(expression string) bool {
	trimmed := strings.TrimSpace(expression)
	return strings.HasPrefix(trimmed, "${") || strings.HasPrefix(trimmed, "#{")
}

// Wrap puts expression into "${...}" unless it is already wrapped.
func Wrap(expression string) string {
	if IsWrapped(expression) {
		return expression
	}
	return "${" + expression + "}"
}

type JuelRuntime struct {
	engine script.ScriptEngine
}

// NewJuelRuntime returns a runtime evaluating the translated expressions on
// engine, typically the JavaScript runtime.
func NewJuelRuntime(engine script.ScriptEngine) *JuelRuntime {
	return &JuelRuntime{engine: engine}
}

// Evaluate evaluates a template. A template that consists of exactly one
// expression returns the value of that expression, otherwise the parts are
// concatenated into a string.
func (r *JuelRuntime) Evaluate(expression string, variableContext map[string]any) (any, error) {
	parts, err := parseTemplate(expression)
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 && parts[0].expression {
		return r.engine.Evaluate(Translate(parts[0].text), variableContext)
	}
	sb := strings.Builder{}
	for _, part := range parts {
		if !part.expression {
			sb.WriteString(part.text)
			continue
		}
		value, err := r.engine.Evaluate(Translate(part.text), variableContext)
		if err != nil {
			return nil, err
		}
		if value != nil {
			sb.WriteString(fmt.Sprint(value))
		}
	}
	return sb.String(), nil
}

type templatePart struct {
	text       string
	expression bool
}

func parseTemplate(template string) ([]templatePart, error) {
	var parts []templatePart
	rest := template
	for {
		start := indexOfDelimiter(rest)
		if start < 0 {
			if rest != "" {
				parts = append(parts, templatePart{text: rest})
			}
			return parts, nil
		}
		if start > 0 {
			parts = append(parts, templatePart{text: rest[:start]})
		}
		end, err := closingBrace(rest, start+2)
		if err != nil {
			return nil, fmt.Errorf("invalid expression \"%s\": %w", template, err)
		}
		parts = append(parts, templatePart{text: strings.TrimSpace(rest[start+2 : end]), expression: true})
		rest = rest[end+1:]
	}
}

func indexOfDelimiter(s string) int {
	dollar := strings.Index(s, "${")
	hash := strings.Index(s, "#{")
	switch {
	case dollar < 0:
		return hash
	case hash < 0:
		return dollar
	}
	return min(dollar, hash)
}

func closingBrace(s string, from int) (int, error) {
	depth := 0
	var quote rune
	for i, c := range s[from:] {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return from + i, nil
			}
			depth--
		}
	}
	return 0, fmt.Errorf("missing closing brace")
}

var keywordOperators = map[string]string{
	"and": "&&",
	"or":  "||",
	"not": "!",
	"eq":  "==",
	"ne":  "!=",
	"lt":  "<",
	"gt":  ">",
	"le":  "<=",
	"ge":  ">=",
	"div": "/",
	"mod": "%",
}

// Translate rewrites the keyword operators of an expression body into their
// JavaScript counterparts. String literals are left untouched.
func Translate(body string) string {
	sb := strings.Builder{}
	runes := []rune(body)
	for i := 0; i < len(runes); {
		c := runes[i]
		if c == '\'' || c == '"' {
			j := i + 1
			for j < len(runes) && runes[j] != c {
				j++
			}
			end := min(j+1, len(runes))
			sb.WriteString(string(runes[i:end]))
			i = end
			continue
		}
		if isIdentStart(c) && (i == 0 || !isIdentPart(runes[i-1]) && runes[i-1] != '.') {
			j := i
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			word := string(runes[i:j])
			if operator, ok := keywordOperators[word]; ok {
				sb.WriteString(operator)
			} else {
				sb.WriteString(word)
			}
			i = j
			continue
		}
		sb.WriteRune(c)
		i++
	}
	return sb.String()
}

func isIdentStart(c rune) bool {
	return c == '_' || c == '$' || unicode.IsLetter(c)
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || unicode.IsDigit(c)
}
