// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package dmn

// CamundaNamespace qualifies the camunda extension attributes.
const CamundaNamespace = "http://camunda.org/schema/1.0/dmn"

type TDefinitions struct {
	Id                 string      `xml:"id,attr"`
	Name               string      `xml:"name,attr"`
	Namespace          string      `xml:"namespace,attr"`
	ExpressionLanguage string      `xml:"expressionLanguage,attr"`
	Exporter           string      `xml:"exporter,attr"`
	ExporterVersion    string      `xml:"exporterVersion,attr"`
	Decisions          []TDecision `xml:"decision"`
}

type TDecision struct {
	Id                     string                    `xml:"id,attr"`
	Name                   string                    `xml:"name,attr"`
	CamundaVersionTag      string                    `xml:"http://camunda.org/schema/1.0/dmn versionTag,attr"`
	DecisionTable          *TDecisionTable           `xml:"decisionTable"`
	Variable               TVariable                 `xml:"variable"`
	LiteralExpression      *TLiteralExpression       `xml:"literalExpression"`
	VersionTag             VersionTag                `xml:"extensionElements>versionTag"`
	InformationRequirement []TInformationRequirement `xml:"informationRequirement"`
}

type VersionTag struct {
	Value string `xml:"value,attr"`
}

type TDecisionTable struct {
	Id                   string               `xml:"id,attr"`
	HitPolicy            HitPolicy            `xml:"hitPolicy,attr"`
	HitPolicyAggregation HitPolicyAggregation `xml:"aggregation,attr"`
	Inputs               []TInput             `xml:"input"`
	Outputs              []TOutput            `xml:"output"`
	Rules                []TRule              `xml:"rule"`
}

type TInput struct {
	Id              string           `xml:"id,attr"`
	Label           string           `xml:"label,attr"`
	InputVariable   string           `xml:"http://camunda.org/schema/1.0/dmn inputVariable,attr"`
	InputExpression TInputExpression `xml:"inputExpression"`
	InputValues     *TUnaryTests     `xml:"inputValues"`
}

type TInputExpression struct {
	Id                 string  `xml:"id,attr"`
	TypeRef            TypeRef `xml:"typeRef,attr"`
	ExpressionLanguage string  `xml:"expressionLanguage,attr"`
	Text               string  `xml:"text"`
}

type TOutput struct {
	Id           string       `xml:"id,attr"`
	Label        string       `xml:"label,attr"`
	Name         string       `xml:"name,attr"`
	TypeRef      TypeRef      `xml:"typeRef,attr"`
	OutputValues *TUnaryTests `xml:"outputValues"`
}

type TUnaryTests struct {
	Id                 string `xml:"id,attr"`
	ExpressionLanguage string `xml:"expressionLanguage,attr"`
	Text               string `xml:"text"`
}

type TRule struct {
	Id          string               `xml:"id,attr"`
	Description string               `xml:"description"`
	InputEntry  []TUnaryTests        `xml:"inputEntry"`
	OutputEntry []TLiteralExpression `xml:"outputEntry"`
}

type TVariable struct {
	Id      string  `xml:"id,attr"`
	Name    string  `xml:"name,attr"`
	TypeRef TypeRef `xml:"typeRef,attr"`
}

type TLiteralExpression struct {
	Id                 string  `xml:"id,attr"`
	TypeRef            TypeRef `xml:"typeRef,attr"`
	ExpressionLanguage string  `xml:"expressionLanguage,attr"`
	Text               string  `xml:"text"`
}

type TInformationRequirement struct {
	Id               string             `xml:"id,attr"`
	RequiredDecision *TRequiredDecision `xml:"requiredDecision"`
}

type TRequiredDecision struct {
	Href string `xml:"href,attr"`
}

type TypeRef string

const (
	TypeRefString            TypeRef = "string"
	TypeRefNumber            TypeRef = "number"
	TypeRefBoolean           TypeRef = "boolean"
	TypeRefDate              TypeRef = "date"
	TypeRefTime              TypeRef = "time"
	TypeRefDateTime          TypeRef = "dateTime"
	TypeRefDateTimeDuration  TypeRef = "dateTimeDuration"
	TypeRefYearMonthDuration TypeRef = "yearMonthDuration"
	TypeRefAny               TypeRef = "any"
)

type HitPolicy string

const (
	HitPolicyUnique      HitPolicy = "UNIQUE"
	HitPolicyCollect     HitPolicy = "COLLECT"
	HitPolicyFirst       HitPolicy = "FIRST"
	HitPolicyPriority    HitPolicy = "PRIORITY"
	HitPolicyAny         HitPolicy = "ANY"
	HitPolicyRuleOrder   HitPolicy = "RULE ORDER"
	HitPolicyOutputOrder HitPolicy = "OUTPUT ORDER"
)

type HitPolicyAggregation string

const (
	HitPolicyAggregationSum   HitPolicyAggregation = "SUM"
	HitPolicyAggregationMin   HitPolicyAggregation = "MIN"
	HitPolicyAggregationMax   HitPolicyAggregation = "MAX"
	HitPolicyAggregationCount HitPolicyAggregation = "COUNT"
)
