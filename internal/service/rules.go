package service

import "regexp"

// Rule is one entry of an ordered, declarative pattern table.
type Rule struct {
	Label   string
	Pattern *regexp.Regexp
}

// PIIRules mask personal data in declaration order. Each replacement label is
// free of digits and '@' so no later rule can match an earlier placeholder.
var PIIRules = []Rule{
	{Label: "[전화번호]", Pattern: regexp.MustCompile(`\b\d{3}-\d{4}-\d{4}\b`)},
	{Label: "[주민등록번호]", Pattern: regexp.MustCompile(`\b\d{6}-\d{7}\b`)},
	{Label: "[이메일]", Pattern: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
}

// ModerationRules flag answer categories. The warning lists matched labels in
// this order. RE2 word boundaries are ASCII-only, so Hangul terms are matched
// without them.
var ModerationRules = []Rule{
	{Label: "profanity", Pattern: regexp.MustCompile(`(?i)\b(?:damn|hell)\b|욕설`)},
	{Label: "hate", Pattern: regexp.MustCompile(`(?i)\bhate\b|증오`)},
	{Label: "adult", Pattern: regexp.MustCompile(`(?i)\badult\b|19금`)},
	{Label: "self-harm", Pattern: regexp.MustCompile(`(?i)\bself-harm\b|자해`)},
	{Label: "illegal", Pattern: regexp.MustCompile(`(?i)\billegal\b|불법`)},
}

// MaskPII applies PIIRules in order.
func MaskPII(text string) string {
	for _, rule := range PIIRules {
		text = rule.Pattern.ReplaceAllLiteralString(text, rule.Label)
	}
	return text
}

// ModerationFlags returns the labels of every ModerationRules entry matching text.
func ModerationFlags(text string) []string {
	var flags []string
	for _, rule := range ModerationRules {
		if rule.Pattern.MatchString(text) {
			flags = append(flags, rule.Label)
		}
	}
	return flags
}
