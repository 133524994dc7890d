package service

import (
	"strings"
	"unicode/utf8"
)

const (
	WarningNoGrounding    = "no grounding text available"
	WarningAnswerTooLong  = "answer length large relative to grounding — needs verification"
	moderationWarningHead = "moderation categories detected: "

	// maxAnswerToSourceRatio is the answer/source rune ratio above which an
	// answer is flagged for verification.
	maxAnswerToSourceRatio = 4.0
)

// RunGuardrails masks PII in answer, then checks grounding and moderation
// against the masked text. It only annotates and never fails.
func RunGuardrails(answer string, sources []string) (string, []string) {
	masked := MaskPII(answer)

	warnings := CitationCheck(masked, sources)
	if flags := ModerationFlags(masked); len(flags) > 0 {
		warnings = append(warnings, moderationWarningHead+strings.Join(flags, ", "))
	}
	return masked, warnings
}

// CitationCheck compares answer length to total source length in runes.
func CitationCheck(answer string, sources []string) []string {
	total := 0
	for _, s := range sources {
		total += utf8.RuneCountInString(s)
	}
	if total == 0 {
		return []string{WarningNoGrounding}
	}
	if float64(utf8.RuneCountInString(answer))/float64(total) > maxAnswerToSourceRatio {
		return []string{WarningAnswerTooLong}
	}
	return []string{}
}
