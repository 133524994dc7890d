package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cloo-solutions/ragline/internal/domain"
)

const (
	LanguageKorean  = "ko"
	LanguageEnglish = "en"

	codeFenceToken = "<code block>"
)

var whitespaceRe = regexp.MustCompile(`[\x{00A0}\s]+`)

// PreprocessResult is normalized document text and its detected language.
type PreprocessResult struct {
	Text     string
	Language string
}

// Preprocess normalizes whitespace, neutralizes code fences, masks PII, removes
// every match of each custom pattern and detects the language. The steps run in
// that order. Only an invalid custom pattern produces an error.
func Preprocess(raw string, customPatterns []string) (PreprocessResult, error) {
	filters, err := compilePatterns(customPatterns)
	if err != nil {
		return PreprocessResult{}, err
	}

	text := NormalizeWhitespace(raw)
	text = strings.ReplaceAll(text, "```", codeFenceToken)
	text = MaskPII(text)
	for _, re := range filters {
		text = re.ReplaceAllLiteralString(text, "")
	}

	return PreprocessResult{Text: text, Language: DetectLanguage(text)}, nil
}

// NormalizeWhitespace collapses whitespace runs, including NBSP, to one space and trims.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllLiteralString(text, " "))
}

// DetectLanguage reports "ko" when text contains a Hangul syllable, "en" otherwise.
// It is a heuristic, not a language detector.
func DetectLanguage(text string) string {
	for _, r := range text {
		if r >= 0xAC00 && r <= 0xD7A3 {
			return LanguageKorean
		}
	}
	return LanguageEnglish
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("invalid filter pattern %q: %v", p, err))
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
