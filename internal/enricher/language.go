package enricher

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// LanguageGate accepts text written in one of the configured languages.
type LanguageGate struct {
	detector lingua.LanguageDetector
	allowed  map[lingua.Language]struct{}
}

// NewLanguageGate builds a gate from ISO 639-1 codes such as "en" or "de".
// Unknown codes are ignored; with no known codes the gate is nil and accepts everything.
func NewLanguageGate(codes []string) *LanguageGate {
	byCode := map[string]lingua.Language{}
	for _, lang := range lingua.AllLanguages() {
		byCode[lang.IsoCode639_1().String()] = lang
	}

	allowed := map[lingua.Language]struct{}{}
	for _, code := range codes {
		if lang, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]; ok {
			allowed[lang] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return nil
	}

	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		WithLowAccuracyMode().
		Build()
	return &LanguageGate{detector: detector, allowed: allowed}
}

// Accept reports whether text is in an allowed language. Undetectable text is rejected.
func (g *LanguageGate) Accept(text string) bool {
	if g == nil {
		return true
	}
	lang, ok := g.detector.DetectLanguageOf(text)
	if !ok {
		return false
	}
	_, allowed := g.allowed[lang]
	return allowed
}
