// Package classify provides the code-intent heuristic used to bias provider
// selection. It is a pure function over the prompt text: no state, no I/O.
package classify

import (
	"strings"
	"unicode"
)

// Verdict is the classifier output. Confidence is a weighted combination of
// independently triggered signals, clipped to [0,1].
type Verdict struct {
	IsCode     bool    `json:"is_code"`
	Confidence float64 `json:"confidence"`
}

// Signal weights. Each signal contributes independently; the sum is clipped.
const (
	weightFence       = 0.45
	weightKeywords    = 0.30
	weightIndentation = 0.15
	weightSymbols     = 0.25

	// isCodeFloor is the minimum combined score at which the verdict flips
	// to code. The router applies its own, stricter confidence threshold on
	// top of this when ordering the provider chain.
	isCodeFloor = 0.25
)

// codeKeywords are language keywords and declaration markers common across
// mainstream languages. Matching is done on whole tokens to avoid tripping
// on prose ("classroom", "importance").
var codeKeywords = map[string]struct{}{
	"func": {}, "function": {}, "def": {}, "fn": {},
	"class": {}, "struct": {}, "interface": {}, "enum": {},
	"import": {}, "include": {}, "require": {}, "package": {}, "using": {},
	"return": {}, "var": {}, "let": {}, "const": {},
	"public": {}, "private": {}, "static": {}, "void": {},
	"if": {}, "else": {}, "for": {}, "while": {}, "switch": {},
	"nil": {}, "null": {}, "true": {}, "false": {},
	"printf": {}, "println": {}, "console.log": {}, "select": {},
}

// Classify inspects a prompt and decides whether it is code-oriented.
// Malformed or empty input yields {false, 0}; there are no error conditions.
func Classify(prompt, systemPrompt string) Verdict {
	text := strings.TrimSpace(systemPrompt + "\n" + prompt)
	if text == "" {
		return Verdict{}
	}

	score := 0.0
	if strings.Contains(text, "```") {
		score += weightFence
	}
	score += weightKeywords * keywordSignal(text)
	score += weightIndentation * indentationSignal(text)
	score += weightSymbols * symbolSignal(text)

	if score > 1 {
		score = 1
	}
	return Verdict{IsCode: score >= isCodeFloor, Confidence: score}
}

// keywordSignal returns the fraction of a small keyword budget that the text
// fills. Three distinct keyword hits saturate the signal.
func keywordSignal(text string) float64 {
	hits := 0
	seen := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '(' || r == ')' || r == ':' || r == ',' || r == '"' || r == '\''
	}) {
		tok = strings.ToLower(tok)
		if _, ok := codeKeywords[tok]; !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		hits++
	}
	sig := float64(hits) / 3.0
	if sig > 1 {
		sig = 1
	}
	return sig
}

// indentationSignal returns the fraction of lines that look machine-indented
// (leading tab or four spaces). Prose almost never indents this way.
func indentationSignal(text string) float64 {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return 0
	}
	indented := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ") {
			indented++
		}
	}
	return float64(indented) / float64(len(lines))
}

// symbolSignal measures structural-symbol density relative to text length.
// Around 4% braces/semicolons/operators saturates the signal; prose sits
// well under 1%.
func symbolSignal(text string) float64 {
	symbols := 0
	for _, r := range text {
		switch r {
		case '{', '}', ';', '=', '<', '>', '[', ']', '&', '|':
			symbols++
		}
	}
	density := float64(symbols) / float64(len([]rune(text)))
	sig := density / 0.04
	if sig > 1 {
		sig = 1
	}
	return sig
}
