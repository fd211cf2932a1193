package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Code(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
	}{
		{
			name:   "fenced block",
			prompt: "Why does this panic?\n```go\nfunc main() {\n\tvar x []int\n\t_ = x[1]\n}\n```",
		},
		{
			name:   "keywords and symbols",
			prompt: "def handler(req):\n    if req is None:\n        return null\n    for i in range(10): print(i);",
		},
		{
			name:   "braces heavy snippet",
			prompt: "class Foo { public static void main() { int x = 1; if (x < 2) { x++; } } }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.prompt, "")
			assert.True(t, v.IsCode, "expected code verdict, got confidence %.2f", v.Confidence)
			assert.GreaterOrEqual(t, v.Confidence, isCodeFloor)
			assert.LessOrEqual(t, v.Confidence, 1.0)
		})
	}
}

func TestClassify_Prose(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
	}{
		{name: "homework planning", prompt: "Help me plan my revision for the biology exam next Friday. I have three chapters left."},
		{name: "tutoring question", prompt: "Can you explain the causes of the French Revolution in simple terms?"},
		{name: "prose with near-keywords", prompt: "The importance of classroom participation is a function of engagement and requires careful planning."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.prompt, "")
			assert.False(t, v.IsCode, "expected prose verdict, got confidence %.2f", v.Confidence)
		})
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	v := Classify("", "")
	assert.False(t, v.IsCode)
	assert.Zero(t, v.Confidence)

	v = Classify("   \n\t  ", "")
	assert.False(t, v.IsCode)
	assert.Zero(t, v.Confidence)
}

func TestClassify_SystemPromptContributes(t *testing.T) {
	system := "You are a coding assistant. Always answer with a ```python``` block."
	v := Classify("make it faster", system)
	assert.True(t, v.Confidence > 0)
}

func TestClassify_ConfidenceClipped(t *testing.T) {
	// Every signal fires at saturation; confidence must still be <= 1.
	prompt := "```\nfunc def class import return var let const\n" +
		"    x := map[string]int{};\n\ty = {a: 1};\n    if (x <= y) { z = x & y; }\n```"
	v := Classify(prompt, "")
	assert.True(t, v.IsCode)
	assert.LessOrEqual(t, v.Confidence, 1.0)
}
