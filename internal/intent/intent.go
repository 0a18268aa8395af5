// Package intent implements the keyword heuristics that pick a response
// shape for the latest user turn: plain explanation, a single fenced code
// block, or enumerated steps.
package intent

import (
	"strings"
)

// Intent is the classified response shape for a user turn.
type Intent struct {
	WantsCode  bool
	WantsSteps bool
}

var codeKeywords = []string{
	"code", "implement", "write a", "source code", "script", "function", "class",
}

var stepsKeywords = []string{
	"steps", "step", "program steps", "algorithm steps", "pseudo", "pseudocode", "how to implement",
}

var greetingKeywords = []string{
	"hi", "hello", "hey", "greetings", "good morning", "good afternoon", "good evening",
}

// greetingMaxLen bounds the greeting short-circuit so that long questions
// containing "hi" as a substring are not swallowed.
const greetingMaxLen = 20

// Classify inspects the latest user turn with case-insensitive substring
// matching. Steps keywords take precedence over code keywords, resolving
// the ambiguous "show me the steps to code X" case.
func Classify(lastUserTurn string) Intent {
	lower := strings.ToLower(lastUserTurn)

	asksProgramSteps := strings.Contains(lower, "program steps") ||
		(strings.Contains(lower, "program") && strings.Contains(lower, "steps"))

	wantsSteps := asksProgramSteps || containsAny(lower, stepsKeywords)
	wantsCode := !wantsSteps && containsAny(lower, codeKeywords)

	return Intent{
		WantsCode:  wantsCode,
		WantsSteps: wantsSteps,
	}
}

// IsGreeting reports whether the turn is a short greeting that can be
// answered without an upstream round trip.
func IsGreeting(lastUserTurn string) bool {
	if len(strings.TrimSpace(lastUserTurn)) >= greetingMaxLen {
		return false
	}
	return containsAny(strings.ToLower(lastUserTurn), greetingKeywords)
}

// HasFencedCode reports whether the text contains at least one complete
// fenced code block.
func HasFencedCode(s string) bool {
	return strings.Count(s, "```") >= 2
}

// WrapFence wraps raw text in a best-effort code fence. Last resort when
// the forced code retry still produced no fenced block.
func WrapFence(s string) string {
	return "```\n" + strings.Trim(s, "\n") + "\n```"
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
