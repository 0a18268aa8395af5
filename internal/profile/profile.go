// Package profile holds the versioned instruction profile: the prompt and
// canned-response texts attached to outgoing requests. The divergent
// hardcoded prompt revisions of earlier clients collapse into one profile
// value selected at configuration time.
package profile

// Profile is one versioned set of instruction texts.
type Profile struct {
	// Version identifies the profile revision, observability only.
	Version string `json:"version"`

	// System is the default cheat-sheet system prompt.
	System string `json:"system"`

	// Code is the instruction appended when a code-only answer is
	// requested or retried.
	Code string `json:"code"`

	// Steps is the instruction attached for step-by-step answers.
	Steps string `json:"steps"`

	// Greeting is the canned response for the greeting short-circuit.
	Greeting string `json:"greeting"`

	// Fallback replaces an empty completion.
	Fallback string `json:"fallback"`
}

// Schema validates profile override files.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version"],
  "properties": {
    "version": {
      "type": "string",
      "minLength": 1
    },
    "system": {
      "type": "string"
    },
    "code": {
      "type": "string"
    },
    "steps": {
      "type": "string"
    },
    "greeting": {
      "type": "string"
    },
    "fallback": {
      "type": "string"
    }
  },
  "additionalProperties": false
}`

// Default returns the built-in instruction profile.
func Default() Profile {
	return Profile{
		Version: "builtin-1",
		System: `You are an expert technical interview assistant. STRICTLY follow the exact cheat-sheet format below and nothing else. Do not add extra commentary, examples, or apologies. If you cannot answer precisely, respond with "I don't know." Keep responses extremely concise (preferably under 120 words).

Format to use (exact):

[Topic Name]
Definition:
- one short 1-2 line plain-language explanation.

Steps (if applicable):
- short bullet points, only if the concept is a process.

Time Complexity (if applicable):
Best Case: [value]
Worst Case: [value]

Space Complexity (if applicable):
[value]`,
		Code:  "You are a code assistant. When the user requests code, output ONLY the complete source code in a single triple-backtick code block with an explicit language tag (e.g., ```python). Do not include any additional explanation, headers, or steps. Ensure the code is runnable and minimal.",
		Steps: "You are a concise technical assistant. When the user asks for steps, return only short numbered or bullet steps (no extra paragraphs), then optionally a one-line complexity summary.",
		Greeting: `Hello! I'm your friendly technical interview assistant. I'm here to help you with:

- **Explaining concepts** in simple, easy-to-understand language
- **Providing code examples** with detailed comments
- **Breaking down algorithms** step-by-step
- **Answering technical questions** about programming, data structures, and more

Ask me anything! For example:
- "What is binary search?"
- "Explain how quicksort works"
- "Write a Python function to reverse a string"

What would you like to learn about today?`,
		Fallback: "I apologize, but I didn't generate a proper response. Please try asking your question again, or rephrase it slightly.",
	}
}

// merge overlays non-empty override fields onto the defaults, so a profile
// file only needs to name what it changes.
func merge(base, override Profile) Profile {
	out := base
	if override.Version != "" {
		out.Version = override.Version
	}
	if override.System != "" {
		out.System = override.System
	}
	if override.Code != "" {
		out.Code = override.Code
	}
	if override.Steps != "" {
		out.Steps = override.Steps
	}
	if override.Greeting != "" {
		out.Greeting = override.Greeting
	}
	if override.Fallback != "" {
		out.Fallback = override.Fallback
	}
	return out
}
