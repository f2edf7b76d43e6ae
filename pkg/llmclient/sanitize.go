package llmclient

import (
	"regexp"
	"strings"
)

// fencedCodeBlock matches a ``` or ```json ... ``` fenced block,
// capturing its inner content (spec.md §4.6 "strip fenced code blocks").
var fencedCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// pythonBool matches standalone Python-style True/False/None literals
// that are invalid JSON (spec.md §4.6 "normalize True/False").
var pythonBool = regexp.MustCompile(`\bTrue\b|\bFalse\b|\bNone\b`)

// nativeTypeWrapper matches constructor-call-shaped wrappers some
// LLMs emit around native values, e.g. ObjectId("...") or
// NumberLong(123) (spec.md §4.6 "strip native-type wrappers").
var nativeTypeWrapper = regexp.MustCompile(`\b[A-Za-z]+\(([^()]*)\)`)

// Sanitize prepares a raw LLM reply for JSON parsing: strips fenced
// code blocks, normalizes Python-style booleans/null, and unwraps
// native-type constructor calls down to their bare argument.
func Sanitize(raw string) string {
	text := raw

	if m := fencedCodeBlock.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)

	text = pythonBool.ReplaceAllStringFunc(text, func(tok string) string {
		switch tok {
		case "True":
			return "true"
		case "False":
			return "false"
		default:
			return "null"
		}
	})

	text = nativeTypeWrapper.ReplaceAllStringFunc(text, func(call string) string {
		m := nativeTypeWrapper.FindStringSubmatch(call)
		if m == nil {
			return call
		}
		return m[1]
	})

	return text
}
