package planner

import (
	"regexp"
	"strings"
)

// conversationalPatterns matches a small set of conversational
// openers/closers that short-circuit planning entirely (spec.md §4.6
// "greetings, thanks, 'how are you'").
var conversationalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good morning|good afternoon|good evening)[\s!.,]*$`),
	regexp.MustCompile(`(?i)^\s*(thanks|thank you|thx)[\s!.,]*$`),
	regexp.MustCompile(`(?i)^\s*how are you\??\s*$`),
	regexp.MustCompile(`(?i)^\s*(bye|goodbye|see you)[\s!.,]*$`),
}

// IsConversational reports whether text matches a conversational
// pattern, licensing the zero-step plan short-circuit.
func IsConversational(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, p := range conversationalPatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// conversationalReplies maps each pattern family to a canned reply,
// used by the pipeline when IsConversational is true.
var conversationalReplies = map[string]string{
	"greeting": "Hello! Ask me anything about your data and I'll look it up.",
	"thanks":   "You're welcome!",
	"howareyou": "I'm doing well, thanks for asking. What would you like to know about your data?",
	"farewell": "Goodbye!",
}

// ConversationalReply returns the canned reply for text, assuming
// IsConversational(text) is true.
func ConversationalReply(text string) string {
	trimmed := strings.TrimSpace(text)
	switch {
	case conversationalPatterns[0].MatchString(trimmed):
		return conversationalReplies["greeting"]
	case conversationalPatterns[1].MatchString(trimmed):
		return conversationalReplies["thanks"]
	case conversationalPatterns[2].MatchString(trimmed):
		return conversationalReplies["howareyou"]
	default:
		return conversationalReplies["farewell"]
	}
}
