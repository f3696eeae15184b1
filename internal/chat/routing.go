package chat

import (
	"strings"
	"unicode"
)

// Language is a supported conversation language.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageUrdu    Language = "urdu"
)

// DetectLanguage classifies a message by script. Any Arabic-script rune
// routes to Urdu; everything else, including mixed Latin text and unknown
// scripts, defaults to English.
func DetectLanguage(text string) Language {
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) {
			return LanguageUrdu
		}
	}
	return LanguageEnglish
}

// smallTalkPhrases are greetings and meta questions the orchestrator
// answers itself without handing off.
var smallTalkPhrases = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
	"who are you", "what can you do", "what are you", "help",
	"thanks", "thank you",
	"السلام عليكم", "سلام", "ہیلو", "شکریہ",
}

// IsSmallTalk reports whether a message is a greeting or a question about
// the assistant itself rather than a task request. Matching is
// deliberately conservative: anything longer than a short phrase goes to a
// language agent, which has the tools to act on it.
func IsSmallTalk(text string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	trimmed = strings.Trim(trimmed, "!?.،۔ ")
	if trimmed == "" {
		return false
	}
	for _, phrase := range smallTalkPhrases {
		if trimmed == phrase {
			return true
		}
	}
	return false
}
