package chat

import "github.com/jkaninda/kazi/internal/llm"

// Fixed user-safe failure replies. Raw provider errors never reach users;
// they go to logs only.
const (
	msgConnectivity = "I'm having trouble connecting to the AI service. Please check your internet connection and try again."
	msgTimeout      = "The request took too long to process. Please try again with a simpler request."
	msgValidation   = "I couldn't understand that request. Could you please rephrase it?"
	msgUnexpected   = "I'm sorry, I encountered an unexpected error. Please try again or contact support if the issue persists."
)

// FailureMessage maps a provider or runtime error onto the fixed reply the
// user sees. Classification order matters: timeouts are also url errors.
func FailureMessage(err error) string {
	switch {
	case llm.IsTimeout(err):
		return msgTimeout
	case llm.IsConnectivity(err):
		return msgConnectivity
	case llm.IsValidation(err):
		return msgValidation
	default:
		return msgUnexpected
	}
}
