package chat

import (
	"strings"
	"time"
)

// Responder computes canned replies from lowercased substring matches.
// Matching is order-sensitive and first-match-wins: an input containing both
// "hello" and "bye" always resolves to the greeting.
type Responder struct {
	now func() time.Time
}

func NewResponder() *Responder {
	return &Responder{now: time.Now}
}

func (r *Responder) Reply(input string) string {
	in := strings.ToLower(input)
	switch {
	case strings.Contains(in, "hello") || strings.Contains(in, "hi"):
		return "Hello! It's great to hear from you. How can I help you today?"
	case strings.Contains(in, "how are you"):
		return "I'm doing well, thank you for asking! I'm here and ready to assist you."
	case strings.Contains(in, "name"):
		return "I'm your AI avatar assistant. You can call me Avatar!"
	case strings.Contains(in, "weather"):
		return "I can't check the weather right now, but I'd recommend looking outside or checking a weather app!"
	case strings.Contains(in, "time"):
		return "The current time is " + r.now().Format("3:04:05 PM") + "."
	case strings.Contains(in, "thank"):
		return "You're very welcome! I'm happy to help."
	case strings.Contains(in, "bye") || strings.Contains(in, "goodbye"):
		return "Goodbye! It was nice talking with you. Have a great day!"
	default:
		return "I heard you say: \"" + input + "\". That's interesting! Can you tell me more about that?"
	}
}
