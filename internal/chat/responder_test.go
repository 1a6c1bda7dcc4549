package chat

import (
	"strings"
	"testing"
	"time"
)

func TestReplyMatching(t *testing.T) {
	r := NewResponder()
	r.now = func() time.Time {
		return time.Date(2025, time.March, 14, 15, 9, 26, 0, time.UTC)
	}

	cases := []struct {
		input string
		want  string
	}{
		{"Hello there", "Hello! It's great to hear from you. How can I help you today?"},
		{"hi!", "Hello! It's great to hear from you. How can I help you today?"},
		{"how are you doing", "I'm doing well, thank you for asking! I'm here and ready to assist you."},
		{"what's your name", "I'm your AI avatar assistant. You can call me Avatar!"},
		{"how's the weather", "I can't check the weather right now, but I'd recommend looking outside or checking a weather app!"},
		{"what time is it", "The current time is 3:09:26 PM."},
		{"thank you so much", "You're very welcome! I'm happy to help."},
		{"goodbye", "Goodbye! It was nice talking with you. Have a great day!"},
	}
	for _, tc := range cases {
		if got := r.Reply(tc.input); got != tc.want {
			t.Errorf("Reply(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestReplyFirstMatchWins(t *testing.T) {
	r := NewResponder()
	got := r.Reply("hello and bye")
	if !strings.HasPrefix(got, "Hello!") {
		t.Fatalf("greeting should win over farewell, got %q", got)
	}
}

func TestReplyEchoFallback(t *testing.T) {
	r := NewResponder()
	got := r.Reply("xyzzy")
	want := "I heard you say: \"xyzzy\". That's interesting! Can you tell me more about that?"
	if got != want {
		t.Fatalf("Reply fallback = %q, want %q", got, want)
	}
}

func TestReplyEchoKeepsOriginalCase(t *testing.T) {
	r := NewResponder()
	got := r.Reply("Xyzzy Quux")
	if !strings.Contains(got, "\"Xyzzy Quux\"") {
		t.Fatalf("echo should quote the original input, got %q", got)
	}
}
