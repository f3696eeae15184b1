package chat

import "testing"

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want Language
	}{
		{"add a task to buy milk", LanguageEnglish},
		{"", LanguageEnglish},
		{"ٹاسک شامل کریں", LanguageUrdu},
		{"میرے کام دکھائیں", LanguageUrdu},
		// Any Arabic-script rune wins, even in mixed text.
		{"please add ٹاسک", LanguageUrdu},
		{"こんにちは", LanguageEnglish}, // Unknown scripts default to English.
		{"1234 !?", LanguageEnglish},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.text); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestIsSmallTalk(t *testing.T) {
	smallTalk := []string{"hello", "Hi!", "  hey  ", "what can you do?", "شکریہ", "Thanks."}
	for _, s := range smallTalk {
		if !IsSmallTalk(s) {
			t.Errorf("IsSmallTalk(%q) = false, want true", s)
		}
	}
	taskTalk := []string{
		"add a task to buy milk",
		"hello, add a task for tomorrow", // A greeting with a request is not small talk.
		"help me finish my tasks",
		"ٹاسک شامل کریں",
		"",
	}
	for _, s := range taskTalk {
		if IsSmallTalk(s) {
			t.Errorf("IsSmallTalk(%q) = true, want false", s)
		}
	}
}

func TestRouting(t *testing.T) {
	root, err := NewHierarchy(nil)
	if err != nil {
		t.Fatalf("NewHierarchy: %v", err)
	}

	if got := root.Route("hello"); got.Persona() != PersonaOrchestrator {
		t.Errorf("small talk routed to %s, want orchestrator", got.Persona().Name)
	}
	if got := root.Route("add a task"); got.Persona() != PersonaEnglish {
		t.Errorf("English routed to %s, want %s", got.Persona().Name, PersonaEnglish.Name)
	}
	if got := root.Route("ٹاسک شامل کریں"); got.Persona() != PersonaUrdu {
		t.Errorf("Urdu routed to %s, want %s", got.Persona().Name, PersonaUrdu.Name)
	}
}

func TestRouterDepthLimit(t *testing.T) {
	leaf := NewToolAgent(PersonaEnglish, englishPrompt, LanguageEnglish, nil)
	mid, err := NewRouterAgent(PersonaUrdu, "mid", leaf)
	if err != nil {
		t.Fatalf("NewRouterAgent: %v", err)
	}
	if _, err := NewRouterAgent(PersonaOrchestrator, "root", mid); err == nil {
		t.Error("expected depth limit error when a handoff target has handoffs")
	}
}

func TestPersonaByName(t *testing.T) {
	if PersonaByName("Miyu") != PersonaEnglish {
		t.Error("Miyu lookup failed")
	}
	if PersonaByName("unknown") != PersonaOrchestrator {
		t.Error("unknown names should fall back to the orchestrator")
	}
}
