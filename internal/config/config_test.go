package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Voice.Language != "en-US" {
		t.Fatalf("expected default language, got %q", cfg.Voice.Language)
	}
	if cfg.ChatLog.Mode != "memory" {
		t.Fatalf("expected in-memory chat log by default, got %q", cfg.ChatLog.Mode)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AURA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("AURA_BUS_USERNAME", "alice")
	t.Setenv("AURA_BUS_PASSWORD", "secret")
	t.Setenv("AURA_BUS_TLS_INSECURE", "true")
	t.Setenv("AURA_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("AURA_VOICE_LANGUAGE", "en-GB")
	t.Setenv("AURA_VOICE_VOICE_LOCALE", "en-GB")
	t.Setenv("AURA_VOICE_RATE", "1.2")
	t.Setenv("AURA_VOICE_RECOGNITION_MODE", "exec")
	t.Setenv("AURA_VOICE_RECOGNITION_COMMAND", "aura-mock-engine recognize")
	t.Setenv("AURA_FORM_RELISTEN_DELAY_MS", "250")
	t.Setenv("AURA_CHAT_REPLY_DELAY_MS", "0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Voice.Language != "en-GB" {
		t.Fatalf("expected language override, got %q", cfg.Voice.Language)
	}
	if cfg.Voice.VoiceLocale != "en-GB" {
		t.Fatalf("expected voice locale override, got %q", cfg.Voice.VoiceLocale)
	}
	if cfg.Voice.Rate != 1.2 {
		t.Fatalf("expected rate override, got %v", cfg.Voice.Rate)
	}
	if cfg.Voice.Recognition.Mode != "exec" {
		t.Fatalf("expected recognition mode override")
	}
	if cfg.Voice.Recognition.Command == "" {
		t.Fatalf("expected recognition command override")
	}
	if cfg.Form.RelistenDelayMS != 250 {
		t.Fatalf("expected relisten delay override, got %d", cfg.Form.RelistenDelayMS)
	}
	if cfg.Chat.ReplyDelayMS != 0 {
		t.Fatalf("expected reply delay override, got %d", cfg.Chat.ReplyDelayMS)
	}
}

func TestValidateRejectsExecWithoutCommand(t *testing.T) {
	t.Setenv("AURA_VOICE_SYNTHESIS_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for exec synthesis without command")
	}
}
