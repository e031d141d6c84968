package main

import (
	"testing"
	"time"
)

// clearVoxyEnv blanks every settings variable so tests see pure
// defaults regardless of the developer's shell.
func clearVoxyEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"VOXY_PROVIDER", "VOXY_LANGUAGE", "VOXY_HOTKEY", "VOXY_INJECT",
		"VOXY_DEVICE", "VOXY_FORMAT", "VOXY_SILENCE_THRESHOLD",
		"VOXY_SILENCE_TIMEOUT_MS", "VOXY_MAX_SESSION_SEC",
		"VOXY_HTTP_TIMEOUT_SEC", "VOXY_GAIN", "VOXY_NOTIFY", "VOXY_BEEP",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	clearVoxyEnv(t)

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	if s.SilenceThreshold != 50 {
		t.Errorf("SilenceThreshold = %v, want 50", s.SilenceThreshold)
	}
	if s.SilenceTimeout != 1500*time.Millisecond {
		t.Errorf("SilenceTimeout = %v, want 1.5s", s.SilenceTimeout)
	}
	if s.MaxSession != time.Minute {
		t.Errorf("MaxSession = %v, want 1m", s.MaxSession)
	}
	if s.NetworkTimeout != 30*time.Second {
		t.Errorf("NetworkTimeout = %v, want 30s", s.NetworkTimeout)
	}
	if s.Format != "wav" {
		t.Errorf("Format = %q, want wav", s.Format)
	}
	if s.InjectMode != "paste" {
		t.Errorf("InjectMode = %q, want paste", s.InjectMode)
	}
	if got := s.Hotkey.String(); got != "ctrl+shift+space" {
		t.Errorf("Hotkey = %q, want ctrl+shift+space", got)
	}
	if !s.Notify || !s.Beep {
		t.Errorf("Notify=%v Beep=%v, want both true", s.Notify, s.Beep)
	}
}

func TestLoadSettingsFromEnv(t *testing.T) {
	clearVoxyEnv(t)
	t.Setenv("VOXY_PROVIDER", "groq")
	t.Setenv("VOXY_LANGUAGE", "pt")
	t.Setenv("VOXY_HOTKEY", "ctrl+alt+d")
	t.Setenv("VOXY_INJECT", "copy")
	t.Setenv("VOXY_FORMAT", "flac")
	t.Setenv("VOXY_SILENCE_THRESHOLD", "120.5")
	t.Setenv("VOXY_SILENCE_TIMEOUT_MS", "2500")
	t.Setenv("VOXY_MAX_SESSION_SEC", "90")
	t.Setenv("VOXY_NOTIFY", "off")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	if s.Provider != "groq" || s.Language != "pt" || s.InjectMode != "copy" || s.Format != "flac" {
		t.Errorf("string fields not picked up: %+v", s)
	}
	if got := s.Hotkey.String(); got != "ctrl+alt+d" {
		t.Errorf("Hotkey = %q, want ctrl+alt+d", got)
	}
	if s.SilenceThreshold != 120.5 {
		t.Errorf("SilenceThreshold = %v, want 120.5", s.SilenceThreshold)
	}
	if s.SilenceTimeout != 2500*time.Millisecond {
		t.Errorf("SilenceTimeout = %v, want 2.5s", s.SilenceTimeout)
	}
	if s.MaxSession != 90*time.Second {
		t.Errorf("MaxSession = %v, want 90s", s.MaxSession)
	}
	if s.Notify {
		t.Error("Notify should be off")
	}
}

func TestLoadSettingsClamping(t *testing.T) {
	clearVoxyEnv(t)
	t.Setenv("VOXY_SILENCE_THRESHOLD", "-10")
	t.Setenv("VOXY_SILENCE_TIMEOUT_MS", "50")
	t.Setenv("VOXY_MAX_SESSION_SEC", "99999")
	t.Setenv("VOXY_GAIN", "64")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	if s.SilenceThreshold != 0 {
		t.Errorf("SilenceThreshold = %v, want clamped to 0", s.SilenceThreshold)
	}
	if s.SilenceTimeout != minSilenceTimeout {
		t.Errorf("SilenceTimeout = %v, want clamped to %v", s.SilenceTimeout, minSilenceTimeout)
	}
	if s.MaxSession != maxMaxSession {
		t.Errorf("MaxSession = %v, want clamped to %v", s.MaxSession, maxMaxSession)
	}
	if s.Gain != maxGain {
		t.Errorf("Gain = %v, want clamped to %v", s.Gain, maxGain)
	}
}

func TestLoadSettingsBadNumbersFallBack(t *testing.T) {
	clearVoxyEnv(t)
	t.Setenv("VOXY_SILENCE_THRESHOLD", "loud")
	t.Setenv("VOXY_SILENCE_TIMEOUT_MS", "soon")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.SilenceThreshold != defaultSilenceThreshold {
		t.Errorf("SilenceThreshold = %v, want default", s.SilenceThreshold)
	}
	if s.SilenceTimeout != defaultSilenceTimeout {
		t.Errorf("SilenceTimeout = %v, want default", s.SilenceTimeout)
	}
}

func TestLoadSettingsBadHotkeyFails(t *testing.T) {
	clearVoxyEnv(t)
	t.Setenv("VOXY_HOTKEY", "space")

	if _, err := LoadSettings(); err == nil {
		t.Fatal("expected error for modifier-less hotkey")
	}
}

func TestSettingsValidate(t *testing.T) {
	clearVoxyEnv(t)
	good, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if err := good.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"provider", func(s *Settings) { s.Provider = "azure" }},
		{"inject", func(s *Settings) { s.InjectMode = "teleport" }},
		{"format", func(s *Settings) { s.Format = "ogg" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := good
			tc.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
