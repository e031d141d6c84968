package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"voxy/hotkey"
)

// Defaults for everything tunable. Env vars and flags override.
const (
	defaultSilenceThreshold = 50.0
	defaultSilenceTimeout   = 1500 * time.Millisecond
	defaultMaxSession       = 60 * time.Second
	defaultNetworkTimeout   = 30 * time.Second
	defaultFormat           = "wav"
	defaultInjectMode       = "paste"
	defaultLanguage         = "en"
	defaultGain             = 1
)

// Clamp ranges. Values outside these are almost certainly typos, not intent.
const (
	minSilenceTimeout = 200 * time.Millisecond
	maxSilenceTimeout = 10 * time.Second
	minMaxSession     = 5 * time.Second
	maxMaxSession     = 10 * time.Minute
	minGain           = 1
	maxGain           = 16
)

// Settings is everything the app needs at startup, resolved from
// defaults, then .env / environment, then command-line flags.
type Settings struct {
	Provider   string // "openai", "groq", or "" for auto-pick by API key
	Language   string // BCP-47-ish code passed to the API, "" = auto-detect
	InjectMode string // "paste", "type", or "copy"
	Device     string // preferred capture device name, "" = system default
	Format     string // "wav" or "flac"

	Hotkey hotkey.Combo

	SilenceThreshold float64
	SilenceTimeout   time.Duration
	MaxSession       time.Duration
	NetworkTimeout   time.Duration

	Gain   int32
	Notify bool
	Beep   bool
}

// LoadSettings builds Settings from defaults overlaid with the
// environment. A .env file in the working directory is read first if
// present; a missing file is not an error.
func LoadSettings() (Settings, error) {
	godotenv.Load()

	s := Settings{
		Provider:         os.Getenv("VOXY_PROVIDER"),
		Language:         envOr("VOXY_LANGUAGE", defaultLanguage),
		InjectMode:       envOr("VOXY_INJECT", defaultInjectMode),
		Device:           os.Getenv("VOXY_DEVICE"),
		Format:           envOr("VOXY_FORMAT", defaultFormat),
		Hotkey:           hotkey.Default,
		SilenceThreshold: envFloat("VOXY_SILENCE_THRESHOLD", defaultSilenceThreshold),
		SilenceTimeout:   envDurationMs("VOXY_SILENCE_TIMEOUT_MS", defaultSilenceTimeout),
		MaxSession:       envDurationSec("VOXY_MAX_SESSION_SEC", defaultMaxSession),
		NetworkTimeout:   envDurationSec("VOXY_HTTP_TIMEOUT_SEC", defaultNetworkTimeout),
		Gain:             int32(envInt("VOXY_GAIN", defaultGain)),
		Notify:           envBool("VOXY_NOTIFY", true),
		Beep:             envBool("VOXY_BEEP", true),
	}

	if raw := os.Getenv("VOXY_HOTKEY"); raw != "" {
		combo, err := hotkey.ParseCombo(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("VOXY_HOTKEY: %w", err)
		}
		s.Hotkey = combo
	}

	s.clamp()
	return s, nil
}

// clamp pulls out-of-range values back to sane bounds instead of
// failing startup over them.
func (s *Settings) clamp() {
	if s.SilenceThreshold < 0 {
		s.SilenceThreshold = 0
	}
	s.SilenceTimeout = clampDuration(s.SilenceTimeout, minSilenceTimeout, maxSilenceTimeout)
	s.MaxSession = clampDuration(s.MaxSession, minMaxSession, maxMaxSession)
	if s.NetworkTimeout <= 0 {
		s.NetworkTimeout = defaultNetworkTimeout
	}
	if s.Gain < minGain {
		s.Gain = minGain
	}
	if s.Gain > maxGain {
		s.Gain = maxGain
	}
}

// Validate rejects values that clamping cannot fix, like an unknown
// provider or inject mode. Called after flag overrides are applied.
func (s *Settings) Validate() error {
	switch s.Provider {
	case "", "openai", "groq":
	default:
		return fmt.Errorf("unknown provider %q (want openai or groq)", s.Provider)
	}
	switch s.InjectMode {
	case "paste", "type", "copy":
	default:
		return fmt.Errorf("unknown inject mode %q (want paste, type, or copy)", s.InjectMode)
	}
	switch s.Format {
	case "wav", "flac":
	default:
		return fmt.Errorf("unknown format %q (want wav or flac)", s.Format)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func envDurationMs(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}

func envDurationSec(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
