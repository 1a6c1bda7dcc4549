package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	ChatLog     ChatLogConfig   `yaml:"chat_log"`
	Voice       VoiceConfig     `yaml:"voice"`
	Form        FormConfig      `yaml:"form"`
	Chat        ChatConfig      `yaml:"chat"`
	Avatar      AvatarConfig    `yaml:"avatar"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type ChatLogConfig struct {
	Mode string `yaml:"mode"` // memory, file
	Path string `yaml:"path"`
}

type RecognitionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
}

type SynthesisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
	Voice   string `yaml:"voice"`
}

type VoiceConfig struct {
	Language    string            `yaml:"language"`
	VoiceLocale string            `yaml:"voice_locale"`
	Rate        float64           `yaml:"rate"`
	Pitch       float64           `yaml:"pitch"`
	Volume      float64           `yaml:"volume"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
}

type FormConfig struct {
	Enabled         bool `yaml:"enabled"`
	RelistenDelayMS int  `yaml:"relisten_delay_ms"`
}

type ChatConfig struct {
	Enabled      bool `yaml:"enabled"`
	ReplyDelayMS int  `yaml:"reply_delay_ms"`
}

type AvatarConfig struct {
	Enabled         bool `yaml:"enabled"`
	FrameIntervalMS int  `yaml:"frame_interval_ms"`
	BlinkIntervalMS int  `yaml:"blink_interval_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "aura-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		ChatLog: ChatLogConfig{
			Mode: "memory",
			Path: "./data/aura-chat.db",
		},
		Voice: VoiceConfig{
			Language:    "en-US",
			VoiceLocale: "en-IN",
			Rate:        0.85,
			Pitch:       1.1,
			Volume:      0.9,
			Recognition: RecognitionConfig{
				Enabled: true,
				Mode:    "mock",
			},
			Synthesis: SynthesisConfig{
				Enabled: true,
				Mode:    "mock",
			},
		},
		Form: FormConfig{
			Enabled:         true,
			RelistenDelayMS: 1000,
		},
		Chat: ChatConfig{
			Enabled:      true,
			ReplyDelayMS: 1000,
		},
		Avatar: AvatarConfig{
			Enabled:         true,
			FrameIntervalMS: 100,
			BlinkIntervalMS: 4000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "AURA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "AURA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "AURA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "AURA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "AURA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "AURA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "AURA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "AURA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "AURA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "AURA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "AURA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "AURA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "AURA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "AURA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "AURA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "AURA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.ChatLog.Mode, "AURA_CHAT_LOG_MODE")
	overrideString(&cfg.ChatLog.Path, "AURA_CHAT_LOG_PATH")
	overrideString(&cfg.Voice.Language, "AURA_VOICE_LANGUAGE")
	overrideString(&cfg.Voice.VoiceLocale, "AURA_VOICE_VOICE_LOCALE")
	overrideFloat(&cfg.Voice.Rate, "AURA_VOICE_RATE")
	overrideFloat(&cfg.Voice.Pitch, "AURA_VOICE_PITCH")
	overrideFloat(&cfg.Voice.Volume, "AURA_VOICE_VOLUME")
	overrideBool(&cfg.Voice.Recognition.Enabled, "AURA_VOICE_RECOGNITION_ENABLED")
	overrideString(&cfg.Voice.Recognition.Mode, "AURA_VOICE_RECOGNITION_MODE")
	overrideString(&cfg.Voice.Recognition.Command, "AURA_VOICE_RECOGNITION_COMMAND")
	overrideBool(&cfg.Voice.Synthesis.Enabled, "AURA_VOICE_SYNTHESIS_ENABLED")
	overrideString(&cfg.Voice.Synthesis.Mode, "AURA_VOICE_SYNTHESIS_MODE")
	overrideString(&cfg.Voice.Synthesis.Command, "AURA_VOICE_SYNTHESIS_COMMAND")
	overrideString(&cfg.Voice.Synthesis.Voice, "AURA_VOICE_SYNTHESIS_VOICE")
	overrideBool(&cfg.Form.Enabled, "AURA_FORM_ENABLED")
	overrideInt(&cfg.Form.RelistenDelayMS, "AURA_FORM_RELISTEN_DELAY_MS")
	overrideBool(&cfg.Chat.Enabled, "AURA_CHAT_ENABLED")
	overrideInt(&cfg.Chat.ReplyDelayMS, "AURA_CHAT_REPLY_DELAY_MS")
	overrideBool(&cfg.Avatar.Enabled, "AURA_AVATAR_ENABLED")
	overrideInt(&cfg.Avatar.FrameIntervalMS, "AURA_AVATAR_FRAME_INTERVAL_MS")
	overrideInt(&cfg.Avatar.BlinkIntervalMS, "AURA_AVATAR_BLINK_INTERVAL_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.ChatLog.Mode {
	case "memory", "file":
		// ok
	default:
		return errors.New("chat_log.mode must be one of memory|file")
	}
	if cfg.ChatLog.Mode == "file" && cfg.ChatLog.Path == "" {
		return errors.New("chat_log.path must not be empty when mode=file")
	}
	if cfg.Voice.Language == "" {
		return errors.New("voice.language must not be empty")
	}
	if cfg.Voice.Rate <= 0 {
		return errors.New("voice.rate must be positive")
	}
	if cfg.Voice.Pitch <= 0 {
		return errors.New("voice.pitch must be positive")
	}
	if cfg.Voice.Volume <= 0 || cfg.Voice.Volume > 1 {
		return errors.New("voice.volume must be in (0, 1]")
	}
	if cfg.Voice.Recognition.Enabled {
		switch cfg.Voice.Recognition.Mode {
		case "mock", "exec":
		default:
			return errors.New("voice.recognition.mode must be one of mock|exec")
		}
		if cfg.Voice.Recognition.Mode == "exec" && cfg.Voice.Recognition.Command == "" {
			return errors.New("voice.recognition.command must be set when mode=exec")
		}
	}
	if cfg.Voice.Synthesis.Enabled {
		switch cfg.Voice.Synthesis.Mode {
		case "mock", "exec":
		default:
			return errors.New("voice.synthesis.mode must be one of mock|exec")
		}
		if cfg.Voice.Synthesis.Mode == "exec" && cfg.Voice.Synthesis.Command == "" {
			return errors.New("voice.synthesis.command must be set when mode=exec")
		}
	}
	if cfg.Form.Enabled && cfg.Form.RelistenDelayMS <= 0 {
		return errors.New("form.relisten_delay_ms must be positive")
	}
	if cfg.Chat.Enabled && cfg.Chat.ReplyDelayMS < 0 {
		return errors.New("chat.reply_delay_ms must be >= 0")
	}
	if cfg.Avatar.Enabled {
		if cfg.Avatar.FrameIntervalMS <= 0 {
			return errors.New("avatar.frame_interval_ms must be positive")
		}
		if cfg.Avatar.BlinkIntervalMS <= 0 {
			return errors.New("avatar.blink_interval_ms must be positive")
		}
	}
	return nil
}
