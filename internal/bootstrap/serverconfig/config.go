package serverconfig

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRPCAddr             = "127.0.0.1:8787"
	DefaultNotificationBacklog = 512
)

const (
	envRPCAddr             = "RUI_RPC_ADDR"
	envRPCToken            = "RUI_RPC_TOKEN"
	envRPCTokenFile        = "RUI_RPC_TOKEN_FILE"
	envRequireRPCToken     = "RUI_REQUIRE_RPC_TOKEN"
	envEnv                 = "RUI_ENV"
	envAllowNullOrigin     = "RUI_ALLOW_NULL_ORIGIN"
	envRateLimitEnabled    = "RUI_RPC_RATE_LIMIT_ENABLED"
	envRateLimitRPS        = "RUI_RPC_RATE_LIMIT_RPS"
	envRateLimitBurst      = "RUI_RPC_RATE_LIMIT_BURST"
	envStreamMaxGlobal     = "RUI_RPC_STREAM_MAX_GLOBAL"
	envStreamMaxPerClient  = "RUI_RPC_STREAM_MAX_PER_CLIENT"
	envNotificationBacklog = "RUI_NOTIFICATION_BACKLOG"
	envLogLevel            = "RUI_LOG_LEVEL"
)

// Config is the resolved daemon configuration.
type Config struct {
	Env                 string
	LogLevel            string
	NotificationBacklog int
	RPC                 RPCConfig
}

type RPCConfig struct {
	Addr            string
	Token           string
	TokenFile       string
	RequireToken    *bool
	AllowNullOrigin bool
	RateLimit       RateLimitConfig
	Stream          StreamConfig
}

type RateLimitConfig struct {
	Enabled *bool
	RPS     float64
	Burst   int
}

type StreamConfig struct {
	MaxGlobal    int
	MaxPerClient int
}

// FileConfig is the on-disk YAML shape. Zero and nil fields leave defaults
// in place.
type FileConfig struct {
	Env           string                 `yaml:"env"`
	Log           FileLogConfig          `yaml:"log"`
	Notifications FileNotificationConfig `yaml:"notifications"`
	RPC           FileRPCConfig          `yaml:"rpc"`
}

type FileLogConfig struct {
	Level string `yaml:"level"`
}

type FileNotificationConfig struct {
	Backlog int `yaml:"backlog"`
}

type FileRPCConfig struct {
	Addr            string              `yaml:"addr"`
	Token           string              `yaml:"token"`
	TokenFile       string              `yaml:"tokenFile"`
	RequireToken    *bool               `yaml:"requireToken"`
	AllowNullOrigin *bool               `yaml:"allowNullOrigin"`
	RateLimit       FileRateLimitConfig `yaml:"rateLimit"`
	Stream          FileStreamConfig    `yaml:"stream"`
}

type FileRateLimitConfig struct {
	Enabled *bool   `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type FileStreamConfig struct {
	MaxGlobal    int `yaml:"maxGlobal"`
	MaxPerClient int `yaml:"maxPerClient"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:            "info",
		NotificationBacklog: DefaultNotificationBacklog,
		RPC: RPCConfig{
			Addr: DefaultRPCAddr,
			RateLimit: RateLimitConfig{
				RPS:   30,
				Burst: 60,
			},
			Stream: StreamConfig{
				MaxGlobal:    128,
				MaxPerClient: 8,
			},
		},
	}
}

// LoadFromPath reads configPath, or the default candidates when it is empty,
// and applies environment overrides on top. A missing or unreadable file
// leaves the defaults in place.
func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"go-backend/configs/config.yaml",
			"configs/config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			slog.Default().Warn("config file ignored", "component", "serverconfig", "path", path, "error", err.Error())
			continue
		}

		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src FileConfig) {
	if src.Env != "" {
		dst.Env = src.Env
	}
	if src.Log.Level != "" {
		dst.LogLevel = src.Log.Level
	}
	if src.Notifications.Backlog > 0 {
		dst.NotificationBacklog = src.Notifications.Backlog
	}
	if src.RPC.Addr != "" {
		dst.RPC.Addr = src.RPC.Addr
	}
	if src.RPC.Token != "" {
		dst.RPC.Token = src.RPC.Token
	}
	if src.RPC.TokenFile != "" {
		dst.RPC.TokenFile = src.RPC.TokenFile
	}
	if src.RPC.RequireToken != nil {
		v := *src.RPC.RequireToken
		dst.RPC.RequireToken = &v
	}
	if src.RPC.AllowNullOrigin != nil {
		dst.RPC.AllowNullOrigin = *src.RPC.AllowNullOrigin
	}
	if src.RPC.RateLimit.Enabled != nil {
		v := *src.RPC.RateLimit.Enabled
		dst.RPC.RateLimit.Enabled = &v
	}
	if src.RPC.RateLimit.RPS > 0 {
		dst.RPC.RateLimit.RPS = src.RPC.RateLimit.RPS
	}
	if src.RPC.RateLimit.Burst > 0 {
		dst.RPC.RateLimit.Burst = src.RPC.RateLimit.Burst
	}
	if src.RPC.Stream.MaxGlobal > 0 {
		dst.RPC.Stream.MaxGlobal = src.RPC.Stream.MaxGlobal
	}
	if src.RPC.Stream.MaxPerClient > 0 {
		dst.RPC.Stream.MaxPerClient = src.RPC.Stream.MaxPerClient
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envEnv)); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv(envLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v, ok := parsePositiveIntEnv(envNotificationBacklog); ok {
		cfg.NotificationBacklog = v
	}
	if v := strings.TrimSpace(os.Getenv(envRPCAddr)); v != "" {
		cfg.RPC.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(envRPCToken)); v != "" {
		cfg.RPC.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(envRPCTokenFile)); v != "" {
		cfg.RPC.TokenFile = v
	}
	if v, ok := parseBoolEnv(envRequireRPCToken); ok {
		cfg.RPC.RequireToken = &v
	}
	if v, ok := parseBoolEnv(envAllowNullOrigin); ok {
		cfg.RPC.AllowNullOrigin = v
	}
	if v, ok := parseBoolEnv(envRateLimitEnabled); ok {
		cfg.RPC.RateLimit.Enabled = &v
	}
	if raw := strings.TrimSpace(os.Getenv(envRateLimitRPS)); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			cfg.RPC.RateLimit.RPS = parsed
		}
	}
	if v, ok := parsePositiveIntEnv(envRateLimitBurst); ok {
		cfg.RPC.RateLimit.Burst = v
	}
	if v, ok := parsePositiveIntEnv(envStreamMaxGlobal); ok {
		cfg.RPC.Stream.MaxGlobal = v
	}
	if v, ok := parsePositiveIntEnv(envStreamMaxPerClient); ok {
		cfg.RPC.Stream.MaxPerClient = v
	}
}

// NonProd reports whether Env names a test or development environment.
func (c Config) NonProd() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "test", "testing", "dev", "development", "local":
		return true
	default:
		return false
	}
}

// TokenRequired resolves the RPC token requirement. An explicit false is
// only honored outside production-like environments.
func (c Config) TokenRequired() bool {
	if c.RPC.RequireToken != nil {
		if !*c.RPC.RequireToken && !c.NonProd() {
			return true
		}
		return *c.RPC.RequireToken
	}
	return !c.NonProd()
}

// RateLimitEnabled defaults to on, except in test environments.
func (c Config) RateLimitEnabled() bool {
	if c.RPC.RateLimit.Enabled != nil {
		return *c.RPC.RateLimit.Enabled
	}
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "test", "testing":
		return false
	default:
		return true
	}
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResolveToken replaces the token "auto" with a freshly generated one and
// writes it to TokenFile when that is set. It then checks the token
// requirement.
func ResolveToken(cfg *Config) error {
	if strings.EqualFold(strings.TrimSpace(cfg.RPC.Token), "auto") {
		generated, err := generateRPCToken()
		if err != nil {
			return err
		}
		cfg.RPC.Token = generated
		if err := persistRPCToken(cfg.RPC.TokenFile, generated); err != nil {
			return fmt.Errorf("persist rpc token: %w", err)
		}
	}
	if cfg.TokenRequired() && cfg.RPC.Token == "" {
		return errors.New(envRPCToken + " is required unless " + envRequireRPCToken + "=false and " + envEnv + " is test/development/local")
	}
	return nil
}

func generateRPCToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "rpc_" + hex.EncodeToString(buf), nil
}

func persistRPCToken(path, token string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func parseBoolEnv(name string) (bool, bool) {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func parsePositiveIntEnv(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed, true
}
