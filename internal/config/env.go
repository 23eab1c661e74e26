// Package config loads model files and process settings.
//
// Model files are YAML documents describing one classifier. Process
// settings come from the environment, optionally seeded from a .env file
// in the working directory:
//   - TEXTCLS_CONFIG: model file path
//   - TEXTCLS_WEIGHTS: checkpoint path, overrides the model file
//   - TEXTCLS_ADDR: listen address, default 127.0.0.1:8089
//   - TEXTCLS_DEVICE: cpu (default), autodiff or webgpu
//   - TEXTCLS_LOG_LEVEL: debug, info (default), warn or error
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultAddr is the listen address used when TEXTCLS_ADDR is unset.
const DefaultAddr = "127.0.0.1:8089"

// Env holds process settings.
type Env struct {
	Config   string
	Weights  string
	Addr     string
	Device   string
	LogLevel slog.Level
}

// LoadEnv reads .env (if present) then the environment.
func LoadEnv() Env {
	// Best-effort: variables already set take precedence.
	_ = godotenv.Load()

	env := Env{
		Config:   Var("TEXTCLS_CONFIG"),
		Weights:  Var("TEXTCLS_WEIGHTS"),
		Addr:     Var("TEXTCLS_ADDR"),
		Device:   strings.ToLower(Var("TEXTCLS_DEVICE")),
		LogLevel: LogLevel(),
	}
	if env.Addr == "" {
		env.Addr = DefaultAddr
	}
	if env.Device == "" {
		env.Device = "cpu"
	}
	return env
}

// LogLevel parses TEXTCLS_LOG_LEVEL, falling back to info.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("TEXTCLS_LOG_LEVEL"); s != "" {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			slog.Warn("invalid log level, using default", "level", s, "default", "info")
			level = slog.LevelInfo
		}
	}
	return level
}

// Var returns an environment variable with surrounding spaces and quotes removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
