// Package config assembles client configuration from defaults, an optional
// YAML file and INSIGHTLOOP_* environment variables (highest precedence).
package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the client settings.
type Config struct {
	// ServerURL is the HTTP base URL of the InsightLoop server.
	ServerURL string `yaml:"server_url"`
	// SocketPath is the path of the event channel endpoint on the server.
	SocketPath string `yaml:"socket_path"`
	LogLevel   string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerURL:  "http://localhost:3000",
		SocketPath: "/socket",
		LogLevel:   "info",
	}
}

// Load builds the configuration. path may be empty; a missing file is fine,
// env vars still apply on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.ServerURL = getEnv("INSIGHTLOOP_SERVER_URL", cfg.ServerURL)
	cfg.SocketPath = getEnv("INSIGHTLOOP_SOCKET_PATH", cfg.SocketPath)
	cfg.LogLevel = getEnv("INSIGHTLOOP_LOG_LEVEL", cfg.LogLevel)
	return cfg, nil
}

// SocketURL derives the websocket URL of the event channel from the server
// base URL.
func (c Config) SocketURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = c.SocketPath
	return u.String(), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
