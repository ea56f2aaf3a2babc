// Package config provides configuration management for the publisher and
// stream servers. Configuration is layered: defaults, then an optional YAML
// file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the camera services.
type Config struct {
	// Variant selects the stream server flavour ("color" or "depth").
	// Default: "color"
	Variant string `yaml:"variant"`

	// HTTPListenAddr is the address the stream server binds.
	// Default: "" (the variant's fixed port, :5000 or :5001)
	HTTPListenAddr string `yaml:"http_listen_addr"`

	// AllowedOrigins specifies CORS allowed origins.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// StoreBackend selects the shared store ("redis" or "memory").
	// Default: "redis"
	StoreBackend string `yaml:"store_backend"`

	// RedisAddr is the host:port of the shared Redis instance.
	// Default: "localhost:6379"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// PhotosDir and VideosDir receive snapshot and recording files.
	// Default: "photos", "videos"
	PhotosDir string `yaml:"photos_dir"`
	VideosDir string `yaml:"videos_dir"`

	// StreamFPS paces every /video_feed connection.
	// Default: 30
	StreamFPS int `yaml:"stream_fps"`

	// JoinTimeout bounds how long stop_recording waits for the writer.
	// Default: 2s
	JoinTimeout time.Duration `yaml:"join_timeout"`

	// PublisherMode controls what a stream server does when no publisher is
	// alive: "spawn" a subprocess, run one "embedded", or "off".
	// Default: "spawn"
	PublisherMode string `yaml:"publisher_mode"`

	// PublisherCommand is the executable started in spawn mode.
	// Default: "fermia-publisher"
	PublisherCommand string `yaml:"publisher_command"`

	// Device is the capture device index or path, or unix:<path> to accept
	// frames from an external capture helper.
	// Default: "0"
	Device string `yaml:"device"`

	// UseSynthetic replaces the capture device with a generated test pattern.
	// Default: false
	UseSynthetic bool `yaml:"use_synthetic"`

	// SyntheticPattern is the test pattern type (0=ColorBars, 1=Gradient, 2=Grid).
	// Default: 0 (ColorBars)
	SyntheticPattern int `yaml:"synthetic_pattern"`

	// ICEServers lists STUN/TURN URLs offered to WebRTC viewers.
	// Default: none (host candidates only)
	ICEServers []string `yaml:"ice_servers"`

	// LogLevel specifies logging verbosity ("debug", "info", "warn", "error").
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "json" or "console".
	// Default: "json"
	LogFormat string `yaml:"log_format"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Variant:          "color",
		AllowedOrigins:   []string{"*"},
		StoreBackend:     "redis",
		RedisAddr:        "localhost:6379",
		PhotosDir:        "photos",
		VideosDir:        "videos",
		StreamFPS:        30,
		JoinTimeout:      2 * time.Second,
		PublisherMode:    "spawn",
		PublisherCommand: "fermia-publisher",
		Device:           "0",
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty, otherwise $FERMIA_CONFIG), and the environment.
//
// Environment variables:
//   - FERMIA_VARIANT: stream server variant (color or depth)
//   - FERMIA_HTTP_LISTEN_ADDR: HTTP server listen address
//   - FERMIA_ALLOWED_ORIGINS: Comma-separated list of allowed CORS origins
//   - FERMIA_STORE_BACKEND: redis or memory
//   - FERMIA_REDIS_ADDR, FERMIA_REDIS_PASSWORD, FERMIA_REDIS_DB
//   - FERMIA_PHOTOS_DIR, FERMIA_VIDEOS_DIR
//   - FERMIA_STREAM_FPS: viewer stream pacing
//   - FERMIA_JOIN_TIMEOUT: recording stop timeout (Go duration)
//   - FERMIA_PUBLISHER_MODE: spawn, embedded or off
//   - FERMIA_PUBLISHER_COMMAND: publisher executable
//   - FERMIA_DEVICE: capture device index or path
//   - FERMIA_USE_SYNTHETIC: Enable synthetic video (true/false)
//   - FERMIA_SYNTHETIC_PATTERN: Synthetic video pattern (0=ColorBars, 1=Gradient, 2=Grid)
//   - FERMIA_ICE_SERVERS: Comma-separated STUN/TURN URLs
//   - FERMIA_LOG_LEVEL: Logging level (debug, info, warn, error)
//   - FERMIA_LOG_FORMAT: json or console
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FERMIA_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	if val := os.Getenv("FERMIA_VARIANT"); val != "" {
		c.Variant = strings.ToLower(strings.TrimSpace(val))
	}

	if val := os.Getenv("FERMIA_HTTP_LISTEN_ADDR"); val != "" {
		c.HTTPListenAddr = val
	}

	if val := os.Getenv("FERMIA_ALLOWED_ORIGINS"); val != "" {
		c.AllowedOrigins = splitList(val)
	}

	if val := os.Getenv("FERMIA_STORE_BACKEND"); val != "" {
		c.StoreBackend = strings.ToLower(strings.TrimSpace(val))
	}

	if val := os.Getenv("FERMIA_REDIS_ADDR"); val != "" {
		c.RedisAddr = val
	}

	if val := os.Getenv("FERMIA_REDIS_PASSWORD"); val != "" {
		c.RedisPassword = val
	}

	if val := os.Getenv("FERMIA_REDIS_DB"); val != "" {
		db, err := strconv.Atoi(val)
		if err != nil {
			return errors.New("FERMIA_REDIS_DB must be a valid integer")
		}
		c.RedisDB = db
	}

	if val := os.Getenv("FERMIA_PHOTOS_DIR"); val != "" {
		c.PhotosDir = val
	}

	if val := os.Getenv("FERMIA_VIDEOS_DIR"); val != "" {
		c.VideosDir = val
	}

	if val := os.Getenv("FERMIA_STREAM_FPS"); val != "" {
		fps, err := strconv.Atoi(val)
		if err != nil {
			return errors.New("FERMIA_STREAM_FPS must be a valid integer")
		}
		c.StreamFPS = fps
	}

	if val := os.Getenv("FERMIA_JOIN_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return errors.New("FERMIA_JOIN_TIMEOUT must be a valid duration")
		}
		c.JoinTimeout = d
	}

	if val := os.Getenv("FERMIA_PUBLISHER_MODE"); val != "" {
		c.PublisherMode = strings.ToLower(strings.TrimSpace(val))
	}

	if val := os.Getenv("FERMIA_PUBLISHER_COMMAND"); val != "" {
		c.PublisherCommand = val
	}

	if val := os.Getenv("FERMIA_DEVICE"); val != "" {
		c.Device = val
	}

	if val := os.Getenv("FERMIA_USE_SYNTHETIC"); val != "" {
		c.UseSynthetic = strings.ToLower(strings.TrimSpace(val)) == "true"
	}

	if val := os.Getenv("FERMIA_SYNTHETIC_PATTERN"); val != "" {
		pattern, err := strconv.Atoi(val)
		if err != nil {
			return errors.New("FERMIA_SYNTHETIC_PATTERN must be a valid integer")
		}
		c.SyntheticPattern = pattern
	}

	if val := os.Getenv("FERMIA_ICE_SERVERS"); val != "" {
		c.ICEServers = splitList(val)
	}

	if val := os.Getenv("FERMIA_LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}

	if val := os.Getenv("FERMIA_LOG_FORMAT"); val != "" {
		c.LogFormat = strings.ToLower(strings.TrimSpace(val))
	}

	return nil
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if _, ok := Variants[c.Variant]; !ok {
		return errors.New("Variant must be 'color' or 'depth'")
	}

	if len(c.AllowedOrigins) == 0 {
		return errors.New("AllowedOrigins cannot be empty")
	}

	validBackends := map[string]bool{"redis": true, "memory": true}
	if !validBackends[c.StoreBackend] {
		return errors.New("StoreBackend must be 'redis' or 'memory'")
	}

	if c.StoreBackend == "redis" && c.RedisAddr == "" {
		return errors.New("RedisAddr cannot be empty")
	}

	if c.PhotosDir == "" || c.VideosDir == "" {
		return errors.New("PhotosDir and VideosDir cannot be empty")
	}

	if c.StreamFPS <= 0 || c.StreamFPS > 120 {
		return errors.New("StreamFPS must be between 1 and 120")
	}

	if c.JoinTimeout <= 0 {
		return errors.New("JoinTimeout must be positive")
	}

	validModes := map[string]bool{"spawn": true, "embedded": true, "off": true}
	if !validModes[c.PublisherMode] {
		return errors.New("PublisherMode must be 'spawn', 'embedded', or 'off'")
	}

	if c.PublisherMode == "spawn" && c.PublisherCommand == "" {
		return errors.New("PublisherCommand cannot be empty in spawn mode")
	}

	if c.UseSynthetic && (c.SyntheticPattern < 0 || c.SyntheticPattern > 2) {
		return errors.New("SyntheticPattern must be 0 (ColorBars), 1 (Gradient), or 2 (Grid)")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LogLevel must be 'debug', 'info', 'warn', or 'error'")
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return errors.New("LogFormat must be 'json' or 'console'")
	}

	return nil
}

// ListenAddr returns HTTPListenAddr or the variant's fixed port.
func (c *Config) ListenAddr() string {
	if c.HTTPListenAddr != "" {
		return c.HTTPListenAddr
	}
	return ":" + strconv.Itoa(c.VariantSpec().Port)
}

// VariantSpec returns the selected variant.
func (c *Config) VariantSpec() Variant {
	return Variants[c.Variant]
}

// IsDebug returns true if the log level is set to debug.
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the config for logging purposes.
// The Redis password is masked.
func (c *Config) String() string {
	password := ""
	if c.RedisPassword != "" {
		password = "***"
	}
	return "Config{" +
		"Variant: " + c.Variant + ", " +
		"ListenAddr: " + c.ListenAddr() + ", " +
		"AllowedOrigins: [" + strings.Join(c.AllowedOrigins, ", ") + "], " +
		"StoreBackend: " + c.StoreBackend + ", " +
		"RedisAddr: " + c.RedisAddr + ", " +
		"RedisPassword: " + password + ", " +
		"RedisDB: " + strconv.Itoa(c.RedisDB) + ", " +
		"PhotosDir: " + c.PhotosDir + ", " +
		"VideosDir: " + c.VideosDir + ", " +
		"StreamFPS: " + strconv.Itoa(c.StreamFPS) + ", " +
		"JoinTimeout: " + c.JoinTimeout.String() + ", " +
		"PublisherMode: " + c.PublisherMode + ", " +
		"Device: " + c.Device + ", " +
		"UseSynthetic: " + strconv.FormatBool(c.UseSynthetic) + ", " +
		"LogLevel: " + c.LogLevel +
		"}"
}
