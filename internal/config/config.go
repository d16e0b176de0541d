// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Server ServerConfig
	Data   DataConfig
	Build  BuildConfig
	Synth  SynthConfig
	Ingest IngestConfig
	GC     GCConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)

	// Build submission throttling, per client IP. Zero RPS disables it.
	BuildRateRPS   float64 // sustained submissions per second (default 0.5)
	BuildRateBurst int     // burst allowance (default 5)
}

// DataConfig holds filesystem layout for persistent state.
type DataConfig struct {
	// BasePath is the root for the database, search index, render cache,
	// and published audio (default: ~/Inkcast/data).
	BasePath string
}

// BuildConfig holds segment/group/encode parameters for chapter builds.
type BuildConfig struct {
	// Segment size bounds in characters of display text.
	MinChars int // default 60
	MaxChars int // default 420
	MinWords int // default 3

	// TargetGroupDuration caps accumulated group duration during packing.
	TargetGroupDuration time.Duration // default 35s

	// Encoding
	EncodeWorkers int           // max parallel group encodes (default 2)
	EncodeRetries int           // retries per group before the build fails (default 2)
	EncodeTimeout time.Duration // per-attempt ffmpeg timeout (default 2m)
	FFmpegPath    string        // override ffmpeg auto-detection

	// KeepSegmentAudio retains per-segment audio after group encoding.
	// Off in production, useful in dev/QA.
	KeepSegmentAudio bool
}

// SynthConfig holds the TTS synthesis collaborator configuration.
type SynthConfig struct {
	BaseURL   string        // synthesis service endpoint
	Voice     string        // default voice model identifier
	Workers   int           // max parallel segment syntheses (default 4)
	Retries   int           // retries per segment (default 2)
	Timeout   time.Duration // per-request timeout (default 60s)
	RateRPS   float64       // outbound calls per second per voice, 0 disables (default 0)
	RateBurst int           // outbound burst per voice (default 1)
}

// IngestConfig holds the chapter drop-directory watcher configuration.
type IngestConfig struct {
	Enabled  bool
	DropPath string // watched directory for chapter JSON files
}

// GCConfig holds artifact garbage collection settings. Only failed and
// abandoned builds past the retention window are swept.
type GCConfig struct {
	Retention time.Duration // minimum age before a dead build is swept (default 72h)
	Interval  time.Duration // sweep frequency (default 1h)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for persistent data")
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	minChars := flag.String("segment-min-chars", "", "Minimum segment length in characters (default: 60)")
	maxChars := flag.String("segment-max-chars", "", "Maximum segment length in characters (default: 420)")
	groupDuration := flag.String("group-duration", "", "Target group duration (default: 35s)")
	encodeWorkers := flag.String("encode-workers", "", "Max concurrent group encodes (default: 2)")
	encodeRetries := flag.String("encode-retries", "", "Encode retries per group (default: 2)")
	ffmpegPath := flag.String("ffmpeg-path", "", "Path to ffmpeg binary (default: auto-detect)")
	keepSegmentAudio := flag.String("keep-segment-audio", "", "Keep per-segment audio after grouping (default: false)")

	synthURL := flag.String("synth-url", "", "TTS synthesis service URL")
	synthVoice := flag.String("synth-voice", "", "Default voice model identifier")
	synthWorkers := flag.String("synth-workers", "", "Max concurrent segment syntheses (default: 4)")

	ingestEnabled := flag.String("ingest-enabled", "", "Enable drop-directory ingest watcher (default: false)")
	ingestPath := flag.String("ingest-path", "", "Watched directory for chapter drops")

	gcRetention := flag.String("gc-retention", "", "Minimum age before dead builds are swept (default: 72h)")
	gcInterval := flag.String("gc-interval", "", "Garbage collection sweep interval (default: 1h)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			BuildRateRPS:   getFloatConfigValue("", "BUILD_RATE_RPS", 0.5),
			BuildRateBurst: getIntConfigValue("", "BUILD_RATE_BURST", 5),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Build: BuildConfig{
			MinChars:         getIntConfigValue(*minChars, "SEGMENT_MIN_CHARS", 60),
			MaxChars:         getIntConfigValue(*maxChars, "SEGMENT_MAX_CHARS", 420),
			MinWords:         getIntConfigValue("", "SEGMENT_MIN_WORDS", 3),
			EncodeWorkers:    getIntConfigValue(*encodeWorkers, "ENCODE_WORKERS", 2),
			EncodeRetries:    getIntConfigValue(*encodeRetries, "ENCODE_RETRIES", 2),
			FFmpegPath:       getConfigValue(*ffmpegPath, "FFMPEG_PATH", ""),
			KeepSegmentAudio: getBoolConfigValue(*keepSegmentAudio, "KEEP_SEGMENT_AUDIO", false),
		},
		Synth: SynthConfig{
			BaseURL:   getConfigValue(*synthURL, "SYNTH_URL", ""),
			Voice:     getConfigValue(*synthVoice, "SYNTH_VOICE", "default"),
			Workers:   getIntConfigValue(*synthWorkers, "SYNTH_WORKERS", 4),
			Retries:   getIntConfigValue("", "SYNTH_RETRIES", 2),
			RateRPS:   getFloatConfigValue("", "SYNTH_RATE_RPS", 0),
			RateBurst: getIntConfigValue("", "SYNTH_RATE_BURST", 1),
		},
		Ingest: IngestConfig{
			Enabled:  getBoolConfigValue(*ingestEnabled, "INGEST_ENABLED", false),
			DropPath: getConfigValue(*ingestPath, "INGEST_PATH", ""),
		},
	}

	// Parse durations.
	var err error
	if cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Build.TargetGroupDuration, err = parseDurationValue(*groupDuration, "GROUP_DURATION", "35s"); err != nil {
		return nil, err
	}
	if cfg.Build.EncodeTimeout, err = parseDurationValue("", "ENCODE_TIMEOUT", "2m"); err != nil {
		return nil, err
	}
	if cfg.Synth.Timeout, err = parseDurationValue("", "SYNTH_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.GC.Retention, err = parseDurationValue(*gcRetention, "GC_RETENTION", "72h"); err != nil {
		return nil, err
	}
	if cfg.GC.Interval, err = parseDurationValue(*gcInterval, "GC_INTERVAL", "1h"); err != nil {
		return nil, err
	}

	// Expand and validate the data base path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Expand ingest path if set.
	if cfg.Ingest.DropPath != "" {
		expanded, err := expandPath(cfg.Ingest.DropPath, "")
		if err != nil {
			return nil, fmt.Errorf("invalid ingest path: %w", err)
		}
		cfg.Ingest.DropPath = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Build.MinChars <= 0 || c.Build.MaxChars <= c.Build.MinChars {
		return fmt.Errorf("invalid segment bounds: min=%d max=%d", c.Build.MinChars, c.Build.MaxChars)
	}

	if c.Build.TargetGroupDuration <= 0 {
		return errors.New("group duration must be positive")
	}

	if c.Ingest.Enabled && c.Ingest.DropPath == "" {
		return errors.New("INGEST_PATH is required when ingest is enabled")
	}

	if c.GC.Retention < 0 || c.GC.Interval < 0 {
		return errors.New("gc retention and interval must not be negative")
	}

	if c.Synth.RateRPS < 0 {
		return errors.New("synth rate must not be negative")
	}

	return nil
}

// DatabasePath returns the sqlite database location under the data root.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.BasePath, "db", "inkcast.db")
}

// AudioPath returns the published group audio root under the data root.
func (c *Config) AudioPath() string {
	return filepath.Join(c.Data.BasePath, "audio")
}

// SearchPath returns the search index directory under the data root.
func (c *Config) SearchPath() string {
	return filepath.Join(c.Data.BasePath, "search")
}

// CachePath returns the derived-value cache directory under the data root.
func (c *Config) CachePath() string {
	return filepath.Join(c.Data.BasePath, "cache")
}

// WorkPath returns the scratch directory for in-flight builds.
func (c *Config) WorkPath() string {
	return filepath.Join(c.Data.BasePath, "work")
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Inkcast", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	raw := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return d, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
