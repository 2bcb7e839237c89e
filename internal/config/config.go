// Package config loads server configuration from flags, environment
// variables, an optional .env file, and defaults, in that order.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Workers sentinel for automatic pool sizing.
const WorkersAuto = "auto"

// Config holds the full server configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Pins    PinsConfig
	Render  RenderConfig
	Import  ImportConfig
	Server  ServerConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string
	Format string
}

// StorageConfig holds the two storage roots. DataPath receives extracted
// charts, the catalog index, pins, and the job history; CachePath receives
// rendered bitmaps and thumbnails.
type StorageConfig struct {
	DataPath  string
	CachePath string
}

// PinsConfig bounds the pinned-chart list.
type PinsConfig struct {
	Max int // 1-20
}

// RenderConfig holds PDF rendering settings.
type RenderConfig struct {
	DPI          int    // 100-300
	PDFToPPMPath string // override auto-detection of pdftoppm
}

// ImportConfig controls the extraction worker pool.
type ImportConfig struct {
	MaxWorkers       string  // "auto" or a positive integer
	AutoWorkersRatio float64 // 0.1-0.7, share of CPUs used when auto
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Name          string
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	AdvertiseMDNS bool
}

// LoadConfig builds configuration with precedence:
// 1. Command-line flags.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (pretty, json)")
	dataPath := flag.String("data-path", "", "Directory for charts, catalog index, and pins")
	cachePath := flag.String("cache-path", "", "Directory for rendered bitmaps and thumbnails")
	maxPins := flag.String("max-pins", "", "Maximum pinned charts (1-20, default: 10)")
	renderDPI := flag.String("pdf-render-dpi", "", "Render resolution in DPI (100-300, default: 150)")
	pdftoppmPath := flag.String("pdftoppm-path", "", "Path to pdftoppm binary (default: auto-detect)")
	maxWorkers := flag.String("import-max-workers", "", `Extraction workers ("auto" or a positive integer)`)
	workersRatio := flag.String("import-auto-workers-ratio", "", "CPU share for auto worker sizing (0.1-0.7, default: 0.5)")
	serverName := flag.String("server-name", "", "Name advertised to clients")
	serverHost := flag.String("host", "", "Listen address (default: 0.0.0.0)")
	serverPort := flag.String("port", "", "Listen port (default: 8181)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	advertiseMDNS := flag.String("advertise-mdns", "", "Advertise via mDNS/Zeroconf (default: true)")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Absent .env files are fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Storage: StorageConfig{
			DataPath:  getConfigValue(*dataPath, "DATA_PATH", "./data"),
			CachePath: getConfigValue(*cachePath, "CACHE_PATH", "./cache"),
		},
		Pins: PinsConfig{
			Max: getIntConfigValue(*maxPins, "MAX_PINS", 10),
		},
		Render: RenderConfig{
			DPI:          getIntConfigValue(*renderDPI, "PDF_RENDER_DPI", 150),
			PDFToPPMPath: getConfigValue(*pdftoppmPath, "PDFTOPPM_PATH", ""),
		},
		Import: ImportConfig{
			MaxWorkers:       getConfigValue(*maxWorkers, "IMPORT_MAX_WORKERS", WorkersAuto),
			AutoWorkersRatio: getFloatConfigValue(*workersRatio, "IMPORT_AUTO_WORKERS_RATIO", 0.5),
		},
		Server: ServerConfig{
			Name:          getConfigValue(*serverName, "SERVER_NAME", "ChartBag"),
			Host:          getConfigValue(*serverHost, "SERVER_HOST", "0.0.0.0"),
			Port:          getConfigValue(*serverPort, "SERVER_PORT", "8181"),
			AdvertiseMDNS: getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", true),
		},
	}

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

	if cfg.Storage.DataPath, err = expandPath(cfg.Storage.DataPath); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if cfg.Storage.CachePath, err = expandPath(cfg.Storage.CachePath); err != nil {
		return nil, fmt.Errorf("invalid cache path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges and allowed values. Out-of-range numbers are
// rejected rather than silently clamped.
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

	if c.Logger.Format != "" && c.Logger.Format != "pretty" && c.Logger.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be pretty or json)", c.Logger.Format)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	if c.Storage.CachePath == "" {
		return errors.New("cache path cannot be empty after expansion")
	}

	if c.Pins.Max < 1 || c.Pins.Max > 20 {
		return fmt.Errorf("max pins %d out of range (1-20)", c.Pins.Max)
	}

	if c.Render.DPI < 100 || c.Render.DPI > 300 {
		return fmt.Errorf("pdf render dpi %d out of range (100-300)", c.Render.DPI)
	}

	if c.Import.MaxWorkers != WorkersAuto {
		n, err := strconv.Atoi(c.Import.MaxWorkers)
		if err != nil || n < 1 {
			return fmt.Errorf("import max workers %q must be %q or a positive integer", c.Import.MaxWorkers, WorkersAuto)
		}
	}

	if c.Import.AutoWorkersRatio < 0.1 || c.Import.AutoWorkersRatio > 0.7 {
		return fmt.Errorf("import auto workers ratio %.2f out of range (0.1-0.7)", c.Import.AutoWorkersRatio)
	}

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	return nil
}

// ChartsDir is the extraction root under the data path.
func (c *Config) ChartsDir() string {
	return filepath.Join(c.Storage.DataPath, "charts")
}

// UploadsDir receives packages uploaded through the API before import.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.Storage.DataPath, "uploads")
}

// expandPath expands a leading ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve absolute path: %w", err)
		}
		path = abs
	}

	return filepath.Clean(path), nil
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

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue
	}
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}

// getIntConfigValue falls back to the default on unparseable input.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}

// getFloatConfigValue falls back to the default on unparseable input.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(strings.ReplaceAll(envKey, "_", " ")), s, err)
	}
	return d, nil
}

// loadEnvFile loads KEY=value lines into the environment. Existing
// variables win over file entries.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- env file path comes from the operator
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

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
