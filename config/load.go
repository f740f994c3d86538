package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/hyper/pkg/hyper/compiler"
)

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations; finding no file
// there is not an error and yields the defaults.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the resolved path.
// The path is empty when no config file was found.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}

	cfg := Defaults()
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.BaseDir = wd
		}
		applyEnv(cfg, getenv)
		return cfg, "", validateBasic(cfg)
	}

	// Get absolute path and directory for resolving relative paths
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	// Interpolate environment variables
	data = interpolateEnv(data, getenv)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Set base directory for resolving relative paths
	cfg.BaseDir = baseDir

	cfg.Templates.Dir = resolve(baseDir, cfg.Templates.Dir)
	cfg.Debug.Dir = resolve(baseDir, cfg.Debug.Dir)
	if cfg.Logging.Output != "stderr" && cfg.Logging.Output != "stdout" {
		cfg.Logging.Output = resolve(baseDir, cfg.Logging.Output)
	}

	// Resolve relative paths in content sources
	for name, src := range cfg.Content {
		src.Path = resolve(baseDir, src.Path)
		if src.Driver == "sqlite" && src.DSN != ":memory:" && !strings.HasPrefix(src.DSN, "file:") {
			src.DSN = resolve(baseDir, src.DSN)
		}
		cfg.Content[name] = src
	}

	if !strings.HasPrefix(cfg.Templates.Extension, ".") && cfg.Templates.Extension != "" {
		cfg.Templates.Extension = "." + cfg.Templates.Extension
	}

	applyEnv(cfg, getenv)

	if err := validateBasic(cfg); err != nil {
		return nil, "", err
	}

	return cfg, absPath, nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// applyEnv turns debug listings on when HYPER_DEBUG or DEBUG asks for them.
func applyEnv(cfg *Config, getenv func(string) string) {
	if compiler.DebugFromEnv(getenv) {
		cfg.Debug.Enabled = true
	}
}

// Validate performs full configuration validation.
// Call this after applying CLI overrides.
func Validate(cfg *Config) error {
	return validateBasic(cfg)
}

// Warnings returns non-fatal configuration issues that should be reported to the user.
// These are problems that won't prevent templates from compiling but likely indicate
// a misconfiguration.
func Warnings(cfg *Config) []string {
	var warnings []string

	if info, err := os.Stat(cfg.Templates.Dir); err != nil || !info.IsDir() {
		warnings = append(warnings, fmt.Sprintf("templates directory %s does not exist - lookups will fail", cfg.Templates.Dir))
	}

	if cfg.Locale != "" {
		if _, err := language.Parse(cfg.Locale); err != nil {
			warnings = append(warnings, fmt.Sprintf("locale %q is not a valid language tag - dates will use English names", cfg.Locale))
		}
	}

	names := make([]string, 0, len(cfg.Content))
	for name := range cfg.Content {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		src := cfg.Content[name]
		if src.Kind() == "file" {
			matches, err := filepath.Glob(src.Path)
			if err == nil && len(matches) == 0 {
				warnings = append(warnings, fmt.Sprintf("content %s: no files match %s", name, src.Path))
			}
		}
		if src.Kind() == "url" && strings.HasPrefix(src.URL, "http://") {
			warnings = append(warnings, fmt.Sprintf("content %s: fetched over plain http", name))
		}
	}

	return warnings
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > HYPER_CONFIG env > ./hyper.yaml > ~/.config/hyper/hyper.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	// Try HYPER_CONFIG environment variable
	if envPath := getenv("HYPER_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("HYPER_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	// Try ./hyper.yaml
	if _, err := os.Stat("hyper.yaml"); err == nil {
		return "hyper.yaml", nil
	}

	// Try ~/.config/hyper/hyper.yaml
	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "hyper", "hyper.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := string(parts[1])
		value := getenv(varName)

		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}

// validateBasic checks configuration for errors.
func validateBasic(cfg *Config) error {
	var errs []string

	if cfg.Templates.Dir == "" {
		errs = append(errs, "templates.dir is required")
	}
	if cfg.Templates.Extension == "" {
		errs = append(errs, "templates.extension is required")
	}
	for _, pattern := range cfg.Templates.Exclude {
		if _, err := filepath.Match(strings.TrimSuffix(pattern, "/**"), ""); err != nil {
			errs = append(errs, fmt.Sprintf("templates.exclude: invalid pattern %q", pattern))
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}

	if cfg.Cache.ParseSize < 0 {
		errs = append(errs, fmt.Sprintf("cache.parse_size must not be negative, got %d", cfg.Cache.ParseSize))
	}

	// Content validation
	names := make([]string, 0, len(cfg.Content))
	for name := range cfg.Content {
		names = append(names, name)
	}
	sort.Strings(names)
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	for _, name := range names {
		src := cfg.Content[name]
		set := 0
		for _, v := range []string{src.Path, src.URL, src.Driver} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			errs = append(errs, fmt.Sprintf("content %s: exactly one of path, url or driver is required", name))
			continue
		}
		switch src.Kind() {
		case "url":
			u, err := url.Parse(src.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				errs = append(errs, fmt.Sprintf("content %s: url must be http or https", name))
			}
		case "sql":
			if !validDrivers[src.Driver] {
				errs = append(errs, fmt.Sprintf("content %s: unknown driver %q (must be sqlite, postgres or mysql)", name, src.Driver))
			}
			if src.DSN == "" || src.Query == "" {
				errs = append(errs, fmt.Sprintf("content %s: driver requires dsn and query", name))
			}
		}
		if src.Merge != "" && src.Merge != "shallow" && src.Merge != "deep" {
			errs = append(errs, fmt.Sprintf("content %s: merge must be 'shallow' or 'deep'", name))
		}
		if _, err := ParseSize(src.MaxSize); err != nil {
			errs = append(errs, fmt.Sprintf("content %s: %v", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ParseSize parses a size such as "10MB", "512KiB" or "2 GB" to bytes.
// SI units (KB, MB, GB) are powers of 1000 and IEC units (KiB, MiB, GiB)
// powers of 1024. Returns 0 for empty string.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q (use a number with B, KB, MB, GB, KiB, MiB or GiB)", s)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("size %q is too large", s)
	}
	return int64(n), nil
}

// ApplyDeveloper applies a named developer profile to the configuration.
// Only non-zero values in the developer config override the base config.
// Returns an error if the profile name doesn't exist.
func ApplyDeveloper(cfg *Config, profileName string) error {
	if cfg.Developers == nil {
		return fmt.Errorf("no developer profiles defined in config")
	}

	dev, ok := cfg.Developers[profileName]
	if !ok {
		// List available profiles in error message
		var names []string
		for name := range cfg.Developers {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown developer profile %q (available: %s)", profileName, strings.Join(names, ", "))
	}

	// Apply templates override
	if dev.Templates != "" {
		cfg.Templates.Dir = resolve(cfg.BaseDir, dev.Templates)
	}

	if dev.Debug != nil {
		cfg.Debug.Enabled = *dev.Debug
	}

	// Apply logging overrides (only non-zero values)
	if dev.Logging.Level != "" {
		cfg.Logging.Level = dev.Logging.Level
	}
	if dev.Logging.Format != "" {
		cfg.Logging.Format = dev.Logging.Format
	}
	if dev.Logging.Output != "" {
		cfg.Logging.Output = resolve(cfg.BaseDir, dev.Logging.Output)
	}

	return nil
}
