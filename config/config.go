package config

// Config represents the complete hyper configuration
type Config struct {
	BaseDir    string                     `yaml:"-"` // Directory containing config file, for resolving relative paths
	Templates  TemplatesConfig            `yaml:"templates"`
	Debug      DebugConfig                `yaml:"debug"`
	Logging    LoggingConfig              `yaml:"logging"`
	Cache      CacheConfig                `yaml:"cache"`
	Content    map[string]ContentSource   `yaml:"content"`    // Named content collections
	Locale     string                     `yaml:"locale"`     // Default locale for date() (e.g., "en-GB")
	Globals    map[string]any             `yaml:"globals"`    // Constants visible to every template
	Developers map[string]DeveloperConfig `yaml:"developers"` // Named developer profiles for per-developer overrides
}

// DeveloperConfig holds per-developer overrides
// All fields are optional - only non-zero values override the base config
type DeveloperConfig struct {
	Templates string        `yaml:"templates"` // Override templates.dir
	Debug     *bool         `yaml:"debug"`     // Override debug.enabled
	Logging   LoggingConfig `yaml:"logging"`   // Override logging settings
}

// TemplatesConfig says where templates live
type TemplatesConfig struct {
	Dir       string        `yaml:"dir"`       // Registry root (default: "./templates")
	Extension string        `yaml:"extension"` // Template file extension (default: ".hyper")
	Exclude   StringOrSlice `yaml:"exclude"`   // Glob patterns hidden from the registry
	Watch     bool          `yaml:"watch"`     // Reload templates when files change
}

// DebugConfig controls the generated-listing side channel
type DebugConfig struct {
	Enabled bool   `yaml:"enabled"` // Write <stem>.gen.txt listings (also HYPER_DEBUG / DEBUG env)
	Dir     string `yaml:"dir"`     // Listing directory (default: next to each source)
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, or file path
}

// CacheConfig holds cache sizes
type CacheConfig struct {
	ParseSize int `yaml:"parse_size"` // Parsed markup trees kept in memory (default: 512)
}

// ContentSource names where a content collection is loaded from. Exactly
// one of Path, URL or Driver is set.
type ContentSource struct {
	Path    string `yaml:"path"`     // File glob (e.g., "posts/*.md")
	URL     string `yaml:"url"`      // http or https endpoint returning JSON or YAML
	Driver  string `yaml:"driver"`   // sqlite, postgres or mysql
	DSN     string `yaml:"dsn"`      // Database connection string
	Query   string `yaml:"query"`    // SQL query whose rows become items
	Merge   string `yaml:"merge"`    // Singleton merge strategy: "shallow" (default) or "deep"
	MaxSize string `yaml:"max_size"` // Largest accepted URL response (default: "10MiB")
}

// Kind reports which loader a content source uses: "file", "url" or "sql".
func (c ContentSource) Kind() string {
	switch {
	case c.Driver != "":
		return "sql"
	case c.URL != "":
		return "url"
	}
	return "file"
}

// StringOrSlice supports YAML fields that can be either a string or a slice of strings
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler to handle both string and []string
func (s *StringOrSlice) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var slice []string
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*s = slice
	return nil
}

// Contains checks if the slice contains the given string
func (s StringOrSlice) Contains(str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Templates: TemplatesConfig{
			Dir:       "./templates",
			Extension: ".hyper",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Cache: CacheConfig{
			ParseSize: 512,
		},
		Locale: "en-US",
	}
}
