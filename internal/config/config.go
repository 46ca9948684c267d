package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v3"

	"github.com/statelit/statelit/internal/errors"
	"github.com/statelit/statelit/internal/secure"
)

// Config represents the complete configuration for statelit
type Config struct {
	Rendering RenderingConfig `yaml:"rendering"`
	Naming    NamingConfig    `yaml:"naming"`
	Compare   CompareConfig   `yaml:"compare"`
	Secure    SecureConfig    `yaml:"secure"`
	Dev       DevConfig       `yaml:"dev"`
}

// RenderingConfig controls expression rendering defaults
type RenderingConfig struct {
	MaxDepth        int    `yaml:"max_depth"`
	ExpandThreshold int    `yaml:"expand_threshold"`
	IndentUnit      int    `yaml:"indent_unit"`
	IndentChar      string `yaml:"indent_char"` // "tab" or "space"
	Newline         string `yaml:"newline"`     // "lf" or "crlf"
	Strong          bool   `yaml:"strong"`
	Explore         bool   `yaml:"explore"`
}

// NamingConfig controls how struct field names map to property keys
type NamingConfig struct {
	PascalCaseKeys bool              `yaml:"pascal_case_keys"`
	KeyMappings    map[string]string `yaml:"key_mappings"`
}

// CompareConfig holds comparison defaults
type CompareConfig struct {
	SkipTypeCheck bool     `yaml:"skip_type_check"`
	SortArrays    bool     `yaml:"sort_arrays"`
	Reverse       bool     `yaml:"reverse"`
	Exclude       []string `yaml:"exclude"`
}

// SecureConfig controls where the secure value key comes from
type SecureConfig struct {
	KeyEnv  string `yaml:"key_env"`
	KeyFile string `yaml:"key_file"`
}

// DevConfig contains development/debug options
type DevConfig struct {
	Debug   bool `yaml:"debug"`
	Verbose bool `yaml:"verbose"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Rendering: RenderingConfig{
			MaxDepth:        10,
			ExpandThreshold: 4,
			IndentUnit:      1,
			IndentChar:      "tab",
			Newline:         "lf",
		},
		Naming: NamingConfig{
			PascalCaseKeys: false,
			KeyMappings:    make(map[string]string),
		},
		Compare: CompareConfig{},
		Secure: SecureConfig{
			KeyEnv: "STATELIT_KEY",
		},
		Dev: DevConfig{},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(
			fmt.Sprintf("failed to read config file '%s'", path), err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError(
			fmt.Sprintf("failed to parse config file '%s'", path), err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".statelit.yml", ".statelit.yaml", "statelit.yml", "statelit.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Search up the directory tree
	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

func (c *Config) validate() error {
	if c.Rendering.MaxDepth < 1 {
		return errors.NewConfigError("rendering.max_depth must be at least 1", nil)
	}
	if c.Rendering.IndentUnit < 1 {
		return errors.NewConfigError("rendering.indent_unit must be at least 1", nil)
	}
	switch c.Rendering.IndentChar {
	case "tab", "space":
	default:
		return errors.NewConfigError(
			fmt.Sprintf("rendering.indent_char must be 'tab' or 'space', got '%s'", c.Rendering.IndentChar), nil)
	}
	switch c.Rendering.Newline {
	case "lf", "crlf":
	default:
		return errors.NewConfigError(
			fmt.Sprintf("rendering.newline must be 'lf' or 'crlf', got '%s'", c.Rendering.Newline), nil)
	}
	return nil
}

// IndentRune returns the configured indent character.
func (c *Config) IndentRune() rune {
	if c.Rendering.IndentChar == "space" {
		return ' '
	}
	return '\t'
}

// NewlineString returns the configured newline sequence.
func (c *Config) NewlineString() string {
	if c.Rendering.Newline == "crlf" {
		return "\r\n"
	}
	return "\n"
}

// KeyName returns the property key for a struct field name, applying naming
// rules
func (c *Config) KeyName(fieldName string) string {
	// Check custom mappings first
	if mapped, exists := c.Naming.KeyMappings[fieldName]; exists {
		return mapped
	}

	if c.Naming.PascalCaseKeys {
		return strcase.ToCamel(fieldName)
	}

	// Return original field name
	return fieldName
}

// Keeper builds the secure value keeper from the configured key source.
// Precedence: key file, then environment variable, then a random per-process
// key.
func (c *Config) Keeper() (*secure.Keeper, error) {
	if c.Secure.KeyFile != "" {
		return secure.NewKeeperFromFile(c.Secure.KeyFile)
	}
	if c.Secure.KeyEnv != "" {
		if encoded := os.Getenv(c.Secure.KeyEnv); encoded != "" {
			return secure.NewKeeperFromHex(encoded)
		}
	}
	return secure.ProcessKeeper(), nil
}
