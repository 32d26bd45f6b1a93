package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeFloat is a decimal number.
	TypeFloat OptionType = "float"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
)

// ConfigOption declares a single configuration option with its type, default,
// documentation, and environment variable override.
type ConfigOption struct {
	// Key is the option name, with its section as a dotted prefix.
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Description is a human-readable description of the option.
	Description string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the expected configuration options.
// It is used for validation, documentation, typed resolution, and env var
// mapping.
type ConfigSchema struct {
	options []*ConfigOption
	byKey   map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey: make(map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. Duplicate keys are silently
// overwritten (last registration wins).
func (s *ConfigSchema) Register(opt ConfigOption) {
	if old, ok := s.byKey[opt.Key]; ok {
		*old = opt
		return
	}
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	s.byKey[opt.Key] = ref
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the ConfigOption for key, or nil if it is not registered.
func (s *ConfigSchema) Lookup(key string) *ConfigOption {
	return s.byKey[key]
}

// Options returns all registered options in registration order.
func (s *ConfigSchema) Options() []ConfigOption {
	out := make([]ConfigOption, 0, len(s.options))
	for _, o := range s.options {
		out = append(out, *o)
	}
	return out
}

// Resolve returns the effective value for key by checking, in order: (1) the
// environment variable declared in the schema for this key, (2) the config
// value, (3) the schema default. Returns "" if the key is not found anywhere.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	opt := s.Lookup(key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetOption(key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ResolveInt is [ConfigSchema.Resolve] parsed as an integer. An empty value
// is 0.
func (s *ConfigSchema) ResolveInt(c *Config, key string) (int, error) {
	v := s.Resolve(c, key)
	if v == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: expected int, got %q", key, v)
	}
	return i, nil
}

// ResolveFloat is [ConfigSchema.Resolve] parsed as a float. An empty value
// is 0.
func (s *ConfigSchema) ResolveFloat(c *Config, key string) (float64, error) {
	v := s.Resolve(c, key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("option %s: expected float, got %q", key, v)
	}
	return f, nil
}

// ResolveDuration is [ConfigSchema.Resolve] parsed as a duration. An empty
// value is 0.
func (s *ConfigSchema) ResolveDuration(c *Config, key string) (time.Duration, error) {
	v := s.Resolve(c, key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: expected duration, got %q", key, v)
	}
	return d, nil
}

// ValidateConfig checks a loaded Config against the schema and returns a list
// of human-readable issues (empty if the config is valid): unknown options
// and type mismatches.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	for key, value := range c.Options {
		opt := s.Lookup(key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("option %q: %v", key, err))
		}
	}

	sort.Strings(issues)
	return issues
}

// validateType checks that a string value matches the expected OptionType.
func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("expected float, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// FormatHelp returns a formatted, human-readable reference of all registered
// options.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	b.WriteString("Config Options:\n")
	for _, o := range s.options {
		fmt.Fprintf(&b, "  %-20s %s", o.Key, o.Description)
		parts := make([]string, 0, 3)
		if o.Type != "" && o.Type != TypeString {
			parts = append(parts, fmt.Sprintf("type: %s", o.Type))
		}
		if o.Default != "" {
			parts = append(parts, fmt.Sprintf("default: %s", o.Default))
		}
		if o.EnvVar != "" {
			parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Option keys.
const (
	KeyStyleUser      = "style.user"
	KeyStyleHost      = "style.host"
	KeyStyleCwd       = "style.cwd"
	KeyStyleSpeed     = "style.speed"
	KeyLogFile        = "log.file"
	KeyLogLevel       = "log.level"
	KeyLogMaxSizeMB   = "log.max-size-mb"
	KeyLogMaxFiles    = "log.max-files"
	KeyLogBufferSize  = "log.buffer-size"
	KeySandboxTimeout = "sandbox.timeout"
	KeyScriptDefault  = "script.default"
)

// DefaultSchema returns the canonical schema declaring all known mendax
// configuration options.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: KeyStyleUser, Type: TypeString, Default: "ubuntu", Description: "User shown in the fake prompt"},
		{Key: KeyStyleHost, Type: TypeString, Default: "ubuntu", Description: "Host shown in the fake prompt"},
		{Key: KeyStyleCwd, Type: TypeString, Default: "~", Description: "Working directory shown in the fake prompt"},
		{Key: KeyStyleSpeed, Type: TypeFloat, Default: "0.040", Description: "Mean seconds between typed characters"},

		{Key: KeyLogFile, Type: TypeString, Default: "", Description: "Log file path (JSON output)", EnvVar: "MENDAX_LOG_FILE"},
		{Key: KeyLogLevel, Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "MENDAX_LOG_LEVEL"},
		{Key: KeyLogMaxSizeMB, Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: KeyLogMaxFiles, Type: TypeInt, Default: "5", Description: "Max number of rotated log backup files"},
		{Key: KeyLogBufferSize, Type: TypeInt, Default: "1000", Description: "In-memory log buffer size (entries)"},

		{Key: KeySandboxTimeout, Type: TypeDuration, Default: "2s", Description: "Time budget for scripts in restricted mode"},
		{Key: KeyScriptDefault, Type: TypeString, Default: "lie.js", Description: "Script run when none is given"},
	})
	return s
}
