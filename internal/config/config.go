// Package config provides configuration management for the domwire dev
// server using Viper for flexible loading from files, environment
// variables, and command-line flags.
//
// The configuration system supports YAML files (.domwire.yml) and
// environment variable overrides with the DOMWIRE_ prefix. It manages
// server settings, the shared mutation buffer capacity, the markup template
// directory, and logging options.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RuntimeConfig struct {
	// BufferCapacity is the fixed size in bytes of the shared mutation
	// buffer. The producer must stay within it.
	BufferCapacity int `yaml:"buffer_capacity"`

	// Delegated selects delegated event listening, where events bubble to
	// the nearest bound ancestor with a listener.
	Delegated bool `yaml:"delegated"`

	// TemplateDir is an optional directory of .html markup templates to
	// pre-register before mounting; files are named <id>-<name>.html.
	TemplateDir string `yaml:"template_dir"`

	// Watch re-registers markup templates and remounts when files under
	// TemplateDir change.
	Watch bool `yaml:"watch"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load builds a Config from whatever viper has accumulated from file, env,
// and flags, then validates it.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	// Viper key lookups cover values set only through env or flags.
	if config.Server.Port == 0 {
		config.Server.Port = viper.GetInt("server.port")
	}
	if config.Server.Host == "" {
		config.Server.Host = viper.GetString("server.host")
	}
	if config.Runtime.BufferCapacity == 0 {
		config.Runtime.BufferCapacity = viper.GetInt("runtime.buffer_capacity")
	}

	applyDefaults(&config)
	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 {
		config.Server.Port = 8090
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Runtime.BufferCapacity == 0 {
		config.Runtime.BufferCapacity = 64 * 1024
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// replacer maps nested config keys like server.port to environment
// variable segments like SERVER_PORT.
func replacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// BindEnv wires the DOMWIRE_ environment variable namespace into viper.
func BindEnv() {
	viper.SetEnvPrefix("DOMWIRE")
	viper.SetEnvKeyReplacer(replacer())
	viper.AutomaticEnv()
}

// Validate rejects configurations the server cannot run with.
func Validate(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d: must be 1-65535", config.Server.Port)
	}
	if config.Runtime.BufferCapacity < 256 {
		return fmt.Errorf("invalid buffer capacity %d: must be at least 256 bytes", config.Runtime.BufferCapacity)
	}
	switch strings.ToLower(config.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", config.Log.Format)
	}
	return nil
}
