package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Model   Model   `yaml:"model"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Fetch   Fetch   `yaml:"fetch"`
	Feed    Feed    `yaml:"feed"`
}

type Model struct {
	Backend         string `yaml:"backend"`
	Path            string `yaml:"path"`
	OnnxFilename    string `yaml:"onnx_filename"`
	TokenizerPath   string `yaml:"tokenizer_path"`
	OnnxLibraryPath string `yaml:"onnx_library_path"`
	URL             string `yaml:"url"`
	MaxTokens       int    `yaml:"max_tokens"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Fetch struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

type Feed struct {
	MaxItems int `yaml:"max_items"`
}

// ConfigDir returns the XDG config directory for sentimcp.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "sentimcp")
}

// ErrNoConfig is returned by ResolveConfigPath when no file was found.
var ErrNoConfig = errors.New("no config file found")

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/sentimcp/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", ErrNoConfig
}

// Resolve loads the config named by explicit, falling back to the search
// path and then to the embedded defaults. Environment overrides are applied
// last.
func Resolve(explicit string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	path, err := ResolveConfigPath(explicit)
	switch {
	case errors.Is(err, ErrNoConfig):
		cfg, err = parse(DefaultConfigYAML)
	case err != nil:
		return nil, err
	default:
		cfg, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	// A missing .env is normal.
	_ = gotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Model: Model{
			Backend:        "onnx",
			Path:           "./models/twitter-xlm-roberta",
			OnnxFilename:   "model.onnx",
			URL:            "http://localhost:8001",
			MaxTokens:      512,
			TimeoutSeconds: 60,
		},
		Server:  Server{Host: "127.0.0.1", Port: 8000},
		Logging: Logging{Level: "info"},
		Fetch:   Fetch{TimeoutSeconds: 15, UserAgent: "sentimcp/1.0"},
		Feed:    Feed{MaxItems: 20},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides fields from the process environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"MODEL_PATH", &c.Model.Path},
		{"TOKENIZER_PATH", &c.Model.TokenizerPath},
		{"SENTIMENT_BACKEND", &c.Model.Backend},
		{"SENTIMENT_BACKEND_URL", &c.Model.URL},
		{"LOG_FILE", &c.Logging.File},
		{"LOG_LEVEL", &c.Logging.Level},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	if v, ok := lookup("SENTIMCP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SENTIMCP_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
