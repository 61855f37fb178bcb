package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alephnan/pcgcp/internal/logging"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const DefaultDevKey = "pcgcp-dev-key"

// Config is loaded from defaults, then an optional YAML file, then the
// environment. Command line flags are applied last by the caller.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Port int  `yaml:"port" env:"PCGCP_PORT"`
	Dev  bool `yaml:"dev" env:"PCGCP_DEV"`

	// ClientSecretFile is the OAuth client JSON downloaded from the Cloud console
	ClientSecretFile string `yaml:"client_secret_file" env:"PCGCP_CLIENT_SECRET_FILE"`

	// RedirectURL must equal the redirect URI the client used for the grant
	RedirectURL string `yaml:"redirect_url" env:"PCGCP_REDIRECT_URL"`
	StaticDir   string `yaml:"static_dir" env:"PCGCP_STATIC_DIR"`

	// RedisURL, when set, keeps server sessions in Redis instead of memory
	RedisURL string `yaml:"redis_url" env:"PCGCP_REDIS_URL"`

	// Used only in dev mode
	DevProjects []string `yaml:"dev_projects" env:"PCGCP_DEV_PROJECTS" envSeparator:","`
	DevKey      string   `yaml:"dev_key" env:"PCGCP_DEV_KEY"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PCGCP_SHUTDOWN_TIMEOUT"`
}

type ClientConfig struct {
	BackendURL   string        `yaml:"backend_url" env:"PCGCP_BACKEND_URL"`
	ClientID     string        `yaml:"client_id" env:"OAUTH2_GOOGLE_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"OAUTH2_GOOGLE_CLIENT_SECRET"`
	CallbackPort int           `yaml:"callback_port" env:"PCGCP_CALLBACK_PORT"`
	Prompt       string        `yaml:"prompt" env:"PCGCP_PROMPT"`
	Timeout      time.Duration `yaml:"timeout" env:"PCGCP_SIGNIN_TIMEOUT"`
	DevEmail     string        `yaml:"dev_email" env:"PCGCP_DEV_EMAIL"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"PCGCP_LOG_LEVEL"`
	Format string `yaml:"format" env:"PCGCP_LOG_FORMAT"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:             8080,
			ClientSecretFile: "./config/client_secret.json",
			RedirectURL:      "http://127.0.0.1:8085/callback",
			DevProjects:      []string{"Dev Project One", "Dev Project Two"},
			DevKey:           DefaultDevKey,
			ShutdownTimeout:  10 * time.Second,
		},
		Client: ClientConfig{
			BackendURL:   "http://localhost:8080",
			CallbackPort: 8085,
			Prompt:       "select_account",
			Timeout:      10 * time.Minute,
			DevEmail:     "dev@example.com",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Client.CallbackPort < 0 || c.Client.CallbackPort > 65535 {
		errs = append(errs, fmt.Errorf("client.callback_port %d out of range", c.Client.CallbackPort))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}
	if c.Server.Dev && strings.TrimSpace(c.Server.DevKey) == "" {
		errs = append(errs, errors.New("server.dev_key is required in dev mode"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
