// Package config loads harness settings from an optional YAML file, an
// optional .env file, and the process environment, in that order of
// increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultServerURL      = "http://localhost:5000"
	DefaultClientURL      = "http://localhost:3000"
	DefaultCORSOrigin     = "https://malicious.example"
	DefaultRequestTimeout = 10 * time.Second
	DefaultSuiteDelay     = 500 * time.Millisecond
	DefaultBurst          = 15
	DefaultParallel       = 15
	DefaultConfigFile     = "apiprobe.yaml"
	DefaultEnvFile        = ".env"
)

// ExpectedEnv lists the variables the target service needs, checked by the
// environment probe.
var ExpectedEnv = []string{
	"GOOGLE_CLIENT_ID",
	"GOOGLE_CLIENT_SECRET",
	"GOOGLE_REDIRECT_URI",
	"JWT_SECRET",
	"MONGO_URI",
	"CLIENT_URL",
}

// Config is the resolved harness configuration.
type Config struct {
	ServerURL      string        `yaml:"server_url" validate:"required,url"`
	ClientURL      string        `yaml:"client_url" validate:"omitempty,url"`
	CORSOrigin     string        `yaml:"cors_origin" validate:"required,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	SuiteDelay     time.Duration `yaml:"suite_delay" validate:"gte=0"`
	Account        Account       `yaml:"account"`
	RateLimit      RateLimit     `yaml:"rate_limit"`

	// Environment holds the ExpectedEnv values visible at load time.
	// Missing variables are absent from the map.
	Environment map[string]string `yaml:"-"`
}

// Account is the test user the auth bootstrap registers or logs in as.
type Account struct {
	Username string `yaml:"username" validate:"required"`
	Email    string `yaml:"email" validate:"required,email"`
	Password string `yaml:"password" validate:"required,min=6"`
}

// RateLimit configures the concurrent burst probe.
type RateLimit struct {
	Burst    int    `yaml:"burst" validate:"gte=1,lte=500"`
	Parallel int    `yaml:"parallel" validate:"gte=1"`
	Path     string `yaml:"path" validate:"required,startswith=/"`
}

// Default returns a configuration with every default applied and a fresh
// per-run account.
func Default() *Config {
	return &Config{
		ServerURL:      DefaultServerURL,
		ClientURL:      DefaultClientURL,
		CORSOrigin:     DefaultCORSOrigin,
		RequestTimeout: DefaultRequestTimeout,
		SuiteDelay:     DefaultSuiteDelay,
		Account:        newAccount(),
		RateLimit: RateLimit{
			Burst:    DefaultBurst,
			Parallel: DefaultParallel,
			Path:     "/api/health",
		},
		Environment: map[string]string{},
	}
}

// Options selects the files Load reads. Empty paths fall back to the defaults
// and are skipped silently when absent; explicit paths must exist.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	cfg := Default()

	path, err := findConfig(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	fillAccount(&cfg.Account)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadEnvFile merges a dotenv file into the process environment without
// overriding variables that are already set.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return fmt.Errorf("env file not found: %s", path)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func findConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking %s: %w", DefaultConfigFile, err)
	}
	return "", nil
}

// decodeFile expands ${VAR} references and decodes strictly into cfg, so
// unknown keys are reported instead of silently ignored.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	data, err = envsubst.Bytes(data)
	if err != nil {
		return fmt.Errorf("expanding env vars: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays process environment variables onto cfg.
func applyEnv(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"SERVER_URL", &cfg.ServerURL},
		{"CLIENT_URL", &cfg.ClientURL},
		{"PROBE_USERNAME", &cfg.Account.Username},
		{"PROBE_EMAIL", &cfg.Account.Email},
		{"PROBE_PASSWORD", &cfg.Account.Password},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.dst = v
		}
	}

	cfg.Environment = make(map[string]string, len(ExpectedEnv))
	for _, key := range ExpectedEnv {
		if v, ok := os.LookupEnv(key); ok {
			cfg.Environment[key] = v
		}
	}
}

// newAccount creates unique credentials so repeated runs do not collide.
func newAccount() Account {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return Account{
		Username: "probe_" + suffix,
		Email:    "probe_" + suffix + "@example.com",
		Password: "Probe-" + suffix,
	}
}

// fillAccount completes a partially configured account. A configured email
// without a username reuses the email's local part.
func fillAccount(a *Account) {
	if a.Username == "" && a.Email != "" {
		a.Username, _, _ = strings.Cut(a.Email, "@")
	}
	if a.Username == "" || a.Email == "" || a.Password == "" {
		gen := newAccount()
		if a.Username == "" {
			a.Username = gen.Username
		}
		if a.Email == "" {
			a.Email = gen.Email
		}
		if a.Password == "" {
			a.Password = gen.Password
		}
	}
}
