package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "payboard.config"

const (
	DefaultDatabaseURL     = "sqlite://payboard.db"
	DefaultShutdownTimeout = "30s"
	DefaultVoteThreshold   = 3
	EnvPrefix              = "payboard"
)

// Search paths used when no config file is given explicitly.
var defaultConfigPaths = []string{
	"payboard.yaml",
	"/etc/payboard/payboard.yaml",
}

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	BindAddr              string   `yaml:"bindAddr"              split_words:"true"`
	Port                  uint     `yaml:"port"                  envconfig:"PORT"`
	DatabaseURL           string   `yaml:"databaseUrl"           envconfig:"DATABASE_URL"`
	CORSOrigins           []string `yaml:"corsOrigins"           envconfig:"CORS_ORIGINS"`
	VoteApprovalThreshold int      `yaml:"voteApprovalThreshold" split_words:"true"`
	JWTSecret             string   `yaml:"jwtSecret"             envconfig:"JWT_SECRET"`
	JWTIssuer             string   `yaml:"jwtIssuer"             envconfig:"JWT_ISSUER"`
	JWTAudience           string   `yaml:"jwtAudience"           envconfig:"JWT_AUDIENCE"`
	MetricsPort           uint     `yaml:"metricsPort"           split_words:"true"`
	Tracing               bool     `yaml:"tracing"`
	TracingStdout         bool     `yaml:"tracingStdout"         split_words:"true"`
	RateLimitPerMinute    int      `yaml:"rateLimitPerMinute"    split_words:"true"`
	RateLimitBurst        int      `yaml:"rateLimitBurst"        split_words:"true"`
	ShutdownTimeout       string   `yaml:"shutdownTimeout"       split_words:"true"`
	MaxOpenConns          int      `yaml:"maxOpenConns"          split_words:"true"`
	MaxIdleConns          int      `yaml:"maxIdleConns"          split_words:"true"`
}

// Default returns a config populated with built-in defaults.
func Default() *Config {
	return &Config{
		BindAddr:              "0.0.0.0",
		Port:                  8080,
		DatabaseURL:           DefaultDatabaseURL,
		CORSOrigins:           []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		VoteApprovalThreshold: DefaultVoteThreshold,
		MetricsPort:           9102,
		RateLimitPerMinute:    20,
		RateLimitBurst:        5,
		ShutdownTimeout:       DefaultShutdownTimeout,
		MaxOpenConns:          100,
		MaxIdleConns:          10,
	}
}

// Load builds the config from defaults, then the YAML file, then .env and
// the process environment. An empty configFile searches the default paths.
func Load(configFile string) (*Config, error) {
	cfg := Default()
	if configFile == "" {
		for _, path := range defaultConfigPaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// A missing .env is normal in production where the environment is set directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metricsPort: %d", c.MetricsPort)
	}
	if c.DatabaseURL == "" {
		return errors.New("databaseUrl must not be empty")
	}
	if c.RateLimitPerMinute < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdownTimeout %q: %w", c.ShutdownTimeout, err)
	}
	return nil
}

// ApprovalThreshold is the net score at which a submission becomes APPROVED.
func (c *Config) ApprovalThreshold() int {
	return c.VoteApprovalThreshold
}

// ShutdownDuration returns the parsed shutdown timeout, falling back to the default.
func (c *Config) ShutdownDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultShutdownTimeout)
	}
	return d
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.MetricsPort)
}
