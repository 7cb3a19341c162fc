package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/kubev2v/memory-balancer/internal/util"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/yaml"
)

const (
	// DefaultConfigFile is the default path to the balancer's configuration file
	DefaultConfigFile = "/etc/memory-balancer/config.yaml"
	// DefaultTolerance is the greatest utilization span, in percentage points, allowed between two hosts
	DefaultTolerance = 10.0
	// DefaultMaxPasses bounds the number of balancing passes of a single run
	DefaultMaxPasses = 20
	// DefaultMigrationTimeout bounds a single vm relocation
	DefaultMigrationTimeout = 30 * time.Minute
	// envPrefix is the prefix of the environment variables overriding the credentials
	envPrefix = "BALANCER"
)

type Credentials struct {
	URL      string `json:"url" envconfig:"VCENTER_URL" validate:"required,url"`
	Username string `json:"username" envconfig:"VCENTER_USERNAME" validate:"required"`
	Password string `json:"password" envconfig:"VCENTER_PASSWORD" validate:"required"`
	Insecure bool   `json:"insecure,omitempty" envconfig:"VCENTER_INSECURE"`
}

type Config struct {
	// Tolerance is the greatest span of utilization, in percentage points, allowed between any two hosts
	Tolerance float64 `json:"tolerance" validate:"gt=0,lte=100"`
	// MaxPasses is the number of passes after which a run is reported as not converging
	MaxPasses int `json:"max-passes" validate:"gt=0"`
	// MigrationTimeout bounds each vm relocation. Zero disables the bound.
	MigrationTimeout util.Duration `json:"migration-timeout,omitempty"`
	// Interval between two balancing runs. Zero runs once and exits.
	Interval util.Duration `json:"interval,omitempty"`
	// MetricsAddress is the listen address of the metrics endpoint. Empty disables it.
	MetricsAddress string `json:"metrics-address,omitempty"`
	// LogLevel is the level of logging. can be: "debug", "info", "warn", "error",
	// "dpanic", "panic" or "fatal", any other will be treated as "info"
	LogLevel string `json:"log-level,omitempty"`

	VCenter Credentials `json:"vcenter"`
}

func NewDefault() *Config {
	return &Config{
		Tolerance:        DefaultTolerance,
		MaxPasses:        DefaultMaxPasses,
		MigrationTimeout: util.Duration{Duration: DefaultMigrationTimeout},
		LogLevel:         zapcore.InfoLevel.String(),
	}
}

// ParseConfigFile reads the config file and unmarshals it into the Config struct
func (cfg *Config) ParseConfigFile(cfgFile string) error {
	contents, err := os.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return nil
}

// LoadEnv overrides the vCenter credentials with the BALANCER_VCENTER_* variables that are set.
func (cfg *Config) LoadEnv() error {
	if err := envconfig.Process(envPrefix, &cfg.VCenter); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Validate checks that the required fields are set and within range.
func (cfg *Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.MigrationTimeout.Duration < 0 {
		return fmt.Errorf("migration-timeout must not be negative")
	}
	if cfg.Interval.Duration < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	return nil
}

// String returns the configuration without the vCenter password.
func (cfg *Config) String() string {
	redacted := *cfg
	if redacted.VCenter.Password != "" {
		redacted.VCenter.Password = "<redacted>"
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(redacted); err != nil {
		return "<error>"
	}
	return strings.TrimSpace(buf.String())
}
