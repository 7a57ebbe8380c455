// Package config also supports loading the gateway's policy file: YAML with
// ${VAR_NAME} environment substitution, the same mechanism used for runtime
// secrets elsewhere in this service.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyConfig holds the gateway's identity, capability-default, and
// ambient operational settings — the parts of configuration too structured
// for flat environment variables.
type PolicyConfig struct {
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	Gateway            GatewaySettings    `yaml:"gateway"`
	IdentityProviders  []IdentityProvider `yaml:"identity_providers"`
	CapabilityDefaults CapabilitySettings `yaml:"capability_defaults"`
	Database           DatabaseSettings   `yaml:"database"`
	Security           SecuritySettings   `yaml:"security"`
	Monitoring         MonitoringSettings `yaml:"monitoring"`
}

// GatewaySettings identifies the gateway instance and its signing material.
type GatewaySettings struct {
	Audience    string `yaml:"audience"`
	KeyPath     string `yaml:"key_path"`
	ARCKeyPath  string `yaml:"arc_key_path"`
	ServiceName string `yaml:"service_name"`
}

// IdentityProvider describes one enterprise IdP trusted to mint ID-JAG
// tokens for this gateway's audience.
type IdentityProvider struct {
	Issuer   string `yaml:"issuer"`
	ClientID string `yaml:"client_id"`
	JWKSURL  string `yaml:"jwks_url"`
}

// CapabilitySettings are the defaults applied when an issuance request does
// not specify its own values, bounded by capability.Validate.
type CapabilitySettings struct {
	MaxPresentations   uint64   `yaml:"max_presentations"`
	Window             Duration `yaml:"window"`
	CredentialDuration Duration `yaml:"credential_duration"`
}

// DatabaseSettings contains counter-store connection configuration.
type DatabaseSettings struct {
	Driver         string   `yaml:"driver"` // "memory" or "postgres"
	URL            string   `yaml:"url"`
	MaxConnections int      `yaml:"max_connections"`
	MinConnections int      `yaml:"min_connections"`
	MaxIdleTime    Duration `yaml:"max_idle_time"`
	MaxLifetime    Duration `yaml:"max_lifetime"`
}

// SecuritySettings contains transport and policy-layer security configuration.
type SecuritySettings struct {
	TLS       TLSSettings       `yaml:"tls"`
	RateLimit RateLimitSettings `yaml:"rate_limit"`
	CORS      CORSSettings      `yaml:"cors"`
}

// TLSSettings contains TLS configuration.
type TLSSettings struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"`
}

// RateLimitSettings contains HTTP-layer rate limiting configuration.
type RateLimitSettings struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// CORSSettings contains CORS configuration.
type CORSSettings struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// MonitoringSettings contains observability configuration.
type MonitoringSettings struct {
	Metrics MetricsSettings `yaml:"metrics"`
	Health  HealthSettings  `yaml:"health"`
	Logging LoggingSettings `yaml:"logging"`
}

// MetricsSettings contains Prometheus metrics configuration.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// HealthSettings contains health check configuration.
type HealthSettings struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingSettings contains logging configuration.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration wraps time.Duration for YAML unmarshaling as a Go duration
// string ("30s", "24h") rather than a bare integer.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// LoadPolicyConfig loads the gateway policy from a YAML file, substituting
// ${VAR_NAME} and ${VAR_NAME:-default} references against the environment.
func LoadPolicyConfig(path string) (*PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy config %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg PolicyConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse policy config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *PolicyConfig) applyDefaults() {
	if c.CapabilityDefaults.MaxPresentations == 0 {
		c.CapabilityDefaults.MaxPresentations = 1000
	}
	if c.CapabilityDefaults.Window == 0 {
		c.CapabilityDefaults.Window = Duration(time.Hour)
	}
	if c.CapabilityDefaults.CredentialDuration == 0 {
		c.CapabilityDefaults.CredentialDuration = Duration(24 * time.Hour)
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 25
	}
	if c.Database.MinConnections == 0 {
		c.Database.MinConnections = 5
	}
	if c.Database.MaxIdleTime == 0 {
		c.Database.MaxIdleTime = Duration(5 * time.Minute)
	}
	if c.Database.MaxLifetime == 0 {
		c.Database.MaxLifetime = Duration(time.Hour)
	}

	if c.Monitoring.Metrics.Port == 0 {
		c.Monitoring.Metrics.Port = 9090
	}
	if c.Monitoring.Metrics.Path == "" {
		c.Monitoring.Metrics.Path = "/metrics"
	}
	if c.Monitoring.Health.Port == 0 {
		c.Monitoring.Health.Port = 8081
	}
	if c.Monitoring.Health.Path == "" {
		c.Monitoring.Health.Path = "/health"
	}
	if c.Monitoring.Logging.Level == "" {
		c.Monitoring.Logging.Level = "info"
	}
	if c.Monitoring.Logging.Format == "" {
		c.Monitoring.Logging.Format = "json"
	}
}

// Validate checks the policy file is complete enough to start the gateway.
func (c *PolicyConfig) Validate() error {
	var errs []string

	if c.Gateway.Audience == "" || strings.HasPrefix(c.Gateway.Audience, "${") {
		errs = append(errs, "gateway.audience is required")
	}
	if c.Gateway.KeyPath == "" || strings.HasPrefix(c.Gateway.KeyPath, "${") {
		errs = append(errs, "gateway.key_path is required")
	}
	if len(c.IdentityProviders) == 0 {
		errs = append(errs, "at least one identity_providers entry is required")
	}
	for i, idp := range c.IdentityProviders {
		if idp.Issuer == "" {
			errs = append(errs, fmt.Sprintf("identity_providers[%d].issuer is required", i))
		}
	}

	if c.Database.Driver == "postgres" && (c.Database.URL == "" || strings.HasPrefix(c.Database.URL, "${")) {
		errs = append(errs, "database.url is required when database.driver is postgres")
	}

	if c.Environment == "production" && !c.Security.TLS.Enabled {
		errs = append(errs, "security.tls.enabled must be true for production")
	}

	if len(errs) > 0 {
		return fmt.Errorf("policy configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
