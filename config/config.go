// Package config holds certgen's settings: a YAML file, an optional .env file
// and CERTGEN_* environment overrides, applied in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "certgen.yaml"

// Config holds all certgen configuration.
type Config struct {
	Assets  AssetsConfig  `yaml:"assets"`
	Output  OutputConfig  `yaml:"output"`
	Auth    AuthConfig    `yaml:"auth"`
	Server  ServerConfig  `yaml:"server"`
	Stats   StatsConfig   `yaml:"stats"`
	Logging LoggingConfig `yaml:"logging"`
}

// AssetsConfig locates the certificate template and font.
type AssetsConfig struct {
	Template string `yaml:"template"`
	Font     string `yaml:"font"`
	FontName string `yaml:"font_name"`
}

// OutputConfig controls what a batch writes.
type OutputConfig struct {
	Dir     string `yaml:"dir"`    // empty: the template path without its extension
	Naming  string `yaml:"naming"` // folder, interactive
	Folders bool   `yaml:"folders"`
	Archive bool   `yaml:"archive"`
	Policy  string `yaml:"policy"` // fail-fast, isolate
}

// AuthConfig configures the sign-in gate.
type AuthConfig struct {
	Passphrase  string `yaml:"passphrase"` // plain text or bcrypt hash
	EmailDomain string `yaml:"email_domain"`
	JWTSecret   string `yaml:"jwt_secret"`
	SessionTTL  string `yaml:"session_ttl"`
}

// ServerConfig configures the web front end.
type ServerConfig struct {
	Listen       string `yaml:"listen"`
	MaxUploadMB  int    `yaml:"max_upload_mb"`
	PreviewRows  int    `yaml:"preview_rows"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// StatsConfig locates the statistics ledger.
type StatsConfig struct {
	Dir     string `yaml:"dir"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Assets: AssetsConfig{
			Template: "phnscholar certificate 6.pdf",
			Font:     filepath.Join("fonts", "DancingScript-VariableFont_wght.ttf"),
			FontName: "DancingScript",
		},
		Output: OutputConfig{
			Naming:  "folder",
			Folders: true,
			Archive: true,
			Policy:  "fail-fast",
		},
		Auth: AuthConfig{
			SessionTTL: "8h",
		},
		Server: ServerConfig{
			Listen:       ":8080",
			MaxUploadMB:  10,
			PreviewRows:  20,
			ReadTimeout:  "30s",
			WriteTimeout: "5m",
		},
		Stats: StatsConfig{
			Dir:     "stats",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CERTGEN_TEMPLATE"); v != "" {
		c.Assets.Template = v
	}
	if v := os.Getenv("CERTGEN_FONT"); v != "" {
		c.Assets.Font = v
	}
	if v := os.Getenv("CERTGEN_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("CERTGEN_PASSPHRASE"); v != "" {
		c.Auth.Passphrase = v
	}
	if v := os.Getenv("CERTGEN_EMAIL_DOMAIN"); v != "" {
		c.Auth.EmailDomain = v
	}
	if v := os.Getenv("CERTGEN_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("CERTGEN_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("CERTGEN_STATS_DIR"); v != "" {
		c.Stats.Dir = v
	}
	if v := os.Getenv("CERTGEN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CERTGEN_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.MaxUploadMB = n
		}
	}
}

var (
	validNaming   = []string{"folder", "interactive"}
	validPolicies = []string{"fail-fast", "isolate"}
	validLevels   = []string{"debug", "info", "warn", "error"}
)

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Assets.Template == "" {
		return fmt.Errorf("certificate template not configured (set assets.template or CERTGEN_TEMPLATE)")
	}
	if c.Assets.Font == "" {
		return fmt.Errorf("font not configured (set assets.font or CERTGEN_FONT)")
	}
	if !oneOf(c.Output.Naming, validNaming) {
		return fmt.Errorf("invalid output naming: %s (valid: %v)", c.Output.Naming, validNaming)
	}
	if !oneOf(c.Output.Policy, validPolicies) {
		return fmt.Errorf("invalid error policy: %s (valid: %v)", c.Output.Policy, validPolicies)
	}
	if !oneOf(c.Logging.Level, validLevels) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, validLevels)
	}
	if c.Auth.SessionTTL != "" {
		if _, err := time.ParseDuration(c.Auth.SessionTTL); err != nil {
			return fmt.Errorf("invalid session_ttl: %w", err)
		}
	}
	return nil
}

// ValidateServer checks the extra settings the web front end needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.Passphrase == "" {
		return fmt.Errorf("passphrase not configured (set auth.passphrase or CERTGEN_PASSPHRASE)")
	}
	if c.Auth.EmailDomain == "" {
		return fmt.Errorf("email domain not configured (set auth.email_domain or CERTGEN_EMAIL_DOMAIN)")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("listen address not configured")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	for name, v := range map[string]string{"read_timeout": c.Server.ReadTimeout, "write_timeout": c.Server.WriteTimeout} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// Duration parses s, falling back to def when s is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func oneOf(v string, valid []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, x := range valid {
		if v == x {
			return true
		}
	}
	return false
}
