// Package config loads the server and tool configuration: defaults, then an
// optional YAML file, then environment variables. A .env file in the working
// directory is read first and never overrides variables already set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tcworks/tcmanage/auth"
)

// DefaultPath is used when neither a flag nor TC_CONFIG names a file.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port        int           `yaml:"port"`
	CORSOrigins []string      `yaml:"cors_origins"`
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

// BusyTimeout converts the configured milliseconds.
func (d DatabaseConfig) BusyTimeout() time.Duration {
	return time.Duration(d.BusyTimeoutMS) * time.Millisecond
}

type AuthConfig struct {
	// ResetCredentials drops every stored password when the server starts.
	// Off by default; turn it on for one start only. tcadmin ignores it and
	// resets only through migrate --reset-credentials.
	ResetCredentials bool `yaml:"reset_credentials"`
	// AllowPlaintext accepts rows written before passwords were hashed.
	AllowPlaintext bool `yaml:"allow_plaintext"`
	// UpgradeLegacy rehashes a plaintext row after a successful login.
	UpgradeLegacy bool                 `yaml:"upgrade_legacy"`
	BcryptCost    int                  `yaml:"bcrypt_cost"`
	Bootstrap     []auth.BootstrapUser `yaml:"bootstrap"`
}

type StorageConfig struct {
	PhotoDir           string `yaml:"photo_dir"`
	MaxPhotosPerImport int    `yaml:"max_photos_per_import"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type SchedulerConfig struct {
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			TokenTTL:    12 * time.Hour,
		},
		Database: DatabaseConfig{
			Path:          "./data/tc_management.db",
			BusyTimeoutMS: 5000,
		},
		Auth: AuthConfig{
			AllowPlaintext: true,
			UpgradeLegacy:  true,
		},
		Storage: StorageConfig{
			PhotoDir:           "./resources",
			MaxPhotosPerImport: 50,
		},
		Log: LogConfig{
			Level: "info",
		},
		Scheduler: SchedulerConfig{
			StatsInterval: time.Minute,
		},
	}
}

// Path resolves the config file: the explicit path, else TC_CONFIG, else
// DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("TC_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load builds the configuration. A missing file is not an error; a file that
// does not parse is.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("TC_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if origins := os.Getenv("TC_CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}
	if secret := os.Getenv("TC_TOKEN_SECRET"); secret != "" {
		cfg.Server.TokenSecret = secret
	}
	if path := os.Getenv("TC_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if v, ok := envBool("TC_RESET_CREDENTIALS"); ok {
		cfg.Auth.ResetCredentials = v
	}
	if v, ok := envBool("TC_ALLOW_PLAINTEXT"); ok {
		cfg.Auth.AllowPlaintext = v
	}
	if dir := os.Getenv("TC_PHOTO_DIR"); dir != "" {
		cfg.Storage.PhotoDir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	bootstrapFromEnv(cfg, "TC_ADMIN_ID", "TC_ADMIN_PASSWORD", auth.LevelAdmin)
	bootstrapFromEnv(cfg, "TC_USER_ID", "TC_USER_PASSWORD", auth.LevelUser)
}

// bootstrapFromEnv adds or replaces a bootstrap account named by the
// environment.
func bootstrapFromEnv(cfg *Config, idKey, passwordKey string, level auth.Level) {
	id, password := os.Getenv(idKey), os.Getenv(passwordKey)
	if id == "" || password == "" {
		return
	}
	user := auth.BootstrapUser{UserID: id, Password: password, Level: level}
	for i, b := range cfg.Auth.Bootstrap {
		if b.UserID == id {
			cfg.Auth.Bootstrap[i] = user
			return
		}
	}
	cfg.Auth.Bootstrap = append(cfg.Auth.Bootstrap, user)
}

func envBool(key string) (bool, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.TokenSecret != "" && len(c.Server.TokenSecret) < 16 {
		return fmt.Errorf("server.token_secret must be at least 16 bytes")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.MaxPhotosPerImport < 0 {
		return fmt.Errorf("storage.max_photos_per_import must not be negative")
	}
	for i, b := range c.Auth.Bootstrap {
		if b.UserID == "" || b.Password == "" {
			return fmt.Errorf("auth.bootstrap[%d]: user_id and password are required", i)
		}
		if b.Level != "" && !b.Level.Valid() {
			return fmt.Errorf("auth.bootstrap[%d]: unknown level %q", i, b.Level)
		}
	}
	return nil
}
