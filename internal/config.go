package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/backend"
	"github.com/starford/notelog/internal/filestore"
	"github.com/starford/notelog/internal/kv"
	"github.com/starford/notelog/internal/kvstore"
	"github.com/starford/notelog/internal/plugins"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Backends []string          `yaml:"backends"`
	Plugins  []string          `yaml:"plugins"`
	File     FileConfig        `yaml:"file"`
	KV       KVConfig          `yaml:"kv"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backends, validation.Required, validation.Each(validation.By(knownBackend))),
		validation.Field(&c.Plugins, validation.Each(validation.By(knownPlugin))),
	); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrConfig, err)
	}
	for _, name := range c.Backends {
		var err error
		switch name {
		case filestore.Name:
			err = c.File.Validate()
		case kvstore.Name:
			err = c.KV.Validate()
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", apperr.ErrConfig, name, err)
		}
	}
	return c.Auth.Validate()
}

// BackendOptions maps the configuration onto backend construction options.
// Builder, logger and metrics are filled in by the caller.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		File: backend.FileOptions{
			Location: c.File.Location,
			Backup:   c.File.CreateBackup,
		},
		KV: backend.KVOptions{
			Engine:      c.KV.EngineConfig(),
			Source:      c.KV.Source,
			MaxAttempts: c.KV.MaxAttempts,
		},
	}
}

func knownBackend(v any) error {
	name, _ := v.(string)
	if !backend.Known(name) {
		return fmt.Errorf("unknown backend %q (known: %v)", name, backend.Names())
	}
	return nil
}

func knownPlugin(v any) error {
	name, _ := v.(string)
	if !plugins.Known(name) {
		return fmt.Errorf("unknown plugin %q (known: %v)", name, plugins.Names())
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// FileConfig locates the flat notes file.
type FileConfig struct {
	Location     string `yaml:"location"`
	CreateBackup bool   `yaml:"create_backup"`
}

// Validate validates the file backend configuration.
func (c *FileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Location, validation.Required),
	)
}

// KVConfig configures the indexed backend and its engine.
type KVConfig struct {
	Engine      string `yaml:"engine"`
	Endpoint    string `yaml:"endpoint"`
	Port        int    `yaml:"port"`
	DB          int    `yaml:"db"`
	Password    string `yaml:"password"`
	Path        string `yaml:"path"`
	Source      string `yaml:"source"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// Validate validates the kv backend configuration.
func (c *KVConfig) Validate() error {
	if c.Engine == "" {
		c.Engine = kv.EngineRedis
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Engine, validation.In(kv.EngineRedis, kv.EngineSQLite)),
		validation.Field(&c.Endpoint, validation.When(c.Engine == kv.EngineRedis, validation.Required)),
		validation.Field(&c.Port, validation.When(c.Engine == kv.EngineRedis, validation.Required, validation.Min(1), validation.Max(65535))),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.Path, validation.When(c.Engine == kv.EngineSQLite, validation.Required)),
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.MaxAttempts, validation.Min(0)),
	)
}

// EngineConfig returns the engine connection settings.
func (c *KVConfig) EngineConfig() kv.Config {
	return kv.Config{
		Engine:   c.Engine,
		Endpoint: c.Endpoint,
		Port:     c.Port,
		DB:       c.DB,
		Password: c.Password,
		Path:     c.Path,
	}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Backends: []string{filestore.Name},
		Plugins:  []string{plugins.DateHandlerName, plugins.TodoName, plugins.LunchName, plugins.CalendarName},
		File: FileConfig{
			Location:     "./notes.txt",
			CreateBackup: true,
		},
		KV: KVConfig{
			Engine:      kv.EngineRedis,
			Endpoint:    "localhost",
			Port:        6379,
			Path:        "./notes.db",
			Source:      "default",
			MaxAttempts: kvstore.DefaultMaxAttempts,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
