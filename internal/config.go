package internal

import (
	"fmt"
	"log/slog"
	"os/user"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jdt/internal/github"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	GitHub     GitHubConfig      `yaml:"github"`
	Journal    JournalConfig     `yaml:"journal"`
	Exceptions ExceptionsConfig  `yaml:"exceptions"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.GitHub.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	if err := c.Exceptions.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// GitHubConfig holds hosting API access settings.
type GitHubConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Token       string        `yaml:"token"`
	PageSize    int           `yaml:"page_size"`
	PageTimeout time.Duration `yaml:"page_timeout"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.PageTimeout, validation.Required, validation.Min(time.Second)),
	)
}

// JournalConfig holds the defaults used when a report request leaves a
// parameter empty.
type JournalConfig struct {
	RepoURL  string `yaml:"repo_url"`
	Branch   string `yaml:"branch"`
	Since    string `yaml:"since"`
	Operator string `yaml:"operator"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Branch, validation.Required),
		validation.Field(&c.Since, validation.Date("2006-01-02")),
		validation.Field(&c.Operator, validation.Required),
	)
}

// ExceptionsConfig locates the exception store file.
type ExceptionsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Dir returns the directory holding the store file.
func (c *ExceptionsConfig) Dir() string {
	return filepath.Dir(c.Path)
}

// File returns the store file name.
func (c *ExceptionsConfig) File() string {
	return filepath.Base(c.Path)
}

// Validate validates the exceptions configuration.
func (c *ExceptionsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
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
				Port: 5173,
			},
		},
		GitHub: GitHubConfig{
			BaseURL:     github.DefaultBaseURL,
			PageSize:    github.DefaultPageSize,
			PageTimeout: github.DefaultPageTimeout,
		},
		Journal: JournalConfig{
			Branch:   "main",
			Operator: localOperator(),
		},
		Exceptions: ExceptionsConfig{
			Path:  "./data/exceptions.json",
			Watch: true,
		},
		SQLite: SQLiteConfig{
			Path: "./data/jdt.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

func localOperator() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "?"
}
