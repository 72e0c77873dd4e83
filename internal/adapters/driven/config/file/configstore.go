package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

const (
	// FileName is the config file looked up in the config directory.
	FileName = "config.toml"
	// EnvFileName is the optional dotenv file read alongside it.
	EnvFileName = ".env"

	reloadDebounce = 100 * time.Millisecond
)

// ConfigStore reads the framework configuration from a TOML file.
type ConfigStore struct {
	filePath string
	validate *validator.Validate
}

// NewConfigStore creates a store for path. If path is empty, defaults to
// ~/.syncbridge/config.toml. The file does not need to exist.
func NewConfigStore(path string) (*ConfigStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".syncbridge", FileName)
	}
	return &ConfigStore{filePath: path, validate: newValidator()}, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report TOML key names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Load reads, expands and validates the configuration. A missing file
// yields the default configuration with no servers or integrations.
func (s *ConfigStore) Load() (*domain.Config, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.Config{
				LogLevel:  "info",
				Storage:   domain.StorageSQLite,
				Framework: domain.DefaultFrameworkConfig(),
			}, nil
		}
		return nil, err
	}

	env, err := s.readEnv()
	if err != nil {
		return nil, err
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.filePath, err)
	}
	raw.expand(env)

	if err := s.check(&raw); err != nil {
		return nil, err
	}
	return raw.toDomain(), nil
}

// readEnv loads the dotenv file next to the config file, if any.
func (s *ConfigStore) readEnv() (map[string]string, error) {
	envPath := filepath.Join(filepath.Dir(s.filePath), EnvFileName)
	env, err := godotenv.Read(envPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", envPath, err)
	}
	return env, nil
}

func (s *ConfigStore) check(raw *fileConfig) error {
	err := s.validate.Struct(raw)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Watch reloads the file whenever it or its .env changes. The directory is
// watched rather than the file so editors that replace files on save are
// picked up.
func (s *ConfigStore) Watch(ctx context.Context, onChange func(*domain.Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.filePath)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Debug("Watching %s for changes", s.filePath)

	envPath := filepath.Join(dir, EnvFileName)
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(ev.Name)
			if name != filepath.Clean(s.filePath) && name != envPath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(reloadDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error: %v", err)
		case <-debounce:
			debounce = nil
			cfg, err := s.Load()
			if err != nil {
				logger.Warn("Ignoring invalid config reload: %v", err)
				continue
			}
			logger.Info("Configuration reloaded from %s", s.filePath)
			onChange(cfg)
		}
	}
}

// duration decodes TOML strings such as "30s" or "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type fileConfig struct {
	LogLevel     string               `toml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	DataDir      string               `toml:"data_dir"`
	Storage      string               `toml:"storage" validate:"omitempty,oneof=sqlite memory"`
	Framework    frameworkSection     `toml:"framework"`
	Servers      []serverSection      `toml:"servers" validate:"unique=ID,dive"`
	Integrations []integrationSection `toml:"integrations" validate:"unique=ID,dive"`
}

type frameworkSection struct {
	HealthCheckInterval     duration `toml:"health_check_interval"`
	BaseRetryDelay          duration `toml:"base_retry_delay"`
	CircuitBreakerThreshold uint32   `toml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   duration `toml:"circuit_breaker_timeout"`
	RateLimit               float64  `toml:"rate_limit" validate:"gte=0"`
}

type serverSection struct {
	ID          string         `toml:"id" validate:"required"`
	Name        string         `toml:"name"`
	Description string         `toml:"description"`
	Version     string         `toml:"version"`
	Host        string         `toml:"host" validate:"omitempty,hostname_rfc1123|ip"`
	Port        int            `toml:"port" validate:"gte=0,lte=65535"`
	Scheme      string         `toml:"scheme" validate:"omitempty,oneof=http https"`
	Path        string         `toml:"path"`
	Timeout     duration       `toml:"timeout"`
	MaxRetries  *int           `toml:"max_retries" validate:"omitempty,gte=0"`
	APIKey      string         `toml:"api_key"`
	AuthToken   string         `toml:"auth_token"`
	Options     map[string]any `toml:"options"`
}

type integrationSection struct {
	ID           string         `toml:"id" validate:"required"`
	ServerID     string         `toml:"server_id" validate:"required"`
	Name         string         `toml:"name"`
	Description  string         `toml:"description"`
	Enabled      *bool          `toml:"enabled"`
	AutoSync     bool           `toml:"auto_sync"`
	SyncInterval duration       `toml:"sync_interval"`
	Config       map[string]any `toml:"config"`
	Mapping      mappingSection `toml:"mapping"`
}

type mappingSection struct {
	SourceFields    []string                `toml:"source_fields"`
	TargetFields    []string                `toml:"target_fields"`
	Transformations []transformationSection `toml:"transformations" validate:"dive"`
}

type transformationSection struct {
	Type        string `toml:"type" validate:"required,oneof=map format calculate filter"`
	SourceField string `toml:"source_field" validate:"required"`
	TargetField string `toml:"target_field" validate:"required"`
	Expression  string `toml:"expression"`
}

// expand replaces ${VAR} references in credentials and string options.
// Variables from the dotenv file win over the process environment.
func (c *fileConfig) expand(env map[string]string) {
	lookup := func(key string) string {
		if v, ok := env[key]; ok {
			return v
		}
		return os.Getenv(key)
	}
	c.DataDir = os.Expand(c.DataDir, lookup)
	for i := range c.Servers {
		srv := &c.Servers[i]
		srv.Host = os.Expand(srv.Host, lookup)
		srv.APIKey = os.Expand(srv.APIKey, lookup)
		srv.AuthToken = os.Expand(srv.AuthToken, lookup)
		expandMap(srv.Options, lookup)
	}
	for i := range c.Integrations {
		expandMap(c.Integrations[i].Config, lookup)
	}
}

func expandMap(m map[string]any, lookup func(string) string) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			m[k] = os.Expand(val, lookup)
		case map[string]any:
			expandMap(val, lookup)
		}
	}
}

func (c *fileConfig) toDomain() *domain.Config {
	cfg := &domain.Config{
		LogLevel:  c.LogLevel,
		DataDir:   c.DataDir,
		Storage:   c.Storage,
		Framework: domain.DefaultFrameworkConfig(),
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Storage == "" {
		cfg.Storage = domain.StorageSQLite
	}

	fw := c.Framework
	if fw.HealthCheckInterval.Duration > 0 {
		cfg.Framework.HealthCheckInterval = fw.HealthCheckInterval.Duration
	}
	if fw.BaseRetryDelay.Duration > 0 {
		cfg.Framework.BaseRetryDelay = fw.BaseRetryDelay.Duration
	}
	if fw.CircuitBreakerTimeout.Duration > 0 {
		cfg.Framework.CircuitBreakerTimeout = fw.CircuitBreakerTimeout.Duration
	}
	cfg.Framework.CircuitBreakerThreshold = fw.CircuitBreakerThreshold
	cfg.Framework.RateLimit = fw.RateLimit

	for _, s := range c.Servers {
		cfg.Servers = append(cfg.Servers, s.toDomain())
	}
	for _, in := range c.Integrations {
		cfg.Integrations = append(cfg.Integrations, in.toDomain())
	}
	return cfg
}

func (s serverSection) toDomain() *domain.Server {
	retries := domain.DefaultMaxRetries
	if s.MaxRetries != nil {
		retries = *s.MaxRetries
	}
	srv := domain.NewServer(s.ID, s.Name, domain.ServerConfig{
		Host:       s.Host,
		Port:       s.Port,
		Scheme:     s.Scheme,
		Path:       s.Path,
		Timeout:    s.Timeout.Duration,
		MaxRetries: retries,
		APIKey:     s.APIKey,
		AuthToken:  s.AuthToken,
		Options:    s.Options,
	})
	srv.Description = s.Description
	srv.Version = s.Version
	return srv
}

func (in integrationSection) toDomain() domain.Integration {
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	out := domain.Integration{
		ID:           in.ID,
		ServerID:     in.ServerID,
		Name:         in.Name,
		Description:  in.Description,
		Enabled:      enabled,
		AutoSync:     in.AutoSync,
		SyncInterval: in.SyncInterval.Duration,
		Config:       in.Config,
		Mapping: domain.Mapping{
			SourceFields: in.Mapping.SourceFields,
			TargetFields: in.Mapping.TargetFields,
		},
	}
	for _, t := range in.Mapping.Transformations {
		out.Mapping.Transformations = append(out.Mapping.Transformations, domain.Transformation{
			Type:        domain.TransformType(t.Type),
			SourceField: t.SourceField,
			TargetField: t.TargetField,
			Expression:  t.Expression,
		})
	}
	return out
}
