package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del proceso. Se carga una vez al
// arranque y es de solo lectura después.
type Config struct {
	App struct {
		// dev | prod
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
			Migrate         bool   `yaml:"migrate"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind   string `yaml:"kind"` // memory | redis
		Prefix string `yaml:"prefix"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Token struct {
		Secret     string `yaml:"secret"`
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"token"`

	Password struct {
		MinLength     int  `yaml:"min_length"`
		RequireUpper  bool `yaml:"require_upper"`
		RequireLower  bool `yaml:"require_lower"`
		RequireDigit  bool `yaml:"require_digit"`
		RequireSymbol bool `yaml:"require_symbol"`
	} `yaml:"password"`

	OAuth struct {
		StateTTL  string                    `yaml:"state_ttl"`
		Providers map[string]ProviderConfig `yaml:"providers"`
	} `yaml:"oauth"`
}

// ProviderConfig es el bloque por provider OAuth2.
type ProviderConfig struct {
	ClientID            string   `yaml:"client_id"`
	ClientSecret        string   `yaml:"client_secret"`
	RedirectURI         string   `yaml:"redirect_uri"`
	FrontendRedirectURI string   `yaml:"frontend_redirect_uri"`
	AdditionalScopes    []string `yaml:"additional_scopes"`
	UserAgent           string   `yaml:"user_agent"`
}

// Load lee el YAML, aplica defaults y pisa con variables de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "gatehouse"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "gatehouse"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.Token.Issuer == "" {
		c.Token.Issuer = "gatehouse"
	}
	if c.Token.AccessTTL == "" {
		c.Token.AccessTTL = "15m"
	}
	if c.Token.RefreshTTL == "" {
		c.Token.RefreshTTL = "720h" // 30d
	}
	if c.Password.MinLength == 0 {
		c.Password.MinLength = 8
	}
	if c.OAuth.StateTTL == "" {
		c.OAuth.StateTTL = "10m"
	}

	c.applyEnvOverrides()
	return &c, nil
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno. Los secretos
// (signing secret, client secrets) normalmente llegan por acá y no por YAML.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("TOKEN_SECRET"); ok {
		c.Token.Secret = v
	}
	if v, ok := getEnvStr("TOKEN_ACCESS_TTL"); ok {
		c.Token.AccessTTL = v
	}
	if v, ok := getEnvStr("TOKEN_REFRESH_TTL"); ok {
		c.Token.RefreshTTL = v
	}

	// Por provider: GOOGLE_CLIENT_ID, GITHUB_CLIENT_SECRET, etc.
	for _, name := range []string{"google", "github", "discord", "microsoft"} {
		prefix := strings.ToUpper(name)
		id, okID := getEnvStr(prefix + "_CLIENT_ID")
		secret, okSecret := getEnvStr(prefix + "_CLIENT_SECRET")
		redirect, okRedirect := getEnvStr(prefix + "_REDIRECT_URI")
		if !okID && !okSecret && !okRedirect {
			continue
		}
		if c.OAuth.Providers == nil {
			c.OAuth.Providers = make(map[string]ProviderConfig)
		}
		p := c.OAuth.Providers[name]
		if okID {
			p.ClientID = id
		}
		if okSecret {
			p.ClientSecret = secret
		}
		if okRedirect {
			p.RedirectURI = redirect
		}
		c.OAuth.Providers[name] = p
	}
}

// Validate chequea lo que no puede faltar para arrancar.
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return fmt.Errorf("config: token.secret is required (TOKEN_SECRET)")
	}
	access, err := c.AccessTTL()
	if err != nil {
		return fmt.Errorf("config: token.access_ttl: %w", err)
	}
	refresh, err := c.RefreshTTL()
	if err != nil {
		return fmt.Errorf("config: token.refresh_ttl: %w", err)
	}
	if access >= refresh {
		return fmt.Errorf("config: access_ttl must be shorter than refresh_ttl")
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: storage.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	for name, p := range c.OAuth.Providers {
		if p.ClientID == "" || p.ClientSecret == "" || p.RedirectURI == "" {
			return fmt.Errorf("config: provider %s incomplete (client_id, client_secret, redirect_uri)", name)
		}
	}
	return nil
}

// AccessTTL parsea token.access_ttl.
func (c *Config) AccessTTL() (time.Duration, error) {
	return time.ParseDuration(c.Token.AccessTTL)
}

// RefreshTTL parsea token.refresh_ttl.
func (c *Config) RefreshTTL() (time.Duration, error) {
	return time.ParseDuration(c.Token.RefreshTTL)
}

// StateTTL parsea oauth.state_ttl.
func (c *Config) StateTTL() (time.Duration, error) {
	return time.ParseDuration(c.OAuth.StateTTL)
}
