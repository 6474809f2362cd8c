package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivankudzin/ticketadmin/internal/domain/enums"
)

type Config struct {
	Env          string             `yaml:"env"`
	HTTP         HTTPConfig         `yaml:"http"`
	Log          LogConfig          `yaml:"log"`
	Services     ServicesConfig     `yaml:"services"`
	Gate         GateConfig         `yaml:"gate"`
	Client       ClientConfig       `yaml:"client"`
	Redis        RedisConfig        `yaml:"redis"`
	ServiceToken ServiceTokenConfig `yaml:"service_token"`
	Limits       LimitsConfig       `yaml:"limits"`
	CORS         CORSConfig         `yaml:"cors"`
	Health       HealthConfig       `yaml:"health"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ServicesConfig holds the base URLs of every collaborator. AppURL is the
// dashboard's own public origin; LocalURL is where the process can reach its
// own /api routes (usually the loopback listener).
type ServicesConfig struct {
	AuthURL    string `yaml:"auth_url"`
	TicketsURL string `yaml:"tickets_url"`
	AppURL     string `yaml:"app_url"`
	AuthAppURL string `yaml:"auth_app_url"`
	LocalURL   string `yaml:"local_url"`
}

type GateConfig struct {
	AllowedRoles       []string `yaml:"allowed_roles"`
	PublicRoutes       []string `yaml:"public_routes"`
	SessionCookieNames []string `yaml:"session_cookie_names"`
	UnauthorizedPath   string   `yaml:"unauthorized_path"`
}

type ClientConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ServiceTokenConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
	Issuer string        `yaml:"issuer"`
}

type LimitsConfig struct {
	MutationsPerMinute int `yaml:"mutations_per_minute"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type HealthConfig struct {
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

func Default() Config {
	return Config{
		Env: "dev",
		HTTP: HTTPConfig{
			Addr:         ":3000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Services: ServicesConfig{
			AuthURL:    "http://localhost:8081",
			TicketsURL: "http://localhost:8080",
			AppURL:     "http://localhost:3000",
			AuthAppURL: "http://localhost:3001",
			LocalURL:   "http://127.0.0.1:3000",
		},
		Gate: GateConfig{
			AllowedRoles: []string{string(enums.RoleAdmin)},
			PublicRoutes: []string{"/unauthorized", "/healthz", "/logout", "/static", "/favicon.ico"},
			SessionCookieNames: []string{
				"better-auth.session_token",
				"__Secure-better-auth.session_token",
			},
			UnauthorizedPath: "/unauthorized",
		},
		Client: ClientConfig{Timeout: 10 * time.Second},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		ServiceToken: ServiceTokenConfig{
			TTL:    2 * time.Minute,
			Issuer: "ticketadmin",
		},
		Limits: LimitsConfig{MutationsPerMinute: 60},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Health: HealthConfig{CheckTimeout: 3 * time.Second},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// AllowedRoles returns the gate role set; Validate guarantees it parses.
func (c Config) AllowedRoles() []enums.Role {
	roles, _ := enums.ParseRoles(c.Gate.AllowedRoles)
	return roles
}

func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"services.auth_url":     c.Services.AuthURL,
		"services.tickets_url":  c.Services.TicketsURL,
		"services.app_url":      c.Services.AppURL,
		"services.auth_app_url": c.Services.AuthAppURL,
		"services.local_url":    c.Services.LocalURL,
	} {
		if err := validateBaseURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	roles, err := enums.ParseRoles(c.Gate.AllowedRoles)
	if err != nil {
		return fmt.Errorf("gate.allowed_roles: %w", err)
	}
	if len(roles) == 0 {
		return errors.New("gate.allowed_roles: at least one role is required")
	}
	if len(c.Gate.SessionCookieNames) == 0 {
		return errors.New("gate.session_cookie_names: at least one cookie name is required")
	}
	if !strings.HasPrefix(c.Gate.UnauthorizedPath, "/") {
		return fmt.Errorf("gate.unauthorized_path must start with /: %q", c.Gate.UnauthorizedPath)
	}
	if c.Env == "prod" && strings.TrimSpace(c.ServiceToken.Secret) == "" {
		return errors.New("service_token.secret is required in production")
	}

	return nil
}

func validateBaseURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid scheme in %q", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if err := overrideDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Server-side names win over the public ones exposed to browsers.
	overrideFirst(&cfg.Services.AuthURL, "AUTH_SERVICE_URL", "PUBLIC_AUTH_SERVICE_URL")
	overrideFirst(&cfg.Services.TicketsURL, "TICKETS_SERVICE_URL", "PUBLIC_TICKETS_SERVICE_URL")
	overrideFirst(&cfg.Services.AppURL, "APP_URL", "PUBLIC_APP_URL")
	overrideFirst(&cfg.Services.AuthAppURL, "AUTH_APP_URL", "PUBLIC_AUTH_APP_URL")
	overrideFirst(&cfg.Services.LocalURL, "LOCAL_API_URL")

	overrideList("GATE_ALLOWED_ROLES", &cfg.Gate.AllowedRoles)
	overrideList("GATE_PUBLIC_ROUTES", &cfg.Gate.PublicRoutes)
	overrideList("GATE_SESSION_COOKIES", &cfg.Gate.SessionCookieNames)

	if err := overrideDuration("CLIENT_TIMEOUT", &cfg.Client.Timeout); err != nil {
		return err
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if err := overrideInt("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}

	if v := os.Getenv("SERVICE_TOKEN_SECRET"); v != "" {
		cfg.ServiceToken.Secret = v
	}
	if err := overrideDuration("SERVICE_TOKEN_TTL", &cfg.ServiceToken.TTL); err != nil {
		return err
	}

	if err := overrideInt("MUTATIONS_PER_MINUTE", &cfg.Limits.MutationsPerMinute); err != nil {
		return err
	}

	overrideList("CORS_ALLOWED_ORIGINS", &cfg.CORS.AllowedOrigins)

	if err := overrideDuration("HEALTH_CHECK_TIMEOUT", &cfg.Health.CheckTimeout); err != nil {
		return err
	}

	return nil
}

func overrideFirst(target *string, keys ...string) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*target = v
			return
		}
	}
}

func overrideList(key string, target *[]string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*target = out
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s duration: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}
