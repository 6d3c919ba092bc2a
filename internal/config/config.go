package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Auth modes accepted by AuthConfig.Mode.
const (
	AuthModeMock   = "mock"
	AuthModeStatic = "static"
	AuthModeRemote = "remote"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	AuthServer AuthServerConfig `yaml:"authserver"`
	Redis      RedisConfig      `yaml:"redis"`
	Search     SearchConfig     `yaml:"search"`
	Objects    ObjectsConfig    `yaml:"objects"`
	Export     ExportConfig     `yaml:"export"`
	Email      EmailConfig      `yaml:"email"`
	Retention  RetentionConfig  `yaml:"retention"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"PORTAL_ADDR"             env-default:":8787"`
	CORSOrigin      string        `yaml:"cors_origin"      env:"PORTAL_CORS_ORIGIN"      env-default:"*"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"PORTAL_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"PORTAL_WRITE_TIMEOUT"    env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"PORTAL_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PORTAL_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type AuthConfig struct {
	// Mode selects the authenticator: mock (substring role match, any password),
	// static (bcrypt directory) or remote (the authserver process).
	Mode         string        `yaml:"mode"          env:"PORTAL_AUTH_MODE"          env-default:"static"`
	JWTSecret    string        `yaml:"jwt_secret"    env:"PORTAL_JWT_SECRET"         env-default:"platform-services-dev-secret"`
	AccessTTL    time.Duration `yaml:"access_ttl"    env:"PORTAL_ACCESS_TTL"         env-default:"8h"`
	Latency      time.Duration `yaml:"latency"       env:"PORTAL_AUTH_LATENCY"       env-default:"800ms"`
	LoginTimeout time.Duration `yaml:"login_timeout" env:"PORTAL_LOGIN_TIMEOUT"      env-default:"5s"`
	RemoteURL    string        `yaml:"remote_url"    env:"PORTAL_AUTH_REMOTE_URL"    env-default:"http://localhost:3001"`
	LoginRate    float64       `yaml:"login_rate"    env:"PORTAL_LOGIN_RATE"         env-default:"2"`
	LoginBurst   int           `yaml:"login_burst"   env:"PORTAL_LOGIN_BURST"        env-default:"5"`
	// SessionRate and SessionBurst bound anonymous session creation per remote address.
	SessionRate  float64       `yaml:"session_rate"  env:"PORTAL_SESSION_RATE"       env-default:"1"`
	SessionBurst int           `yaml:"session_burst" env:"PORTAL_SESSION_BURST"      env-default:"10"`
}

type AuthServerConfig struct {
	Addr       string        `yaml:"addr"        env:"AUTHSERVER_ADDR"        env-default:":3001"`
	JWTSecret  string        `yaml:"jwt_secret"  env:"AUTHSERVER_JWT_SECRET"  env-default:"platform-services-secret-key"`
	TokenTTL   time.Duration `yaml:"token_ttl"   env:"AUTHSERVER_TOKEN_TTL"   env-default:"1h"`
	Latency    time.Duration `yaml:"latency"     env:"AUTHSERVER_LATENCY"     env-default:"800ms"`
	LoginRate  float64       `yaml:"login_rate"  env:"AUTHSERVER_LOGIN_RATE"  env-default:"2"`
	LoginBurst int           `yaml:"login_burst" env:"AUTHSERVER_LOGIN_BURST" env-default:"5"`
}

type RedisConfig struct {
	// URL is optional; session revocations and preferences stay in memory when empty.
	URL string `yaml:"url" env:"REDIS_URL"`
}

type SearchConfig struct {
	MeiliURL       string `yaml:"meili_url"        env:"MEILI_URL"`
	MeiliMasterKey string `yaml:"meili_master_key" env:"MEILI_MASTER_KEY"`
	IndexName      string `yaml:"index_name"       env:"MEILI_INDEX"      env-default:"portal_services"`
}

type ObjectsConfig struct {
	Endpoint  string        `yaml:"endpoint"   env:"OBJECTS_ENDPOINT"`
	AccessKey string        `yaml:"access_key" env:"OBJECTS_ACCESS_KEY"`
	SecretKey string        `yaml:"secret_key" env:"OBJECTS_SECRET_KEY"`
	Bucket    string        `yaml:"bucket"     env:"OBJECTS_BUCKET"     env-default:"portal-documents"`
	Region    string        `yaml:"region"     env:"OBJECTS_REGION"     env-default:"us-east-1"`
	UseSSL    bool          `yaml:"use_ssl"    env:"OBJECTS_USE_SSL"    env-default:"false"`
	LinkTTL   time.Duration `yaml:"link_ttl"   env:"OBJECTS_LINK_TTL"   env-default:"15m"`
}

type ExportConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"EXPORT_TIMEOUT" env-default:"30s"`
}

// EmailConfig is optional; alerts stay in-app when Host is empty.
type EmailConfig struct {
	Host     string `yaml:"host"      env:"SMTP_HOST"`
	Port     string `yaml:"port"      env:"SMTP_PORT"      env-default:"587"`
	Username string `yaml:"username"  env:"SMTP_USERNAME"`
	Password string `yaml:"password"  env:"SMTP_PASSWORD"`
	From     string `yaml:"from"      env:"SMTP_FROM"`
	FromName string `yaml:"from_name" env:"SMTP_FROM_NAME" env-default:"Platform Services"`
}

type RetentionConfig struct {
	// ReadNotificationsAfter prunes notifications that were read longer ago than this.
	ReadNotificationsAfter time.Duration `yaml:"read_notifications_after" env:"RETENTION_READ_NOTIFICATIONS_AFTER" env-default:"24h"`
	// IdleClientsAfter evicts sessions that made no request for this long.
	IdleClientsAfter       time.Duration `yaml:"idle_clients_after"       env:"RETENTION_IDLE_CLIENTS_AFTER"       env-default:"8h"`
	PruneSchedule          string        `yaml:"prune_schedule"           env:"RETENTION_PRUNE_SCHEDULE"           env-default:"@every 10m"`
	DirectorySyncSchedule  string        `yaml:"directory_sync_schedule"  env:"DIRECTORY_SYNC_SCHEDULE"            env-default:"@every 24h"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Load reads configuration from a YAML file and the environment.
// Priority: ENV > YAML > env-default tags. An empty path falls back to
// CONFIG_PATH and then ./config.yaml; a missing default file is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if !explicit {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}

	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Auth.Mode) {
	case AuthModeMock, AuthModeStatic:
	case AuthModeRemote:
		if strings.TrimSpace(c.Auth.RemoteURL) == "" {
			errs = append(errs, errors.New("auth.remote_url is required in remote mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.mode %q is not one of mock, static, remote", c.Auth.Mode))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.AccessTTL <= 0 {
		errs = append(errs, errors.New("auth.access_ttl must be positive"))
	}
	if c.Auth.LoginTimeout <= 0 {
		errs = append(errs, errors.New("auth.login_timeout must be positive"))
	}
	if c.Auth.Latency < 0 || c.AuthServer.Latency < 0 {
		errs = append(errs, errors.New("auth latency must not be negative"))
	}
	if c.Auth.Latency >= c.Auth.LoginTimeout {
		errs = append(errs, errors.New("auth.latency must be shorter than auth.login_timeout"))
	}
	if strings.TrimSpace(c.AuthServer.JWTSecret) == "" {
		errs = append(errs, errors.New("authserver.jwt_secret is required"))
	}
	if c.Objects.Endpoint != "" && (c.Objects.AccessKey == "" || c.Objects.SecretKey == "") {
		errs = append(errs, errors.New("objects access_key and secret_key are required when endpoint is set"))
	}
	if c.Email.Host != "" && strings.TrimSpace(c.Email.From) == "" {
		errs = append(errs, errors.New("email.from is required when email.host is set"))
	}
	return errors.Join(errs...)
}
