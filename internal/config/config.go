package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "LICENSING"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	JWT    JWTConfig
	Admin  AdminConfig
	Redis  RedisConfig
	Sheets SheetsConfig
	Policy PolicyConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("LICENSING_JWT_SECRET must not be empty")
	}
	switch strings.ToLower(c.DB.Driver) {
	case DriverSQLite:
	case DriverPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("LICENSING_DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.Sheets.Enabled && (c.Sheets.CredentialsFile == "" || c.Sheets.SpreadsheetID == "") {
		return fmt.Errorf("sheets sync requires credentials file and spreadsheet id")
	}
	if c.Policy.ExpiryWarningDays < 0 {
		return fmt.Errorf("expiry warning days must not be negative")
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"LICENSING_APP_ENV" default:"dev"`
	Port         string `envconfig:"LICENSING_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LICENSING_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LICENSING_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LICENSING_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"LICENSING_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "prod")
}

func (a AppConfig) ListenAddr() string {
	if strings.HasPrefix(a.Port, ":") {
		return a.Port
	}
	return ":" + a.Port
}

type DBConfig struct {
	Driver  string `envconfig:"LICENSING_DB_DRIVER" default:"sqlite"`
	DSN     string `envconfig:"LICENSING_DB_DSN"`
	DataDir string `envconfig:"LICENSING_DB_DATA_DIR" default:"data"`

	MaxOpenConns    int           `envconfig:"LICENSING_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"LICENSING_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"LICENSING_DB_CONN_MAX_LIFETIME" default:"1h"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LICENSING_JWT_SECRET" required:"true"`
	ExpirationMinutes int    `envconfig:"LICENSING_JWT_EXPIRATION_MINUTES" default:"1440"`
}

func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// AdminConfig 首次启动时创建的管理员账号
type AdminConfig struct {
	Username string `envconfig:"LICENSING_ADMIN_USERNAME" default:"admin"`
	Password string `envconfig:"LICENSING_ADMIN_PASSWORD" default:"admin"`
	Email    string `envconfig:"LICENSING_ADMIN_EMAIL" default:"admin@example.com"`
}

// RedisConfig 为空 URL 时不启用校验接口限流
type RedisConfig struct {
	URL          string        `envconfig:"LICENSING_REDIS_URL"`
	VerifyLimit  int           `envconfig:"LICENSING_VERIFY_RATE_LIMIT" default:"60"`
	VerifyWindow time.Duration `envconfig:"LICENSING_VERIFY_RATE_WINDOW" default:"1m"`
	DialTimeout  time.Duration `envconfig:"LICENSING_REDIS_DIAL_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type SheetsConfig struct {
	Enabled         bool   `envconfig:"LICENSING_SHEETS_ENABLED" default:"false"`
	CredentialsFile string `envconfig:"LICENSING_SHEETS_CREDENTIALS_FILE"`
	SpreadsheetID   string `envconfig:"LICENSING_SHEETS_SPREADSHEET_ID"`
	SheetName       string `envconfig:"LICENSING_SHEETS_SHEET_NAME" default:"Licenses"`
	ExportOnStart   bool   `envconfig:"LICENSING_SHEETS_EXPORT_ON_START" default:"false"`
}

type PolicyConfig struct {
	ExpiryWarningDays int `envconfig:"LICENSING_EXPIRY_WARNING_DAYS" default:"30"`
}
