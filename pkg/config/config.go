package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "QUOTATION"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "QUOTATION_APP_ENV"
	EnvPort          = "QUOTATION_APP_PORT"
	EnvDBDSN         = "QUOTATION_DB_DSN"
	EnvDBDriver      = "QUOTATION_DB_DRIVER"
	EnvDBHost        = "QUOTATION_DB_HOST"
	EnvDBUser        = "QUOTATION_DB_USER"
	EnvDBName        = "QUOTATION_DB_NAME"
	EnvRedisURL      = "QUOTATION_REDIS_URL"
	EnvStorageDriver = "QUOTATION_STORAGE_DRIVER"
	EnvCatalogSource = "QUOTATION_CATALOG_SOURCE"
	EnvSheetsAPIKey  = "QUOTATION_SHEETS_API_KEY"
	EnvSheetID       = "QUOTATION_SHEET_ID"
	EnvWorkbookPath  = "QUOTATION_CATALOG_WORKBOOK_PATH"
	EnvAutosaveDelay = "QUOTATION_AUTOSAVE_DELAY"
	EnvGSTRate       = "QUOTATION_GST_RATE"

	StorageDriverRedis  = "redis"
	StorageDriverSQL    = "sql"
	StorageDriverMemory = "memory"

	CatalogSourceSheets   = "sheets"
	CatalogSourceWorkbook = "workbook"
	CatalogSourceStatic   = "static"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Quotation QuotationConfig
	Catalog   CatalogConfig
	Sheets    SheetsConfig
	Company   CompanyConfig
	RateLimit RateLimitConfig
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
	switch c.Storage.Driver {
	case StorageDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s=redis requires %s", EnvStorageDriver, EnvRedisURL)
		}
	case StorageDriverSQL:
		if err := c.DB.EnsureDSN(); err != nil {
			return err
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageDriver, c.Storage.Driver)
	}

	switch c.Catalog.Source {
	case CatalogSourceSheets, CatalogSourceStatic:
	case CatalogSourceWorkbook:
		if c.Catalog.WorkbookPath == "" {
			return fmt.Errorf("%s=workbook requires %s", EnvCatalogSource, EnvWorkbookPath)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvCatalogSource, c.Catalog.Source)
	}

	if c.Quotation.GSTRate < 0 || c.Quotation.GSTRate >= 1 {
		return fmt.Errorf("%s must be a fraction in [0, 1), got %v", EnvGSTRate, c.Quotation.GSTRate)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"QUOTATION_APP_ENV" required:"true"`
	Port         string `envconfig:"QUOTATION_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"QUOTATION_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"QUOTATION_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"QUOTATION_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"QUOTATION_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"QUOTATION_DB_DSN"`
	Driver string `envconfig:"QUOTATION_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"QUOTATION_DB_HOST"`
	LegacyPort     int    `envconfig:"QUOTATION_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"QUOTATION_DB_USER"`
	LegacyPassword string `envconfig:"QUOTATION_DB_PASSWORD"`
	LegacyName     string `envconfig:"QUOTATION_DB_NAME"`
	LegacySSLMode  string `envconfig:"QUOTATION_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"QUOTATION_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"QUOTATION_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"QUOTATION_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QUOTATION_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"QUOTATION_REDIS_URL"`
	Address      string        `envconfig:"QUOTATION_REDIS_ADDR"`
	Password     string        `envconfig:"QUOTATION_REDIS_PASSWORD"`
	DB           int           `envconfig:"QUOTATION_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QUOTATION_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QUOTATION_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QUOTATION_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QUOTATION_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QUOTATION_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type StorageConfig struct {
	Driver string `envconfig:"QUOTATION_STORAGE_DRIVER" default:"redis"`
}

type QuotationConfig struct {
	StorageKey    string        `envconfig:"QUOTATION_STORAGE_KEY" default:"quotationFormState"`
	AutosaveDelay time.Duration `envconfig:"QUOTATION_AUTOSAVE_DELAY" default:"30s"`
	SavedFlash    time.Duration `envconfig:"QUOTATION_SAVED_FLASH" default:"2s"`
	GSTRate       float64       `envconfig:"QUOTATION_GST_RATE" default:"0.05"`
	IdleTimeout   time.Duration `envconfig:"QUOTATION_SESSION_IDLE_TIMEOUT" default:"2h"`
	EvictInterval time.Duration `envconfig:"QUOTATION_SESSION_EVICT_INTERVAL" default:"5m"`
}

type CatalogConfig struct {
	Source       string        `envconfig:"QUOTATION_CATALOG_SOURCE" default:"sheets"`
	WorkbookPath string        `envconfig:"QUOTATION_CATALOG_WORKBOOK_PATH"`
	WorkbookTab  string        `envconfig:"QUOTATION_CATALOG_WORKBOOK_TAB" default:"Rayna_cost"`
	CacheTTL     time.Duration `envconfig:"QUOTATION_CATALOG_CACHE_TTL" default:"5m"`
	Markup       float64       `envconfig:"QUOTATION_CATALOG_MARKUP" default:"5"`
}

type SheetsConfig struct {
	APIKey  string        `envconfig:"QUOTATION_SHEETS_API_KEY"`
	SheetID string        `envconfig:"QUOTATION_SHEET_ID"`
	Range   string        `envconfig:"QUOTATION_SHEETS_RANGE" default:"Rayna_cost!A1:G1000"`
	Timeout time.Duration `envconfig:"QUOTATION_SHEETS_TIMEOUT" default:"10s"`
}

type CompanyConfig struct {
	Name            string   `envconfig:"QUOTATION_COMPANY_NAME" default:"Traverse Globe"`
	Website         string   `envconfig:"QUOTATION_COMPANY_WEBSITE" default:"www.traverseglobe.com"`
	UAEAddress      string   `envconfig:"QUOTATION_COMPANY_UAE_ADDRESS" default:"75 Arabian Square Business Centre, Al Fahidi, Dubai 12202, UAE"`
	IndiaAddress    string   `envconfig:"QUOTATION_COMPANY_INDIA_ADDRESS" default:"352, Diwan Colony, Near Virk Hospital, Karnal, Haryana, India"`
	WhatsAppNumbers []string `envconfig:"QUOTATION_COMPANY_WHATSAPP_NUMBERS" default:"919997085457,919520232324"`
}

// PrimaryWhatsApp returns the first configured WhatsApp number, if any.
func (c CompanyConfig) PrimaryWhatsApp() string {
	for _, n := range c.WhatsAppNumbers {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return ""
}

type RateLimitConfig struct {
	PDFWindow time.Duration `envconfig:"QUOTATION_RATE_LIMIT_PDF_WINDOW" default:"1m"`
	PDFLimit  int           `envconfig:"QUOTATION_RATE_LIMIT_PDF_LIMIT" default:"10"`
}

// EnsureDSN builds the DSN from the discrete QUOTATION_DB_* variables when
// QUOTATION_DB_DSN is unset.
func (db *DBConfig) EnsureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
