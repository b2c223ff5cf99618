package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	Collector CollectorConfig
	Ledger    LedgerConfig
	Prices    PricesConfig
}

// ServerConfig holds settings for the local ingest HTTP server.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"SERVER_PORT" default:"8089"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	IngestKey       string        `envconfig:"INGEST_KEY" default:""` // shared key for the ingest API; empty disables auth
}

// CollectorConfig holds settings for the outbound delivery pipeline.
type CollectorConfig struct {
	URL            string        `envconfig:"COLLECTOR_URL" default:"http://api.flippingmasterminds.net/ge"`
	APIToken       string        `envconfig:"COLLECTOR_API_TOKEN" default:""`
	SendTimeout    time.Duration `envconfig:"COLLECTOR_SEND_TIMEOUT" default:"10s"`
	Debounce       time.Duration `envconfig:"COLLECTOR_DEBOUNCE" default:"200ms"`
	LoginGrace     time.Duration `envconfig:"COLLECTOR_LOGIN_GRACE" default:"3s"`
	InitialBackoff time.Duration `envconfig:"COLLECTOR_INITIAL_BACKOFF" default:"500ms"`
	MaxBackoff     time.Duration `envconfig:"COLLECTOR_MAX_BACKOFF" default:"30s"`
}

// LedgerConfig holds buy-window ledger persistence settings.
type LedgerConfig struct {
	StoreType     string        `envconfig:"LEDGER_STORE" default:"sqlite"` // memory, sqlite, mysql, or redis
	SQLitePath    string        `envconfig:"LEDGER_SQLITE_PATH" default:"./data/buylimits.db"`
	SweepInterval time.Duration `envconfig:"LEDGER_SWEEP_INTERVAL" default:"30m"`

	// MySQL settings
	MySQLHost string `envconfig:"LEDGER_MYSQL_HOST" default:"localhost"`
	MySQLPort int    `envconfig:"LEDGER_MYSQL_PORT" default:"3306"`
	MySQLName string `envconfig:"LEDGER_MYSQL_NAME" default:"gerelay"`
	MySQLUser string `envconfig:"LEDGER_MYSQL_USER" default:"root"`
	MySQLPass string `envconfig:"LEDGER_MYSQL_PASS" default:""`

	// Redis settings
	RedisHost     string `envconfig:"LEDGER_REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"LEDGER_REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"LEDGER_REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"LEDGER_REDIS_DB" default:"0"`
}

// PricesConfig holds market price dataset settings.
type PricesConfig struct {
	Enabled         bool          `envconfig:"PRICES_ENABLED" default:"true"`
	BaseURL         string        `envconfig:"PRICES_BASE_URL" default:""`
	MetaURL         string        `envconfig:"PRICES_META_URL" default:""`
	UserAgent       string        `envconfig:"PRICES_USER_AGENT" default:"ge-offer-relay"`
	RefreshInterval time.Duration `envconfig:"PRICES_REFRESH_INTERVAL" default:"1h"`
	FetchTimeout    time.Duration `envconfig:"PRICES_FETCH_TIMEOUT" default:"30s"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MySQLDSN returns the MySQL data source name for the ledger store.
func (l *LedgerConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		l.MySQLUser, l.MySQLPass, l.MySQLHost, l.MySQLPort, l.MySQLName)
}

// RedisAddress returns the Redis address for the ledger store.
func (l *LedgerConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", l.RedisHost, l.RedisPort)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.Ledger.StoreType {
	case "memory", "sqlite", "mysql", "redis":
	default:
		return nil, fmt.Errorf("invalid LEDGER_STORE %q, must be memory, sqlite, mysql, or redis", cfg.Ledger.StoreType)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
