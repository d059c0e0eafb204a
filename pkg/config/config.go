package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	HTTP         HTTPConfig
	Stock        StockConfig
	Purchasing   PurchasingConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Mail         MailConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Stock.validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.HTTP.TrustedProxyPrefixes(); err != nil {
		return nil, err
	}
	if cfg.Purchasing.NodeID < 0 || cfg.Purchasing.NodeID > 1023 {
		return nil, fmt.Errorf("%s must be between 0 and 1023", EnvPurchasingNodeID)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RETAILFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"RETAILFLOW_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RETAILFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RETAILFLOW_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"RETAILFLOW_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RETAILFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RETAILFLOW_DB_DSN"`
	Driver string `envconfig:"RETAILFLOW_DB_DRIVER" default:"postgres"`

	SQLitePath string `envconfig:"RETAILFLOW_SQLITE_PATH" default:"retailflow.db"`

	LegacyHost     string `envconfig:"RETAILFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"RETAILFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RETAILFLOW_DB_USER"`
	LegacyPassword string `envconfig:"RETAILFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"RETAILFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"RETAILFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RETAILFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RETAILFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RETAILFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RETAILFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"RETAILFLOW_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RETAILFLOW_REDIS_URL"`
	Address      string        `envconfig:"RETAILFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"RETAILFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"RETAILFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RETAILFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RETAILFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RETAILFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RETAILFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RETAILFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"RETAILFLOW_REDIS_KEY_PREFIX" default:"rf"`
}

// Enabled reports whether a redis endpoint has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// HTTPConfig tunes the API edge: CORS, the export throttle and how long
// idempotent responses are replayed.
type HTTPConfig struct {
	CORSOrigins      string        `envconfig:"RETAILFLOW_CORS_ORIGINS" default:"http://localhost:3000"`
	ExportRateLimit  int           `envconfig:"RETAILFLOW_EXPORT_RATE_LIMIT" default:"6"`
	ExportRateWindow time.Duration `envconfig:"RETAILFLOW_EXPORT_RATE_WINDOW" default:"1m"`
	IdempotencyTTL   time.Duration `envconfig:"RETAILFLOW_IDEMPOTENCY_TTL" default:"24h"`
	// TrustedProxies lists the addresses or CIDR ranges whose forwarding
	// headers are believed. Empty means the socket peer is the client.
	TrustedProxies string `envconfig:"RETAILFLOW_HTTP_TRUSTED_PROXIES"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (h HTTPConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := []netip.Prefix{}
	for _, part := range strings.Split(h.TrustedProxies, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, "/") {
			prefix, err := netip.ParsePrefix(trimmed)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", EnvHTTPTrustedProxies, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvHTTPTrustedProxies, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// OriginList splits the comma separated CORS origins.
func (h HTTPConfig) OriginList() []string {
	out := []string{}
	for _, part := range strings.Split(h.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// StockConfig tunes ledger behavior.
type StockConfig struct {
	// ConsumeSource selects which counter consumeStock depletes when the caller
	// does not say: "available" or "reserved".
	ConsumeSource        string `envconfig:"RETAILFLOW_STOCK_CONSUME_SOURCE" default:"available"`
	DefaultMinimumLevel  int    `envconfig:"RETAILFLOW_STOCK_DEFAULT_MINIMUM_LEVEL" default:"0"`
	TransactionPageLimit int    `envconfig:"RETAILFLOW_STOCK_TRANSACTION_PAGE_LIMIT" default:"100"`
	ExportMaxRows        int    `envconfig:"RETAILFLOW_STOCK_EXPORT_MAX_ROWS" default:"50000"`
}

func (s StockConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.ConsumeSource)) {
	case ConsumeSourceAvailable, ConsumeSourceReserved:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvStockConsumeSource, ConsumeSourceAvailable, ConsumeSourceReserved)
	}
	if s.DefaultMinimumLevel < 0 {
		return fmt.Errorf("%s must not be negative", EnvStockDefaultMinimumLevel)
	}
	return nil
}

// PurchasingConfig configures purchase order numbering.
type PurchasingConfig struct {
	NodeID int64 `envconfig:"RETAILFLOW_PURCHASING_NODE_ID" default:"1"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RETAILFLOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RETAILFLOW_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RETAILFLOW_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RETAILFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RETAILFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	StockTopic        string `envconfig:"RETAILFLOW_PUBSUB_STOCK_TOPIC" default:"retailflow-stock-events"`
	PurchasingTopic   string `envconfig:"RETAILFLOW_PUBSUB_PURCHASING_TOPIC" default:"retailflow-purchasing-events"`
	StockSubscription string `envconfig:"RETAILFLOW_PUBSUB_STOCK_SUBSCRIPTION"`
	// CreateMissing provisions absent topics and subscriptions at boot
	// instead of failing. Meant for the emulator and dev projects.
	CreateMissing bool `envconfig:"RETAILFLOW_PUBSUB_CREATE_MISSING" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RETAILFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RETAILFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RETAILFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"RETAILFLOW_OUTBOX_RETENTION_DAYS" default:"30"`
}

// CronConfig tunes the cron worker. Jobs optionally restricts the worker to a
// comma separated set of job names.
type CronConfig struct {
	Interval    time.Duration `envconfig:"RETAILFLOW_CRON_INTERVAL" default:"24h"`
	LockTTL     time.Duration `envconfig:"RETAILFLOW_CRON_LOCK_TTL" default:"25h"`
	JobTimeout  time.Duration `envconfig:"RETAILFLOW_CRON_JOB_TIMEOUT" default:"30m"`
	Jobs        string        `envconfig:"RETAILFLOW_CRON_JOBS"`
	DigestLimit int           `envconfig:"RETAILFLOW_CRON_DIGEST_LIMIT" default:"200"`
}

// JobList splits the comma separated job selection.
func (c CronConfig) JobList() []string {
	out := []string{}
	for _, part := range strings.Split(c.Jobs, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type MailConfig struct {
	SMTPHost   string `envconfig:"RETAILFLOW_SMTP_HOST"`
	SMTPPort   int    `envconfig:"RETAILFLOW_SMTP_PORT" default:"587"`
	SMTPUser   string `envconfig:"RETAILFLOW_SMTP_USER"`
	SMTPPass   string `envconfig:"RETAILFLOW_SMTP_PASSWORD"`
	From       string `envconfig:"RETAILFLOW_MAIL_FROM" default:"stock@retailflow.local"`
	Recipients string `envconfig:"RETAILFLOW_LOW_STOCK_RECIPIENTS"`
}

// Enabled reports whether outbound mail has enough settings to dial.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.SMTPHost) != "" && len(m.RecipientList()) > 0
}

// RecipientList splits the comma separated recipient setting.
func (m MailConfig) RecipientList() []string {
	out := []string{}
	for _, part := range strings.Split(m.Recipients, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"RETAILFLOW_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"RETAILFLOW_METRICS_PATH" default:"/metrics"`
	// Addr is the listener used by the background workers, which have no
	// API router to mount the handler on.
	Addr string `envconfig:"RETAILFLOW_METRICS_ADDR" default:":9102"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		return nil
	}
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
