package config

const EnvPrefix = "RETAILFLOW"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ConsumeSourceAvailable = "available"
	ConsumeSourceReserved  = "reserved"
)

const (
	EnvAppEnv                   = "RETAILFLOW_APP_ENV"
	EnvPort                     = "RETAILFLOW_APP_PORT"
	EnvDBDSN                    = "RETAILFLOW_DB_DSN"
	EnvDBHost                   = "RETAILFLOW_DB_HOST"
	EnvDBUser                   = "RETAILFLOW_DB_USER"
	EnvDBName                   = "RETAILFLOW_DB_NAME"
	EnvRedisURL                 = "RETAILFLOW_REDIS_URL"
	EnvUseSQLite                = "RETAILFLOW_USE_SQLITE"
	EnvStockConsumeSource       = "RETAILFLOW_STOCK_CONSUME_SOURCE"
	EnvStockDefaultMinimumLevel = "RETAILFLOW_STOCK_DEFAULT_MINIMUM_LEVEL"
	EnvPurchasingNodeID         = "RETAILFLOW_PURCHASING_NODE_ID"
	EnvPubSubStockTopic         = "RETAILFLOW_PUBSUB_STOCK_TOPIC"
	EnvPubSubStockSubscription  = "RETAILFLOW_PUBSUB_STOCK_SUBSCRIPTION"
	EnvLowStockRecipients       = "RETAILFLOW_LOW_STOCK_RECIPIENTS"
	EnvSMTPHost                 = "RETAILFLOW_SMTP_HOST"
	EnvHTTPTrustedProxies       = "RETAILFLOW_HTTP_TRUSTED_PROXIES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
