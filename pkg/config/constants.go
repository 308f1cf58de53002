package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBHost   = "STOREFRONT_DB_HOST"
	EnvDBUser   = "STOREFRONT_DB_USER"
	EnvDBName   = "STOREFRONT_DB_NAME"
	EnvDBPass   = "STOREFRONT_DB_PASSWORD"
	EnvDBPort   = "STOREFRONT_DB_PORT"
	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvOrderTxMaxAttempts = "STOREFRONT_ORDER_TX_MAX_ATTEMPTS"
	EnvGCPProjectID       = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic  = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub    = "STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvAlgoliaAppID       = "STOREFRONT_ALGOLIA_APP_ID"
	EnvAlgoliaAPIKey      = "STOREFRONT_ALGOLIA_API_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
