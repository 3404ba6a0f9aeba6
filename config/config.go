package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "dev"
	EnvProduction  = "production"
)

// UsersConfig holds everything the users service needs at startup.
type UsersConfig struct {
	Env                string
	ServerPort         int
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AllowedOrigins     []string
	TrustedProxies     []string
	LoginRateLimit     RateLimitConfig
	GlobalRateLimit    RateLimitConfig
	Database           DatabaseConfig
	Logging            LoggingConfig
}

// DataConfig holds everything the data service needs at startup.
type DataConfig struct {
	Env                     string
	ServerPort              int
	APIKey                  string
	TrustedProxies          []string
	RateLimit               RateLimitConfig
	Database                DatabaseConfig
	Logging                 LoggingConfig
	Storage                 StorageConfig
	MQ                      MQConfig
	InfluxDB                InfluxDBConfig
	PredictionEventsChannel string
	PredictionIngestChannel string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
	S3      S3Config
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type MQConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
	MQTT     MQTTConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       int
}

type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether an InfluxDB endpoint was configured.
func (c InfluxDBConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// IsDevelopment reports whether the service runs in development mode.
func (c UsersConfig) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsDevelopment reports whether the service runs in development mode.
func (c DataConfig) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// MissingEnvError lists required variables that were not set.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Names, ", ")
}

// LoadUsersConfig reads the users service settings from the environment.
// Every missing required variable is reported in one MissingEnvError.
func LoadUsersConfig() (UsersConfig, error) {
	env := loadEnv()
	req := &required{}

	cfg := UsersConfig{
		Env:                env,
		ServerPort:         req.int("USER_SERVICE_PORT"),
		AccessTokenSecret:  req.string("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: req.string("REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:     getEnvDuration("ACCESS_TOKEN_TTL", 1440*time.Minute),
		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		AllowedOrigins:     splitList(req.string("ALLOWED_ORIGINS")),
		TrustedProxies:     splitList(getEnv("TRUSTED_PROXIES", "")),
		LoginRateLimit: RateLimitConfig{
			Max:    getEnvInt("LOGIN_RATE_LIMIT_MAX", 10),
			Window: getEnvDuration("LOGIN_RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		GlobalRateLimit: RateLimitConfig{
			Max:    getEnvInt("RATE_LIMIT_MAX", 100),
			Window: getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Database: usersDatabase(req),
		Logging:  loadLogging(),
	}

	if err := req.err(); err != nil {
		return UsersConfig{}, err
	}
	return cfg, nil
}

// LoadDataConfig reads the data service settings from the environment.
func LoadDataConfig() (DataConfig, error) {
	env := loadEnv()
	req := &required{}

	cfg := DataConfig{
		Env:            env,
		ServerPort:     getEnvInt("DATA_SERVICE_PORT", 5002),
		APIKey:         req.string("API_KEY"),
		TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		RateLimit: RateLimitConfig{
			Max:    getEnvInt("DATA_RATE_LIMIT_MAX", 1000),
			Window: getEnvDuration("DATA_RATE_LIMIT_WINDOW", 1440*time.Minute),
		},
		Database: dataDatabase(req),
		Logging:  loadLogging(),
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "none")),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "moisture-predictions"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
			S3: S3Config{
				Bucket:    getEnv("S3_BUCKET", ""),
				Region:    getEnv("S3_REGION", "us-east-1"),
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
			},
		},
		MQ: MQConfig{
			Backend: strings.ToLower(getEnv("MQ_BACKEND", "none")),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
			MQTT: MQTTConfig{
				BrokerURL: getEnv("MQTT_BROKER_URL", ""),
				ClientID:  getEnv("MQTT_CLIENT_ID", "moisture-data-service"),
				Username:  getEnv("MQTT_USERNAME", ""),
				Password:  getEnv("MQTT_PASSWORD", ""),
				QoS:       getEnvInt("MQTT_QOS", 1),
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:    getEnv("INFLUX_URL", ""),
			Token:  getEnv("INFLUX_TOKEN", ""),
			Org:    getEnv("INFLUX_ORG", ""),
			Bucket: getEnv("INFLUX_BUCKET", "moisture"),
		},
		PredictionEventsChannel: getEnv("PREDICTION_EVENTS_CHANNEL", "moisture.predictions"),
		PredictionIngestChannel: getEnv("PREDICTION_INGEST_CHANNEL", ""),
	}

	if err := req.err(); err != nil {
		return DataConfig{}, err
	}
	return cfg, nil
}

// LoadUsersDatabaseConfig reads only the users database settings.
func LoadUsersDatabaseConfig() (DatabaseConfig, error) {
	loadEnv()
	req := &required{}
	cfg := usersDatabase(req)
	return cfg, req.err()
}

// LoadDataDatabaseConfig reads only the moisture database settings.
func LoadDataDatabaseConfig() (DatabaseConfig, error) {
	loadEnv()
	req := &required{}
	cfg := dataDatabase(req)
	return cfg, req.err()
}

func usersDatabase(req *required) DatabaseConfig {
	return DatabaseConfig{
		Host:     req.string("USERS_DB_HOST"),
		Port:     getEnvInt("USERS_DB_PORT", 5432),
		User:     req.string("USERS_DB_USERNAME"),
		Password: getEnv("USERS_DB_PASSWORD", ""),
		DBName:   req.string("USERS_DB_NAME"),
		UseSSL:   getEnvBool("USERS_DB_SSL", false),
	}
}

func dataDatabase(req *required) DatabaseConfig {
	return DatabaseConfig{
		Host:     req.string("DB_HOST"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     req.string("DB_USER"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   req.string("DB_NAME"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}
}

func loadEnv() string {
	env := getEnv("ENV", EnvProduction)
	if env == EnvDevelopment {
		_ = godotenv.Load()
	}
	return env
}

func loadLogging() LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}
}

// required collects the names of unset variables so they can be reported together.
type required struct {
	missing []string
}

func (r *required) string(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		r.missing = append(r.missing, key)
	}
	return value
}

func (r *required) int(key string) int {
	raw := r.string(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		r.missing = append(r.missing, fmt.Sprintf("%s (not an integer)", key))
		return 0
	}
	return value
}

func (r *required) err() error {
	if len(r.missing) == 0 {
		return nil
	}
	return &MissingEnvError{Names: r.missing}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil || value <= 0 {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
