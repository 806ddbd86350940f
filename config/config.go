package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	LogLevel   string
	LogPretty  bool
	Database   DatabaseConfig
	Events     EventsConfig
	Storage    StorageConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// EventsConfig selects and configures the lifecycle-event broker.
// Backend is "pubsub", "rabbitmq", or empty to disable publication.
type EventsConfig struct {
	Backend  string
	Topic    string
	PubSub   PubSubConfig
	RabbitMQ RabbitMQConfig
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

// StorageConfig selects and configures the avatar object store.
// Backend is "gcs", "minio", or empty to disable avatar endpoints.
type StorageConfig struct {
	Backend       string
	PublicBaseURL string
	GCS           GCSConfig
	Minio         MinioConfig
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "accounthub"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "accounthub_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	eventsConfig := EventsConfig{
		Backend: getEnv("EVENTS_BACKEND", ""),
		Topic:   getEnv("EVENTS_TOPIC", "user-events"),
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTODELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 1),
		},
	}

	storageConfig := StorageConfig{
		Backend:       getEnv("STORAGE_BACKEND", ""),
		PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "avatars"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogPretty:  getEnvBool("LOG_PRETTY", false),
		Database:   dbConfig,
		Events:     eventsConfig,
		Storage:    storageConfig,
	}
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
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
