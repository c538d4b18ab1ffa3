package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Storage backend identifiers.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Events backend identifiers.
const (
	EventsNone     = "none"
	EventsRabbitMQ = "rabbitmq"
	EventsPubSub   = "pubsub"
)

type Config struct {
	ServerPort   int
	StoreBackend string
	Database     DatabaseConfig
	Mongo        MongoConfig
	Auth         AuthConfig
	Events       EventsConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type MongoConfig struct {
	URI    string
	DBName string
}

type AuthConfig struct {
	JWTSecret string
	// TokenTTLMinutes is the token expiry horizon. The default matches
	// the original deployment's 100000-minute (~69 day) window.
	TokenTTLMinutes int
}

type EventsConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL          string
	QueueDurable bool
}

type PubSubConfig struct {
	ProjectID       string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	return Config{
		ServerPort:   getEnvInt("SERVER_PORT", 8000),
		StoreBackend: getEnv("STORE_BACKEND", BackendPostgres),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "tasktrac"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "tasktrac_db"),
			UseSSL:   getEnvBool("DB_USE_SSL", false),
		},
		Mongo: MongoConfig{
			URI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
			DBName: getEnv("MONGO_DB", "tasktrac_db"),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			TokenTTLMinutes: getEnvInt("TOKEN_TTL_MINUTES", 100000),
		},
		Events: EventsConfig{
			Backend: getEnv("EVENTS_BACKEND", EventsNone),
			RabbitMQ: RabbitMQConfig{
				URL:          getEnv("RABBITMQ_URL", ""),
				QueueDurable: getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			},
			PubSub: PubSubConfig{
				ProjectID:       getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile: getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			},
		},
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
	if value, exists := os.LookupEnv(key); exists {
		return value == "true" || value == "1"
	}
	return defaultValue
}
