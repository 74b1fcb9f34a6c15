package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration
	LogMode string

	// StoreDriver selects the document store backing the tracker ("postgres" or "memory").
	StoreDriver string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ChangeFeedPrefix string

	ExecutorURL             string
	ExecutorTimeout         time.Duration
	ExecutionLockTTLSeconds int

	AIAPIKey  string
	AIBaseURL string
	AIModel   string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:                 getEnv("API_PORT", "8080"),
		JWTKey:                  []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:                  time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		LogMode:                 getEnv("LOG_MODE", "development"),
		StoreDriver:             getEnv("STORE_DRIVER", StoreDriverPostgres),
		DBHost:                  getEnv("DB_HOST", "localhost"),
		DBPort:                  getEnv("DB_PORT", "5432"),
		DBUser:                  getEnv("DB_USER", "user"),
		DBPassword:              getEnv("DB_PASSWORD", "password"),
		DBName:                  getEnv("DB_NAME", "dsa_tracker_db"),
		DBSslMode:               getEnv("DB_SSLMODE", "disable"),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisDB:                 getEnvAsInt("REDIS_DB", 0),
		ChangeFeedPrefix:        getEnv("CHANGE_FEED_PREFIX", "docstore"),
		ExecutorURL:             getEnv("EXECUTOR_URL", "https://emkc.org/api/v2/piston"),
		ExecutorTimeout:         time.Duration(getEnvAsInt("EXECUTOR_TIMEOUT_SECONDS", 15)) * time.Second,
		ExecutionLockTTLSeconds: getEnvAsInt("EXECUTION_LOCK_TTL_SECONDS", 30),
		AIAPIKey:                getEnv("AI_API_KEY", ""),
		AIBaseURL:               getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		AIModel:                 getEnv("AI_MODEL", "gemini-1.5-flash"),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
