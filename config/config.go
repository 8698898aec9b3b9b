package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Observ    ObservabilityConfig
	Inventory InventoryConfig
}

type ServerConfig struct {
	Port string
	Env  string
	// Transport is "http" (gin + MCP at /mcp) or "stdio" (MCP over stdin/stdout).
	Transport string
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	LockTTLSeconds int
}

type KafkaConfig struct {
	Brokers       []string
	TopicStock    string
	TopicCommands string
	ConsumerGroup string

	// CommandMaxAttempts bounds retries of a failing command before the
	// worker stops; 0 retries until shutdown.
	CommandMaxAttempts int
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

type InventoryConfig struct {
	Timezone    string
	SeedOnEmpty bool
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	lockTTL, _ := strconv.Atoi(getEnv("REDIS_LOCK_TTL_SECONDS", "5"))
	maxAttempts, _ := strconv.Atoi(getEnv("KAFKA_COMMAND_MAX_ATTEMPTS", "5"))
	seed, _ := strconv.ParseBool(getEnv("SEED_STARTER_ITEMS", "true"))

	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnv("PORT", "8080"),
			Env:       getEnv("ENV", "development"),
			Transport: strings.ToLower(getEnv("TRANSPORT", "stdio")),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "sqlite3"),
			URL:    getEnv("DATABASE_URL", "file:inventory.db?_foreign_keys=on&_busy_timeout=5000"),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             redisDB,
			LockTTLSeconds: lockTTL,
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(getEnv("KAFKA_BROKERS", "")),
			TopicStock:         getEnv("KAFKA_TOPIC_STOCK_EVENTS", "stock-events"),
			TopicCommands:      getEnv("KAFKA_TOPIC_STOCK_COMMANDS", "stock-commands"),
			ConsumerGroup:      getEnv("KAFKA_CONSUMER_GROUP", "inventory-service-group"),
			CommandMaxAttempts: maxAttempts,
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
		Inventory: InventoryConfig{
			Timezone:    getEnv("INVENTORY_TIMEZONE", "Local"),
			SeedOnEmpty: seed,
		},
	}

	// stdout belongs to the MCP stream in stdio mode; the std logger writes to stderr.
	log.Printf("Config loaded: env=%s, transport=%s, driver=%s", cfg.Server.Env, cfg.Server.Transport, cfg.Database.Driver)
	return cfg
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
