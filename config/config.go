package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Sales    SalesConfig
	AMQP     AMQPConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type AuthConfig struct {
	JWTSecret string
}

// SalesConfig 開賣流程參數：入場速率、購買時窗、輪詢間隔
type SalesConfig struct {
	AdmissionsPerMinute int
	AdmissionInterval   time.Duration
	PurchaseWindow      time.Duration
	GraceDelay          time.Duration
	PollMin             time.Duration
	PollMax             time.Duration
}

type AMQPConfig struct {
	URL      string // 空字串表示不發送生命週期事件
	Exchange string
}

var AppConfig *Config

func LoadConfig() *Config {
	// .env 不存在時直接使用環境變數
	_ = godotenv.Load()

	AppConfig = &Config{
		Database: GetDatabaseConfig(),
		Redis:    GetRedisConfig(),
		Server:   GetServerConfig(),
		Auth:     AuthConfig{JWTSecret: getEnv("JWT_SECRET", "")},
		Sales:    GetSalesConfig(),
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "sales_window"),
		},
	}

	return AppConfig
}

func LoadTestConfig() *Config {
	testConfig := &DatabaseConfig{
		Host:     "localhost",
		Port:     "5433", // 測試 DB 用 5433 port
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	testRedisConfig := RedisConfig{
		Host:     "localhost",
		Port:     "6380", // 測試 Redis 用 6380 port
		Password: "",
		DB:       1,
	}

	return &Config{
		Database: *testConfig,
		Redis:    testRedisConfig,
		Server:   ServerConfig{Port: "8080", AllowedOrigins: []string{"*"}},
		Auth:     AuthConfig{JWTSecret: "test-secret"},
		Sales:    DefaultSalesConfig(),
		AMQP:     AMQPConfig{Exchange: "sales_window"},
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func GetRedisConfig() RedisConfig {
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		panic(err)
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func GetServerConfig() ServerConfig {
	origins := strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return ServerConfig{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: origins,
	}
}

// DefaultSalesConfig 每分鐘放行 10 人、購買時窗 10 分鐘
func DefaultSalesConfig() SalesConfig {
	return SalesConfig{
		AdmissionsPerMinute: 10,
		AdmissionInterval:   6 * time.Second,
		PurchaseWindow:      10 * time.Minute,
		GraceDelay:          3 * time.Second,
		PollMin:             5 * time.Second,
		PollMax:             10 * time.Second,
	}
}

func GetSalesConfig() SalesConfig {
	def := DefaultSalesConfig()
	admissions, err := strconv.Atoi(getEnv("SALES_ADMISSIONS_PER_MINUTE", strconv.Itoa(def.AdmissionsPerMinute)))
	if err != nil || admissions <= 0 {
		panic("invalid SALES_ADMISSIONS_PER_MINUTE")
	}

	return SalesConfig{
		AdmissionsPerMinute: admissions,
		AdmissionInterval:   getDuration("SALES_ADMISSION_INTERVAL", def.AdmissionInterval),
		PurchaseWindow:      getDuration("SALES_PURCHASE_WINDOW", def.PurchaseWindow),
		GraceDelay:          getDuration("SALES_GRACE_DELAY", def.GraceDelay),
		PollMin:             getDuration("SALES_POLL_MIN", def.PollMin),
		PollMax:             getDuration("SALES_POLL_MAX", def.PollMax),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		panic("invalid duration for " + key)
	}
	return d
}
