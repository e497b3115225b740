package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// NodeNumber identifies this processing node in the cluster. Every
	// response and every ledger row carries it so that cluster behavior can
	// be verified from the outside.
	NodeNumber int64

	HTTPAddr string

	Logger LoggerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Redis RedisConfig

	Auction AuctionConfig
}

type LoggerConfig struct {
	Level string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuctionConfig carries the bid-arbitration timing policy. All durations are
// measured on the simulated clock, not wall time.
type AuctionConfig struct {
	// SimulatedStart is the simulated time the benchmark run pretends to
	// begin at. The offset between it and the real boot time is agreed
	// cluster-wide, first writer wins.
	SimulatedStart time.Time

	// LastCallAfter is how long an item may sit without an accepted bid
	// before bidding enters last call.
	LastCallAfter time.Duration

	// SoldAfter is how long an item may sit in last call without a new
	// accepted bid before it is sold.
	SoldAfter time.Duration

	// NextBidWait bounds how long a long-poll next-bid request is parked
	// before it is released with no update.
	NextBidWait time.Duration

	// WatchdogInterval is the sweep period of the idle watchdog.
	WatchdogInterval time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	simStart := time.Now().UTC()
	if raw := strings.TrimSpace(os.Getenv("SIMULATED_START")); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			simStart = parsed.UTC()
		}
	}

	return Config{
		AppName:     getenv("APP_SERVICE", "gavel"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		NodeNumber:  getenvInt64("NODE_NUMBER", 0),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "gavel"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Auction: AuctionConfig{
			SimulatedStart:   simStart,
			LastCallAfter:    getenvDuration("AUCTION_LASTCALL_AFTER", 30*time.Second),
			SoldAfter:        getenvDuration("AUCTION_SOLD_AFTER", 30*time.Second),
			NextBidWait:      getenvDuration("NEXT_BID_WAIT", 30*time.Second),
			WatchdogInterval: getenvDuration("WATCHDOG_INTERVAL", time.Second),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
