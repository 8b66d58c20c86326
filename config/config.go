package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config is shared by every handler factory.
type Config struct {
	Port     string
	MongoURI string
	DBName   string

	JWTSecret  string
	JWTTTL     time.Duration
	RefreshTTL time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	AppBaseURL          string

	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int
	CronEnabled    bool

	LogLevel  string
	LogFormat string

	MongoClient *mongo.Client
	Log         *logrus.Logger
}

const defaultCORSOrigins = "http://localhost:3000,http://localhost:5173"

// Load reads the environment (and .env when present) into a Config.
// It does not connect to Mongo; call Connect for that.
func Load() (*Config, error) {
	envErr := godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		MongoURI:            os.Getenv("MONGO_URI"),
		DBName:              getEnv("MONGO_DB", "localhub"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		AppBaseURL:          strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", defaultCORSOrigins)),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
	}

	if len(cfg.CORSOrigins) == 0 {
		// cors.New panics on an empty allow list
		cfg.CORSOrigins = splitList(defaultCORSOrigins)
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = getDuration("REFRESH_TTL", 720*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getInt("RATE_LIMIT_RPS", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.CronEnabled, err = getBool("CRON_ENABLED", true); err != nil {
		return nil, err
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	cfg.Log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		cfg.Log.WithError(envErr).Warn("no .env file loaded, using process environment")
	}
	if cfg.StripeSecretKey == "" {
		cfg.Log.Warn("STRIPE_SECRET_KEY not set, payment routes will fail upstream")
	}

	return cfg, nil
}

// NewLogger builds the process logger.
func NewLogger(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}
	return log
}

// Connect dials Mongo and verifies the primary is reachable.
func (c *Config) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.MongoURI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	c.MongoClient = client
	return nil
}

// Collection is a shorthand for the named collection in the app database.
func (c *Config) Collection(name string) *mongo.Collection {
	return c.MongoClient.Database(c.DBName).Collection(name)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
