package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("MONGO_DB", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("APP_BASE_URL", "https://hub.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhub", cfg.DBName)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.RateLimitRPS)
	assert.Equal(t, "https://hub.example.com", cfg.AppBaseURL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.NotNil(t, cfg.Log)
}

func TestLoad_BlankCORSOriginsFallBack(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", " , ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RATE_LIMIT_RPS", "lots")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_RPS")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}

func TestNewLogger(t *testing.T) {
	log := NewLogger("debug", "text")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	_, ok := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)

	log = NewLogger("nonsense", "json")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
