package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/healthchat/internal/flagx"
	"github.com/joho/godotenv"
)

// loadDotenv is a seam for godotenv.Load.
var loadDotenv = godotenv.Load

// parseEnv overlays Config with environment variables. A dotenv file named by
// -env (or ./.env when present) is loaded first; variables already set in the
// process environment win over the file.
//
// A missing ./.env is fine, an explicitly requested file that cannot be read panics.
func parseEnv(cfg *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := loadDotenv(path); err != nil {
			panic(err)
		}
	} else if err := loadDotenv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.GRPCAddr, "GRPC_ADDR")
	setString(&cfg.DatabaseDSN, "DATABASE_DSN")
	setString(&cfg.SecretKey, "SECRET_KEY")
	setDuration(&cfg.AccessTokenValidityDuration, "ACCESS_TOKEN_VALIDITY")
	setDuration(&cfg.RefreshTokenValidityDuration, "REFRESH_TOKEN_VALIDITY")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMAPIKey, "GROQ_API_KEY")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setDuration(&cfg.StreamIdleTimeout, "STREAM_IDLE_TIMEOUT")
	setString(&cfg.RedisURL, "REDIS_URL")
	setDuration(&cfg.ContextTTL, "CONTEXT_TTL")
	if v, ok := os.LookupEnv("MAX_UPLOAD_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		cfg.MaxUploadSize = n
	}
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok && v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	setString(&cfg.S3RootUser, "S3_ROOT_USER")
	setString(&cfg.S3RootPassword, "S3_ROOT_PASSWORD")
	setString(&cfg.S3Bucket, "S3_BUCKET")
	setString(&cfg.S3Region, "S3_REGION")
	setString(&cfg.S3BaseEndpoint, "S3_BASE_ENDPOINT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
