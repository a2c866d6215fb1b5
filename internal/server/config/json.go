package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/healthchat/internal/flagx"
	"github.com/dmitrijs2005/healthchat/internal/timex"
)

// JsonConfig is the DTO for JSON config files. Durations use timex.Duration
// so they can be written as "1m" or as integer nanoseconds.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	GRPCAddr                     string         `json:"grpc_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	LogLevel                     string         `json:"log_level"`
	LLMBaseURL                   string         `json:"llm_base_url"`
	LLMAPIKey                    string         `json:"llm_api_key"`
	LLMModel                     string         `json:"llm_model"`
	StreamIdleTimeout            timex.Duration `json:"stream_idle_timeout"`
	RedisURL                     string         `json:"redis_url"`
	ContextTTL                   timex.Duration `json:"context_ttl"`
	MaxUploadSize                int64          `json:"max_upload_size"`
	CORSOrigins                  []string       `json:"cors_origins"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson loads the JSON file named by -c/-config (if any) and copies every
// field that is present in the file into config. Panics on unreadable files
// or invalid JSON.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	overlay(&config.HTTPAddr, c.HTTPAddr)
	overlay(&config.GRPCAddr, c.GRPCAddr)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration.Duration)
	overlay(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration.Duration)
	overlay(&config.LogLevel, c.LogLevel)
	overlay(&config.LLMBaseURL, c.LLMBaseURL)
	overlay(&config.LLMAPIKey, c.LLMAPIKey)
	overlay(&config.LLMModel, c.LLMModel)
	overlay(&config.StreamIdleTimeout, c.StreamIdleTimeout.Duration)
	overlay(&config.RedisURL, c.RedisURL)
	overlay(&config.ContextTTL, c.ContextTTL.Duration)
	overlay(&config.MaxUploadSize, c.MaxUploadSize)
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	overlay(&config.S3RootUser, c.S3RootUser)
	overlay(&config.S3RootPassword, c.S3RootPassword)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
