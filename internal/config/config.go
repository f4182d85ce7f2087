package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Addr          string `validate:"required"`
	PublicDir     string `validate:"required"`
	PublicBaseURL string `validate:"omitempty,url"`

	JobStore    string `validate:"oneof=memory sqlite"`
	JobStoreDSN string

	ModelBackend   string        `validate:"oneof=identity tfserving"`
	ModelURL       string        `validate:"required_if=ModelBackend tfserving"`
	ModelName      string        `validate:"required_if=ModelBackend tfserving"`
	ModelTimeout   time.Duration `validate:"gt=0"`
	InferSerialize bool
	TargetSize     int    `validate:"gt=0,lte=4096"`
	Normalize      string `validate:"oneof=0_1 minus1_1"`

	CORSAllowedOrigins []string `validate:"dive,required"`
	MaxUploadBytes     int64    `validate:"gt=0"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`
}

// Load reads the environment, applies defaults and validates the result.
func Load() (Config, error) {
	timeout, err := getenvDuration("MODEL_TIMEOUT", 60*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse MODEL_TIMEOUT: %w", err)
	}
	targetSize, err := getenvInt("MODEL_TARGET_SIZE", 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse MODEL_TARGET_SIZE: %w", err)
	}
	maxUpload, err := getenvInt("MAX_UPLOAD_BYTES", 50<<20)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_BYTES: %w", err)
	}
	serialize, err := getenvBool("INFER_SERIALIZE", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse INFER_SERIALIZE: %w", err)
	}

	cfg := Config{
		Addr:               getenv("DEBLUR_ADDR", ":8000"),
		PublicDir:          getenv("DEBLUR_PUBLIC_DIR", "static"),
		PublicBaseURL:      strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		JobStore:           getenv("JOB_STORE", "memory"),
		JobStoreDSN:        getenv("JOB_STORE_DSN", ":memory:"),
		ModelBackend:       getenv("MODEL_BACKEND", "identity"),
		ModelURL:           os.Getenv("MODEL_URL"),
		ModelName:          getenv("MODEL_NAME", "deblur"),
		ModelTimeout:       timeout,
		InferSerialize:     serialize,
		TargetSize:         targetSize,
		Normalize:          getenv("NORMALIZE", "0_1"),
		CORSAllowedOrigins: getenvCSV("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxUploadBytes:     int64(maxUpload),
		LogLevel:           strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getenv("LOG_FORMAT", "json")),
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getenvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getenvCSV(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	values := splitCSV(raw)
	if len(values) == 0 {
		return fallback
	}
	return values
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
