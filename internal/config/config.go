package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	Mapping     MappingConfig
	Document    DocumentConfig
	Gemini      GeminiConfig
	SofficePath string
	Workers     int
}

type MappingConfig struct {
	// Dir selects the file origin when no database is configured.
	Dir          string
	CacheTTL     time.Duration
	CacheEntries int
}

type DocumentConfig struct {
	Dir       string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c DocumentConfig) CanUseS3() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	MaxRetries int
}

func (c GeminiConfig) Enabled() bool { return c.APIKey != "" }

// Load reads .env, the command line and the environment, in that order of
// increasing precedence.
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("pptx", flag.ContinueOnError)
	port := fs.String("port", ":8080", "server port")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	return &Config{
		Port:        *port,
		Env:         firstNonEmpty(env("APP_ENV"), "local"),
		DatabaseURL: env("DATABASE_URL"),
		Mapping: MappingConfig{
			Dir:          env("MAPPING_STORE_DIR"),
			CacheTTL:     envDuration("MAPPING_CACHE_TTL", 10*time.Minute),
			CacheEntries: envInt("MAPPING_CACHE_ENTRIES", 256),
		},
		Document: DocumentConfig{
			Dir:       firstNonEmpty(env("DOCUMENT_STORE_DIR"), "tmp/documents"),
			Endpoint:  env("DOCUMENT_S3_ENDPOINT"),
			Region:    firstNonEmpty(env("DOCUMENT_S3_REGION"), "us-east-1"),
			AccessKey: firstNonEmpty(env("DOCUMENT_S3_ACCESS_KEY"), env("MINIO_ROOT_USER")),
			SecretKey: firstNonEmpty(env("DOCUMENT_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD")),
			Bucket:    env("DOCUMENT_S3_BUCKET"),
			UseSSL:    envBool("DOCUMENT_S3_USE_SSL", true),
		},
		Gemini: GeminiConfig{
			APIKey:     firstNonEmpty(env("GEMINI_API_KEY"), env("GOOGLE_API_KEY")),
			Model:      firstNonEmpty(env("GEMINI_MODEL"), "gemini-2.5-flash"),
			MaxRetries: envInt("VISION_MAX_RETRIES", 2),
		},
		SofficePath: env("SOFFICE_PATH"),
		Workers:     envInt("CLONE_WORKERS", 4),
	}, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(env(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env(key))
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(env(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
