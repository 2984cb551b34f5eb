package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process-wide, environment-sourced configuration. The LLM
// API key is a hard precondition at invocation time; missing Langfuse
// credentials silently disable remote template discovery and tracing.
type Config struct {
	Port      string
	APIKey    string
	Model     string
	PromptDir string

	Langfuse LangfuseConfig
	RunStore RunStoreConfig
	Artifact ArtifactConfig
}

type LangfuseConfig struct {
	Host      string
	PublicKey string
	SecretKey string
}

// Enabled reports whether the full credential triple is present.
func (c LangfuseConfig) Enabled() bool {
	return c.Host != "" && c.PublicKey != "" && c.SecretKey != ""
}

type RunStoreConfig struct {
	DSN string
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = ":8081"
	} else if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &Config{
		Port:      port,
		APIKey:    firstNonEmpty(env("GEMINI_API_KEY"), env("GOOGLE_API_KEY")),
		Model:     env("PRESSDESK_MODEL"),
		PromptDir: firstNonEmpty(env("PROMPT_DIR"), "prompts"),
		Langfuse: LangfuseConfig{
			Host:      firstNonEmpty(env("LANGFUSE_HOST"), env("LANGFUSE_BASE_URL")),
			PublicKey: env("LANGFUSE_PUBLIC_KEY"),
			SecretKey: env("LANGFUSE_SECRET_KEY"),
		},
		RunStore: RunStoreConfig{
			DSN: env("RUN_STORE_PG_DSN"),
		},
		Artifact: loadArtifactConfig(),
	}, nil
}

func loadArtifactConfig() ArtifactConfig {
	endpoint := env("ARTIFACT_S3_ENDPOINT")
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(env("ARTIFACT_S3_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(env("ARTIFACT_S3_ACCESS_KEY"), env("MINIO_ROOT_USER")),
		SecretKey: firstNonEmpty(env("ARTIFACT_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD")),
		Bucket:    firstNonEmpty(env("ARTIFACT_S3_BUCKET"), "pressdesk-artifacts"),
		UseSSL:    boolEnv("ARTIFACT_S3_USE_SSL", true),
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func boolEnv(key string, fallback bool) bool {
	raw := env(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
