package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	Schema   SchemaConfig
	Session  SessionConfig
	Document DocumentConfig
	LLM      LLMConfig
}

type SchemaConfig struct {
	// Dir overrides the embedded role schemas when set.
	Dir string
}

type SessionConfig struct {
	Dir         string
	PostgresDSN string
}

type DocumentConfig struct {
	// S3 is used when Endpoint is set, otherwise documents live under Dir.
	Dir       string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type LLMConfig struct {
	// Provider selects the model backend: "mistral" (default), "gemini"
	// or "none" for fully offline operation on the static catalogs.
	Provider      string
	MistralAPIKey string
	MistralModel  string
	GeminiAPIKey  string
	GeminiModel   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port: *port,
		Env:  env,
		Schema: SchemaConfig{
			Dir: strings.TrimSpace(os.Getenv("SCHEMA_DIR")),
		},
		Session: SessionConfig{
			Dir:         firstNonEmpty(strings.TrimSpace(os.Getenv("SESSION_STORE_DIR")), "sessions"),
			PostgresDSN: strings.TrimSpace(os.Getenv("SESSION_STORE_PG_DSN")),
		},
		Document: loadDocumentConfig(env),
		LLM:      loadLLMConfig(),
	}, nil
}

func loadDocumentConfig(env string) DocumentConfig {
	return DocumentConfig{
		Dir:       firstNonEmpty(strings.TrimSpace(os.Getenv("DOCUMENT_DIR")), "documents"),
		Endpoint:  resolveDocumentEndpoint(env),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("DOCUMENT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("DOCUMENT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("DOCUMENT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("DOCUMENT_S3_BUCKET")), "elicit-documents"),
		UseSSL:    resolveDocumentUseSSL(env),
	}
}

func resolveDocumentEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("DOCUMENT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("DOCUMENT_S3_ENDPOINT"))
}

func resolveDocumentUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("DOCUMENT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func loadLLMConfig() LLMConfig {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	mistralKey := strings.TrimSpace(os.Getenv("MISTRAL_API_KEY"))
	geminiKey := firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")))
	if provider == "" {
		switch {
		case mistralKey != "":
			provider = "mistral"
		case geminiKey != "":
			provider = "gemini"
		default:
			provider = "none"
		}
	}
	return LLMConfig{
		Provider:      provider,
		MistralAPIKey: mistralKey,
		MistralModel:  strings.TrimSpace(os.Getenv("MISTRAL_MODEL")),
		GeminiAPIKey:  geminiKey,
		GeminiModel:   strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
