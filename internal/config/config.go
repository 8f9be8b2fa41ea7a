package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

type Config struct {
	APIPort    string
	LogLevel   string
	H2CEnabled bool

	LLMProvider string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	OpenAIBaseURL    string
	OpenAIAPIKey     string
	OpenAIChatModel  string
	OpenAIEmbedModel string

	QdrantURL        string
	QdrantCollection string

	RAGTopK         int
	GenMaxTokens    int
	GenTemperature  float64
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration

	RetryMaxAttempts int
	BreakerEnabled   bool

	SpellDictionaryPath string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	JWTSecret string
	JWTTTL    time.Duration
	UsersFile string

	APIRateLimitRPS    float64
	APIRateLimitBurst  int
	APIMaxInFlight     int
	APIQueueWait       time.Duration
	CORSAllowedOrigins []string

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:    mustEnv("API_PORT", "8080"),
		LogLevel:   mustEnv("LOG_LEVEL", "info"),
		H2CEnabled: mustEnvBool("API_H2C_ENABLED", false),

		LLMProvider: strings.ToLower(mustEnv("LLM_PROVIDER", ProviderOllama)),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		OpenAIBaseURL:    mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     mustEnv("OPENAI_API_KEY", ""),
		OpenAIChatModel:  mustEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: mustEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "fault_history"),

		RAGTopK:         mustEnvInt("RAG_TOP_K", 3),
		GenMaxTokens:    mustEnvInt("GEN_MAX_TOKENS", 800),
		GenTemperature:  mustEnvFloat("GEN_TEMPERATURE", 0.2),
		EmbedTimeout:    mustEnvDuration("EMBED_TIMEOUT", 10*time.Second),
		SearchTimeout:   mustEnvDuration("SEARCH_TIMEOUT", 5*time.Second),
		GenerateTimeout: mustEnvDuration("GENERATE_TIMEOUT", 60*time.Second),

		RetryMaxAttempts: mustEnvInt("RETRY_MAX_ATTEMPTS", 2),
		BreakerEnabled:   mustEnvBool("BREAKER_ENABLED", true),

		SpellDictionaryPath: mustEnv("SPELL_DICTIONARY_PATH", ""),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "faults.ingest"),

		JWTSecret: mustEnv("JWT_SECRET", ""),
		JWTTTL:    mustEnvDuration("JWT_TTL", 12*time.Hour),
		UsersFile: mustEnv("USERS_FILE", "./configs/users.yaml"),

		APIRateLimitRPS:    mustEnvFloat("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst:  mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:     mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIQueueWait:       mustEnvDuration("API_QUEUE_WAIT", 2*time.Second),
		CORSAllowedOrigins: mustEnvList("CORS_ALLOWED_ORIGINS", nil),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
