package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ModelRate is the price per one million tokens for a model.
type ModelRate struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	AIAPIKey      string
	ClassifyModel string
	ResponseModel string
	VisionModel   string
	EmbedModel    string

	TicketServiceURL string
	JWTSecret        string
	AdminEmail       string
	AdminPassHash    string

	Port string

	// Pipeline tuning.
	ContextWindow int           // max events fed to the classifier
	FormCooldown  int           // assistant turns before re-offering a form kind
	CollabTimeout time.Duration // per external call
	MaxImageBytes int
	Pricing       map[string]ModelRate
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "resolva-images"),

		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),
		ClassifyModel: getEnv("CLASSIFY_MODEL", "gemini-1.5-pro"),
		ResponseModel: getEnv("RESPONSE_MODEL", "gemini-1.5-flash"),
		VisionModel:   getEnv("VISION_MODEL", "gemini-1.5-flash"),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-004"),

		TicketServiceURL: getEnv("TICKET_SERVICE_URL", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		AdminEmail:       getEnv("ADMIN_EMAIL", "admin@resolva.local"),
		AdminPassHash:    getEnv("ADMIN_PASSWORD_HASH", ""),

		Port: getEnv("PORT", "8080"),

		ContextWindow: getEnvInt("CONTEXT_WINDOW", 30),
		FormCooldown:  getEnvInt("FORM_COOLDOWN_TURNS", 2),
		CollabTimeout: time.Duration(getEnvInt("COLLAB_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxImageBytes: getEnvInt("MAX_IMAGE_BYTES", 8*1024*1024),
		Pricing:       loadPricing(),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// loadPricing reads MODEL_PRICING as a JSON object keyed by model name,
// falling back to the bundled Gemini rates.
func loadPricing() map[string]ModelRate {
	defaults := map[string]ModelRate{
		"gemini-1.5-pro":   {Input: 1.25, Output: 5.0},
		"gemini-1.5-flash": {Input: 0.075, Output: 0.3},
	}

	raw := getEnv("MODEL_PRICING", "")
	if raw == "" {
		return defaults
	}
	parsed := map[string]ModelRate{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Printf("WARN: MODEL_PRICING not valid JSON, using defaults: %v", err)
		return defaults
	}
	return parsed
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
