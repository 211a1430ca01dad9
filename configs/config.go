// config.go - Configuration loaded from environment variables

package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// Server Configuration
	PORT            string
	GIN_MODE        string
	LOG_LEVEL       string
	ALLOWED_ORIGINS string
	MAX_UPLOAD_MB   int
	MAX_CONCURRENCY int // Units processed in parallel per request
	MAX_PDF_PAGES   int // 0 = unlimited
	REQUEST_TIMEOUT int // Seconds one extraction request may run; the write timeout is derived from it

	// OCR (Azure Computer Vision Read) Configuration
	OCR_ENDPOINT             string
	OCR_API_KEY              string
	OCR_API_VERSION          string
	OCR_POLL_INTERVAL_MS     int
	OCR_MAX_POLL_ATTEMPTS    int
	OCR_TIMEOUT              int // Seconds to wait for one OCR job, submission included
	OCR_HTTP_TIMEOUT         int // Seconds per HTTP call to the OCR resource
	OCR_RATE_LIMIT_TOKENS    int
	OCR_RATE_LIMIT_REFILL_MS int

	// Text cleanup Configuration
	CLEANUP_PROVIDER         string // "azure-openai", "gemini" or "none"
	CLEANUP_TIMEOUT          int    // Seconds per cleanup call
	AZURE_OPENAI_ENDPOINT    string
	AZURE_OPENAI_API_KEY     string
	AZURE_OPENAI_API_VERSION string
	AZURE_OPENAI_DEPLOYMENT  string
	GEMINI_API_KEY           string
	GEMINI_MODEL_NAME        string

	// Cleanup pricing (per 1M tokens in USD)
	CLEANUP_INPUT_PRICE_PER_MILLION  float64
	CLEANUP_OUTPUT_PRICE_PER_MILLION float64

	// Image preprocessing settings
	ENABLE_IMAGE_PREPROCESSING bool
	MAX_IMAGE_DIMENSION        int

	// MongoDB audit log (disabled when MONGO_URI is empty)
	MONGO_URI              string
	MONGO_DB_NAME          string
	MONGO_AUDIT_COLLECTION string
)

// Cleanup provider names
const (
	CleanupProviderAzureOpenAI = "azure-openai"
	CleanupProviderGemini      = "gemini"
	CleanupProviderNone        = "none"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if err := loadFromEnv(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Println("✓ Configuration loaded successfully")
}

func loadFromEnv() error {
	PORT = getEnv("PORT", "8080")
	GIN_MODE = getEnv("GIN_MODE", "debug")
	LOG_LEVEL = getEnv("LOG_LEVEL", "info")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")
	MAX_UPLOAD_MB = getEnvInt("MAX_UPLOAD_MB", 50)
	MAX_CONCURRENCY = getEnvInt("MAX_CONCURRENCY", 4)
	MAX_PDF_PAGES = getEnvInt("MAX_PDF_PAGES", 0)

	// Required: OCR endpoint and key (ENDPOINT_URL / API_KEY kept for older .env files)
	OCR_ENDPOINT = strings.TrimRight(getEnv("OCR_ENDPOINT", os.Getenv("ENDPOINT_URL")), "/")
	OCR_API_KEY = getEnv("OCR_API_KEY", os.Getenv("API_KEY"))
	if OCR_ENDPOINT == "" {
		return fmt.Errorf("OCR_ENDPOINT environment variable is required")
	}
	if OCR_API_KEY == "" {
		return fmt.Errorf("OCR_API_KEY environment variable is required")
	}

	OCR_API_VERSION = getEnv("OCR_API_VERSION", "v3.2")
	OCR_POLL_INTERVAL_MS = getEnvInt("OCR_POLL_INTERVAL_MS", 1000)
	OCR_MAX_POLL_ATTEMPTS = getEnvInt("OCR_MAX_POLL_ATTEMPTS", 120)
	OCR_TIMEOUT = getEnvInt("OCR_TIMEOUT", 120)
	OCR_HTTP_TIMEOUT = getEnvInt("OCR_HTTP_TIMEOUT", 30)
	OCR_RATE_LIMIT_TOKENS = getEnvInt("OCR_RATE_LIMIT_TOKENS", 10)       // Azure S1: 10 calls per second
	OCR_RATE_LIMIT_REFILL_MS = getEnvInt("OCR_RATE_LIMIT_REFILL_MS", 100) // one token every 100ms

	AZURE_OPENAI_ENDPOINT = strings.TrimRight(getEnv("AZURE_OPENAI_ENDPOINT", ""), "/")
	AZURE_OPENAI_API_KEY = getEnv("AZURE_OPENAI_API_KEY", "")
	AZURE_OPENAI_API_VERSION = getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01")
	AZURE_OPENAI_DEPLOYMENT = getEnv("AZURE_OPENAI_DEPLOYMENT", "")
	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	GEMINI_MODEL_NAME = getEnv("GEMINI_MODEL_NAME", "gemini-2.5-flash")

	// Default provider follows whatever credentials are present
	defaultProvider := CleanupProviderNone
	if AZURE_OPENAI_ENDPOINT != "" {
		defaultProvider = CleanupProviderAzureOpenAI
	} else if GEMINI_API_KEY != "" {
		defaultProvider = CleanupProviderGemini
	}
	CLEANUP_PROVIDER = strings.ToLower(getEnv("CLEANUP_PROVIDER", defaultProvider))
	CLEANUP_TIMEOUT = getEnvInt("CLEANUP_TIMEOUT", 60)
	REQUEST_TIMEOUT = getEnvInt("REQUEST_TIMEOUT", 300)

	switch CLEANUP_PROVIDER {
	case CleanupProviderAzureOpenAI:
		if AZURE_OPENAI_ENDPOINT == "" || AZURE_OPENAI_API_KEY == "" || AZURE_OPENAI_DEPLOYMENT == "" {
			return fmt.Errorf("CLEANUP_PROVIDER=%s requires AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY and AZURE_OPENAI_DEPLOYMENT", CLEANUP_PROVIDER)
		}
	case CleanupProviderGemini:
		if GEMINI_API_KEY == "" {
			return fmt.Errorf("CLEANUP_PROVIDER=%s requires GEMINI_API_KEY", CLEANUP_PROVIDER)
		}
	case CleanupProviderNone, "":
		CLEANUP_PROVIDER = CleanupProviderNone
	default:
		return fmt.Errorf("unsupported CLEANUP_PROVIDER: %s (supported: %s, %s, %s)",
			CLEANUP_PROVIDER, CleanupProviderAzureOpenAI, CleanupProviderGemini, CleanupProviderNone)
	}

	// gpt-4o-mini list prices
	CLEANUP_INPUT_PRICE_PER_MILLION = getEnvFloat("CLEANUP_INPUT_PRICE_PER_MILLION", 0.15)
	CLEANUP_OUTPUT_PRICE_PER_MILLION = getEnvFloat("CLEANUP_OUTPUT_PRICE_PER_MILLION", 0.60)

	ENABLE_IMAGE_PREPROCESSING = getEnvBool("ENABLE_IMAGE_PREPROCESSING", false)
	MAX_IMAGE_DIMENSION = getEnvInt("MAX_IMAGE_DIMENSION", 4200)

	MONGO_URI = getEnv("MONGO_URI", "")
	MONGO_DB_NAME = getEnv("MONGO_DB_NAME", "ocr_text_extractor")
	MONGO_AUDIT_COLLECTION = getEnv("MONGO_AUDIT_COLLECTION", "extraction_requests")

	if MAX_CONCURRENCY < 1 {
		MAX_CONCURRENCY = 1
	}
	if REQUEST_TIMEOUT < 1 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %d", REQUEST_TIMEOUT)
	}
	if OCR_POLL_INTERVAL_MS < 1 {
		return fmt.Errorf("OCR_POLL_INTERVAL_MS must be positive, got %d", OCR_POLL_INTERVAL_MS)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
