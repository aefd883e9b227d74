package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultGeminiBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultGeminiAPIVersion = "v1"
	DefaultGeminiModel      = "gemini-2.0-flash"
	DefaultOutputDir        = "public/models"
	DefaultConverter        = "tensorflowjs_converter"
)

// Gemini holds the settings for the generateContent endpoint.
type Gemini struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
}

// Server holds the recognition server settings.
type Server struct {
	Port             int
	FrontendURL      string
	StaticDir        string
	RecognizeTimeout time.Duration
	JWTSecret        string
	JWTAudience      string
}

// Config is the process-wide configuration, read once at startup.
type Config struct {
	Gemini    Gemini
	Server    Server
	Converter string
	LogLevel  string
}

// LoadDotEnv reads the given .env files (default ".env") into the process
// environment. Existing variables win.
func LoadDotEnv(files ...string) error {
	return godotenv.Load(files...)
}

// Load builds a Config from the environment.
func Load() *Config {
	return &Config{
		Gemini: Gemini{
			APIKey:     os.Getenv("GEMINI_API_KEY"),
			BaseURL:    getEnv("GEMINI_BASE_URL", DefaultGeminiBaseURL),
			APIVersion: getEnv("GEMINI_API_VERSION", DefaultGeminiAPIVersion),
			Model:      getEnv("GEMINI_MODEL", DefaultGeminiModel),
		},
		Server: Server{
			Port:             getEnvInt("PORT", 3005),
			FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
			StaticDir:        getEnv("STATIC_DIR", "build"),
			RecognizeTimeout: getEnvDuration("RECOGNIZE_TIMEOUT", 30*time.Second),
			JWTSecret:        os.Getenv("JWT_SECRET"),
			JWTAudience:      os.Getenv("JWT_AUDIENCE"),
		},
		Converter: getEnv("TFJS_CONVERTER", DefaultConverter),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
