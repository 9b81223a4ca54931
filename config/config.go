package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	BaseURL    string
	CORSOrigin string
	Database   DatabaseConfig
	SMTP       SMTPConfig
	Gemini     GeminiConfig
}

type DatabaseConfig struct {
	URI    string
	DBName string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		URI:    getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName: getEnv("MONGODB_DATABASE", "whisperbox"),
	}

	smtpConfig := SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     getEnvInt("SMTP_PORT", 587),
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", "onboarding@whisperbox.dev"),
	}

	geminiConfig := GeminiConfig{
		APIKey: getEnv("GEMINI_API_KEY", ""),
		Model:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		BaseURL:    getEnv("BASE_URL", "http://localhost:8080"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
		Database:   dbConfig,
		SMTP:       smtpConfig,
		Gemini:     geminiConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}
