package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the environment-sourced part of the configuration: broker and
// Telegram credentials plus a few machine-local knobs. Strategy profiles live
// in the YAML settings file (see settings.go).
type Config struct {
	Version string

	MaxLogSizeMB  int64
	MaxLogBackups int

	SettingsFile string

	TelegramBotToken string
	TelegramChatID   string
}

// Load reads a .env file if present (system environment wins) and validates
// that the required secrets exist. Missing required variables terminate the
// process here, at startup; nothing else in the program is allowed to Fatal.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	requiredSecretVars := []string{
		"APCA_API_KEY_ID",
		"APCA_API_SECRET_KEY",
		"APCA_API_BASE_URL",
		"TELEGRAM_BOT_TOKEN",
		"TELEGRAM_CHAT_ID",
	}

	var missing []string
	for _, key := range requiredSecretVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("CRITICAL: Missing required environment variables: %v", missing)
	}

	for _, key := range requiredSecretVars {
		log.Printf("%s=%s", key, mask(os.Getenv(key)))
	}

	return &Config{
		MaxLogSizeMB:     getEnvAsInt64("REBAL_MAX_LOG_SIZE_MB", 10),
		MaxLogBackups:    int(getEnvAsInt64("REBAL_MAX_LOG_BACKUPS", 3)),
		SettingsFile:     getEnv("REBAL_SETTINGS_FILE", "strategies.yaml"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
	}
}

// mask hides a secret value, keeping only the last 4 characters.
func mask(val string) string {
	if len(val) <= 4 {
		return "***"
	}
	return "***" + val[len(val)-4:]
}
