package config

import (
	"log"
	"os"
	"strconv"
)

func getEnv(key, fallback string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return fallback
}

// Helper to get int64 env with default
func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	val, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Warning: Invalid integer %q for config %s, using default %d", valueStr, key, fallback)
		return fallback
	}
	return val
}
