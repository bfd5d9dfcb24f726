package utils

import (
	"os"
	"strconv"
	"time"

	"k8s.io/klog/v2"
)

func GetEnv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// GetEnvInt falls back when the variable is unset or not a positive integer
func GetEnvInt(key string, fallback int) int {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		klog.Warningf("Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return val
}

// GetEnvDuration accepts a Go duration string ("24h") and falls back otherwise
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		klog.Warningf("Invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return val
}
