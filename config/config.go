package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/loyaltyapp/push-server/database"
	"github.com/loyaltyapp/push-server/utils"
	"golang.org/x/exp/slices"
	"k8s.io/klog/v2"
)

const (
	ProviderExpo     = "expo"
	ProviderFcm      = "fcm"
	ProviderFirebase = "firebase"
)

var Providers = []string{ProviderExpo, ProviderFcm, ProviderFirebase}

type Config struct {
	Port string

	DB database.Config

	PushProvider        string
	ExpoAccessToken     string
	ExpoApiUrl          string
	PushChunkSize       int
	ReceiptChunkSize    int
	PushConcurrency     int
	FcmApiKey           string
	FirebaseCredentials string

	SupabaseJWTSecret string
	WebhookSecret     string

	ReconcileInterval time.Duration
	DispatchDedupeTTL time.Duration

	PubsubProjectID    string
	PubsubSubscription string
	GoogleCredentials  string
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	config := &Config{
		Port: utils.GetEnv("PORT", "3000"),
		DB: database.Config{
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			Password: os.Getenv("DB_PASS"),
			User:     os.Getenv("DB_USER"),
			SSLMode:  utils.GetEnv("DB_SSLMODE", "disable"),
			DBName:   os.Getenv("DB_NAME"),
		},
		PushProvider:        utils.GetEnv("PUSH_PROVIDER", ProviderExpo),
		ExpoAccessToken:     utils.GetEnv("EXPO_ACCESS_TOKEN", ""),
		ExpoApiUrl:          utils.GetEnv("EXPO_API_URL", ""),
		PushChunkSize:       utils.GetEnvInt("PUSH_CHUNK_SIZE", 100),
		ReceiptChunkSize:    utils.GetEnvInt("RECEIPT_CHUNK_SIZE", 300),
		PushConcurrency:     utils.GetEnvInt("PUSH_CONCURRENCY", 4),
		FcmApiKey:           utils.GetEnv("FCM_API_KEY", ""),
		FirebaseCredentials: utils.GetEnv("FIREBASE_CREDENTIALS", ""),
		SupabaseJWTSecret:   utils.GetEnv("SUPABASE_JWT_SECRET", ""),
		WebhookSecret:       utils.GetEnv("WEBHOOK_SECRET", ""),
		ReconcileInterval:   time.Duration(utils.GetEnvInt("RECONCILE_INTERVAL_SECONDS", 900)) * time.Second,
		DispatchDedupeTTL:   utils.GetEnvDuration("DISPATCH_DEDUPE_TTL", 24*time.Hour),
		PubsubProjectID:     utils.GetEnv("PUBSUB_PROJECT_ID", ""),
		PubsubSubscription:  utils.GetEnv("PUBSUB_SUBSCRIPTION", ""),
		GoogleCredentials:   utils.GetEnv("GOOGLE_CREDENTIALS", ""),
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if !slices.Contains(Providers, c.PushProvider) {
		return fmt.Errorf("unknown PUSH_PROVIDER %q, expected one of %v", c.PushProvider, Providers)
	}
	if c.PushProvider == ProviderFcm && c.FcmApiKey == "" {
		return errors.New("FCM_API_KEY must be set when PUSH_PROVIDER=fcm")
	}
	if c.SupabaseJWTSecret == "" {
		klog.Warning("SUPABASE_JWT_SECRET is not set, admin and token routes will reject every request")
	}
	if c.WebhookSecret == "" {
		klog.Warning("WEBHOOK_SECRET is not set, webhook routes are unauthenticated")
	}
	return nil
}

// PubsubEnabled reports whether the Pub/Sub post trigger should run
func (c *Config) PubsubEnabled() bool {
	return c.PubsubProjectID != "" && c.PubsubSubscription != ""
}
