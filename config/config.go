package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Values come from the
// environment (optionally loaded from a .env file) with sane defaults
// for running the provider on a desktop machine out of the box.
type Config struct {
	ListenAddr string // address of the local streaming endpoint

	LogLevel string
	LogPath  string // optional rotated log file, empty disables file output

	SettingsPath string // JSON file holding {enabled, deviceId}

	// Spectrum analyzer parameters.
	FFTLength      int           // power of two, samples per analysis window
	BandCount      int           // number of output spectrum bands
	FloorDB        float64       // dB clamp floor for normalization
	SampleRate     int           // capture sample rate requested from the device
	NotifyInterval time.Duration // cadence of spectrum frames toward consumers

	// Broadcast hub parameters.
	QueueSize       int           // outgoing message queue capacity
	SendTimeout     time.Duration // per-consumer send timeout
	ShutdownTimeout time.Duration // graceful close deadline for consumers
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as time.Duration
// (e.g. "10s", "33ms") or returns a default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables and defaults.")
	}

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", "127.0.0.1:8090"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),

		SettingsPath: getEnv("SETTINGS_PATH", "settings.json"),

		FFTLength:      getEnvInt("FFT_LENGTH", 2048),
		BandCount:      getEnvInt("BAND_COUNT", 32),
		FloorDB:        getEnvFloat("FLOOR_DB", -60),
		SampleRate:     getEnvInt("SAMPLE_RATE", 48000),
		NotifyInterval: getEnvDuration("NOTIFY_INTERVAL", 33*time.Millisecond),

		QueueSize:       getEnvInt("QUEUE_SIZE", 256),
		SendTimeout:     getEnvDuration("SEND_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}
