package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DirectoryConfig points at the SSO directory that owns users and roles.
type DirectoryConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// PlagiarismConfig points at the external plagiarism-scanning API.
type PlagiarismConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Workers int

	// SweepInterval is how often pending scans are handed back to the workers.
	SweepInterval time.Duration
}

// StorageConfig describes where uploaded documents live and how they are served.
type StorageConfig struct {
	Root      string
	PublicURL string
}

func Directory() DirectoryConfig {
	return DirectoryConfig{
		BaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("DIRECTORY_BASE_URL")), "/"),
		Token:   strings.TrimSpace(os.Getenv("DIRECTORY_TOKEN")),
		Timeout: durationEnv("DIRECTORY_TIMEOUT", 30*time.Second),
	}
}

func Plagiarism() PlagiarismConfig {
	return PlagiarismConfig{
		BaseURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("PLAGIARISM_BASE_URL")), "/"),
		Token:         strings.TrimSpace(os.Getenv("PLAGIARISM_TOKEN")),
		Timeout:       durationEnv("PLAGIARISM_TIMEOUT", 60*time.Second),
		Workers:       intEnv("SCAN_WORKERS", 2),
		SweepInterval: durationEnv("SCAN_SWEEP_INTERVAL", 5*time.Minute),
	}
}

func Storage() StorageConfig {
	root := os.Getenv("UPLOAD_PATH")
	if root == "" {
		root = "./uploads"
	}
	appURL := strings.TrimRight(strings.TrimSpace(os.Getenv("APP_URL")), "/")
	if appURL == "" {
		appURL = "http://localhost:" + ServerPort()
	}
	return StorageConfig{Root: root, PublicURL: appURL + "/storage"}
}

func ServerPort() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return port
}

// JWTExpireHours defaults to 24 when unset or invalid.
func JWTExpireHours() int {
	return intEnv("JWT_EXPIRE_HOURS", 24)
}

// CORSAllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func CORSAllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

// durationEnv accepts Go durations ("45s") or a bare number of seconds.
func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
