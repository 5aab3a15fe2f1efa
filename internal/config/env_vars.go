package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	apiURLVar   = "DEEPSIGHT_API_URL"
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	logLevelVar = "DEEPSIGHT_LOG_LEVEL"
)

type EnvVars struct {
	file *File
}

var _ EnvConfig = EnvVars{}

// GetAPIURL returns the base URL of the DeepSight API without a trailing slash
// (e.g., "https://deepsight.example.com/api/v1").
func (e EnvVars) GetAPIURL() string {
	return strings.TrimRight(pick(apiURLVar, e.file.api().URL, "http://localhost:8000/api/v1"), "/")
}

func (e EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "DeepSight")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv(envVar)
	if env == "" {
		return "DEV"
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	return pick(logLevelVar, e.file.logLevel(), "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// pick resolves a setting: environment first, then the config file, then the default.
func pick(envVar, fileValue, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

func pickDuration(envVar, fileValue string, defaultValue time.Duration) time.Duration {
	raw := pick(envVar, fileValue, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func pickInt(envVar string, fileValue, defaultValue int) int {
	if raw := os.Getenv(envVar); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	if fileValue != 0 {
		return fileValue
	}
	return defaultValue
}
