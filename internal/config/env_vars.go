package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	baseURLVar    = "BASE_URL"
	sentryDSNVar  = "SENTRY_DSN"
	adminEmailVar = "BOOTSTRAP_ADMIN_EMAIL"
	adminPassVar  = "BOOTSTRAP_ADMIN_PASSWORD"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Rehab SSO")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the base URL for the SSO server (e.g., "https://sso.example.com")
// This is the token issuer and the prefix of every discovery endpoint
func (EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(GetEnv(baseURLVar, "http://localhost:8080"), "/")
}

func (EnvVars) GetSentryDSN() string {
	return GetEnv(sentryDSNVar, "")
}

func (EnvVars) GetBootstrapAdminEmail() string {
	return GetEnv(adminEmailVar, "")
}

func (EnvVars) GetBootstrapAdminPassword() string {
	return GetEnv(adminPassVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvMillis reads a duration expressed in milliseconds
func GetEnvMillis(envVar string, defaultValue time.Duration) time.Duration {
	value, err := strconv.ParseInt(os.Getenv(envVar), 10, 64)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return time.Duration(value) * time.Millisecond
}

// GetEnvDuration reads a Go duration string such as "15m"
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
