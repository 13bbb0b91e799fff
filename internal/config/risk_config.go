package config

import "time"

type Risk struct{}

var _ RiskConfig = Risk{}

func (Risk) GetProfileCacheSize() int {
	return GetEnvInt("PROFILE_CACHE_SIZE", 1000)
}

func (Risk) GetProfileCacheTTL() time.Duration {
	return GetEnvDuration("PROFILE_CACHE_TTL", 15*time.Minute)
}

func (Risk) GetProfileSampleSize() int {
	return GetEnvInt("PROFILE_SAMPLE_SIZE", 50)
}

func (Risk) GetFailedAttemptWindow() time.Duration {
	return time.Hour
}
