package config

type Store struct{}

var _ StoreConfig = Store{}

// GetStoreBackend is "redis" or "memory"
func (Store) GetStoreBackend() string {
	return GetEnv("STORE_BACKEND", "redis")
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

// GetStoreMemoryFallback allows startup with an in-memory store when Redis is unreachable
func (Store) GetStoreMemoryFallback() bool {
	return GetEnvBool("STORE_MEMORY_FALLBACK", false)
}

type Database struct{}

var _ DatabaseConfig = Database{}

// GetDatabaseDriver is "sqlite" or "postgres"
func (Database) GetDatabaseDriver() string {
	return GetEnv("DATABASE_DRIVER", "sqlite")
}

func (Database) GetDatabaseDSN() string {
	return GetEnv("DATABASE_DSN", "file:sso.db?cache=shared")
}
