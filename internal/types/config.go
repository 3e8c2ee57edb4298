package types

type RunMode string

const (
	// ModeLocal runs the API server, the expiry reaper and the message router in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server and the message router
	ModeAPI RunMode = "api"
	// ModeReaper runs just the expiry reaper
	ModeReaper RunMode = "reaper"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// StorageDriver selects the repository implementation
type StorageDriver string

const (
	StorageDriverPostgres StorageDriver = "postgres"
	StorageDriverMemory   StorageDriver = "memory"
)

// CacheDriver selects the cache implementation
type CacheDriver string

const (
	CacheDriverMemory CacheDriver = "memory"
	CacheDriverRedis  CacheDriver = "redis"
)
