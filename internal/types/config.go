package types

type RunMode string

const (
	// ModeLocal runs the API server, the message router and the temporal worker in one process
	ModeLocal RunMode = "local"
	// ModeAPI is the mode for running just the API server and the message router
	ModeAPI RunMode = "api"
	// ModeTemporalWorker is the mode for running just the temporal worker
	ModeTemporalWorker RunMode = "temporal_worker"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
