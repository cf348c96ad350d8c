package config

// Default paths and schedules
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./mimeroute.db"

	// DefaultCleanupSchedule runs retention cleanup daily at 03:00
	DefaultCleanupSchedule = "0 3 * * *"

	DefaultPort = 8188
)
