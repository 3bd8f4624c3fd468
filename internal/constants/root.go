package constants

import "time"

const (
	AppName            = "habitd"
	Version            = "v0.1.0"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/habitd/habitd.db"
	DefaultConfigFile  = "~/.config/habitd/config.yaml"
	DefaultDataDir     = "~/.config/habitd"
	DefaultEnvFile     = ".env"
	EnvPrefix          = "HABITD"

	// Keyring entries
	KeyringDatabase   = DefaultKeyringUser
	KeyringAuthSecret = "auth-secret"

	// DateFormat is the calendar-day format used for every log entry (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// DefaultTimezone is the reference timezone for "today" and "yesterday"
	DefaultTimezone = "UTC"

	// Server defaults
	DefaultListenAddr      = ":3000"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// Habit constraints
	MaxHabitTitleLength = 100

	// Freeze economy
	RepairCost        = 1
	FreezesPerAdWatch = 1

	// Log statuses
	LogStatusCompleted = "completed"
	LogStatusFrozen    = "frozen"

	// User-facing messages
	MsgTitleRequired       = "Title required"
	MsgTitleTooLong        = "Title must be at most 100 characters"
	MsgNotAuthorized       = "Not authorized"
	MsgNotEnoughFreezes    = "Not enough freezes! Watch an ad."
	MsgStreakFrozen        = "Streak frozen! -1 Inventory"
	MsgAdWatched           = "Ad watched! +1 Freeze"
	MsgAlreadyLogged       = "Yesterday is already logged"
	MsgServerError         = "Server Error"
	MsgUnauthenticated     = "Unauthenticated"
	MsgMissingAuthHeader   = "No Authorization header"
	MsgInvalidAuthHeader   = "Invalid Authorization header format"
	MsgInvalidRequestBody  = "Invalid request body"
	DefaultSyncedUserEmail = "clerk_user"
)

// DefaultAllowedOrigins is used when no CORS origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173"}
