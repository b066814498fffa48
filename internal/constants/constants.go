package constants

// Session
const (
	SessionCookieName = "account_session"
	ContextKeyUserID  = "user_id"
)

// Validation
const (
	// MaxPasswordLength is bcrypt's input limit; longer passwords make
	// GenerateFromPassword fail outright.
	MaxPasswordLength = 72
	MaxUsernameLength = 150
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)
