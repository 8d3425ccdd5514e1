package errors

import "errors"

// Auth & accounts
var (
	ErrUsernameTaken        = errors.New("username already taken")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrInvalidUsername      = errors.New("invalid username")
	ErrWeakPassword         = errors.New("password too short")
	ErrTooManyAttempts      = errors.New("too many failed login attempts")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserBanned           = errors.New("user is banned")
	ErrInvalidUserStatus    = errors.New("invalid user status")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAdminNotFound        = errors.New("admin not found")
	ErrAdminDisabled        = errors.New("admin account disabled")
	ErrInvalidAdminPassword = errors.New("invalid admin credentials")
)

// Matchmaking
var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrInvalidGameType = errors.New("game type must not be empty")
	ErrNotInQueue      = errors.New("not in queue")
)

// Games
var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameAccessDenied = errors.New("game access denied")
	ErrGameFinished     = errors.New("game already finished")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrInvalidOutcome   = errors.New("invalid game outcome")
)

// Catalog
var (
	ErrGameTypeNotFound = errors.New("game type not found")
	ErrGameTypeExists   = errors.New("game type already exists")
)
