package otp

import (
	"context"
	"errors"
	"time"
)

// Purpose discriminates what a code proves; a signup code cannot be
// replayed against the reset flow.
type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeReset  Purpose = "password_reset"
)

var (
	// errors
	ErrNotFound        = errors.New("no verification code pending for this email")
	ErrExpired         = errors.New("verification code has expired")
	ErrInvalid         = errors.New("invalid verification code")
	ErrTooManyAttempts = errors.New("too many failed attempts, request a new code")
	ErrResendCooldown  = errors.New("a code was sent recently, wait before requesting another")
)

// Session is the record of a pending one-time passcode: the code, its
// expiry and the email it proves ownership of. Valid for exactly one
// successful verification; consumed on success, burned on lockout.
type Session struct {
	Email      string    `json:"email" db:"email"`
	Purpose    Purpose   `json:"purpose" db:"purpose"`
	Code       string    `json:"code" db:"code"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	Attempts   int       `json:"attempts" db:"attempts"`
	LastSentAt time.Time `json:"last_sent_at" db:"last_sent_at"`
}

// SessionStore persists pending sessions. The signup flow uses an
// in-memory store; the reset flow uses a durable one so a session
// survives restarts and page navigations.
type SessionStore interface {
	// GetSession returns ErrNotFound when no session is pending.
	GetSession(ctx context.Context, email string, purpose Purpose) (Session, error)
	// SetSession overwrites any pending session for the same email+purpose.
	SetSession(ctx context.Context, sess Session) error
	DeleteSession(ctx context.Context, email string, purpose Purpose) error
}
