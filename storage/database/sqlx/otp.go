package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/kasuku/mwelekeo/core/otp"
)

// sessionStore keeps pending verification codes in the database so a
// password-reset session survives server restarts.
type sessionStore struct {
	db *sqlx.DB
}

var _ otp.SessionStore = (*sessionStore)(nil)

func NewSessionStore(db *sqlx.DB) *sessionStore {
	return &sessionStore{db: db}
}

func (s sessionStore) GetSession(ctx context.Context, email string, purpose otp.Purpose) (otp.Session, error) {
	var sess otp.Session
	err := s.db.GetContext(
		ctx, &sess,
		`SELECT * FROM otp_session WHERE lower(email) = lower($1) AND purpose = $2`,
		email, purpose,
	)
	if err == sql.ErrNoRows {
		return otp.Session{}, otp.ErrNotFound
	}
	if err != nil {
		return otp.Session{}, err
	}
	return sess, nil
}

func (s sessionStore) SetSession(ctx context.Context, sess otp.Session) error {
	// the (email, purpose) key is case-insensitive
	sess.Email = strings.ToLower(sess.Email)
	_, err := s.db.NamedExecContext(
		ctx,
		`INSERT INTO otp_session (email, purpose, code, expires_at, attempts, last_sent_at)
		 VALUES (:email, :purpose, :code, :expires_at, :attempts, :last_sent_at)
		 ON CONFLICT (email, purpose) DO UPDATE
		 SET code = :code, expires_at = :expires_at, attempts = :attempts, last_sent_at = :last_sent_at`,
		sess,
	)
	return err
}

func (s sessionStore) DeleteSession(ctx context.Context, email string, purpose otp.Purpose) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM otp_session WHERE lower(email) = lower($1) AND purpose = $2`,
		email, purpose,
	)
	return err
}
