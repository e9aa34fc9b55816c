package otp

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/kasuku/mwelekeo/core"
)

var templateNames = map[Purpose]string{
	PurposeSignup: "otp-signup",
	PurposeReset:  "otp-password-reset",
}

// Service generates, delivers and verifies one-time passcodes.
// Expiry is owned here (from config), never by the email collaborator.
type Service struct {
	store   SessionStore
	mailSvc core.EmailService
}

func NewService(store SessionStore, mailSvc core.EmailService) *Service {
	return &Service{store: store, mailSvc: mailSvc}
}

type templateData struct {
	Name    string
	Code    string
	Minutes int
}

// Send generates a fresh code for email and dispatches it. Overwrites any
// pending session (implicit invalidation of the previous code), but only
// after the resend cooldown has passed. On send failure no session is
// left active.
func (svc *Service) Send(ctx context.Context, email, name string, purpose Purpose) error {
	now := core.NowFunc()

	if prev, err := svc.store.GetSession(ctx, email, purpose); err == nil {
		if now.Before(prev.LastSentAt.Add(core.Conf.OTP.ResendCooldown)) {
			return ErrResendCooldown
		}
	} else if err != ErrNotFound {
		return errors.Wrap(err, "reading pending session")
	}

	code, err := GenerateCode()
	if err != nil {
		return errors.Wrap(err, "generating code")
	}

	ttl := core.Conf.OTP.SignupTimeout
	if purpose == PurposeReset {
		ttl = core.Conf.OTP.ResetTimeout
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: email}},
		ReplyTo:      &core.Conf.DefaultFromEmail,
		Subject:      "Your verification code",
		TemplateName: templateNames[purpose],
		TemplateData: templateData{Name: name, Code: code, Minutes: int(ttl.Minutes())},
	}
	if err := svc.mailSvc.SendMessages(msg); err != nil {
		return errors.Wrap(err, "sending code")
	}

	sess := Session{
		Email:      email,
		Purpose:    purpose,
		Code:       code,
		ExpiresAt:  now.Add(ttl),
		LastSentAt: now,
	}
	return errors.Wrap(svc.store.SetSession(ctx, sess), "storing session")
}

// Verify checks submitted against the pending session and consumes it on
// success. A session is valid only while now < expiry, for the exact code,
// for the email it was issued to; any mismatch is a plain rejection.
func (svc *Service) Verify(ctx context.Context, email, submitted string, purpose Purpose) error {
	return svc.check(ctx, email, submitted, purpose, true)
}

// Check is Verify without consuming the session; the reset flow peeks at
// the code before the new password is accepted.
func (svc *Service) Check(ctx context.Context, email, submitted string, purpose Purpose) error {
	return svc.check(ctx, email, submitted, purpose, false)
}

func (svc *Service) check(ctx context.Context, email, submitted string, purpose Purpose, consume bool) error {
	code, ok := NormalizeCode(submitted)
	if !ok {
		return ErrInvalid
	}

	sess, err := svc.store.GetSession(ctx, email, purpose)
	if err != nil {
		if err == ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "reading session")
	}

	now := core.NowFunc()
	if now.After(sess.ExpiresAt) {
		_ = svc.store.DeleteSession(ctx, email, purpose)
		return ErrExpired
	}

	if sess.Attempts >= core.Conf.OTP.MaxAttempts {
		_ = svc.store.DeleteSession(ctx, email, purpose)
		return ErrTooManyAttempts
	}

	if sess.Code != code {
		sess.Attempts++
		if sess.Attempts >= core.Conf.OTP.MaxAttempts {
			_ = svc.store.DeleteSession(ctx, email, purpose)
			return ErrTooManyAttempts
		}
		if err := svc.store.SetSession(ctx, sess); err != nil {
			return errors.Wrap(err, "recording failed attempt")
		}
		return ErrInvalid
	}

	if consume {
		_ = svc.store.DeleteSession(ctx, email, purpose)
	}
	return nil
}

// Cancel discards any pending session; nothing survives.
func (svc *Service) Cancel(ctx context.Context, email string, purpose Purpose) error {
	return svc.store.DeleteSession(ctx, email, purpose)
}

// Consume removes a verified session; used by flows that Check first and
// finish later.
func (svc *Service) Consume(ctx context.Context, email string, purpose Purpose) error {
	return svc.store.DeleteSession(ctx, email, purpose)
}
