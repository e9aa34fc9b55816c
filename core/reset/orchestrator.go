package reset

import (
	"context"
	"net/mail"

	"github.com/kasuku/mwelekeo/core"
	"github.com/kasuku/mwelekeo/core/otp"
	"github.com/kasuku/mwelekeo/core/user"
)

// State is the position of a reset in its workflow.
type State int

const (
	StateRequestingCode State = iota
	StateCodeEntry
	StateSettingPassword
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateRequestingCode:
		return "requesting_code"
	case StateCodeEntry:
		return "code_entry"
	case StateSettingPassword:
		return "setting_password"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

// Orchestrator owns the password-reset workflow. Unlike signup, its OTP
// sessions live in a durable store: a reset may span a page navigation or
// a server restart. The session is cleared only once the password update
// has actually succeeded.
type Orchestrator struct {
	users   *user.Service
	codes   *otp.Service
	mailSvc core.EmailService
}

func NewOrchestrator(users *user.Service, codes *otp.Service, mailSvc core.EmailService) *Orchestrator {
	return &Orchestrator{users: users, codes: codes, mailSvc: mailSvc}
}

// Request dispatches a reset code to email. Unknown emails succeed
// silently; the response never reveals whether an account exists. For the
// same reason a request landing inside the resend cooldown also reports
// success: a cooldown reply would confirm the account exists.
func (o *Orchestrator) Request(ctx context.Context, email string) (State, error) {
	state, err := o.request(ctx, email)
	if err == otp.ErrResendCooldown {
		return StateCodeEntry, nil
	}
	return state, err
}

// Resend regenerates a persisted session identical in shape to the
// original; the previous code is invalidated by overwrite. Unlike Request
// it surfaces the cooldown: the caller already holds a session, so rate
// feedback leaks nothing.
func (o *Orchestrator) Resend(ctx context.Context, email string) (State, error) {
	return o.request(ctx, email)
}

func (o *Orchestrator) request(ctx context.Context, email string) (State, error) {
	email = core.CleanString(email, true /* lower */)
	if !core.IsEmail(email) {
		return StateRequestingCode, core.NewValidationError(nil,
			core.FieldError{Field: "email", Error: "invalid email address"})
	}

	usr, err := o.users.GetByEmail(ctx, email)
	if err != nil {
		if err == user.ErrNotFound {
			return StateCodeEntry, nil
		}
		return StateRequestingCode, err
	}

	if err := o.codes.Send(ctx, email, usr.FirstName, otp.PurposeReset); err != nil {
		if err == otp.ErrResendCooldown {
			return StateCodeEntry, err
		}
		return StateRequestingCode, err
	}
	return StateCodeEntry, nil
}

// VerifyCode checks the submitted code without consuming the session, so
// the password step can re-check it. Failed attempts still count toward
// the lockout.
func (o *Orchestrator) VerifyCode(ctx context.Context, email, code string) (State, error) {
	email = core.CleanString(email, true /* lower */)

	if err := o.codes.Check(ctx, email, code, otp.PurposeReset); err != nil {
		switch err {
		case otp.ErrNotFound, otp.ErrExpired, otp.ErrTooManyAttempts:
			return StateRequestingCode, err
		default:
			return StateCodeEntry, err
		}
	}
	return StateSettingPassword, nil
}

// Complete sets the new password. The code is re-checked against the
// persisted session, and the session is consumed only after the password
// update succeeds — a failed update leaves it readable for a retry.
func (o *Orchestrator) Complete(ctx context.Context, rp user.ResetUserPassword) (State, error) {
	if err := rp.Validate(); err != nil {
		return StateSettingPassword, err
	}

	if err := o.codes.Check(ctx, rp.Email, rp.Code, otp.PurposeReset); err != nil {
		switch err {
		case otp.ErrNotFound, otp.ErrExpired, otp.ErrTooManyAttempts:
			return StateRequestingCode, err
		default:
			return StateCodeEntry, err
		}
	}

	usr, err := o.users.GetByEmail(ctx, rp.Email)
	if err != nil {
		if err == user.ErrNotFound {
			// session without an account; force a fresh start
			_ = o.codes.Cancel(ctx, rp.Email, otp.PurposeReset)
			return StateRequestingCode, otp.ErrNotFound
		}
		return StateSettingPassword, err
	}

	if err := o.users.SetPassword(ctx, usr, rp.Password); err != nil {
		return StateSettingPassword, err
	}
	_ = o.codes.Consume(ctx, rp.Email, otp.PurposeReset)

	o.sendConfirmation(usr)

	return StateComplete, nil
}

// Cancel discards the persisted session.
func (o *Orchestrator) Cancel(ctx context.Context, email string) {
	email = core.CleanString(email, true /* lower */)
	_ = o.codes.Cancel(ctx, email, otp.PurposeReset)
}

func (o *Orchestrator) sendConfirmation(usr user.User) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Your password was changed",
		TemplateName: "password-changed",
		TemplateData: struct{ Name string }{usr.FirstName},
	}
	_ = o.mailSvc.SendMessages(msg)
}
