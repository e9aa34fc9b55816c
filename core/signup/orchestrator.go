package signup

import (
	"context"
	"errors"
	"net/mail"
	"sync"
	"time"

	"github.com/kasuku/mwelekeo/core"
	"github.com/kasuku/mwelekeo/core/otp"
	"github.com/kasuku/mwelekeo/core/user"
)

// State is the position of a signup in its workflow. Operations return the
// resulting state so callers never reconstruct it from loose flags.
type State int

const (
	StateFormEntry State = iota
	StateSendingCode
	StateCodePending
	StateCreatingAccount
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFormEntry:
		return "form_entry"
	case StateSendingCode:
		return "sending_code"
	case StateCodePending:
		return "code_pending"
	case StateCreatingAccount:
		return "creating_account"
	case StateDone:
		return "done"
	}
	return "unknown"
}

var ErrNoPendingSignup = errors.New("no pending signup for this email, start over")

var sweepInterval = time.Minute

type pendingSignup struct {
	form      user.NewUser
	expiresAt time.Time
}

// Orchestrator owns the signup workflow: validate form, prove email
// ownership with a one-time code, then — and only then — create the
// account. No account ever exists for an unverified email.
type Orchestrator struct {
	users   *user.Service
	codes   *otp.Service
	mailSvc core.EmailService

	mu      sync.Mutex
	pending map[string]pendingSignup
	done    chan struct{}
}

func NewOrchestrator(users *user.Service, codes *otp.Service, mailSvc core.EmailService) *Orchestrator {
	o := &Orchestrator{
		users:   users,
		codes:   codes,
		mailSvc: mailSvc,
		pending: make(map[string]pendingSignup),
		done:    make(chan struct{}),
	}
	go o.sweepExpired()
	return o
}

// Close stops the background sweeper. Pending signups are not flushed;
// they simply stop being collected.
func (o *Orchestrator) Close() {
	close(o.done)
}

// Start validates the submitted form and dispatches a verification code.
// Validation failure keeps the caller in form entry; a send failure does
// too, with no session left behind.
func (o *Orchestrator) Start(ctx context.Context, nu user.NewUser) (State, error) {
	if err := nu.Validate(o.users); err != nil {
		return StateFormEntry, err
	}

	if err := o.codes.Send(ctx, nu.Email, nu.FirstName, otp.PurposeSignup); err != nil {
		if err == otp.ErrResendCooldown {
			return StateCodePending, err
		}
		return StateFormEntry, err
	}

	o.mu.Lock()
	o.pending[nu.Email] = pendingSignup{
		form:      nu,
		expiresAt: core.NowFunc().Add(core.Conf.OTP.SignupTimeout),
	}
	o.mu.Unlock()

	return StateCodePending, nil
}

// Resend regenerates the code for a pending signup; the previous code is
// invalidated by overwrite. Subject to the resend cooldown.
func (o *Orchestrator) Resend(ctx context.Context, email string) (State, error) {
	email = core.CleanString(email, true /* lower */)

	p, ok := o.getPending(email)
	if !ok {
		return StateFormEntry, ErrNoPendingSignup
	}

	if err := o.codes.Send(ctx, email, p.form.FirstName, otp.PurposeSignup); err != nil {
		return StateCodePending, err
	}

	o.mu.Lock()
	p.expiresAt = core.NowFunc().Add(core.Conf.OTP.SignupTimeout)
	o.pending[email] = p
	o.mu.Unlock()

	return StateCodePending, nil
}

// Confirm verifies the submitted code and creates the account.
// A creation failure abandons the pending signup; the user starts over.
func (o *Orchestrator) Confirm(ctx context.Context, email, code string) (user.User, State, error) {
	email = core.CleanString(email, true /* lower */)

	p, ok := o.getPending(email)
	if !ok {
		return user.User{}, StateFormEntry, ErrNoPendingSignup
	}

	if err := o.codes.Verify(ctx, email, code, otp.PurposeSignup); err != nil {
		if err == otp.ErrTooManyAttempts || err == otp.ErrExpired {
			o.discard(email)
			return user.User{}, StateFormEntry, err
		}
		return user.User{}, StateCodePending, err
	}

	usr, err := o.users.Create(ctx, p.form)
	if err != nil {
		// the code is spent; restarting is the only way forward
		o.discard(email)
		return user.User{}, StateFormEntry, err
	}
	o.discard(email)

	o.sendWelcome(usr)

	return usr, StateDone, nil
}

// Cancel discards the pending signup and its code; no partial state survives.
func (o *Orchestrator) Cancel(ctx context.Context, email string) {
	email = core.CleanString(email, true /* lower */)
	o.discard(email)
	_ = o.codes.Cancel(ctx, email, otp.PurposeSignup)
}

func (o *Orchestrator) getPending(email string) (pendingSignup, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.pending[email]
	if !ok {
		return pendingSignup{}, false
	}
	if core.NowFunc().After(p.expiresAt) {
		delete(o.pending, email)
		return pendingSignup{}, false
	}
	return p, true
}

func (o *Orchestrator) discard(email string) {
	o.mu.Lock()
	delete(o.pending, email)
	o.mu.Unlock()
}

func (o *Orchestrator) sendWelcome(usr user.User) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: struct{ Name string }{usr.FirstName},
	}
	// best effort; the account exists either way
	_ = o.mailSvc.SendMessages(msg)
}

func (o *Orchestrator) sweepExpired() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
			now := core.NowFunc()
			o.mu.Lock()
			for email, p := range o.pending {
				if now.After(p.expiresAt) {
					delete(o.pending, email)
				}
			}
			o.mu.Unlock()
		}
	}
}
