package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/asifanwar1/taskothon/domain"
)

// Interaction is one step of the login/logout dialog. Each variant carries
// exactly the fields that step needs; consumers switch exhaustively on the
// concrete type.
type Interaction interface {
	isInteraction()
}

// EmailStep asks for the account email address.
type EmailStep struct {
	Message string
}

// OTPStep asks for the one-time code sent to Email.
type OTPStep struct {
	Email   string
	Message string
}

// AlertStep reports a terminal message (success or failure) to the user.
type AlertStep struct {
	Severity string // "error" or "info"
	Text     string
}

// LogoutConfirmStep asks the user to confirm signing out.
type LogoutConfirmStep struct{}

func (EmailStep) isInteraction()         {}
func (OTPStep) isInteraction()           {}
func (AlertStep) isInteraction()         {}
func (LogoutConfirmStep) isInteraction() {}

// StepPayload renders an interaction as a wire-friendly tagged object.
func StepPayload(i Interaction) map[string]any {
	switch step := i.(type) {
	case EmailStep:
		return map[string]any{"type": "email", "message": step.Message}
	case OTPStep:
		return map[string]any{"type": "otp", "email": step.Email, "message": step.Message}
	case AlertStep:
		return map[string]any{"type": "message-alert", "severity": step.Severity, "text": step.Text}
	case LogoutConfirmStep:
		return map[string]any{"type": "logout-confirm"}
	default:
		return map[string]any{"type": "unknown"}
	}
}

// TokenIssuer is the external sync collaborator's login endpoint: it mails a
// one-time code and exchanges it for a session token. The wire protocol is
// its business, not ours.
type TokenIssuer interface {
	RequestCode(ctx context.Context, email string) error
	ExchangeCode(ctx context.Context, email, code string) (token string, err error)
}

// Flow drives the interactive sign-in dialog. It advances one step at a
// time and never leaves the user without a current step.
type Flow struct {
	issuer  TokenIssuer
	session *Service

	mu      sync.Mutex
	current Interaction
	email   string
}

// NewFlow starts a sign-in dialog at the email step.
func NewFlow(issuer TokenIssuer, session *Service) *Flow {
	return &Flow{
		issuer:  issuer,
		session: session,
		current: EmailStep{Message: "Enter your email to sign in"},
	}
}

// Current returns the step the dialog is waiting on.
func (f *Flow) Current() Interaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// SubmitEmail requests a one-time code and advances to the OTP step.
func (f *Flow) SubmitEmail(ctx context.Context, email string) (Interaction, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return f.Current(), fmt.Errorf("%w: invalid email address", domain.ErrInvalidInput)
	}
	if err := f.issuer.RequestCode(ctx, email); err != nil {
		step := AlertStep{Severity: "error", Text: "Could not send a sign-in code. Please try again."}
		f.setCurrent(step)
		return step, err
	}

	step := OTPStep{Email: email, Message: "Enter the code we sent to " + email}
	f.mu.Lock()
	f.email = email
	f.current = step
	f.mu.Unlock()
	return step, nil
}

// SubmitOTP exchanges the code for a token and begins the session.
func (f *Flow) SubmitOTP(ctx context.Context, code string) (Interaction, error) {
	f.mu.Lock()
	email := f.email
	f.mu.Unlock()
	if email == "" {
		return f.Current(), fmt.Errorf("%w: email step not completed", domain.ErrInvalidInput)
	}

	token, err := f.issuer.ExchangeCode(ctx, email, code)
	if err != nil {
		step := AlertStep{Severity: "error", Text: "Invalid code. Please try again."}
		f.setCurrent(step)
		return step, err
	}
	if err := f.session.BeginSession(ctx, token); err != nil {
		step := AlertStep{Severity: "error", Text: "Sign-in failed. Please try again."}
		f.setCurrent(step)
		return step, err
	}

	step := AlertStep{Severity: "info", Text: "Signed in as " + email}
	f.setCurrent(step)
	return step, nil
}

// RequestLogout advances to the confirmation step.
func (f *Flow) RequestLogout() Interaction {
	step := LogoutConfirmStep{}
	f.setCurrent(step)
	return step
}

// ConfirmLogout ends the session and restarts the dialog at the email step.
func (f *Flow) ConfirmLogout(ctx context.Context) (Interaction, error) {
	if err := f.session.EndSession(ctx); err != nil {
		step := AlertStep{Severity: "error", Text: "Sign-out failed. Please try again."}
		f.setCurrent(step)
		return step, err
	}
	step := EmailStep{Message: "Enter your email to sign in"}
	f.setCurrent(step)
	return step, nil
}

func (f *Flow) setCurrent(i Interaction) {
	f.mu.Lock()
	f.current = i
	f.mu.Unlock()
}
