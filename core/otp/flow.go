// Package otp drives phone sign-in: number entry, code dispatch and code confirmation.
package otp

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/identity"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
)

const (
	codeLength = 6

	msgInvalidPhone   = "Please enter a valid 10-digit phone number."
	msgSendFailed     = "Failed to send OTP. Please try again."
	msgCodeLength     = "Please enter the 6-digit code."
	msgInvalidCode    = "Invalid OTP. Please try again."
	msgCodeExpired    = "OTP has expired. Please request a new one."
	msgVerifyFailed   = "Failed to verify OTP. Please try again."
	msgFlowClosed     = "This sign-in has ended. Please reload the page."
	msgNoPendingCheck = "Please request a new OTP."
)

var (
	ErrWrongStep = errors.New("operation not allowed in the current step")
	ErrClosed    = errors.New("otp flow closed")
)

type Step string

const (
	StepPhone Step = "phone"
	StepOTP   Step = "otp"
	StepDone  Step = "done"
)

// Challenge is one of NoChallenge, AwaitingCode or Confirmed.
type Challenge interface {
	step() Step
}

type NoChallenge struct{}

// AwaitingCode holds the provider's handle until the user types the code.
type AwaitingCode struct {
	Confirmation identity.Confirmation
}

type Confirmed struct {
	Credential identity.Credential
}

func (NoChallenge) step() Step  { return StepPhone }
func (AwaitingCode) step() Step { return StepOTP }
func (Confirmed) step() Step    { return StepDone }

// Flow is the state of one phone sign-in. It owns its captcha verifier until Close.
type Flow struct {
	provider identity.Provider
	verifier identity.Verifier
	logger   core.Logger

	mu        sync.Mutex
	phone     string
	code      string
	challenge Challenge
	errMsg    string
	closed    bool
}

func NewFlow(provider identity.Provider, verifier identity.Verifier, logger core.Logger) *Flow {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Flow{provider: provider, verifier: verifier, logger: logger, challenge: NoChallenge{}}
}

// Step is derived from the challenge.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.challenge.step()
}

func (f *Flow) Challenge() Challenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.challenge
}

// SetPhone stores the number in its display form and returns it.
func (f *Flow) SetPhone(raw string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phone = FormatDisplay(raw)
	return f.phone
}

func (f *Flow) Phone() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phone
}

// SetCode keeps at most 6 digits.
func (f *Flow) SetCode(raw string) string {
	code := core.Digits(raw)
	if len(code) > codeLength {
		code = code[:codeLength]
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code = code
	return code
}

func (f *Flow) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

// Error is the message to show next to the form, if any.
func (f *Flow) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// SendCode dispatches a code to the current phone number and moves to the otp step.
func (f *Flow) SendCode(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(StepPhone); err != nil {
		return err
	}
	if !ValidLocal(f.phone) {
		f.errMsg = msgInvalidPhone
		return core.NewValidationError(errors.New(msgInvalidPhone), core.FieldError{Field: "phoneNumber", Error: msgInvalidPhone})
	}

	confirmation, err := f.provider.SendOTP(ctx, ToE164(f.phone), f.verifier)
	if err != nil {
		f.logger.Warn("sending otp", err)
		f.errMsg = msgSendFailed
		var sErr *identity.OTPSendError
		if errors.As(err, &sErr) && sErr.Reason != "" {
			f.errMsg = "Failed to send OTP: " + sErr.Reason + "."
		}
		return err
	}

	f.challenge = AwaitingCode{Confirmation: confirmation}
	f.code = ""
	f.errMsg = ""
	return nil
}

// Verify confirms the typed code. An invalid or expired code sends the flow back to the phone step.
func (f *Flow) Verify(ctx context.Context) (identity.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(StepOTP); err != nil {
		return identity.Credential{}, err
	}
	if len(f.code) != codeLength {
		f.errMsg = msgCodeLength
		return identity.Credential{}, core.NewValidationError(errors.New(msgCodeLength), core.FieldError{Field: "otp", Error: msgCodeLength})
	}

	awaiting := f.challenge.(AwaitingCode)
	cred, err := f.provider.ConfirmOTP(ctx, awaiting.Confirmation, f.code)
	switch {
	case err == nil:
		f.challenge = Confirmed{Credential: cred}
		f.errMsg = ""
		return cred, nil
	case errors.Is(err, identity.ErrInvalidOTP):
		f.reset(msgInvalidCode)
	case errors.Is(err, identity.ErrChallengeExpired):
		f.reset(msgCodeExpired)
	default:
		// transport trouble: keep the challenge so the user can retry the same code
		f.logger.Warn("confirming otp", err)
		f.errMsg = msgVerifyFailed
	}
	return identity.Credential{}, err
}

// Back returns to the phone step, clearing the code and the error.
func (f *Flow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenge = NoChallenge{}
	f.code = ""
	f.errMsg = ""
}

// Fail reports an error that happened after confirmation (the backend refused the proof)
// and starts over from the phone step.
func (f *Flow) Fail(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset(msg)
}

// Proof is the backend login proof once the phone number is confirmed.
func (f *Flow) Proof() (session.PhoneProof, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenge.(Confirmed)
	if !ok {
		return session.PhoneProof{}, false
	}
	phone := c.Credential.PhoneNumber
	if phone == "" {
		phone = ToE164(f.phone)
	}
	return session.PhoneProof{PhoneNumber: phone, FirebaseToken: c.Credential.IDToken}, true
}

// Close releases the captcha verifier. The flow cannot be used afterwards.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.verifier != nil {
		f.verifier.Clear()
	}
}

func (f *Flow) check(want Step) error {
	if f.closed {
		f.errMsg = msgFlowClosed
		return ErrClosed
	}
	if f.challenge.step() != want {
		if want == StepOTP {
			f.errMsg = msgNoPendingCheck
		}
		return ErrWrongStep
	}
	return nil
}

func (f *Flow) reset(msg string) {
	f.challenge = NoChallenge{}
	f.code = ""
	f.errMsg = msg
}
