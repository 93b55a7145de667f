package session

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
)

const (
	defaultRole        = "student"
	defaultDisplayName = "User"
)

// State of the session.
type State int

const (
	Uninitialized State = iota
	Loading
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ID accepts both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Profile is the signed in user.
type Profile struct {
	ID          ID     `json:"id"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
	LastName    string `json:"lastName"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// normalize lower-cases the role and fills the display name. Applying it twice changes nothing.
func (p Profile) normalize() Profile {
	p.Role = core.CleanString(p.Role, true)
	if p.Role == "" {
		p.Role = defaultRole
	}
	p.DisplayName = core.CleanString(p.DisplayName)
	if p.DisplayName == "" {
		p.DisplayName = core.CleanString(p.Name)
	}
	if p.DisplayName == "" {
		p.DisplayName = defaultDisplayName
	}
	return p
}

func (p Profile) FullName() string {
	return strings.TrimSpace(p.Name + " " + p.LastName)
}

// decodeProfile reads a profile either bare or wrapped as {"user": {...}}.
func decodeProfile(raw json.RawMessage) (*Profile, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var wrapped struct {
		User *Profile `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoginProof is what the backend exchanges for an application token.
type LoginProof interface {
	endpoint() string
	credentials() bool
}

// PhoneProof is a phone number whose ownership the identity provider confirmed.
type PhoneProof struct {
	PhoneNumber   string `json:"phoneNumber" validate:"required"`
	FirebaseToken string `json:"firebaseToken" validate:"required"`
}

type AdminCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SuperAdminCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (PhoneProof) endpoint() string            { return "/auth/login" }
func (PhoneProof) credentials() bool           { return false }
func (AdminCredentials) endpoint() string      { return "/admin/login" }
func (AdminCredentials) credentials() bool     { return true }
func (SuperAdminCredentials) endpoint() string { return "/superadmins/auth/login" }
func (SuperAdminCredentials) credentials() bool { return true }

type loginResponse struct {
	User         json.RawMessage `json:"user"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	SchoolID     ID              `json:"schoolId"`
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// ProfilePatch is a partial profile update; empty fields are left untouched.
type ProfilePatch struct {
	Name        string `json:"name,omitempty" validate:"omitempty,notblank,max=50"`
	LastName    string `json:"lastName,omitempty" validate:"omitempty,notblank,max=50"`
	DisplayName string `json:"displayName,omitempty" validate:"omitempty,notblank,max=100"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber,omitempty" validate:"omitempty,phone_local"`
	PhotoURL    string `json:"photoURL,omitempty" validate:"omitempty,url"`
}

func (p ProfilePatch) clean() ProfilePatch {
	p.Name = core.CleanString(p.Name)
	p.LastName = core.CleanString(p.LastName)
	p.DisplayName = core.CleanString(p.DisplayName)
	p.Email = core.CleanString(p.Email, true)
	p.PhoneNumber = core.CleanString(p.PhoneNumber)
	p.PhotoURL = core.CleanString(p.PhotoURL)
	return p
}

func (p ProfilePatch) empty() bool {
	return p == ProfilePatch{}
}

// NewAccount is a self-registration request.
type NewAccount struct {
	Name            string `json:"name" validate:"required,notblank,max=50"`
	LastName        string `json:"lastName" validate:"required,notblank,max=50"`
	Email           string `json:"email" validate:"required,email"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,phone_local"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,portal_role"`
}

func (a NewAccount) clean() NewAccount {
	a.Name = core.CleanString(a.Name)
	a.LastName = core.CleanString(a.LastName)
	a.Email = core.CleanString(a.Email, true)
	a.PhoneNumber = core.Digits(a.PhoneNumber)
	a.Role = core.CleanString(a.Role, true)
	return a
}

// ResetPassword completes a password reset started by RequestPasswordReset.
type ResetPassword struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type forgotPassword struct {
	Email string `json:"email" validate:"required,email"`
}
