// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

const MaxUsernameLen = 20

var ErrUsernameInvalid = errors.New("invalid username")

type ClientID string

// Session is the server-side record of one connected participant.
// Username stays empty until the join handshake completes; once set it
// never changes for the lifetime of the connection.
type Session struct {
	ID       ClientID `json:"id"`
	Username string   `json:"username"`
	CamOn    bool     `json:"cam_on"`
	MicOn    bool     `json:"mic_on"`
	ScreenOn bool     `json:"screen_on"`
}

// NewSession is a tiny helper to avoid ad-hoc struct literals in adapters.
// Microphones start enabled; cameras and screen shares start off.
func NewSession(id ClientID) *Session {
	return &Session{ID: id, MicOn: true}
}

// Active reports whether the session completed the join handshake.
func (s *Session) Active() bool { return s.Username != "" }

var validate = validator.New()

// ValidateUsername enforces the join name rules: 1-20 characters,
// letters and digits only.
func ValidateUsername(name string) error {
	if err := validate.Var(name, "required,alphanum,max=20"); err != nil {
		return ErrUsernameInvalid
	}
	return nil
}

// SameName compares display names the way uniqueness is enforced.
func SameName(a, b string) bool { return strings.EqualFold(a, b) }
