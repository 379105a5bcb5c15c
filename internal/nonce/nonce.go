// Package nonce issues and verifies per-action tokens that guard mutating
// admin requests against replay from another page or origin.
//
// A token is an HMAC-SHA256 of the action name and a time tick. Each tick
// spans half the lifetime, so a token stays valid for between half and the
// whole lifetime.
package nonce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultLifetime matches the admin session window.
const DefaultLifetime = 24 * time.Hour

const (
	minSecretLength = 16
	tokenLength     = 24
)

// ErrInvalid is returned for a malformed, foreign or expired token.
var ErrInvalid = errors.New("invalid or expired nonce")

// Service issues and verifies action tokens.
type Service struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(s *Service) { s.lifetime = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service keyed by secret.
func NewService(secret string, opts ...Option) (*Service, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("nonce: secret must be at least %d bytes", minSecretLength)
	}

	s := &Service{secret: []byte(secret), lifetime: DefaultLifetime, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	if s.lifetime < 2*time.Second {
		return nil, fmt.Errorf("nonce: lifetime %s too short", s.lifetime)
	}

	return s, nil
}

func (s *Service) tick() int64 {
	half := s.lifetime / 2

	return (s.now().UnixNano() + int64(half) - 1) / int64(half)
}

func (s *Service) sign(action string, tick int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(action))

	return hex.EncodeToString(mac.Sum(nil))[:tokenLength]
}

// Issue returns a token for action valid in the current tick.
func (s *Service) Issue(action string) string {
	return s.sign(action, s.tick())
}

// Lifetime returns the maximum validity of a token.
func (s *Service) Lifetime() time.Duration { return s.lifetime }

// Verify checks token against action. It returns 1 when the token was issued
// in the current tick and 2 when it was issued in the previous one.
func (s *Service) Verify(action, token string) (int, error) {
	if len(token) != tokenLength {
		return 0, ErrInvalid
	}

	t := s.tick()

	for age := range 2 {
		want := s.sign(action, t-int64(age))
		if hmac.Equal([]byte(want), []byte(token)) {
			return age + 1, nil
		}
	}

	return 0, ErrInvalid
}
