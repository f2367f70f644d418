package authz

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/c360/semevents/errors"
)

// BasicManager checks HTTP Basic credentials.
type BasicManager struct {
	users  map[string][]byte
	bcrypt bool
}

// BasicOption configures a BasicManager.
type BasicOption func(*BasicManager)

// WithBcrypt treats the stored passwords as bcrypt hashes, as produced by
// HashPassword, instead of plain text.
func WithBcrypt() BasicOption {
	return func(m *BasicManager) { m.bcrypt = true }
}

// HashPassword returns the bcrypt hash of password for a WithBcrypt
// credential list.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "authz", "HashPassword", "hash password")
	}
	return string(h), nil
}

// NewBasicManager builds a manager from "user:password" pairs. A repeated
// user keeps its last password.
func NewBasicManager(pairs []string, opts ...BasicOption) (*BasicManager, error) {
	m := &BasicManager{users: make(map[string][]byte, len(pairs))}
	for _, opt := range opts {
		opt(m)
	}
	for _, pair := range pairs {
		user, pass, err := parsePair(pair)
		if err != nil {
			return nil, err
		}
		if m.bcrypt {
			if _, err := bcrypt.Cost([]byte(pass)); err != nil {
				return nil, errors.Configf("user %q: stored password is not a bcrypt hash", user)
			}
		}
		m.users[user] = []byte(pass)
	}
	return m, nil
}

// LoadBasicManager builds a manager from a file of "user:password" lines.
func LoadBasicManager(path string, opts ...BasicOption) (*BasicManager, error) {
	pairs, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	return NewBasicManager(pairs, opts...)
}

// AuthorizeUser reports whether user and password match a stored pair
// exactly. Matching is case-sensitive.
func (m *BasicManager) AuthorizeUser(user, password string) bool {
	stored, ok := m.users[user]
	if !ok {
		return false
	}
	if m.bcrypt {
		return bcrypt.CompareHashAndPassword(stored, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare(stored, []byte(password)) == 1
}

// Authorize checks the Authorization header of r.
func (m *BasicManager) Authorize(r Request) Decision {
	header := r.Header("Authorization")
	if header == "" {
		return Deny(ReasonMissingCredentials)
	}
	user, password, ok := parseBasic(header)
	if !ok || !m.AuthorizeUser(user, password) {
		return Deny(ReasonBadCredentials)
	}
	return Allow()
}

// Challenge returns the WWW-Authenticate value for a Basic challenge.
func (m *BasicManager) Challenge(realm string) string {
	return `Basic realm="` + realm + `"`
}

func parseBasic(header string) (string, string, bool) {
	scheme, encoded, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
