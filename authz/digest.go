package authz

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strings"
)

// Fixed digest challenge parameters. Every client gets the same nonce, so
// the scheme offers no replay protection: a captured response stays valid
// forever. It authenticates cooperating clients; it is not a secure
// challenge-response protocol.
const (
	DigestRealm  = "semevents"
	DigestNonce  = "5f1c9a3e7b2d4c8a9e0f1b2c3d4e5f60"
	DigestOpaque = "a7d3e1c5b9f2048e6c1d3a5b7e9f0c2d"
)

// DigestManager checks HTTP Digest responses against the fixed challenge.
type DigestManager struct {
	users     map[string]string
	newHash   func() hash.Hash
	algorithm string
}

// DigestOption configures a DigestManager.
type DigestOption func(*DigestManager)

// WithSHA256 computes digests with SHA-256 instead of MD5.
func WithSHA256() DigestOption {
	return func(m *DigestManager) {
		m.newHash = sha256.New
		m.algorithm = "SHA-256"
	}
}

// NewDigestManager builds a manager from "user:password" pairs.
func NewDigestManager(pairs []string, opts ...DigestOption) (*DigestManager, error) {
	m := &DigestManager{
		users:     make(map[string]string, len(pairs)),
		newHash:   md5.New,
		algorithm: "MD5",
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, pair := range pairs {
		user, pass, err := parsePair(pair)
		if err != nil {
			return nil, err
		}
		m.users[user] = pass
	}
	return m, nil
}

// LoadDigestManager builds a manager from a file of "user:password" lines.
func LoadDigestManager(path string, opts ...DigestOption) (*DigestManager, error) {
	pairs, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	return NewDigestManager(pairs, opts...)
}

// Challenge returns the WWW-Authenticate value clients must answer.
func (m *DigestManager) Challenge() string {
	return `Digest realm="` + DigestRealm + `", nonce="` + DigestNonce +
		`", opaque="` + DigestOpaque + `", algorithm=` + m.algorithm
}

// Authorize validates the Digest Authorization header of r. The response
// is accepted when it matches the digest of any known user, whatever
// username the client claims.
func (m *DigestManager) Authorize(r Request) Decision {
	header := r.Header("Authorization")
	scheme, rest, _ := strings.Cut(header, " ")
	if header == "" || !strings.EqualFold(scheme, "Digest") {
		return Deny(ReasonBadChallenge)
	}

	params := parseDigestParams(rest)
	uri, _, _ := strings.Cut(params["uri"], "?")
	if params["realm"] != DigestRealm ||
		params["opaque"] != DigestOpaque ||
		params["nonce"] != DigestNonce ||
		uri != r.Path() {
		return Deny(ReasonBadChallenge)
	}

	response := []byte(strings.ToLower(params["response"]))
	for user, pass := range m.users {
		expected := m.Response(user, pass, r.Method(), r.Path())
		if subtle.ConstantTimeCompare([]byte(expected), response) == 1 {
			return Allow()
		}
	}
	return Deny(ReasonBadCredentials)
}

// Response computes the digest response a client would send for user and
// password on method and path.
func (m *DigestManager) Response(user, password, method, path string) string {
	ha1 := m.hexHash(user + ":" + DigestRealm + ":" + password)
	ha2 := m.hexHash(method + ":" + path)
	return m.hexHash(ha1 + ":" + DigestNonce + ":" + ha2)
}

func (m *DigestManager) hexHash(s string) string {
	h := m.newHash()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// parseDigestParams parses comma separated key=value pairs. Values may be
// quoted; quoted values may contain commas.
func parseDigestParams(s string) map[string]string {
	params := make(map[string]string)
	for {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			return params
		}
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return params
		}
		key := strings.ToLower(strings.TrimSpace(s[:eq]))
		s = strings.TrimLeft(s[eq+1:], " \t")

		var value string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				value, s = s[1:], ""
			} else {
				value, s = s[1:end+1], s[end+2:]
			}
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				value, s = s, ""
			} else {
				value, s = s[:end], s[end:]
			}
			value = strings.TrimSpace(value)
		}
		params[key] = value
	}
}
