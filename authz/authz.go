package authz

import (
	"bufio"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/c360/semevents/errors"
)

// Reason qualifies a Decision. The HTTP layer selects the response from it.
type Reason int

// Reason codes
const (
	// ReasonOK accompanies every allow and IP whitelist denials.
	ReasonOK Reason = 0
	// ReasonMissingCredentials means no Authorization header was sent.
	ReasonMissingCredentials Reason = 1
	// ReasonBadChallenge means the digest header does not answer our challenge.
	ReasonBadChallenge Reason = 2
	// ReasonBadCredentials means the credentials did not match.
	ReasonBadCredentials Reason = 3
)

// String returns the string representation of Reason
func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonMissingCredentials:
		return "missing_credentials"
	case ReasonBadChallenge:
		return "bad_challenge"
	case ReasonBadCredentials:
		return "bad_credentials"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true, Reason: ReasonOK}
}

// Deny returns a denying decision with reason.
func Deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Request is the view of an incoming request the managers need.
type Request interface {
	RemoteIP() string
	Method() string
	// Path is the request path without query string.
	Path() string
	Header(name string) string
}

// Manager authorizes requests.
type Manager interface {
	Authorize(r Request) Decision
}

// ManagerFunc adapts a function to Manager.
type ManagerFunc func(r Request) Decision

// Authorize calls f(r).
func (f ManagerFunc) Authorize(r Request) Decision {
	return f(r)
}

// All returns a manager allowing a request only when every manager allows
// it. The first denial is returned. Nil managers are skipped.
func All(managers ...Manager) Manager {
	return ManagerFunc(func(r Request) Decision {
		for _, m := range managers {
			if m == nil {
				continue
			}
			if d := m.Authorize(r); !d.Allowed {
				return d
			}
		}
		return Allow()
	})
}

type httpRequest struct {
	r *http.Request
}

// FromHTTP adapts an *http.Request. The remote IP is taken from
// RemoteAddr; forwarding headers are ignored.
func FromHTTP(r *http.Request) Request {
	return httpRequest{r: r}
}

func (h httpRequest) RemoteIP() string {
	host, _, err := net.SplitHostPort(h.r.RemoteAddr)
	if err != nil {
		return h.r.RemoteAddr
	}
	return host
}

func (h httpRequest) Method() string { return h.r.Method }

func (h httpRequest) Path() string { return h.r.URL.Path }

func (h httpRequest) Header(name string) string { return h.r.Header.Get(name) }

// readEntries reads a line file, skipping blank lines and '#' comments.
func readEntries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "authz", "readEntries", "open "+path)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapInvalid(err, "authz", "readEntries", "read "+path)
	}
	return entries, nil
}

// parsePair splits a "user:password" entry. The password may contain colons.
func parsePair(pair string) (string, string, error) {
	user, pass, ok := strings.Cut(pair, ":")
	if !ok || user == "" {
		// The entry itself is not echoed: it may hold a password.
		return "", "", errors.Configf("credential entry is not user:password")
	}
	return user, pass, nil
}
