package authz

import (
	"net/netip"
	"strings"

	"github.com/c360/semevents/errors"
)

// IPManager authorizes requests by source address.
type IPManager struct {
	prefixes []netip.Prefix
}

// NewIPManager builds a whitelist from address or CIDR literals such as
// "10.128.0.0/28", "197.0.0.1" or "4000::/116". A CIDR with host bits set
// is rejected.
func NewIPManager(entries []string) (*IPManager, error) {
	m := &IPManager{prefixes: make([]netip.Prefix, 0, len(entries))}
	for _, entry := range entries {
		p, err := parseEntry(strings.TrimSpace(entry))
		if err != nil {
			return nil, err
		}
		m.prefixes = append(m.prefixes, p)
	}
	return m, nil
}

// LoadIPManager builds a whitelist from a file with one literal per line.
func LoadIPManager(path string) (*IPManager, error) {
	entries, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	return NewIPManager(entries)
}

func parseEntry(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, errors.Configf("whitelist entry %q: %v", entry, err)
		}
		if p != p.Masked() {
			return netip.Prefix{}, errors.Configf("whitelist entry %q has host bits set", entry)
		}
		return p, nil
	}

	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, errors.Configf("whitelist entry %q: %v", entry, err)
	}
	addr = addr.WithZone("")
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Len returns the number of whitelist entries.
func (m *IPManager) Len() int {
	return len(m.prefixes)
}

// AuthorizeIP allows ip when it lies inside a whitelist entry of the same
// family. Unparseable addresses and empty whitelists deny. The reason is
// always ReasonOK.
func (m *IPManager) AuthorizeIP(ip string) Decision {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return Deny(ReasonOK)
	}
	addr = addr.WithZone("")
	for _, p := range m.prefixes {
		if p.Contains(addr) {
			return Allow()
		}
	}
	return Deny(ReasonOK)
}

// Authorize checks the request's remote address.
func (m *IPManager) Authorize(r Request) Decision {
	return m.AuthorizeIP(r.RemoteIP())
}
