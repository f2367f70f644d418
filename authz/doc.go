// Package authz decides whether a publish or subscribe request may proceed.
//
// Three independent checks are provided, each implementing Manager:
//
//   - IPManager: source address whitelist of single addresses and CIDR
//     ranges, IPv4 and IPv6 in one set
//   - BasicManager: HTTP Basic credentials against user:password pairs
//   - DigestManager: HTTP Digest responses computed from the same pairs
//
// A denial is a Decision value carrying a Reason code, never an error. The
// HTTP layer maps the code to a status and challenge. Credentials are never
// logged by this package.
//
// Managers are built once, from a list or a line file where blank lines and
// lines starting with '#' are ignored, and are read-only afterwards. They
// are safe for concurrent use.
package authz
