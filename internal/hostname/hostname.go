// Package hostname canonicalizes SNI hostnames into filesystem lookup keys.
package hostname

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/net/idna"
)

// maxHostLen is the DNS limit on a full domain name in octets.
const maxHostLen = 253

// ErrInvalidHost is returned when an SNI value cannot be canonicalized.
var ErrInvalidHost = errors.New("invalid hostname")

// profile is the IDNA 2008 compatibility mapping used for lookup keys:
// non-transitional, STD3 rules on the output, DNS length limits enforced.
// It must match the mapping used by the hash-hostname command so that
// hashed directory names agree with what operators generate.
var profile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.VerifyDNSLength(true),
	idna.StrictDomainName(true),
)

// Canonicalize maps a raw SNI octet string to its canonical lowercase
// A-label form. It never performs DNS lookups.
func Canonicalize(raw []byte) (string, error) {
	if len(raw) == 0 || len(raw) > maxHostLen {
		return "", ErrInvalidHost
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", ErrInvalidHost
	}

	name := string(raw)
	// A single trailing dot (fully-qualified form) is stripped before
	// validation; idna rejects the resulting empty label otherwise.
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", ErrInvalidHost
	}

	ascii, err := profile.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHost, err)
	}
	if ascii == "" || len(ascii) > maxHostLen {
		return "", ErrInvalidHost
	}

	// The mapped result feeds straight into a path join, so enforce the
	// allowed alphabet here rather than trusting the mapping profile.
	for i := 0; i < len(ascii); i++ {
		c := ascii[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.':
		default:
			return "", ErrInvalidHost
		}
	}
	if strings.HasPrefix(ascii, ".") || strings.HasSuffix(ascii, ".") || strings.Contains(ascii, "..") {
		return "", ErrInvalidHost
	}

	return ascii, nil
}

// HashedKey returns the hashed rendering of a canonical hostname:
// BLAKE2b-256 over its bytes, URL-safe base64 without padding. The result
// is 43 characters, short enough for sun_path limits, and is the on-disk
// contract shared with the hash-hostname command.
func HashedKey(canonical string) string {
	sum := blake2b.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// LookupKey returns the directory name to look up for a canonical host.
func LookupKey(canonical string, hashed bool) string {
	if hashed {
		return HashedKey(canonical)
	}
	return canonical
}
