package utils

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
)

const secureRandomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSecureRandomString returns length characters drawn from the
// 62-character alphanumeric alphabet using crypto/rand
func GenerateSecureRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}

	buf := make([]byte, 4*length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n := binary.LittleEndian.Uint32(buf[i*4:])
		sb.WriteByte(secureRandomAlphabet[n%uint32(len(secureRandomAlphabet))])
	}
	return sb.String(), nil
}

// EncodeURIComponent escapes s the way JavaScript's encodeURIComponent does.
// Wallet apps decode deep-link parameters with the JS counterpart, so spaces
// become %20 and !'()* stay literal.
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return uriComponentReplacer.Replace(escaped)
}

var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// ValidateCallbackURL validates that a deep-link callback URL is secure
// Returns error if URL doesn't use HTTPS (plain HTTP is allowed for loopback hosts for testing)
func ValidateCallbackURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid callback URL: %w", err)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopbackHost(u.Hostname()) {
			return fmt.Errorf("callback URL must use HTTPS: %s", rawURL)
		}
	default:
		return fmt.Errorf("callback URL must use HTTPS: %s", rawURL)
	}

	if u.Hostname() == "" {
		return fmt.Errorf("callback URL has no host: %s", rawURL)
	}
	return nil
}

func isLoopbackHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
