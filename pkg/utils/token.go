package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateURLToken returns an opaque URL-safe token for invitation links.
// 32 random bytes gives 43 characters of base64url.
func GenerateURLToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
