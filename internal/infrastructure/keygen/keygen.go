// Package keygen generates and parses API keys of the form
// {key_type}-{service}-{version}-{short_token}-{long_secret}.
package keygen

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/jyl/universe/internal/domain"
)

const (
	secretBytes     = 32
	shortTokenBytes = 6

	// ShortTokenLength is the hex length of the lookup token.
	ShortTokenLength = shortTokenBytes * 2
	// LongSecretLength is the base64 length of the secret.
	LongSecretLength = 43
)

// APIKeyParts represents the components of an API key.
type APIKeyParts struct {
	KeyType    string // "sk"
	Service    string // "universe"
	Version    string // "v1"
	ShortToken string // lookup token, 12 hex chars of the secret's BLAKE2b hash
	LongSecret string // 43 chars of base64url
	FullKey    string
}

// GenerateAPIKey creates a new API key.
// Example: sk-universe-v1-a3f5d8c2b4e6-8h3k2jf9s7d6f5g4h3j2k1m0n9p8q7r6s5t4u3v2w1x
func GenerateAPIKey(keyType, service, version string) (*APIKeyParts, error) {
	for _, p := range []string{keyType, service, version} {
		if p == "" || strings.Contains(p, "-") {
			return nil, fmt.Errorf("%w: prefix part %q must be non-empty and contain no '-'", domain.ErrInvalidAPIKeyFormat, p)
		}
	}

	longBytes := make([]byte, secretBytes)
	if _, err := rand.Read(longBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	longSecret := base64.RawURLEncoding.EncodeToString(longBytes)

	// 48 bits of a hash over 256 bits of entropy; short_token is unique in storage.
	hash := blake2b.Sum256([]byte(longSecret))
	shortToken := hex.EncodeToString(hash[:shortTokenBytes])

	return &APIKeyParts{
		KeyType:    keyType,
		Service:    service,
		Version:    version,
		ShortToken: shortToken,
		LongSecret: longSecret,
		FullKey:    strings.Join([]string{keyType, service, version, shortToken, longSecret}, "-"),
	}, nil
}

// ParseAPIKey splits an API key into its components and checks the length
// of the token parts. The long secret may itself contain '-' and '_'.
func ParseAPIKey(apiKey string) (*APIKeyParts, error) {
	parts := strings.SplitN(apiKey, "-", 5)
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: expected 5 parts, got %d", domain.ErrInvalidAPIKeyFormat, len(parts))
	}
	if len(parts[3]) != ShortTokenLength {
		return nil, fmt.Errorf("%w: short token must be %d characters", domain.ErrInvalidAPIKeyFormat, ShortTokenLength)
	}
	if len(parts[4]) != LongSecretLength {
		return nil, fmt.Errorf("%w: secret must be %d characters", domain.ErrInvalidAPIKeyFormat, LongSecretLength)
	}

	return &APIKeyParts{
		KeyType:    parts[0],
		Service:    parts[1],
		Version:    parts[2],
		ShortToken: parts[3],
		LongSecret: parts[4],
		FullKey:    apiKey,
	}, nil
}

// DisplayKey returns the key without its secret.
// Example: "sk-universe-v1-a3f5d8c2b4e6-****"
func (k *APIKeyParts) DisplayKey() string {
	return strings.Join([]string{k.KeyType, k.Service, k.Version, k.ShortToken, "****"}, "-")
}

// HashSecret computes the hex BLAKE2b-256 hash of the secret.
func HashSecret(secret string) string {
	hash := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// MaskAPIKey returns a safe-to-log prefix of an API key.
// Example: "sk-universe-v1-a3f5d8c2b4e6-..." becomes "sk-***".
func MaskAPIKey(apiKey string) string {
	prefix, _, found := strings.Cut(apiKey, "-")
	if !found || prefix == "" {
		return "***"
	}
	return prefix + "-***"
}
