// Package token implements the encrypted token codec: JSON claims
// wrapped in a compact JWE (dir + A256GCM), plus the deterministic
// hashing used for opaque refresh and single-use tokens.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type defines a public type used by authrbac APIs.
//
// Type instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Type string

const (
	// TypeAccess is an exported constant or variable used by the authentication engine.
	TypeAccess Type = "access"
	// TypeRefresh is an exported constant or variable used by the authentication engine.
	TypeRefresh Type = "refresh"
)

var (
	// ErrInvalid is an exported constant or variable used by the authentication engine.
	ErrInvalid = errors.New("token invalid or expired")
	// ErrInvalidType is an exported constant or variable used by the authentication engine.
	ErrInvalidType = fmt.Errorf("%w: unexpected token type", ErrInvalid)
	// ErrSecretTooShort is an exported constant or variable used by the authentication engine.
	ErrSecretTooShort = errors.New("token secret must be at least 32 bytes")
)

const (
	minSecretBytes = 32
	nonceSize      = 12
	tagSize        = 16
)

// Claims defines a public type used by authrbac APIs.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Claims struct {
	UserID    string   `json:"userId"`
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenType Type     `json:"type"`
	jwt.RegisteredClaims
}

// Config defines a public type used by authrbac APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Codec defines a public type used by authrbac APIs.
//
// Codec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Codec struct {
	aead       cipher.AEAD
	header     string
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec describes the newcodec operation and its observable behavior.
//
// NewCodec may return an error when input validation, dependency calls, or security checks fail.
// NewCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, ErrSecretTooShort
	}
	key := cfg.Secret
	if len(key) != minSecretBytes {
		sum := sha256.Sum256(cfg.Secret)
		key = sum[:]
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "task-management-system"
	}
	if cfg.Audience == "" {
		cfg.Audience = "task-management-api"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"dir","enc":"A256GCM"}`))
	return &Codec{
		aead:       aead,
		header:     header,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

// IssueAccess describes the issueaccess operation and its observable behavior.
//
// IssueAccess may return an error when input validation, dependency calls, or security checks fail.
// IssueAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) IssueAccess(userID, username string, roles []string) (string, error) {
	now := c.now()
	return c.seal(Claims{
		UserID:    userID,
		Username:  username,
		Roles:     roles,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	})
}

// IssueRefresh describes the issuerefresh operation and its observable behavior.
//
// IssueRefresh may return an error when input validation, dependency calls, or security checks fail.
// IssueRefresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) IssueRefresh(userID string) (string, error) {
	now := c.now()
	return c.seal(Claims{
		UserID:    userID,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	})
}

// RefreshTTL describes the refreshttl operation and its observable behavior.
//
// RefreshTTL does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

func (c *Codec) seal(claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	// AAD is the ASCII of the base64url protected header, per RFC 7516.
	sealed := c.aead.Seal(nil, nonce, payload, []byte(c.header))
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]
	enc := base64.RawURLEncoding
	return strings.Join([]string{
		c.header,
		"",
		enc.EncodeToString(nonce),
		enc.EncodeToString(ct),
		enc.EncodeToString(tag),
	}, "."), nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) Verify(tokenStr string, expected Type) (*Claims, error) {
	claims, err := c.open(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != expected {
		return nil, ErrInvalidType
	}
	return claims, nil
}

func (c *Codec) open(tokenStr string) (*Claims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 5 || parts[1] != "" {
		return nil, fmt.Errorf("%w: malformed compact serialization", ErrInvalid)
	}
	enc := base64.RawURLEncoding
	headerJSON, err := enc.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad header encoding", ErrInvalid)
	}
	var header struct {
		Alg string `json:"alg"`
		Enc string `json:"enc"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil || header.Alg != "dir" || header.Enc != "A256GCM" {
		return nil, fmt.Errorf("%w: unsupported header", ErrInvalid)
	}
	nonce, err := enc.DecodeString(parts[2])
	if err != nil || len(nonce) != nonceSize {
		return nil, fmt.Errorf("%w: bad iv", ErrInvalid)
	}
	ct, err := enc.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext", ErrInvalid)
	}
	tag, err := enc.DecodeString(parts[4])
	if err != nil || len(tag) != tagSize {
		return nil, fmt.Errorf("%w: bad tag", ErrInvalid)
	}
	payload, err := c.aead.Open(nil, nonce, append(ct, tag...), []byte(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: decryption failed", ErrInvalid)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: bad claims payload", ErrInvalid)
	}
	now := c.now()
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: expired", ErrInvalid)
	}
	if claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalid)
	}
	if !containsAudience(claims.Audience, c.audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalid)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	return &claims, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// HashOpaque describes the hashopaque operation and its observable behavior.
//
// HashOpaque does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func HashOpaque(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
