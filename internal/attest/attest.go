// Package attest signs benchmark reports as HS256 JWTs and verifies them, so
// a published win rate can be traced back to the run that produced it.
package attest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/andywolf/twentyq/internal/metrics"
	"github.com/andywolf/twentyq/internal/runner"
)

// MinSecretLength is the shortest accepted signing secret, in bytes.
const MinSecretLength = 32

// DefaultIssuer names the signer when none is configured.
const DefaultIssuer = "twentyq"

// ErrInvalidReport is returned for tokens that fail verification.
var ErrInvalidReport = errors.New("invalid report attestation")

// ReportClaims is the signed payload.
type ReportClaims struct {
	jwt.RegisteredClaims
	Summary      metrics.Summary            `json:"summary"`
	Topics       map[string]metrics.Summary `json:"topics"`
	Repeats      int                        `json:"repeats"`
	Concurrency  int                        `json:"concurrency"`
	GuesserModel string                     `json:"guesser_model,omitempty"`
	HostModel    string                     `json:"host_model,omitempty"`
	// Digest is the hex SHA-256 of the summary file written with the report.
	Digest string `json:"digest,omitempty"`
}

// Signer signs and verifies report tokens with a shared secret.
type Signer struct {
	issuer string
	secret []byte
}

// NewSigner creates a Signer.
func NewSigner(issuer string, secret []byte) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Signer{issuer: issuer, secret: secret}, nil
}

// Meta carries run details that are not part of the runner report.
type Meta struct {
	GuesserModel string
	HostModel    string
	Digest       string
	// TTL bounds validity; zero means the token never expires.
	TTL time.Duration
}

// Sign returns the compact JWT for report.
func (s *Signer) Sign(report *runner.Report, meta Meta) (string, error) {
	if report == nil {
		return "", fmt.Errorf("report is required")
	}
	if meta.TTL < 0 {
		return "", fmt.Errorf("ttl must not be negative")
	}

	now := time.Now()
	claims := ReportClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			Subject:  "benchmark-report",
			IssuedAt: jwt.NewNumericDate(now),
		},
		Summary:      report.Summary,
		Topics:       report.Topics,
		Repeats:      report.Repeats,
		Concurrency:  report.Concurrency,
		GuesserModel: meta.GuesserModel,
		HostModel:    meta.HostModel,
		Digest:       meta.Digest,
	}
	if meta.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(meta.TTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign report: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, issuer and expiry of a token and
// returns its claims.
func (s *Signer) Verify(tokenString string) (*ReportClaims, error) {
	claims := &ReportClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if !token.Valid {
		return nil, ErrInvalidReport
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return nil, fmt.Errorf("%w: issuer %q", ErrInvalidReport, claims.Issuer)
	}
	return claims, nil
}

// VerifyDigest checks that data is the summary file the token was signed
// with.
func (c *ReportClaims) VerifyDigest(data []byte) error {
	if c.Digest == "" {
		return fmt.Errorf("%w: report carries no digest", ErrInvalidReport)
	}
	if got := Digest(data); got != c.Digest {
		return fmt.Errorf("%w: digest mismatch (got %s, signed %s)", ErrInvalidReport, got, c.Digest)
	}
	return nil
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
