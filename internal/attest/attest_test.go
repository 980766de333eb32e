package attest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/andywolf/twentyq/internal/metrics"
	"github.com/andywolf/twentyq/internal/runner"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testReport() *runner.Report {
	return &runner.Report{
		Repeats:     2,
		Concurrency: 4,
		Summary:     metrics.Summary{Games: 4, Wins: 3, WinRate: 0.75, MeanTurns: 8},
		Topics: map[string]metrics.Summary{
			"koala": {Games: 2, Wins: 2, WinRate: 1},
			"car":   {Games: 2, Wins: 1, WinRate: 0.5},
		},
	}
}

func TestNewSigner(t *testing.T) {
	tests := []struct {
		name    string
		secret  []byte
		wantErr bool
	}{
		{name: "valid secret", secret: testSecret},
		{name: "short secret", secret: []byte("short"), wantErr: true},
		{name: "empty secret", secret: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSigner("", tt.secret)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.issuer != DefaultIssuer {
				t.Errorf("issuer = %q, want %q", s.issuer, DefaultIssuer)
			}
		})
	}
}

func TestSignAndVerify(t *testing.T) {
	s, err := NewSigner("lab", testSecret)
	if err != nil {
		t.Fatal(err)
	}

	token, err := s.Sign(testReport(), Meta{GuesserModel: "gemini:gemini-2.0-flash", Digest: Digest([]byte("{}"))})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("expected compact JWT, got %q", token)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Summary.Wins != 3 || claims.Topics["car"].WinRate != 0.5 {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.Issuer != "lab" || claims.GuesserModel != "gemini:gemini-2.0-flash" {
		t.Errorf("issuer/model = %q/%q", claims.Issuer, claims.GuesserModel)
	}
	if claims.ExpiresAt != nil {
		t.Error("zero TTL should not set an expiry")
	}
	if err := claims.VerifyDigest([]byte("{}")); err != nil {
		t.Errorf("VerifyDigest() error = %v", err)
	}
	if err := claims.VerifyDigest([]byte(`{"wins":99}`)); !errors.Is(err, ErrInvalidReport) {
		t.Errorf("expected digest mismatch, got %v", err)
	}
}

func TestVerify_Rejects(t *testing.T) {
	s, _ := NewSigner("lab", testSecret)
	other, _ := NewSigner("lab", []byte("ffffffffffffffffffffffffffffffff"))
	foreign, _ := NewSigner("elsewhere", testSecret)

	good, err := s.Sign(testReport(), Meta{})
	if err != nil {
		t.Fatal(err)
	}
	expired, err := s.Sign(testReport(), Meta{TTL: time.Nanosecond})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(1100 * time.Millisecond)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &ReportClaims{})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		signer *Signer
		token  string
	}{
		{"wrong secret", other, good},
		{"wrong issuer", foreign, good},
		{"expired", s, expired},
		{"tampered payload", s, tampered},
		{"alg none", s, noneToken},
		{"garbage", s, "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.signer.Verify(tt.token); !errors.Is(err, ErrInvalidReport) {
				t.Errorf("Verify() error = %v, want ErrInvalidReport", err)
			}
		})
	}
}

func TestSign_Validation(t *testing.T) {
	s, _ := NewSigner("", testSecret)
	if _, err := s.Sign(nil, Meta{}); err == nil {
		t.Error("expected error for nil report")
	}
	if _, err := s.Sign(testReport(), Meta{TTL: -time.Second}); err == nil {
		t.Error("expected error for negative TTL")
	}
}

func TestDigest(t *testing.T) {
	if got := Digest([]byte("abc")); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("Digest() = %s", got)
	}
	if err := (&ReportClaims{}).VerifyDigest([]byte("x")); err == nil {
		t.Error("expected error when no digest was signed")
	}
}
