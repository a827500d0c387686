package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"api-boilerplate/internal/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Algorithm:     "HS256",
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Leeway:        5 * time.Second,
	}
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testAuthConfig())
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestNewCodecValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.AuthConfig)
	}{
		{"unsupported algorithm", func(c *config.AuthConfig) { c.Algorithm = "RS256" }},
		{"empty access secret", func(c *config.AuthConfig) { c.AccessSecret = " " }},
		{"empty refresh secret", func(c *config.AuthConfig) { c.RefreshSecret = "" }},
		{"identical secrets", func(c *config.AuthConfig) { c.RefreshSecret = c.AccessSecret }},
		{"zero access ttl", func(c *config.AuthConfig) { c.AccessTTL = 0 }},
		{"access ttl not shorter than refresh", func(c *config.AuthConfig) { c.AccessTTL = c.RefreshTTL }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testAuthConfig()
			tc.mutate(&cfg)
			if _, err := NewCodec(cfg); err == nil {
				t.Fatalf("expected NewCodec to reject config")
			}
		})
	}
}

func TestIssueAndDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	for _, kind := range []TokenKind{TokenAccess, TokenRefresh} {
		token, expiresAt, err := codec.Issue("user-123", kind)
		if err != nil {
			t.Fatalf("Issue %s: %v", kind, err)
		}
		if expiresAt.Before(time.Now()) {
			t.Fatalf("%s token already expired at issue", kind)
		}

		claims, err := codec.Decode(token, kind)
		if err != nil {
			t.Fatalf("Decode %s: %v", kind, err)
		}
		if claims.Subject != "user-123" {
			t.Fatalf("subject = %q, want user-123", claims.Subject)
		}
		if claims.Kind != string(kind) {
			t.Fatalf("kind = %q, want %q", claims.Kind, kind)
		}
		if claims.ID == "" {
			t.Fatalf("%s token missing jti", kind)
		}
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	codec := newTestCodec(t)
	if _, _, err := codec.Issue("  ", TokenAccess); err == nil {
		t.Fatalf("expected error for blank subject")
	}
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	codec := newTestCodec(t)

	refresh, _, err := codec.Issue("user-123", TokenRefresh)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := codec.Decode(refresh, TokenAccess); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("refresh token decoded as access: err = %v, want ErrTokenSignature", err)
	}

	access, _, err := codec.Issue("user-123", TokenAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Decode(access, TokenRefresh); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("access token decoded as refresh: err = %v, want ErrTokenSignature", err)
	}
}

func TestDecodeRejectsKindClaimMismatch(t *testing.T) {
	// Signed with the access secret but carrying the refresh kind, so the
	// signature verifies and only the typ check can catch it.
	codec := newTestCodec(t)
	now := time.Now().UTC()

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Kind: string(TokenRefresh),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(testAuthConfig().AccessSecret))
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	if _, err := codec.Decode(forged, TokenAccess); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("err = %v, want ErrTokenSignature", err)
	}
}

func TestDecodeExpiredToken(t *testing.T) {
	current := time.Now().UTC()
	codec := newTestCodec(t).WithClock(func() time.Time { return current })

	token, _, err := codec.Issue("user-123", TokenAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	current = current.Add(15*time.Minute + time.Minute)
	if _, err := codec.Decode(token, TokenAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestDecodeHonorsLeeway(t *testing.T) {
	current := time.Now().UTC()
	codec := newTestCodec(t).WithClock(func() time.Time { return current })

	token, _, err := codec.Issue("user-123", TokenAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Two seconds past expiry is inside the five second leeway.
	current = current.Add(15*time.Minute + 2*time.Second)
	if _, err := codec.Decode(token, TokenAccess); err != nil {
		t.Fatalf("token inside leeway rejected: %v", err)
	}
}

func TestDecodeTamperedToken(t *testing.T) {
	codec := newTestCodec(t)

	token, _, err := codec.Issue("user-123", TokenAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := codec.Decode(tampered, TokenAccess); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("err = %v, want ErrTokenSignature", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, token := range []string{"", "   ", "not-a-token", "a.b"} {
		if _, err := codec.Decode(token, TokenAccess); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Decode(%q) err = %v, want ErrTokenMalformed", token, err)
		}
	}
}

func TestDecodeRejectsDifferentCodecSecrets(t *testing.T) {
	codec := newTestCodec(t)

	otherCfg := testAuthConfig()
	otherCfg.AccessSecret = "another-access-secret"
	otherCfg.RefreshSecret = "another-refresh-secret"
	other, err := NewCodec(otherCfg)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	token, _, err := other.Issue("user-123", TokenAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Decode(token, TokenAccess); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("err = %v, want ErrTokenSignature", err)
	}
}
