package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func issue(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestDecodeReadsRoleAndExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := issue(t, "backend-secret", jwt.MapClaims{
		"sub":      "user-1",
		"role":     "region_admin",
		"username": "amina",
		"exp":      exp.Unix(),
	})

	claims, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if claims.Role != "region_admin" || claims.Username != "amina" || claims.Subject != "user-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.Expiry().Equal(exp) {
		t.Fatalf("Expiry() = %v, want %v", claims.Expiry(), exp)
	}
}

func TestDecodeAcceptsTamperedPayload(t *testing.T) {
	token := issue(t, "backend-secret", jwt.MapClaims{
		"sub":  "user-1",
		"role": "observer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	parts := strings.Split(token, ".")
	forged, err := json.Marshal(map[string]any{
		"sub":  "user-1",
		"role": "super_admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	claims, err := Decode(strings.Join(parts, "."))
	if err != nil {
		t.Fatalf("Decode() error = %v, want tampered payload accepted for UI gating", err)
	}
	if claims.Role != "super_admin" {
		t.Fatalf("Role = %q, want super_admin", claims.Role)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-token"},
		{name: "missing exp", token: issue(t, "s", jwt.MapClaims{"role": "observer"})},
		{name: "unknown role", token: issue(t, "s", jwt.MapClaims{"role": "root", "exp": time.Now().Add(time.Hour).Unix()})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Decode() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestDecodeAtRejectsExpired(t *testing.T) {
	now := time.Now()
	token := issue(t, "s", jwt.MapClaims{"role": "observer", "exp": now.Unix()})
	if _, err := DecodeAt(token, now); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("DecodeAt() at exp error = %v, want ErrExpiredToken", err)
	}
	if _, err := DecodeAt(token, now.Add(-time.Minute)); err != nil {
		t.Fatalf("DecodeAt() before exp error = %v", err)
	}
}

func TestFingerprintIsStableAndShort(t *testing.T) {
	a := Fingerprint("token-a")
	if a != Fingerprint("token-a") || a == Fingerprint("token-b") {
		t.Fatalf("fingerprint not stable/distinct")
	}
	if len(a) != 12 {
		t.Fatalf("len(Fingerprint) = %d, want 12", len(a))
	}
}
