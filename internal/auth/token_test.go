package auth

import (
	"testing"
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

func testSession(expires time.Time) *domain.Session {
	return &domain.Session{
		ID:        "sid-123",
		User:      domain.SessionUser{EmpID: "E-9", Role: domain.RoleERPAdmin},
		IssuedAt:  time.Now().Add(-time.Minute),
		ExpiresAt: expires,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, err := tm.GenerateToken(testSession(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.SessionID != "sid-123" || claims.EmpID != "E-9" || claims.Role != domain.RoleERPAdmin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenRejectsOtherSecretAndExpiry(t *testing.T) {
	token, _ := NewTokenManager("secret", time.Hour).GenerateToken(testSession(time.Now().Add(time.Hour)))
	if _, err := NewTokenManager("other", time.Hour).ParseToken(token); err == nil {
		t.Error("token signed with another secret accepted")
	}

	expired, _ := NewTokenManager("secret", time.Hour).GenerateToken(testSession(time.Now().Add(-time.Minute)))
	if _, err := NewTokenManager("secret", time.Hour).ParseToken(expired); err == nil {
		t.Error("expired token accepted")
	}
}

func TestIssuerKey(t *testing.T) {
	hash, err := HashIssuerKey("s3cret", 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyIssuerKey(hash, "s3cret"); err != nil {
		t.Errorf("matching key rejected: %v", err)
	}
	if err := VerifyIssuerKey(hash, "guess"); err == nil {
		t.Error("wrong key accepted")
	}
}
