package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T) *TokenService {
	t.Helper()
	s, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return s
}

func TestNewTokenService_RejectsShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("expected ErrWeakSecret, got %v", err)
	}
}

func TestGenerateAndValidate(t *testing.T) {
	s := newService(t)

	token, err := s.Generate("client-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	subject, err := s.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if subject != "client-1" {
		t.Errorf("expected subject client-1, got %s", subject)
	}
}

func TestValidate_Expired(t *testing.T) {
	s := newService(t)
	token, err := s.GenerateWithDuration("client-1", time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := s.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	other, _ := NewTokenService("ffffffffffffffffffffffffffffffff")
	token, _ := other.Generate("client-1")

	if _, err := newService(t).Validate(token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
}

func TestValidate_WrongIssuer(t *testing.T) {
	c := jwt.RegisteredClaims{
		Subject:   "client-1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))

	if _, err := newService(t).Validate(token); err == nil {
		t.Error("expected error for foreign issuer")
	}
}

func TestValidate_Garbage(t *testing.T) {
	if _, err := newService(t).Validate("this.is.garbage"); err == nil {
		t.Error("expected error for garbage token")
	}
}
