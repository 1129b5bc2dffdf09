package service

import (
	"errors"
	"testing"
	"time"

	"sousvide_simulator/internal/logger"
)

func testTokens(t *testing.T) *TokenService {
	t.Helper()
	return NewTokenService(testConfig(), logger.Get(logger.ErrorLevel))
}

func TestValidate_Fixtures(t *testing.T) {
	s := testTokens(t)

	if got := s.Validate("valid-test-token"); got != TokenValid {
		t.Fatalf("fixture valid token = %v, want valid", got)
	}
	if got := s.Validate("expired-test-token"); got != TokenExpired {
		t.Fatalf("fixture expired token = %v, want expired", got)
	}
	if got := s.Validate("never-issued"); got != TokenUnknown {
		t.Fatalf("unknown token = %v, want unknown", got)
	}
}

func TestAuthenticate(t *testing.T) {
	s := testTokens(t)

	creds, err := s.Authenticate("test@example.com", "testpassword123")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if creds.IDToken == "" || creds.RefreshToken == "" {
		t.Fatalf("missing tokens: %+v", creds)
	}
	if creds.ExpiresIn != 3600 {
		t.Fatalf("expiresIn = %d, want 3600", creds.ExpiresIn)
	}
	if len(creds.UserID) != 28 {
		t.Fatalf("userId length = %d, want 28", len(creds.UserID))
	}
	if got := s.Validate(creds.IDToken); got != TokenValid {
		t.Fatalf("freshly issued token = %v, want valid", got)
	}

	if _, err := s.Authenticate("nobody@example.com", "x"); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
	if _, err := s.Authenticate("test@example.com", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestAuthenticate_DeterministicUserID(t *testing.T) {
	s := testTokens(t)
	a, err := s.Authenticate("test@example.com", "testpassword123")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	b, err := s.Authenticate("test@example.com", "testpassword123")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if a.UserID != b.UserID {
		t.Fatalf("userId must be stable per email: %q vs %q", a.UserID, b.UserID)
	}
	if a.IDToken == b.IDToken {
		t.Fatalf("each sign-in must issue a fresh token")
	}
}

func TestRefresh_RotatesPair(t *testing.T) {
	s := testTokens(t)
	creds, err := s.Authenticate("test@example.com", "testpassword123")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	next, err := s.Refresh(creds.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.IDToken == creds.IDToken || next.RefreshToken == creds.RefreshToken {
		t.Fatalf("refresh must rotate both tokens")
	}
	if got := s.Validate(next.IDToken); got != TokenValid {
		t.Fatalf("new token = %v, want valid", got)
	}

	// The old pair is revoked.
	if got := s.Validate(creds.IDToken); got != TokenUnknown {
		t.Fatalf("old id token = %v, want unknown after refresh", got)
	}
	if _, err := s.Refresh(creds.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for reused refresh token, got %v", err)
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	s := testTokens(t)
	if _, err := s.Refresh("bogus"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestValidate_ExpiryByTime(t *testing.T) {
	s := testTokens(t)
	creds, err := s.Authenticate("test@example.com", "testpassword123")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if got := s.Validate(creds.IDToken); got != TokenExpired {
		t.Fatalf("token past expiry = %v, want expired", got)
	}
}

func TestForceExpiry(t *testing.T) {
	s := testTokens(t)
	creds, err := s.Authenticate("test@example.com", "testpassword123")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	s.ForceExpiry(true)
	if got := s.Validate(creds.IDToken); got != TokenExpired {
		t.Fatalf("forced expiry: got %v, want expired", got)
	}
	if got := s.Validate("valid-test-token"); got != TokenExpired {
		t.Fatalf("forced expiry must cover fixtures too, got %v", got)
	}

	s.ForceExpiry(false)
	if got := s.Validate(creds.IDToken); got != TokenValid {
		t.Fatalf("after disabling: got %v, want valid", got)
	}
}
