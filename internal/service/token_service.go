package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"sousvide_simulator/internal/config"
	"sousvide_simulator/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Domain errors for the identity mock.
var (
	ErrUnknownAccount      = errors.New("EMAIL_NOT_FOUND")
	ErrInvalidPassword     = errors.New("INVALID_PASSWORD")
	ErrInvalidRefreshToken = errors.New("INVALID_REFRESH_TOKEN")
)

// TokenStatus is the result of validating a bearer token.
type TokenStatus int

const (
	TokenUnknown TokenStatus = iota
	TokenValid
	TokenExpired
)

func (s TokenStatus) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Credentials is the result of a successful authentication or refresh,
// matching the vendor cloud's token-exchange contract.
type Credentials struct {
	IDToken      string
	RefreshToken string
	UserID       string
	Email        string
	ExpiresIn    int
}

type tokenInfo struct {
	userID       string
	email        string
	issuedAt     time.Time
	expiresAt    time.Time
	refreshToken string
}

// The signing key is a test fixture; tokens are opaque credentials, not a
// security boundary.
const signingKey = "simulator-signing-key"

// TokenService issues and validates opaque bearer tokens standing in for
// the vendor's identity provider. Validity is time-bounded and independent
// of any session.
type TokenService struct {
	mu sync.Mutex

	// accounts maps email to bcrypt password hash.
	accounts map[string][]byte
	expiry   time.Duration

	tokens        map[string]tokenInfo
	refreshTokens map[string]string // refresh token -> id token

	// Pre-provisioned fixtures for deterministic auth-failure tests.
	fixtureValid   map[string]bool
	fixtureExpired map[string]bool

	forceExpired bool
	now          func() time.Time
	log          *logger.Logger
}

// NewTokenService hashes the configured account passwords and provisions
// the fixture tokens.
func NewTokenService(cfg *config.Config, log *logger.Logger) *TokenService {
	accounts := make(map[string][]byte, len(cfg.Accounts))
	for email, password := range cfg.Accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			log.Errorw("hash account password failed", "email", email, "err", err)
			continue
		}
		accounts[email] = hash
	}

	fixtureValid := make(map[string]bool, len(cfg.ValidTokens))
	for _, t := range cfg.ValidTokens {
		fixtureValid[t] = true
	}
	fixtureExpired := make(map[string]bool, len(cfg.ExpiredTokens))
	for _, t := range cfg.ExpiredTokens {
		fixtureExpired[t] = true
	}

	return &TokenService{
		accounts:       accounts,
		expiry:         time.Duration(cfg.TokenExpiry) * time.Second,
		tokens:         make(map[string]tokenInfo),
		refreshTokens:  make(map[string]string),
		fixtureValid:   fixtureValid,
		fixtureExpired: fixtureExpired,
		now:            time.Now,
		log:            log,
	}
}

// Authenticate checks email/password against the provisioned accounts and
// issues a fresh token pair.
func (s *TokenService) Authenticate(email, password string) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.accounts[email]
	if !ok {
		s.log.Infow("authentication failed: unknown email", "email", email)
		return Credentials{}, ErrUnknownAccount
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		s.log.Infow("authentication failed: invalid password", "email", email)
		return Credentials{}, ErrInvalidPassword
	}

	creds := s.issueLocked(email)
	s.log.Infow("authentication successful", "email", email)
	return creds, nil
}

// Refresh exchanges a refresh token for a new token pair, revoking the old
// pair.
func (s *TokenService) Refresh(refreshToken string) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idToken, ok := s.refreshTokens[refreshToken]
	if !ok {
		s.log.Infow("token refresh failed: invalid refresh token")
		return Credentials{}, ErrInvalidRefreshToken
	}
	info, ok := s.tokens[idToken]
	if !ok {
		return Credentials{}, ErrInvalidRefreshToken
	}

	delete(s.tokens, idToken)
	delete(s.refreshTokens, refreshToken)

	creds := s.issueLocked(info.email)
	s.log.Infow("token refreshed", "email", info.email)
	return creds, nil
}

// Validate classifies a token as valid, expired, or unknown. Fixture tokens
// short-circuit issuance so failure paths are deterministic in tests.
func (s *TokenService) Validate(token string) TokenStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forceExpired {
		return TokenExpired
	}
	if s.fixtureValid[token] {
		return TokenValid
	}
	if s.fixtureExpired[token] {
		return TokenExpired
	}

	info, ok := s.tokens[token]
	if !ok {
		return TokenUnknown
	}
	if s.now().After(info.expiresAt) {
		return TokenExpired
	}
	return TokenValid
}

// ForceExpiry makes every validation report expired until disabled.
func (s *TokenService) ForceExpiry(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceExpired = enabled
	s.log.Infow("forced token expiry", "enabled", enabled)
}

func (s *TokenService) issueLocked(email string) Credentials {
	now := s.now()
	userID := emailToUserID(email)

	claims := jwt.MapClaims{
		"iss":            "https://securetoken.google.com/mock-project",
		"aud":            "mock-project",
		"auth_time":      now.Unix(),
		"user_id":        userID,
		"sub":            userID,
		"iat":            now.Unix(),
		"exp":            now.Add(s.expiry).Unix(),
		"email":          email,
		"email_verified": true,
	}
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		// HS256 signing of map claims cannot fail; fall back to an opaque id.
		idToken = uuid.NewString()
	}
	refreshToken := uuid.NewString() + uuid.NewString()

	s.tokens[idToken] = tokenInfo{
		userID:       userID,
		email:        email,
		issuedAt:     now,
		expiresAt:    now.Add(s.expiry),
		refreshToken: refreshToken,
	}
	s.refreshTokens[refreshToken] = idToken

	return Credentials{
		IDToken:      idToken,
		RefreshToken: refreshToken,
		UserID:       userID,
		Email:        email,
		ExpiresIn:    int(s.expiry.Seconds()),
	}
}

// emailToUserID derives a deterministic 28-char user id from an email.
func emailToUserID(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])[:28]
}
