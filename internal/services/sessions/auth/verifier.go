// Package auth verifies bearer tokens on session API requests.
package auth

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/louisbranch/sessiontrack/internal/platform/config"
	apperrors "github.com/louisbranch/sessiontrack/internal/platform/errors"
	"github.com/louisbranch/sessiontrack/internal/platform/requestctx"
)

const (
	// MessageMissingHeader is returned when the Authorization header is absent or malformed.
	MessageMissingHeader = "Unauthorized: Check Authorization header"
	// MessageInvalidToken is returned when a bearer token fails verification.
	MessageInvalidToken = "Unauthorized: Invalid token"
)

const (
	bearerPrefix  = "bearer "
	subjectBypass = "auth-disabled"
	subjectDemo   = "demo"
	signingEdDSA  = "EdDSA"
	defaultLeeway = 5 * time.Second
)

// Config holds raw auth settings from the environment.
type Config struct {
	Disabled  bool   `env:"SESSIONS_AUTH_DISABLED"`
	DemoToken string `env:"SESSIONS_DEMO_TOKEN"`
	Issuer    string `env:"SESSIONS_AUTH_ISSUER"`
	Audience  string `env:"SESSIONS_AUTH_AUDIENCE"`
	PublicKey string `env:"SESSIONS_AUTH_PUBLIC_KEY"`
}

// LoadConfigFromEnv reads auth configuration.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse auth env: %w", err)
	}
	return cfg, nil
}

// Verifier admits or rejects requests by their Authorization header.
type Verifier struct {
	disabled  bool
	demoToken string
	issuer    string
	audience  string
	key       ed25519.PublicKey
	now       func() time.Time
	logger    *zap.Logger
}

// NewVerifier validates cfg and builds a Verifier. It fails when no bypass
// is configured and no public key is available to verify tokens.
func NewVerifier(cfg Config, logger *zap.Logger, now func() time.Time) (*Verifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	v := &Verifier{
		disabled:  cfg.Disabled,
		demoToken: strings.TrimSpace(cfg.DemoToken),
		issuer:    strings.TrimSpace(cfg.Issuer),
		audience:  strings.TrimSpace(cfg.Audience),
		now:       now,
		logger:    logger,
	}

	publicKey := strings.TrimSpace(cfg.PublicKey)
	if publicKey == "" {
		if !v.disabled && v.demoToken == "" {
			return nil, errors.New("SESSIONS_AUTH_PUBLIC_KEY is required unless an auth bypass is configured")
		}
		return v, nil
	}
	if v.issuer == "" {
		return nil, errors.New("SESSIONS_AUTH_ISSUER is required")
	}
	if v.audience == "" {
		return nil, errors.New("SESSIONS_AUTH_AUDIENCE is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return nil, fmt.Errorf("decode auth public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("auth public key must be %d bytes", ed25519.PublicKeySize)
	}
	v.key = ed25519.PublicKey(keyBytes)
	return v, nil
}

// Disabled reports whether every request is admitted without verification.
func (v *Verifier) Disabled() bool {
	return v != nil && v.disabled
}

// Verify checks an Authorization header value and returns the caller.
func (v *Verifier) Verify(header string) (requestctx.Principal, error) {
	if v == nil {
		return requestctx.Principal{}, apperrors.Unauthorized(MessageInvalidToken)
	}
	if v.disabled {
		v.logger.Warn("auth bypass: verification disabled", zap.String("reason", "auth_disabled"))
		return requestctx.Principal{Subject: subjectBypass, Mode: requestctx.AuthModeBypass}, nil
	}

	token, ok := bearerToken(header)
	if !ok {
		return requestctx.Principal{}, apperrors.Unauthorized(MessageMissingHeader)
	}
	if v.demoToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(v.demoToken)) == 1 {
		v.logger.Warn("auth bypass: demo token accepted", zap.String("reason", "demo_token"))
		return requestctx.Principal{Subject: subjectDemo, Mode: requestctx.AuthModeBypass}, nil
	}
	if len(v.key) != ed25519.PublicKeySize {
		return requestctx.Principal{}, apperrors.Unauthorized(MessageInvalidToken)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{signingEdDSA}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return requestctx.Principal{}, apperrors.Wrap(apperrors.CodeUnauthorized, MessageInvalidToken, err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return requestctx.Principal{}, apperrors.Wrap(apperrors.CodeUnauthorized, MessageInvalidToken, errors.New("token subject is required"))
	}
	return requestctx.Principal{Subject: subject, Mode: requestctx.AuthModeToken}, nil
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
