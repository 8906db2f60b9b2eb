// Package authkey generates the Ed25519 key pair used for session API tokens
// and signs development tokens with it.
package authkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	entrypoint "github.com/louisbranch/sessiontrack/internal/platform/cmd"
)

// Config holds authkey command configuration.
type Config struct {
	Issuer     string        `env:"SESSIONS_AUTH_ISSUER"`
	Audience   string        `env:"SESSIONS_AUTH_AUDIENCE"`
	PrivateKey string        `env:"SESSIONS_AUTH_PRIVATE_KEY"`
	TTL        time.Duration `env:"SESSIONS_AUTH_TOKEN_TTL" envDefault:"1h"`
	Subject    string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Subject, "subject", "", "Sign a token for this subject instead of generating keys")
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "Token issuer")
	fs.StringVar(&cfg.Audience, "audience", cfg.Audience, "Token audience")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "Token lifetime")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run writes a new key pair as shell exports, or a signed token when a
// subject is configured.
func Run(cfg Config, out io.Writer, reader io.Reader, now func() time.Time) error {
	if out == nil {
		return errors.New("output is required")
	}
	if strings.TrimSpace(cfg.Subject) != "" {
		return writeToken(cfg, out, now)
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate auth key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export SESSIONS_AUTH_PRIVATE_KEY=%s\n", base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export SESSIONS_AUTH_PUBLIC_KEY=%s\n", base64.RawStdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	return nil
}

func writeToken(cfg Config, out io.Writer, now func() time.Time) error {
	issuer := strings.TrimSpace(cfg.Issuer)
	audience := strings.TrimSpace(cfg.Audience)
	if issuer == "" {
		return errors.New("SESSIONS_AUTH_ISSUER is required to sign a token")
	}
	if audience == "" {
		return errors.New("SESSIONS_AUTH_AUDIENCE is required to sign a token")
	}
	if cfg.TTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	keyBytes, err := decodeBase64(strings.TrimSpace(cfg.PrivateKey))
	if err != nil {
		return fmt.Errorf("decode auth private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return fmt.Errorf("auth private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if now == nil {
		now = time.Now
	}

	issuedAt := now().UTC()
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		Subject:   strings.TrimSpace(cfg.Subject),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(cfg.TTL)),
	}).SignedString(ed25519.PrivateKey(keyBytes))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
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
