package totp

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"strings"

	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/clock"
	"github.com/pquerna/otp"
	"go.uber.org/zap"
)

const qrCodeSize = 256

var (
	secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

	errEmptySecret = errors.New("totp: empty secret")
)

// Generator implements the domain.TOTPGenerator interface
type Generator struct {
	params *domain.TOTPParams
	engine *Engine
	clock  clock.Clocker
	logger *zap.Logger
}

// NewGenerator creates a new TOTP generator
func NewGenerator(params *domain.TOTPParams, clk clock.Clocker, logger *zap.Logger) *Generator {
	return &Generator{
		params: params,
		engine: NewEngine(params.Digits, params.Period),
		clock:  clk,
		logger: logger,
	}
}

// GenerateSecret generates a new TOTP secret
func (g *Generator) GenerateSecret() (string, error) {
	secret := make([]byte, g.params.SecretSize)
	if _, err := rand.Read(secret); err != nil {
		g.logger.Error("failed to generate random bytes", zap.Error(err))
		return "", domain.ErrSecretGeneration
	}

	return secretEncoding.EncodeToString(secret), nil
}

// ProvisioningURI builds the otpauth URI an authenticator app is configured from
func (g *Generator) ProvisioningURI(accountName, secret string) string {
	issuer := g.params.Issuer

	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=%s&digits=%d&period=%d",
		url.PathEscape(issuer),
		url.PathEscape(accountName),
		secret,
		url.QueryEscape(issuer),
		g.params.Algorithm,
		g.params.Digits,
		int(g.params.Period.Seconds()),
	)
}

// QRCode renders the provisioning URI as a PNG data URI
func (g *Generator) QRCode(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		g.logger.Error("failed to parse provisioning URI", zap.Error(err))
		return "", domain.ErrInternal
	}

	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		g.logger.Error("failed to render QR code", zap.Error(err))
		return "", domain.ErrInternal
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		g.logger.Error("failed to encode QR code", zap.Error(err))
		return "", domain.ErrInternal
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CheckSecret rejects secrets that do not decode or carry fewer bytes than
// GenerateSecret issues
func (g *Generator) CheckSecret(secret string) error {
	key, err := DecodeSecret(secret)
	if err != nil {
		return domain.ErrInvalidSecret
	}
	if len(key) < g.params.SecretSize {
		g.logger.Debug("TOTP secret too short",
			zap.Int("secret_bytes", len(key)),
			zap.Int("required_bytes", g.params.SecretSize))
		return domain.ErrWeakSecret
	}
	return nil
}

// ValidateCode validates a TOTP code against the current time
func (g *Generator) ValidateCode(secret, code string, window int) (int, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		g.logger.Error("malformed TOTP secret", zap.Int("secret_length", len(secret)), zap.Error(err))
		return 0, domain.ErrInvalidSecret
	}

	if !g.engine.WellFormed(code) {
		return 0, domain.ErrInvalidTOTPFormat
	}

	now := g.clock.Now()
	offset, ok := g.engine.Validate(key, code, now, window)
	if !ok {
		g.logger.Debug("TOTP code did not match any step",
			zap.Int64("step", g.engine.Step(now)),
			zap.Int("window", window))
		return 0, domain.ErrInvalidTOTPCode
	}

	if offset != 0 {
		g.logger.Debug("TOTP code matched adjacent step", zap.Int("offset", offset))
	}

	return offset, nil
}

// DecodeSecret decodes a Base32 secret. Case, whitespace and padding are
// ignored.
func DecodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	normalized = strings.TrimRight(normalized, "=")
	if normalized == "" {
		return nil, errEmptySecret
	}

	key, err := secretEncoding.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("totp: decode secret: %w", err)
	}
	return key, nil
}
