package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Codec issues and decodes signed tokens with a single process-wide signer.
type Codec struct {
	signer   Signer
	issuer   string
	audience string
	parser   *jwt.Parser
	nowFunc  func() time.Time
}

type CodecOption func(*Codec)

// WithIssuer sets the iss claim stamped on tokens that do not carry one
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// WithAudience sets the default aud claim for access and refresh tokens
func WithAudience(audience string) CodecOption {
	return func(c *Codec) {
		c.audience = audience
	}
}

func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func NewCodec(signer Signer, options ...CodecOption) *Codec {
	c := &Codec{
		signer:  signer,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}

	// Expiry is deliberately left to callers: Decode only proves integrity.
	c.parser = jwt.NewParser(
		jwt.WithoutClaimsValidation(),
		jwt.WithValidMethods([]string{signer.SigningMethod().Alg()}),
	)
	return c
}

// Now is the clock every expiry decision in the process is made against
func (c *Codec) Now() time.Time {
	return c.nowFunc()
}

func (c *Codec) Issuer() string {
	return c.issuer
}

func (c *Codec) Signer() Signer {
	return c.signer
}

// Issue stamps type, iat, exp and jti on a copy of claims and signs it.
func (c *Codec) Issue(claims Claims, ttl time.Duration, tokenType Type) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	now := c.nowFunc().Truncate(time.Second)

	claims.Type = tokenType
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	if claims.Issuer == "" {
		claims.Issuer = c.issuer
	}
	if len(claims.Audience) == 0 && c.audience != "" && tokenType != TypeID {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}
	if claims.Roles != nil {
		claims.Roles = append([]string(nil), claims.Roles...)
	}

	signed, err := c.signer.Sign(&claims)
	if err != nil {
		return "", fmt.Errorf("[Codec.Issue] %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Decode verifies the signature of raw and returns its claims. It never
// checks expiry and never returns partial claims on failure.
func (c *Codec) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := c.parser.ParseWithClaims(raw, claims, c.signer.VerificationKey); err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidToken)
	}
	return claims, nil
}
