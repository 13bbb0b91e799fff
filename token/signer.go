package token

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACSecretLength is the shortest accepted HS256 secret in bytes
const MinHMACSecretLength = 32

// Signer signs claim sets and supplies the key used to verify them
type Signer interface {
	Sign(claims jwt.Claims) (string, error)

	// VerificationKey is a jwt.Keyfunc
	VerificationKey(token *jwt.Token) (any, error)

	SigningMethod() jwt.SigningMethod
}

// HMACSigner signs with HS256 over a shared secret
type HMACSigner struct {
	secret []byte
}

var _ Signer = (*HMACSigner)(nil)

func NewHMACSigner(secret string) (*HMACSigner, error) {
	if len(secret) < MinHMACSecretLength {
		return nil, fmt.Errorf("[NewHMACSigner] signing secret must be at least %d bytes", MinHMACSecretLength)
	}
	return &HMACSigner{
		secret: []byte(secret),
	}, nil
}

func (h *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("[HMACSigner.Sign] %w", err)
	}
	return signed, nil
}

func (h *HMACSigner) VerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACSigner) SigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// KeyPairSigner signs with RS256 and publishes its public key as a JWKS
type KeyPairSigner struct {
	keyPair *KeyPair
}

var _ Signer = (*KeyPairSigner)(nil)

func NewKeyPairSigner(keyPair *KeyPair) (*KeyPairSigner, error) {
	if keyPair == nil || keyPair.PrivateKey == nil {
		return nil, errors.New("[NewKeyPairSigner] key pair has no private key")
	}
	return &KeyPairSigner{
		keyPair: keyPair,
	}, nil
}

func (k *KeyPairSigner) Sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = k.keyPair.KeyID

	signed, err := tok.SignedString(k.keyPair.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("[KeyPairSigner.Sign] %w", err)
	}
	return signed, nil
}

func (k *KeyPairSigner) VerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if kid, ok := token.Header["kid"].(string); ok && kid != k.keyPair.KeyID {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return k.PublicKey(), nil
}

func (k *KeyPairSigner) SigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodRS256
}

func (k *KeyPairSigner) PublicKey() *rsa.PublicKey {
	return &k.keyPair.PrivateKey.PublicKey
}

func (k *KeyPairSigner) JWKS() *JWKS {
	return &JWKS{
		Keys: []JWK{k.keyPair.JWK()},
	}
}

// PublishedKeys returns the JWKS for signers that have public keys.
// HMAC signers publish an empty set.
func PublishedKeys(s Signer) *JWKS {
	if kp, ok := s.(*KeyPairSigner); ok {
		return kp.JWKS()
	}
	return &JWKS{Keys: []JWK{}}
}
