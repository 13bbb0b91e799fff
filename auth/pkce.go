package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/jrsteele09/go-sso-server/oauth2"
)

// VerifyPKCE checks a code verifier against the challenge from the authorization
// request (RFC 7636). An empty method means plain. Any other unknown method is an
// error rather than a mismatch.
func VerifyPKCE(verifier, challenge string, method oauth2.CodeMethodType) (bool, error) {
	var computed string
	switch method {
	case oauth2.CodeMethodTypeS256:
		computed = S256Challenge(verifier)
	case oauth2.CodeMethodTypePlain, "":
		computed = verifier
	default:
		return false, ErrUnsupportedPKCEMethod
	}
	if verifier == "" || challenge == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1, nil
}

// S256Challenge is BASE64URL(SHA256(verifier)) without padding
func S256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
