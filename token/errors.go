package token

import apperrors "github.com/jrsteele09/go-sso-server/internal/errors"

var (
	ErrInvalidToken     = apperrors.New(apperrors.KindValidation, "token: malformed token")
	ErrInvalidSignature = apperrors.New(apperrors.KindAuthentication, "token: invalid signature")
	ErrInvalidTTL       = apperrors.New(apperrors.KindValidation, "token: ttl must be positive")
)
