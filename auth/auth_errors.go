package auth

import apperrors "github.com/jrsteele09/go-sso-server/internal/errors"

var (
	ErrInvalidClientCredentials = apperrors.New(apperrors.KindAuthentication, "invalid client credentials")
	ErrInvalidOrExpiredCode     = apperrors.New(apperrors.KindExpired, "invalid or expired authorization code")
	ErrClientIDMismatch         = apperrors.New(apperrors.KindReplay, "client id does not match")
	ErrUnsupportedGrantType     = apperrors.New(apperrors.KindValidation, "unsupported grant type")
	ErrInvalidRefreshToken      = apperrors.New(apperrors.KindAuthentication, "invalid refresh token")
	ErrInvalidRequest           = apperrors.New(apperrors.KindValidation, "invalid request")
	ErrInvalidRedirectURI       = apperrors.New(apperrors.KindValidation, "invalid or no redirect uri")
	ErrInvalidScope             = apperrors.New(apperrors.KindValidation, "invalid scope")
	ErrUnauthorizedClient       = apperrors.New(apperrors.KindValidation, "client not authorized for this grant")
	ErrUnsupportedResponseType  = apperrors.New(apperrors.KindValidation, "unsupported response type")
	ErrUnsupportedPKCEMethod    = apperrors.New(apperrors.KindValidation, "unsupported code challenge method")
	ErrInvalidCodeVerifier      = apperrors.New(apperrors.KindAuthentication, "code verifier does not match challenge")
	ErrInvalidUserCredentials   = apperrors.New(apperrors.KindAuthentication, "invalid user credentials")
	ErrInvalidAccessToken       = apperrors.New(apperrors.KindAuthentication, "invalid access token")
)
