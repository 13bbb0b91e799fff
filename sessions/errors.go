package sessions

import apperrors "github.com/jrsteele09/go-sso-server/internal/errors"

var (
	ErrSessionExpiredOrInvalid = apperrors.New(apperrors.KindExpired, "session expired or invalid")
	ErrInvalidAccessToken      = apperrors.New(apperrors.KindAuthentication, "invalid access token")
	ErrInvalidRefreshToken     = apperrors.New(apperrors.KindAuthentication, "invalid refresh token")
	ErrSessionMismatch         = apperrors.New(apperrors.KindReplay, "token does not belong to session")
	ErrTokenExpired            = apperrors.New(apperrors.KindExpired, "token expired")
	ErrMissingUserID           = apperrors.New(apperrors.KindValidation, "user id is required")
)
