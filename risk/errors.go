package risk

import apperrors "github.com/jrsteele09/go-sso-server/internal/errors"

var (
	ErrInvalidContext = apperrors.New(apperrors.KindValidation, "access context requires user, resource and action")
	ErrInvalidPolicy  = apperrors.New(apperrors.KindValidation, "invalid access policy")
	ErrPolicyNotFound = apperrors.New(apperrors.KindValidation, "access policy not found")
)
