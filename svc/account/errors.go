package account

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired access token")
	ErrEntitlementDenied  = errors.New("entitlement denied")
	ErrHashPassword       = errors.New("failed to hash password")
)

// DenialError carries the user-facing reason an action was not permitted.
// It matches ErrEntitlementDenied with errors.Is.
type DenialError struct {
	Reason string
}

func (e *DenialError) Error() string { return e.Reason }

func (e *DenialError) Is(target error) bool { return target == ErrEntitlementDenied }
