package identity

import "errors"

// Identity errors. All of them mean the caller is not authenticated.
var (
	// ErrMissingToken is returned when no Authorization header was sent.
	ErrMissingToken = errors.New("authorization header is required")

	// ErrMalformedHeader is returned when the Authorization header is not a bearer credential.
	ErrMalformedHeader = errors.New("authorization header must be a bearer token")

	// ErrMalformedToken is returned when the token payload cannot be decoded.
	ErrMalformedToken = errors.New("token claims cannot be decoded")

	// ErrNoIdentity is returned when no claims could be resolved from any source.
	ErrNoIdentity = errors.New("no caller identity available")
)

// IsUnauthenticated reports whether err is one of the identity errors.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrMalformedHeader) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrNoIdentity)
}

// Request carries the raw authentication inputs of an inbound request.
type Request struct {
	// Authorization is the raw Authorization header value.
	Authorization string
	// GatewayClaims are claims already verified by an upstream authorizer, if any.
	GatewayClaims map[string]any
}

// Credentials are the resolved caller credentials used for downstream calls.
type Credentials struct {
	// Token is the bearer token without the scheme prefix.
	Token  string
	Claims Claims
}

// AuthUser returns the forwarded identity summary.
func (c Credentials) AuthUser() AuthUser {
	return NewAuthUser(c.Claims)
}
