// Package claims decodes caller identity from bearer tokens.
package claims

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
)

// Extractor resolves caller credentials from request authentication inputs.
// Tokens are verified upstream, so only the payload is decoded here.
type Extractor struct {
	parser *jwt.Parser
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{parser: jwt.NewParser()}
}

// BearerToken returns the token of a "Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", identity.ErrMissingToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", identity.ErrMalformedHeader
	}
	return parts[1], nil
}

// Decode returns the claims carried by token without verifying its signature.
func (e *Extractor) Decode(token string) (identity.Claims, error) {
	mapClaims := jwt.MapClaims{}
	if _, _, err := e.parser.ParseUnverified(token, mapClaims); err != nil {
		return identity.Claims{}, fmt.Errorf("%w: %w", identity.ErrMalformedToken, err)
	}
	return identity.ClaimsFromMap(mapClaims), nil
}

// Resolve returns the caller credentials.
// Claims come from the token payload; when it cannot be decoded, claims already
// verified by the gateway are used instead. Having neither is an error.
func (e *Extractor) Resolve(req identity.Request) (identity.Credentials, error) {
	token, err := BearerToken(req.Authorization)
	if err != nil {
		return identity.Credentials{}, err
	}

	c, decodeErr := e.Decode(token)
	if decodeErr == nil && !c.IsEmpty() {
		return identity.Credentials{Token: token, Claims: c}, nil
	}

	if len(req.GatewayClaims) > 0 {
		if decodeErr != nil {
			log.Warn().Err(decodeErr).Msg("Token claims not decodable, using gateway claims")
		}
		return identity.Credentials{Token: token, Claims: identity.ClaimsFromMap(req.GatewayClaims)}, nil
	}

	if decodeErr != nil {
		log.Warn().Err(decodeErr).Msg("Token claims not decodable and no gateway claims present")
		return identity.Credentials{}, errors.Join(identity.ErrNoIdentity, decodeErr)
	}
	return identity.Credentials{}, identity.ErrNoIdentity
}
