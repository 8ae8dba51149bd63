// Package identity provides the caller identity model derived from token claims.
package identity

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Claim names read from identity tokens.
const (
	ClaimSub            = "sub"
	ClaimEmail          = "email"
	ClaimEmailVerified  = "email_verified"
	ClaimGivenName      = "given_name"
	ClaimFamilyName     = "family_name"
	ClaimName           = "name"
	ClaimUsername       = "cognito:username"
	ClaimProfile        = "profile"
	ClaimCustomProfile  = "custom:profile"
	ClaimCustomGroup    = "custom:group"
	ClaimCustomClient   = "custom:client"
	ClaimCustomAppMobil = "custom:appmobil"
	ClaimCustomTheme    = "custom:theme"
	ClaimCustomLanguage = "custom:language"
	ClaimCustomTimezone = "custom:timezone"
)

// Claims is the typed view of the identity token claims the service relies on.
// Raw keeps the full claim set.
type Claims struct {
	Sub           string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Name          string
	Username      string
	Profile       string
	CustomProfile string
	Group         string
	Client        string
	AppMobil      string
	Theme         string
	Language      string
	Timezone      string
	Raw           map[string]any
}

// ClaimsFromMap builds Claims from a decoded claim map.
// Values of unexpected types are rendered as strings where possible.
func ClaimsFromMap(raw map[string]any) Claims {
	if raw == nil {
		raw = map[string]any{}
	}
	return Claims{
		Sub:           stringClaim(raw, ClaimSub),
		Email:         stringClaim(raw, ClaimEmail),
		EmailVerified: boolClaim(raw, ClaimEmailVerified),
		GivenName:     stringClaim(raw, ClaimGivenName),
		FamilyName:    stringClaim(raw, ClaimFamilyName),
		Name:          stringClaim(raw, ClaimName),
		Username:      stringClaim(raw, ClaimUsername),
		Profile:       stringClaim(raw, ClaimProfile),
		CustomProfile: stringClaim(raw, ClaimCustomProfile),
		Group:         stringClaim(raw, ClaimCustomGroup),
		Client:        stringClaim(raw, ClaimCustomClient),
		AppMobil:      stringClaim(raw, ClaimCustomAppMobil),
		Theme:         stringClaim(raw, ClaimCustomTheme),
		Language:      stringClaim(raw, ClaimCustomLanguage),
		Timezone:      stringClaim(raw, ClaimCustomTimezone),
		Raw:           raw,
	}
}

// IsEmpty reports whether no claims were present at all.
func (c Claims) IsEmpty() bool {
	return len(c.Raw) == 0
}

func stringClaim(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func boolClaim(raw map[string]any, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}
