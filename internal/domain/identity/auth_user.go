package identity

import "encoding/json"

// AuthUser is the identity summary forwarded to the route directory.
// Field order is part of the serialized form.
type AuthUser struct {
	Sub           string `json:"sub"`
	EmailVerified bool   `json:"email_verified"`
	Profile       string `json:"profile"`
	Group         string `json:"custom:group"`
	GivenName     string `json:"given_name"`
	Name          string `json:"name"`
	Client        string `json:"custom:client"`
	FamilyName    string `json:"family_name"`
	Email         string `json:"email"`
	AppMobil      string `json:"custom:appmobil,omitempty"`
	Theme         string `json:"custom:theme,omitempty"`
	Language      string `json:"custom:language,omitempty"`
	Timezone      string `json:"custom:timezone,omitempty"`
}

// NewAuthUser builds the forwarded identity from claims.
// profile falls back to custom:profile and name falls back to cognito:username.
func NewAuthUser(c Claims) AuthUser {
	profile := c.Profile
	if profile == "" {
		profile = c.CustomProfile
	}
	name := c.Name
	if name == "" {
		name = c.Username
	}
	return AuthUser{
		Sub:           c.Sub,
		EmailVerified: c.EmailVerified,
		Profile:       profile,
		Group:         c.Group,
		GivenName:     c.GivenName,
		Name:          name,
		Client:        c.Client,
		FamilyName:    c.FamilyName,
		Email:         c.Email,
		AppMobil:      c.AppMobil,
		Theme:         c.Theme,
		Language:      c.Language,
		Timezone:      c.Timezone,
	}
}

// Header renders the forwarded identity as a compact JSON header value.
func (u AuthUser) Header() (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
