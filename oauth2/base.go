package oauth2

import (
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested by default: the OpenID profile plus read access to the
// user's Cloud projects, which the backend lists after exchanging the code.
var DefaultScopes = []string{
	"openid",
	"email",
	"profile",
	"https://www.googleapis.com/auth/cloudplatformprojects.readonly",
}

// BaseOAuth2 holds the OAuth2 client registration shared by providers
type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string
	oauthConfig  oauth2.Config
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string) *BaseOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_CALLBACK_URL")
	}
	return &BaseOAuth2{
		ClientId:     clientId,
		ClientSecret: clientSecret,
		CallbackURL:  callbackUrl,
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
			Scopes:       append([]string(nil), DefaultScopes...),
			Endpoint:     google.Endpoint,
		},
	}
}

// Config returns a copy of the OAuth2 configuration
func (b *BaseOAuth2) Config() oauth2.Config {
	cfg := b.oauthConfig
	cfg.Scopes = append([]string(nil), b.oauthConfig.Scopes...)
	return cfg
}

// SetEndpoint overrides the provider endpoint
func (b *BaseOAuth2) SetEndpoint(endpoint oauth2.Endpoint) {
	b.oauthConfig.Endpoint = endpoint
}

// SetScopes overrides the requested scopes
func (b *BaseOAuth2) SetScopes(scopes ...string) {
	b.oauthConfig.Scopes = append([]string(nil), scopes...)
}
