package account

// DefaultRedirectURI is the loopback redirect used when an OAuth2 client
// registration does not set its own.
const DefaultRedirectURI = "http://localhost:8080/oauth/callback"

// OAuthConfig holds the client registration for the OAuth2 authorization-code
// flow.
type OAuthConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// NewOAuthConfig builds a registration with the default loopback redirect.
func NewOAuthConfig(clientID, clientSecret string) *OAuthConfig {
	return &OAuthConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  DefaultRedirectURI,
	}
}

// OAuthTokens is the credential set produced by the token endpoint. ExpiresIn
// is in seconds; 0 means the provider did not report a lifetime.
type OAuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}
