package httpclient

import "net/http"

// AuthConfig adds credentials to outgoing requests.
type AuthConfig struct {
	// Token is sent as a bearer token when Header is empty.
	Token string
	// Header, when set, carries Token verbatim under this header name.
	Header string
}

// BearerAuth sends "Authorization: Bearer <token>".
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Token: token}
}

// HeaderAuth sends the token in a custom header.
func HeaderAuth(header, token string) *AuthConfig {
	return &AuthConfig{Header: header, Token: token}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil || a.Token == "" {
		return
	}
	if a.Header != "" {
		req.Header.Set(a.Header, a.Token)
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}
