package main

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// userAgentRoundTripper sets the User-Agent header on outgoing requests.
type userAgentRoundTripper struct {
	Wrapped   http.RoundTripper
	UserAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.UserAgent)
	return rt.Wrapped.RoundTrip(clone)
}

// newOriginClient returns the client the cache uses to reach the origin.
// Redirects are handed back to the caller instead of being followed.
// With an auth block, requests carry a client credentials token;
// ctx bounds token refreshes.
func newOriginClient(ctx context.Context, config Config) *http.Client {
	var rt http.RoundTripper = &userAgentRoundTripper{
		Wrapped:   http.DefaultTransport,
		UserAgent: config.UserAgent,
	}
	if config.Auth != nil {
		cc := clientcredentials.Config{
			ClientID:     config.Auth.ClientID,
			ClientSecret: config.Auth.ClientSecret,
			TokenURL:     config.Auth.TokenURL,
			Scopes:       config.Auth.Scopes,
		}
		tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: rt})
		rt = &oauth2.Transport{
			Source: cc.TokenSource(tokenCtx),
			Base:   rt,
		}
	}
	return &http.Client{
		Transport: rt,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
