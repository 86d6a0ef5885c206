// Package auth provides request interceptors which authorize requests.
//
// Register an interceptor to the client:
//
//	c := client.New()
//	c.Interceptors.Request.Use(auth.Bearer(tokenSource), nil)
package auth

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/keboola/go-httpchain/pkg/interceptor"
	"github.com/keboola/go-httpchain/pkg/request"
)

const AuthorizationHeader = "Authorization"

// Bearer sets the Authorization header from the token source.
// The token is cached until it expires.
func Bearer(source oauth2.TokenSource) interceptor.Resolved[request.Config] {
	source = oauth2.ReuseTokenSource(nil, source)
	return func(_ context.Context, cfg request.Config) (request.Config, error) {
		token, err := source.Token()
		if err != nil {
			return cfg, fmt.Errorf("cannot get token: %w", err)
		}
		if !token.Valid() {
			return cfg, fmt.Errorf("cannot get token: token is not valid")
		}
		return withAuthorization(cfg, token.Type()+" "+token.AccessToken), nil
	}
}

// StaticBearer sets the Authorization header to the static token.
func StaticBearer(token string) interceptor.Resolved[request.Config] {
	return Bearer(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}

// ClientCredentials sets the Authorization header from the OAuth2 client credentials flow.
// The ctx is used by the token requests, it may contain oauth2.HTTPClient.
func ClientCredentials(ctx context.Context, cfg clientcredentials.Config) interceptor.Resolved[request.Config] {
	return Bearer(cfg.TokenSource(ctx))
}

// Basic sets the Authorization header to the HTTP Basic credentials.
func Basic(username, password string) interceptor.Resolved[request.Config] {
	value := "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	return func(_ context.Context, cfg request.Config) (request.Config, error) {
		return withAuthorization(cfg, value), nil
	}
}

// withAuthorization returns a copy of the cfg, a previous Authorization header with any case is replaced.
func withAuthorization(cfg request.Config, value string) request.Config {
	cfg.Headers = request.DeepMerge(cfg.Headers)
	request.DeleteHeader(cfg.Headers, AuthorizationHeader)
	cfg.Headers[AuthorizationHeader] = value
	return cfg
}
