package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNoCredentials = errors.New("no credential source configured")

// Source yields a bearer token for collaborator calls.
type Source interface {
	Token(ctx context.Context) (string, error)
}

type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     string
	StaticToken  string
}

// ClientCredentialsSource fetches access tokens from the identity provider
// and reuses them until they expire.
type ClientCredentialsSource struct {
	ts     oauth2.TokenSource
	logger *zap.Logger
}

// NewClientCredentialsSource builds the token source. httpClient is used for
// calls to the token endpoint and may be nil.
func NewClientCredentialsSource(cfg Config, httpClient *http.Client, logger *zap.Logger) *ClientCredentialsSource {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	if cfg.Audience != "" {
		cc.EndpointParams = url.Values{"audience": {cfg.Audience}}
	}

	ctx := context.Background()
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	return &ClientCredentialsSource{
		ts:     cc.TokenSource(ctx),
		logger: logger,
	}
}

func (s *ClientCredentialsSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	tok, err := s.ts.Token()
	if err != nil {
		s.logger.Error("Failed to acquire access token", zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	if !tok.Valid() {
		return "", fmt.Errorf("%w: identity provider returned an invalid token", domain.ErrAuthenticationFailed)
	}
	return tok.AccessToken, nil
}

// StaticSource hands out a fixed bearer token (local mode).
type StaticSource struct {
	token string
}

func NewStaticSource(token string) *StaticSource {
	return &StaticSource{token: token}
}

func (s *StaticSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("%w: empty static token", domain.ErrAuthenticationFailed)
	}
	return s.token, nil
}

// NewSource picks client credentials when a token URL is configured and
// falls back to the static token.
func NewSource(cfg Config, httpClient *http.Client, logger *zap.Logger) (Source, error) {
	switch {
	case cfg.TokenURL != "":
		logger.Info("Using client credentials grant", zap.String("token_url", cfg.TokenURL))
		return NewClientCredentialsSource(cfg, httpClient, logger), nil
	case cfg.StaticToken != "":
		logger.Warn("Using static bearer token")
		return NewStaticSource(cfg.StaticToken), nil
	default:
		return nil, ErrNoCredentials
	}
}
