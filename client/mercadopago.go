package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Mercado Pago OAuth endpoints.
const (
	DefaultAuthURL  = "https://auth.mercadopago.com/authorization"
	DefaultTokenURL = "https://api.mercadopago.com/oauth/token"
)

var (
	// ErrMalformedResponse means the token endpoint answered 2xx with a body
	// that lacks an access or refresh token or cannot be parsed.
	ErrMalformedResponse = errors.New("malformed token response")
	// ErrUnreachable means the token endpoint could not be reached in time.
	ErrUnreachable = errors.New("token endpoint unreachable")
)

// RejectedError is returned when the token endpoint answers with a non-2xx status.
type RejectedError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("token endpoint rejected request with status %d: %s", e.StatusCode, e.Body)
}

// TokenPair is the access/refresh token pair issued by Mercado Pago.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Config holds the application credentials registered with Mercado Pago.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Timeout      time.Duration
}

// MercadoPago talks to the Mercado Pago OAuth endpoints on behalf of sellers.
// It implements auth.CodeExchanger and auth.TokenRefresher.
type MercadoPago struct {
	oauth      oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
}

// NewMercadoPago builds a client from cfg, filling in default endpoints.
func NewMercadoPago(cfg Config) *MercadoPago {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MercadoPago{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		timeout:    cfg.Timeout,
	}
}

// AuthorizationURL returns the URL a seller visits to grant access. state is
// echoed back to the redirect URI untouched.
func (c *MercadoPago) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("platform", "mp"))
}

// ExchangeCode trades an authorization code for a token pair.
func (c *MercadoPago) ExchangeCode(ctx context.Context, code string) (TokenPair, error) {
	ctx, cancel := c.scope(ctx)
	defer cancel()

	log.Debug().Msg("Exchanging authorization code with Mercado Pago")
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return TokenPair{}, fmt.Errorf("exchange code: %w", classify(err))
	}
	return pairOf(tok)
}

// RefreshToken trades a refresh token for a new pair. Mercado Pago rotates
// refresh tokens, so the returned RefreshToken replaces the one passed in.
func (c *MercadoPago) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	ctx, cancel := c.scope(ctx)
	defer cancel()

	log.Debug().Msg("Refreshing Mercado Pago access token")
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh token: %w", classify(err))
	}
	return pairOf(tok)
}

// scope bounds one remote call and hands oauth2 our HTTP client.
func (c *MercadoPago) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return context.WithTimeout(ctx, c.timeout)
}

// pairOf reads the refresh token from the raw response rather than
// tok.RefreshToken, because oauth2 silently carries the old refresh token
// over when a refresh response omits it.
func pairOf(tok *oauth2.Token) (TokenPair, error) {
	refresh, _ := tok.Extra("refresh_token").(string)
	if tok.AccessToken == "" || refresh == "" {
		return TokenPair{}, fmt.Errorf("%w: missing access_token or refresh_token", ErrMalformedResponse)
	}
	return TokenPair{AccessToken: tok.AccessToken, RefreshToken: refresh}, nil
}

func classify(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		if status >= 200 && status < 300 {
			return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return &RejectedError{StatusCode: status, Code: rerr.ErrorCode, Body: string(rerr.Body)}
	}

	var uerr *url.Error
	if errors.As(err, &uerr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
}
