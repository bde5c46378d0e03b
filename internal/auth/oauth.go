package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

const (
	authURL     = "https://www.strava.com/oauth/authorize"
	tokenURL    = "https://www.strava.com/oauth/token"
	redirectURI = "http://localhost:8089/callback"
	scopes      = "activity:read_all"
)

// OAuthConfig returns an OAuth2 config for Strava
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
		RedirectURL: redirectURI,
		Scopes:      []string{scopes},
	}
}

// TokenResponse represents the OAuth token response from Strava. AthleteID
// is extracted from the athlete object Strava attaches to the exchange
// response and keys the credential storage.
type TokenResponse struct {
	AthleteID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	TokenType    string
}

func tokenFromOAuth2(token *oauth2.Token) *TokenResponse {
	return &TokenResponse{
		AthleteID:    athleteIDFromToken(token),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.Unix(),
		TokenType:    token.TokenType,
	}
}

// athleteIDFromToken pulls the athlete id out of the token exchange extras.
// Refresh responses don't carry the athlete object, so this can be empty.
func athleteIDFromToken(token *oauth2.Token) string {
	athlete, ok := token.Extra("athlete").(map[string]interface{})
	if !ok {
		return ""
	}
	switch id := athlete["id"].(type) {
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case string:
		return id
	}
	return ""
}

// Authenticate performs the browser OAuth flow and returns tokens
func Authenticate(ctx context.Context, clientID, clientSecret string) (*TokenResponse, error) {
	config := OAuthConfig(clientID, clientSecret)

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	server := &http.Server{
		Addr:    ":8089",
		Handler: mux,
	}

	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			errMsg := r.URL.Query().Get("error")
			if errMsg == "" {
				errMsg = "no authorization code received"
			}
			http.Error(w, errMsg, http.StatusBadRequest)
			errChan <- fmt.Errorf("authorization failed: %s", errMsg)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>`)
		codeChan <- code
	})

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	state := "stridestats-auth"
	url := config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))

	fmt.Println("Opening browser for Strava authorization...")
	fmt.Printf("If browser doesn't open, visit: %s\n\n", url)

	if err := browser.OpenURL(url); err != nil {
		fmt.Printf("Could not open browser automatically: %v\n", err)
	}

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		server.Shutdown(ctx)
		return nil, err
	case <-ctx.Done():
		server.Shutdown(ctx)
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		server.Shutdown(ctx)
		return nil, fmt.Errorf("authorization timeout")
	}

	server.Shutdown(ctx)

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	return tokenFromOAuth2(token), nil
}

// RefreshAccessToken refreshes an expired access token
func RefreshAccessToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*TokenResponse, error) {
	config := OAuthConfig(clientID, clientSecret)

	// An already-expired token forces the TokenSource to refresh.
	oldToken := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}

	newToken, err := config.TokenSource(ctx, oldToken).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	return tokenFromOAuth2(newToken), nil
}

// IsTokenExpired checks if the token is expired or will expire soon
func IsTokenExpired(expiresAt int64) bool {
	// Consider expired with less than 5 minutes remaining
	return time.Now().Unix() > (expiresAt - 300)
}
