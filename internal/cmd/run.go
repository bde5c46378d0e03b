package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stridestats/internal/auth"
	"stridestats/internal/logging"
	"stridestats/internal/server"
	"stridestats/internal/service"
	"stridestats/internal/store"
	"stridestats/internal/strava"
	"stridestats/internal/workers"
)

// RuntimeConfig holds all runtime configuration from CLI flags
type RuntimeConfig struct {
	DBPath               string
	ListenAddr           string
	TokenRefreshInterval time.Duration
	ForceReauth          bool
}

// Run is the main entry point for the server
func Run(cfg *RuntimeConfig) error {
	log := logging.Logger

	log.Info().
		Str("db_path", cfg.DBPath).
		Str("addr", cfg.ListenAddr).
		Dur("token_refresh_interval", cfg.TokenRefreshInterval).
		Msg("starting stridestats")

	// Set up context for shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	// Open database and run migrations
	log.Info().Str("path", cfg.DBPath).Msg("opening database")
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	// Check and handle authentication
	if err := ensureAuthenticated(ctx, st, cfg); err != nil {
		return fmt.Errorf("authentication: %w", err)
	}

	client := strava.NewClient()
	tokens := auth.NewStoreProvider(st)
	svc := service.New(tokens, client)
	srv := server.New(svc)

	// Start background workers with errgroup for graceful shutdown
	g, gCtx := errgroup.WithContext(ctx)

	log.Info().Msg("starting background workers")

	tokenRefresher := workers.NewTokenRefresher(st, cfg.TokenRefreshInterval)
	g.Go(func() error {
		if err := tokenRefresher.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	serverErr := srv.Run(ctx, cfg.ListenAddr)

	log.Info().Msg("waiting for workers to shut down")
	cancel()
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("worker error during shutdown")
	} else {
		log.Info().Msg("all workers shut down gracefully")
	}

	return serverErr
}

// ensureAuthenticated checks if we have stored credentials, and if not (or
// on --force-reauth), runs the OAuth flow
func ensureAuthenticated(ctx context.Context, st *store.Store, cfg *RuntimeConfig) error {
	log := logging.Logger

	if !cfg.ForceReauth {
		athleteID, err := st.DefaultAthleteID(ctx)
		if err == nil {
			creds, err := st.GetCredentials(ctx, athleteID)
			if err == nil && (creds.RefreshToken != "" || !auth.IsTokenExpired(creds.ExpiresAt)) {
				log.Info().Str("athlete_id", athleteID).Msg("using existing authentication")
				return nil
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		log.Info().Msg("no valid authentication found, starting OAuth flow")
	} else {
		log.Info().Msg("force re-authentication requested")
	}

	clientID, clientSecret, err := promptForCredentials()
	if err != nil {
		return fmt.Errorf("getting credentials: %w", err)
	}

	return runOAuthFlow(ctx, st, clientID, clientSecret)
}

// promptForCredentials prompts the user to enter their Strava API credentials
func promptForCredentials() (string, string, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("\n=== Strava API Credentials Required ===")
	fmt.Println("Get your API credentials from: https://www.strava.com/settings/api")
	fmt.Println()

	fmt.Print("Enter your Client ID: ")
	clientID, err := reader.ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("reading client ID: %w", err)
	}
	clientID = strings.TrimSpace(clientID)

	if clientID == "" {
		return "", "", fmt.Errorf("client ID is required")
	}

	fmt.Print("Enter your Client Secret: ")
	clientSecret, err := reader.ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("reading client secret: %w", err)
	}
	clientSecret = strings.TrimSpace(clientSecret)

	if clientSecret == "" {
		return "", "", fmt.Errorf("client secret is required")
	}

	return clientID, clientSecret, nil
}

// runOAuthFlow performs the OAuth authentication flow with Strava
func runOAuthFlow(ctx context.Context, st *store.Store, clientID, clientSecret string) error {
	log := logging.Logger

	fmt.Println("\n=== Strava Authentication Required ===")
	fmt.Println("A browser window will open for you to authorize this application.")
	fmt.Println("Press Enter to continue...")

	reader := bufio.NewReader(os.Stdin)
	reader.ReadString('\n')

	tokens, err := auth.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return fmt.Errorf("OAuth flow failed: %w", err)
	}
	if tokens.AthleteID == "" {
		return fmt.Errorf("token exchange response did not include an athlete id")
	}

	log.Info().
		Str("athlete_id", tokens.AthleteID).
		Str("expires_at", time.Unix(tokens.ExpiresAt, 0).Format(time.RFC3339)).
		Msg("OAuth authentication successful")

	err = st.SaveCredentials(ctx, store.Credentials{
		AthleteID:    tokens.AthleteID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}

	fmt.Printf("\nAuthentication successful! Token expires: %s\n\n",
		time.Unix(tokens.ExpiresAt, 0).Format(time.RFC1123))

	return nil
}
