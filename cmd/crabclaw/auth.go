package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

// tokenPath is where `auth login` persists the exchanged token, relative
// to the workspace the CLI was invoked from, mirroring the tape's own
// <workspace>/.crabclaw convention.
func tokenPath(workspace string) string {
	return filepath.Join(workspace, tapeDirName, "auth.json")
}

const tapeDirName = ".crabclaw"

func buildAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "manage provider OAuth credentials",
	}
	cmd.AddCommand(buildAuthLoginCmd(), buildAuthLogoutCmd(), buildAuthStatusCmd())
	return cmd
}

func oauthConfigFromEnv() (oauth2.Config, error) {
	clientID := os.Getenv("CRABCLAW_OAUTH_CLIENT_ID")
	authURL := os.Getenv("CRABCLAW_OAUTH_AUTH_URL")
	tokenURL := os.Getenv("CRABCLAW_OAUTH_TOKEN_URL")
	if clientID == "" || authURL == "" || tokenURL == "" {
		return oauth2.Config{}, errors.New("set CRABCLAW_OAUTH_CLIENT_ID, CRABCLAW_OAUTH_AUTH_URL, and CRABCLAW_OAUTH_TOKEN_URL before running auth login")
	}
	return oauth2.Config{
		ClientID:    clientID,
		Endpoint:    oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		RedirectURL: "http://127.0.0.1:8097/callback",
		Scopes:      []string{"offline_access"},
	}, nil
}

func buildAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "run the OAuth PKCE authorization-code flow and store the resulting token",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := oauthConfigFromEnv()
			if err != nil {
				return err
			}
			token, err := runPKCELogin(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := saveToken(workspace, token); err != nil {
				return err
			}
			fmt.Println("login succeeded; token stored at", tokenPath(workspace))
			return nil
		},
	}
}

func buildAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "discard the stored OAuth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := os.Getwd()
			if err != nil {
				return err
			}
			path := tokenPath(workspace)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func buildAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show whether a valid token is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := os.Getwd()
			if err != nil {
				return err
			}
			token, err := loadToken(workspace)
			if err != nil {
				fmt.Println("not logged in")
				return nil
			}
			if token.Valid() {
				fmt.Printf("logged in; token valid until %s\n", token.Expiry.Format(time.RFC3339))
			} else {
				fmt.Println("logged in, but token is expired; run `crabclaw auth login` again")
			}
			return nil
		},
	}
}

// runPKCELogin drives the authorization-code-with-PKCE flow: print the
// authorization URL for the user to open, listen briefly on the redirect
// URI's port for the callback, and exchange the code for a token.
func runPKCELogin(ctx context.Context, cfg oauth2.Config) (*oauth2.Token, error) {
	verifier := oauth2.GenerateVerifier()
	state := verifier[:16]
	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	fmt.Println("open this URL to authorize crabclaw:")
	fmt.Println(authURL)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	server := &http.Server{Addr: "127.0.0.1:8097"}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("state"); got != state {
			errCh <- fmt.Errorf("state mismatch in oauth callback")
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			errCh <- fmt.Errorf("no code in oauth callback")
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "authorization received, you can close this tab")
		codeCh <- code
	})
	server.Handler = mux

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer server.Close()

	select {
	case code := <-codeCh:
		return cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, errors.New("timed out waiting for oauth callback")
	}
}

func saveToken(workspace string, token *oauth2.Token) error {
	path := tokenPath(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func loadToken(workspace string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath(workspace))
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}
